// This file implements the billing endpoints for starting an upgrade and
// managing an existing subscription.
//
// Routes (all auth required):
//   - POST /api/billing/checkout -> HandleCreateCheckout
//   - POST /api/billing/portal   -> HandleCreatePortal
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/tildra/tildra/internal/domain"
	"github.com/tildra/tildra/internal/middleware"
	"github.com/tildra/tildra/internal/service"
)

// BillingHandler serves checkout and portal endpoints.
type BillingHandler struct {
	billing service.BillingService
	baseURL string
	logger  *slog.Logger
}

// NewBillingHandler creates a new BillingHandler.
func NewBillingHandler(billingSvc service.BillingService, baseURL string, logger *slog.Logger) *BillingHandler {
	return &BillingHandler{
		billing: billingSvc,
		baseURL: baseURL,
		logger:  logger,
	}
}

// RegisterRoutes registers billing routes on the provided mux.
// The mux is expected to be wrapped in auth middleware.
func (h *BillingHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/billing/checkout", h.HandleCreateCheckout)
	mux.HandleFunc("POST /api/billing/portal", h.HandleCreatePortal)
}

type createCheckoutRequest struct {
	// Interval selects the premium price: "monthly" or "yearly".
	Interval string `json:"interval"`
}

// HandleCreateCheckout creates a Stripe Checkout session for an upgrade.
func (h *BillingHandler) HandleCreateCheckout(w http.ResponseWriter, r *http.Request) {
	clerkID := middleware.GetClerkID(r.Context())

	var req createCheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("billing.checkout.decode", "invalid JSON body"))
		return
	}
	if req.Interval == "" {
		req.Interval = "monthly"
	}

	session, err := h.billing.StartCheckout(
		r.Context(),
		clerkID,
		req.Interval,
		h.baseURL+"/upgrade/success",
		h.baseURL+"/upgrade/cancelled",
	)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"session_id": session.ID,
		"url":        session.URL,
	})
}

// HandleCreatePortal creates a Stripe Customer Portal session.
func (h *BillingHandler) HandleCreatePortal(w http.ResponseWriter, r *http.Request) {
	clerkID := middleware.GetClerkID(r.Context())

	url, err := h.billing.PortalURL(r.Context(), clerkID, h.baseURL+"/settings")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}
