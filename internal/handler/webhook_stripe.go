// This file implements the Stripe webhook handler.
//
// Route:
//   - POST /webhooks/stripe -> HandleStripeWebhook
//
// This route is PUBLIC (no auth middleware) because Stripe calls it
// directly. Authentication is via the webhook signature.
package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/tildra/tildra/internal/billing"
	"github.com/tildra/tildra/internal/domain"
	"github.com/tildra/tildra/internal/metrics"
	"github.com/tildra/tildra/internal/service"
)

// maxWebhookBody bounds the webhook request body (64KB).
const maxWebhookBody = 65536

// StripeWebhookHandler handles incoming billing events from Stripe.
type StripeWebhookHandler struct {
	stripe  billing.Service
	billing service.BillingService
	logger  *slog.Logger
}

// NewStripeWebhookHandler creates a new StripeWebhookHandler.
func NewStripeWebhookHandler(stripeSvc billing.Service, billingSvc service.BillingService, logger *slog.Logger) *StripeWebhookHandler {
	return &StripeWebhookHandler{
		stripe:  stripeSvc,
		billing: billingSvc,
		logger:  logger,
	}
}

// RegisterRoutes registers webhook routes on the provided mux.
// These routes are PUBLIC - no auth middleware.
func (h *StripeWebhookHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhooks/stripe", h.HandleStripeWebhook)
}

// HandleStripeWebhook verifies, interprets and executes one billing event.
//
// Status codes follow the provider's retry semantics: a bad signature is a
// 400 (retrying cannot help), an event we interpret but cannot ever apply
// is a 200 no-op (retrying cannot help either), and only store faults
// return a 5xx so Stripe redelivers.
func (h *StripeWebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	event, err := h.stripe.VerifyWebhookSignature(body, signature)
	if err != nil {
		h.logger.Warn("webhook signature verification failed", "error", err)
		metrics.WebhookEvents.WithLabelValues("stripe", "unknown", "bad_signature").Inc()
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	h.logger.Info("stripe webhook received", "type", event.Type, "id", event.ID)

	action := h.billing.InterpretEvent(r.Context(), event)
	if err := h.billing.ExecuteAction(r.Context(), action); err != nil {
		metrics.WebhookEvents.WithLabelValues("stripe", string(event.Type), "store_error").Inc()
		ErrorResponse(w, r, h.logger, err)
		return
	}

	outcome := "applied"
	if action.Kind == domain.ReconcileIgnore {
		outcome = "ignored"
	}
	metrics.WebhookEvents.WithLabelValues("stripe", string(event.Type), outcome).Inc()

	writeJSON(w, http.StatusOK, map[string]string{
		"received": "true",
		"action":   string(action.Kind),
	})
}
