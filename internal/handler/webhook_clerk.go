// This file implements the Clerk webhook handler, which drives user
// provisioning.
//
// Route:
//   - POST /webhooks/clerk -> HandleClerkWebhook
//
// This route is PUBLIC (no auth middleware) because Clerk calls it
// directly. Authentication is via the Svix signature headers.
package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/tildra/tildra/internal/domain"
	"github.com/tildra/tildra/internal/identity"
	"github.com/tildra/tildra/internal/metrics"
	"github.com/tildra/tildra/internal/repository"
	"github.com/tildra/tildra/internal/service"
	"github.com/tildra/tildra/internal/worker"
)

// ClerkWebhookHandler handles incoming identity events from Clerk.
type ClerkWebhookHandler struct {
	verifier *identity.WebhookVerifier
	users    service.UserService
	queries  *repository.Queries
	logger   *slog.Logger
}

// NewClerkWebhookHandler creates a new ClerkWebhookHandler.
func NewClerkWebhookHandler(verifier *identity.WebhookVerifier, users service.UserService, queries *repository.Queries, logger *slog.Logger) *ClerkWebhookHandler {
	return &ClerkWebhookHandler{
		verifier: verifier,
		users:    users,
		queries:  queries,
		logger:   logger,
	}
}

// RegisterRoutes registers webhook routes on the provided mux.
// These routes are PUBLIC - no auth middleware.
func (h *ClerkWebhookHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhooks/clerk", h.HandleClerkWebhook)
}

// HandleClerkWebhook verifies and applies one identity event.
func (h *ClerkWebhookHandler) HandleClerkWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	event, err := h.verifier.VerifyAndParse(body, r.Header)
	if err != nil {
		h.logger.Warn("clerk webhook verification failed", "error", err)
		metrics.WebhookEvents.WithLabelValues("clerk", "unknown", "bad_signature").Inc()
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	h.logger.Info("clerk webhook received", "type", event.Type, "clerk_id", event.Data.ID)

	var outcome string
	switch event.Type {
	case identity.EventUserCreated:
		outcome = h.handleUserCreated(w, r, event)
	case identity.EventUserUpdated:
		outcome = h.handleUserUpdated(w, r, event)
	case identity.EventUserDeleted:
		outcome = h.handleUserDeleted(w, r, event)
	default:
		h.logger.Debug("unhandled clerk event type", "type", event.Type)
		outcome = "ignored"
		writeJSON(w, http.StatusOK, map[string]string{"received": "true", "action": "ignore"})
	}

	metrics.WebhookEvents.WithLabelValues("clerk", event.Type, outcome).Inc()
}

// handleUserCreated provisions the user and queues their welcome email.
func (h *ClerkWebhookHandler) handleUserCreated(w http.ResponseWriter, r *http.Request, event identity.Event) string {
	user, err := h.users.ProvisionUser(r.Context(), service.ProvisionUserParams{
		ClerkID: event.Data.ID,
		Email:   event.Data.PrimaryEmail(),
		Patch:   profilePatch(event.Data),
	})
	if err != nil {
		if domain.ErrorCode(err) == domain.EINVALID {
			// An event missing its identity fields (e.g. no email address)
			// can never become provisionable; a 4xx would just make Clerk
			// redeliver it forever.
			h.logger.Warn("unprocessable user.created acknowledged",
				"clerk_id", event.Data.ID,
				"error", err,
			)
			writeJSON(w, http.StatusOK, map[string]string{"received": "true", "action": "ignore"})
			return "ignored"
		}
		ErrorResponse(w, r, h.logger, err)
		return "error"
	}

	// Welcome email goes through the job queue: it is retryable work and
	// must not hold the webhook response open.
	if _, err := worker.EnqueueSendWelcomeEmail(r.Context(), h.queries, user.ClerkID, user.Email, user.FirstName); err != nil {
		h.logger.Error("failed to enqueue welcome email", "clerk_id", user.ClerkID, "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]string{"received": "true", "action": "provisioned"})
	return "applied"
}

// handleUserUpdated patches the stored profile. An update for a user we
// never provisioned is acknowledged as a no-op.
func (h *ClerkWebhookHandler) handleUserUpdated(w http.ResponseWriter, r *http.Request, event identity.Event) string {
	_, err := h.users.UpdateProfile(r.Context(), event.Data.ID, profilePatch(event.Data))
	if err != nil {
		if domain.ErrorCode(err) == domain.ENOTFOUND {
			h.logger.Warn("profile update for unknown user acknowledged", "clerk_id", event.Data.ID)
			writeJSON(w, http.StatusOK, map[string]string{"received": "true", "action": "ignore"})
			return "ignored"
		}
		ErrorResponse(w, r, h.logger, err)
		return "error"
	}

	writeJSON(w, http.StatusOK, map[string]string{"received": "true", "action": "updated"})
	return "applied"
}

// handleUserDeleted removes the user and their history.
func (h *ClerkWebhookHandler) handleUserDeleted(w http.ResponseWriter, r *http.Request, event identity.Event) string {
	if err := h.users.DeleteUser(r.Context(), event.Data.ID); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return "error"
	}

	writeJSON(w, http.StatusOK, map[string]string{"received": "true", "action": "deleted"})
	return "applied"
}

// profilePatch converts optional event fields to a domain patch.
func profilePatch(data identity.EventData) domain.ProfilePatch {
	patch := domain.ProfilePatch{
		FirstName:       data.FirstName,
		LastName:        data.LastName,
		ProfileImageURL: data.ImageURL,
	}
	if email := data.PrimaryEmail(); email != "" {
		patch.Email = &email
	}
	return patch
}
