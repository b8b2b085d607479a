// This file implements the public contact-form endpoint.
//
// Route:
//   - POST /api/contact -> HandleContact (public, rate limited)
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"

	"github.com/tildra/tildra/internal/domain"
	"github.com/tildra/tildra/internal/repository"
	"github.com/tildra/tildra/internal/worker"
)

// maxContactMessage caps the contact message length.
const maxContactMessage = 5000

// ContactHandler accepts contact-form submissions and queues them for
// delivery to the support inbox.
type ContactHandler struct {
	queries *repository.Queries
	logger  *slog.Logger
}

// NewContactHandler creates a new ContactHandler.
func NewContactHandler(queries *repository.Queries, logger *slog.Logger) *ContactHandler {
	return &ContactHandler{
		queries: queries,
		logger:  logger,
	}
}

type contactRequest struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

// HandleContact validates and enqueues a contact-form message.
func (h *ContactHandler) HandleContact(w http.ResponseWriter, r *http.Request) {
	const op = "contact.submit"

	var req contactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "invalid JSON body"))
		return
	}

	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "message is required"))
		return
	}
	if len(req.Message) > maxContactMessage {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "message is too long"))
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "a valid email address is required"))
		return
	}

	if _, err := worker.EnqueueSendContactEmail(r.Context(), h.queries, req.Email, req.Name, req.Message); err != nil {
		ErrorResponse(w, r, h.logger, domain.Internal(err, op, "failed to queue message"))
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}
