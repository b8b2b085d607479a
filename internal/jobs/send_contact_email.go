package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/tildra/tildra/internal/email"
	"github.com/tildra/tildra/internal/worker"
)

// SendContactEmailHandler forwards contact-form messages to the support inbox.
type SendContactEmailHandler struct {
	emails email.EmailService
	logger *slog.Logger
}

// NewSendContactEmailHandler creates a new handler for contact email jobs.
func NewSendContactEmailHandler(emails email.EmailService, logger *slog.Logger) *SendContactEmailHandler {
	return &SendContactEmailHandler{
		emails: emails,
		logger: logger,
	}
}

// Type returns the job type identifier.
func (h *SendContactEmailHandler) Type() string {
	return worker.JobTypeSendContactEmail
}

// Handle forwards the message. SMTP failures are retryable; an empty
// message is not.
func (h *SendContactEmailHandler) Handle(ctx context.Context, payload []byte) error {
	var p worker.SendContactEmailPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return worker.NewPermanentError(fmt.Errorf("invalid payload: %w", err))
	}

	if p.Message == "" || p.FromEmail == "" {
		return worker.NewPermanentError(fmt.Errorf("contact email payload is incomplete"))
	}

	if err := h.emails.SendContactEmail(ctx, p.FromEmail, p.FromName, p.Message); err != nil {
		return fmt.Errorf("send contact email: %w", err)
	}

	h.logger.Info("Forwarded contact form message", "from", p.FromEmail)
	return nil
}
