// Package jobs contains the background job handlers registered with the
// worker. Each handler unmarshals its own payload and decides whether a
// failure is retryable.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/tildra/tildra/internal/email"
	"github.com/tildra/tildra/internal/worker"
)

// SendWelcomeEmailHandler delivers the welcome email to new users.
type SendWelcomeEmailHandler struct {
	emails email.EmailService
	logger *slog.Logger
}

// NewSendWelcomeEmailHandler creates a new handler for welcome email jobs.
func NewSendWelcomeEmailHandler(emails email.EmailService, logger *slog.Logger) *SendWelcomeEmailHandler {
	return &SendWelcomeEmailHandler{
		emails: emails,
		logger: logger,
	}
}

// Type returns the job type identifier.
func (h *SendWelcomeEmailHandler) Type() string {
	return worker.JobTypeSendWelcomeEmail
}

// Handle sends the welcome email. SMTP failures are retryable; a payload
// without a recipient is not.
func (h *SendWelcomeEmailHandler) Handle(ctx context.Context, payload []byte) error {
	var p worker.SendWelcomeEmailPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return worker.NewPermanentError(fmt.Errorf("invalid payload: %w", err))
	}

	if p.Email == "" {
		return worker.NewPermanentError(fmt.Errorf("welcome email payload has no recipient"))
	}

	name := p.Name
	if name == "" {
		name = "there"
	}

	if err := h.emails.SendWelcomeEmail(ctx, p.Email, name); err != nil {
		return fmt.Errorf("send welcome email: %w", err)
	}

	h.logger.Info("Sent welcome email", "clerk_id", p.ClerkID, "email", p.Email)
	return nil
}
