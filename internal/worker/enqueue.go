package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tildra/tildra/internal/repository"
)

// Job type constants - these must match the JobHandler.Type() values
const (
	JobTypeSendWelcomeEmail = "send_welcome_email"
	JobTypeSendContactEmail = "send_contact_email"
)

// Priority constants for job scheduling
const (
	PriorityLow    = 0
	PriorityNormal = 10
	PriorityHigh   = 20
)

// SendWelcomeEmailPayload is the payload for welcome email jobs.
type SendWelcomeEmailPayload struct {
	ClerkID string `json:"clerk_id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
}

// SendContactEmailPayload is the payload for contact form email jobs.
type SendContactEmailPayload struct {
	FromEmail string `json:"from_email"`
	FromName  string `json:"from_name"`
	Message   string `json:"message"`
}

// EnqueueOption is a functional option for customizing job enqueue parameters.
type EnqueueOption func(*repository.EnqueueJobParams)

// WithPriority sets the job priority.
func WithPriority(priority int32) EnqueueOption {
	return func(p *repository.EnqueueJobParams) {
		p.Priority = priority
	}
}

// WithMaxAttempts sets the maximum number of retry attempts.
func WithMaxAttempts(attempts int32) EnqueueOption {
	return func(p *repository.EnqueueJobParams) {
		p.MaxAttempts = attempts
	}
}

// WithDelay schedules the job to run after a delay.
func WithDelay(delay time.Duration) EnqueueOption {
	return func(p *repository.EnqueueJobParams) {
		p.ScheduledAt = time.Now().Add(delay)
	}
}

// EnqueueJob is a generic helper for enqueuing jobs with custom options.
func EnqueueJob(
	ctx context.Context,
	queries *repository.Queries,
	jobType string,
	payload interface{},
	opts ...EnqueueOption,
) (repository.Job, error) {
	// Marshal the payload to JSON
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return repository.Job{}, fmt.Errorf("marshal payload: %w", err)
	}

	// Default parameters
	params := repository.EnqueueJobParams{
		JobType:     jobType,
		Payload:     payloadJSON,
		Priority:    PriorityNormal,
		MaxAttempts: 3,
		ScheduledAt: time.Now(),
	}

	// Apply options
	for _, opt := range opts {
		opt(&params)
	}

	// Enqueue the job
	job, err := queries.EnqueueJob(ctx, params)
	if err != nil {
		return repository.Job{}, fmt.Errorf("enqueue job: %w", err)
	}

	return job, nil
}

// EnqueueSendWelcomeEmail enqueues a welcome email for a newly provisioned user.
func EnqueueSendWelcomeEmail(
	ctx context.Context,
	queries *repository.Queries,
	clerkID, email, name string,
	opts ...EnqueueOption,
) (repository.Job, error) {
	payload := SendWelcomeEmailPayload{
		ClerkID: clerkID,
		Email:   email,
		Name:    name,
	}

	return EnqueueJob(ctx, queries, JobTypeSendWelcomeEmail, payload, opts...)
}

// EnqueueSendContactEmail enqueues a contact form message for delivery to
// the support inbox.
func EnqueueSendContactEmail(
	ctx context.Context,
	queries *repository.Queries,
	fromEmail, fromName, message string,
	opts ...EnqueueOption,
) (repository.Job, error) {
	payload := SendContactEmailPayload{
		FromEmail: fromEmail,
		FromName:  fromName,
		Message:   message,
	}

	return EnqueueJob(ctx, queries, JobTypeSendContactEmail, payload, opts...)
}
