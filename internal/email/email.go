// Package email provides transactional email sending for Tildra.
//
// This package defines an EmailService interface with an SMTP
// implementation that works with Mailhog in development and any
// authenticated SMTP relay in production.
package email

import (
	"context"
)

// =============================================================================
// Interface Definition
// =============================================================================

// EmailService defines the interface for sending transactional emails.
//
// All methods are context-aware for timeout and cancellation support.
type EmailService interface {
	// SendWelcomeEmail greets a newly provisioned user.
	// Parameters:
	// - to: Recipient email address
	// - name: Recipient's name for personalization
	SendWelcomeEmail(ctx context.Context, to, name string) error

	// SendContactEmail forwards a contact-form message to the support inbox.
	// Parameters:
	// - fromEmail: The sender's address, for replies
	// - fromName: The sender's name
	// - message: The message body
	SendContactEmail(ctx context.Context, fromEmail, fromName, message string) error
}

// =============================================================================
// Email Data Types
// =============================================================================

// Email represents a single email message.
type Email struct {
	To       string // Recipient email address
	ReplyTo  string // Optional reply-to address
	Subject  string // Email subject line
	HTMLBody string // HTML content of the email
	TextBody string // Plain text fallback content
}

// =============================================================================
// Configuration Types
// =============================================================================

// SMTPConfig holds SMTP server configuration.
type SMTPConfig struct {
	Host     string // SMTP server hostname (e.g., "localhost" for Mailhog)
	Port     int    // SMTP server port (e.g., 1025 for Mailhog)
	Username string // SMTP authentication username (empty for Mailhog)
	Password string // SMTP authentication password (empty for Mailhog)
	From     string // Default sender email address
	FromName string // Default sender display name
}

// =============================================================================
// Common Constants
// =============================================================================

const (
	// DefaultFromEmail is the default sender email for transactional emails.
	DefaultFromEmail = "support@tildra.xyz"

	// DefaultFromName is the default sender display name.
	DefaultFromName = "Tildra"
)
