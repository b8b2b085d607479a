package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/smtp"
	"path/filepath"
	"strings"
	"time"
)

// =============================================================================
// SMTP Email Service Implementation
// =============================================================================

// SMTPEmailService sends emails via SMTP.
//
// This implementation works with:
// - Mailhog (development): No authentication required
// - Any authenticated SMTP relay (production)
//
// Email templates are loaded from the templates directory and rendered
// with Go's html/template package.
type SMTPEmailService struct {
	config       SMTPConfig
	baseURL      string
	contactInbox string
	templates    *template.Template
	logger       *slog.Logger
}

// NewSMTPEmailService creates a new SMTP-based email service.
//
// Parameters:
// - config: SMTP server configuration
// - baseURL: Application base URL for constructing links
// - contactInbox: Address contact-form messages are forwarded to
// - templatesDir: Path to email templates directory (e.g., "web/templates/email")
// - logger: Structured logger for error reporting
func NewSMTPEmailService(
	config SMTPConfig,
	baseURL string,
	contactInbox string,
	templatesDir string,
	logger *slog.Logger,
) (*SMTPEmailService, error) {
	// Set defaults
	if config.From == "" {
		config.From = DefaultFromEmail
	}
	if config.FromName == "" {
		config.FromName = DefaultFromName
	}
	if contactInbox == "" {
		contactInbox = config.From
	}

	// Load email templates
	pattern := filepath.Join(templatesDir, "*.html")
	templates, err := template.New("email").ParseGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}

	return &SMTPEmailService{
		config:       config,
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		contactInbox: contactInbox,
		templates:    templates,
		logger:       logger,
	}, nil
}

// =============================================================================
// EmailService Interface Implementation
// =============================================================================

// SendWelcomeEmail greets a newly provisioned user.
func (s *SMTPEmailService) SendWelcomeEmail(ctx context.Context, to, name string) error {
	data := map[string]interface{}{
		"Name":    name,
		"BaseURL": s.baseURL,
		"Year":    time.Now().Year(),
	}

	htmlBody, err := s.renderTemplate("welcome.html", data)
	if err != nil {
		return fmt.Errorf("failed to render welcome email template: %w", err)
	}

	textBody := fmt.Sprintf(`Hi %s,

Welcome to Tildra! You're all set up on the free plan with 10 summaries a day.

Install the browser extension or head to %s to summarize your first article.

Thanks,
The Tildra Team
`, name, s.baseURL)

	email := Email{
		To:       to,
		Subject:  "Welcome to Tildra",
		HTMLBody: htmlBody,
		TextBody: textBody,
	}

	return s.send(email)
}

// SendContactEmail forwards a contact-form message to the support inbox.
func (s *SMTPEmailService) SendContactEmail(ctx context.Context, fromEmail, fromName, message string) error {
	data := map[string]interface{}{
		"FromEmail": fromEmail,
		"FromName":  fromName,
		"Message":   message,
		"Year":      time.Now().Year(),
	}

	htmlBody, err := s.renderTemplate("contact.html", data)
	if err != nil {
		return fmt.Errorf("failed to render contact email template: %w", err)
	}

	textBody := fmt.Sprintf(`New contact form message

From: %s <%s>

%s
`, fromName, fromEmail, message)

	email := Email{
		To:       s.contactInbox,
		ReplyTo:  fromEmail,
		Subject:  fmt.Sprintf("Contact form: %s", fromName),
		HTMLBody: htmlBody,
		TextBody: textBody,
	}

	return s.send(email)
}

// =============================================================================
// Internal Methods
// =============================================================================

// send sends an email via SMTP.
func (s *SMTPEmailService) send(email Email) error {
	msg := s.buildMessage(email)

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	// Create auth if credentials are provided (not needed for Mailhog)
	var auth smtp.Auth
	if s.config.Username != "" && s.config.Password != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	}

	err := smtp.SendMail(addr, auth, s.config.From, []string{email.To}, msg)
	if err != nil {
		s.logger.Error("failed to send email",
			"to", email.To,
			"subject", email.Subject,
			"error", err,
		)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("email sent",
		"to", email.To,
		"subject", email.Subject,
	)

	return nil
}

// buildMessage constructs the raw email message with headers.
func (s *SMTPEmailService) buildMessage(email Email) []byte {
	var buf bytes.Buffer

	// From header with display name
	fromHeader := fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)

	buf.WriteString(fmt.Sprintf("From: %s\r\n", fromHeader))
	buf.WriteString(fmt.Sprintf("To: %s\r\n", email.To))
	if email.ReplyTo != "" {
		buf.WriteString(fmt.Sprintf("Reply-To: %s\r\n", email.ReplyTo))
	}
	buf.WriteString(fmt.Sprintf("Subject: %s\r\n", email.Subject))
	buf.WriteString("MIME-Version: 1.0\r\n")

	// Create multipart message for HTML + text
	boundary := "===============TILDRA_BOUNDARY==============="
	buf.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary))
	buf.WriteString("\r\n")

	// Plain text part
	buf.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	buf.WriteString("Content-Transfer-Encoding: quoted-printable\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(email.TextBody)
	buf.WriteString("\r\n")

	// HTML part
	buf.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	buf.WriteString("Content-Type: text/html; charset=utf-8\r\n")
	buf.WriteString("Content-Transfer-Encoding: quoted-printable\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(email.HTMLBody)
	buf.WriteString("\r\n")

	// End boundary
	buf.WriteString(fmt.Sprintf("--%s--\r\n", boundary))

	return buf.Bytes()
}

// renderTemplate renders an email template with the given data.
func (s *SMTPEmailService) renderTemplate(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// =============================================================================
// Compile-time interface check
// =============================================================================

var _ EmailService = (*SMTPEmailService)(nil)
