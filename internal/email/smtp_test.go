package email

import (
	"io"
	"log/slog"
	"strings"
	"testing"
)

func testService(t *testing.T) *SMTPEmailService {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := NewSMTPEmailService(
		SMTPConfig{Host: "localhost", Port: 1025},
		"https://tildra.xyz/",
		"support@tildra.xyz",
		"../../web/templates/email",
		logger,
	)
	if err != nil {
		t.Fatalf("NewSMTPEmailService() = %v", err)
	}
	return svc
}

func TestNewSMTPEmailService_Defaults(t *testing.T) {
	svc := testService(t)

	if svc.config.From != DefaultFromEmail {
		t.Errorf("from = %q, want default %q", svc.config.From, DefaultFromEmail)
	}
	if svc.config.FromName != DefaultFromName {
		t.Errorf("from name = %q, want default %q", svc.config.FromName, DefaultFromName)
	}
	if svc.baseURL != "https://tildra.xyz" {
		t.Errorf("base url = %q, want trailing slash stripped", svc.baseURL)
	}
}

func TestRenderTemplate_Welcome(t *testing.T) {
	svc := testService(t)

	html, err := svc.renderTemplate("welcome.html", map[string]interface{}{
		"Name":    "Ada",
		"BaseURL": "https://tildra.xyz",
		"Year":    2026,
	})
	if err != nil {
		t.Fatalf("renderTemplate() = %v", err)
	}
	if !strings.Contains(html, "Ada") {
		t.Error("welcome email should greet the user by name")
	}
	if !strings.Contains(html, "https://tildra.xyz") {
		t.Error("welcome email should link to the app")
	}
}

func TestRenderTemplate_ContactEscapesHTML(t *testing.T) {
	svc := testService(t)

	html, err := svc.renderTemplate("contact.html", map[string]interface{}{
		"FromEmail": "ada@example.com",
		"FromName":  "Ada",
		"Message":   "<script>alert('x')</script>",
		"Year":      2026,
	})
	if err != nil {
		t.Fatalf("renderTemplate() = %v", err)
	}
	if strings.Contains(html, "<script>") {
		t.Error("user-provided message must be HTML-escaped")
	}
}

func TestBuildMessage(t *testing.T) {
	svc := testService(t)

	msg := string(svc.buildMessage(Email{
		To:       "ada@example.com",
		ReplyTo:  "reply@example.com",
		Subject:  "Welcome to Tildra",
		HTMLBody: "<p>hello</p>",
		TextBody: "hello",
	}))

	for _, want := range []string{
		"To: ada@example.com",
		"Reply-To: reply@example.com",
		"Subject: Welcome to Tildra",
		"MIME-Version: 1.0",
		"multipart/alternative",
		"text/plain; charset=utf-8",
		"text/html; charset=utf-8",
		"<p>hello</p>",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q", want)
		}
	}
}

func TestBuildMessage_NoReplyToHeaderWhenUnset(t *testing.T) {
	svc := testService(t)

	msg := string(svc.buildMessage(Email{
		To:      "ada@example.com",
		Subject: "Welcome",
	}))
	if strings.Contains(msg, "Reply-To:") {
		t.Error("Reply-To header should be omitted when unset")
	}
}
