package identity

import (
	"encoding/json"
	"fmt"
	"net/http"

	svix "github.com/svix/svix-webhooks/go"
)

// Webhook event types consumed from Clerk.
const (
	EventUserCreated = "user.created"
	EventUserUpdated = "user.updated"
	EventUserDeleted = "user.deleted"
)

// Event is a verified, parsed Clerk webhook event.
type Event struct {
	Type string    `json:"type"`
	Data EventData `json:"data"`
}

// EventData carries the user object of a lifecycle event. Pointer fields
// distinguish "absent from the event" from "present but empty": an absent
// field must not overwrite stored data.
type EventData struct {
	ID                    string         `json:"id"`
	EmailAddresses        []EmailAddress `json:"email_addresses"`
	PrimaryEmailAddressID string         `json:"primary_email_address_id"`
	FirstName             *string        `json:"first_name"`
	LastName              *string        `json:"last_name"`
	ImageURL              *string        `json:"image_url"`
}

// EmailAddress is one entry of a Clerk user's email address list.
type EmailAddress struct {
	ID           string       `json:"id"`
	EmailAddress string       `json:"email_address"`
	Verification Verification `json:"verification"`
}

// Verification carries the verification status of an email address.
type Verification struct {
	Status string `json:"status"`
}

// PrimaryEmail resolves the user's effective email address: the primary
// address if identified, else the first verified address, else the first
// address. Returns "" if the event carries no addresses.
func (d EventData) PrimaryEmail() string {
	for _, e := range d.EmailAddresses {
		if e.ID == d.PrimaryEmailAddressID && e.ID != "" {
			return e.EmailAddress
		}
	}
	for _, e := range d.EmailAddresses {
		if e.Verification.Status == "verified" {
			return e.EmailAddress
		}
	}
	if len(d.EmailAddresses) > 0 {
		return d.EmailAddresses[0].EmailAddress
	}
	return ""
}

// WebhookVerifier verifies and parses Clerk webhook deliveries.
//
// Clerk signs deliveries via svix: the svix-id, svix-timestamp, and
// svix-signature headers carry an HMAC over the raw body, checked with a
// constant-time compare inside the svix library.
type WebhookVerifier struct {
	wh *svix.Webhook
}

// NewWebhookVerifier builds a verifier from the svix signing secret
// (whsec_...).
func NewWebhookVerifier(secret string) (*WebhookVerifier, error) {
	if secret == "" {
		return nil, fmt.Errorf("identity: webhook secret is required")
	}
	wh, err := svix.NewWebhook(secret)
	if err != nil {
		return nil, fmt.Errorf("identity: invalid webhook secret: %w", err)
	}
	return &WebhookVerifier{wh: wh}, nil
}

// VerifyAndParse checks the delivery signature against the raw payload
// and headers, then decodes the event. A signature mismatch or missing
// header is an error; the caller must reject the delivery with a client
// error and must not process it.
func (v *WebhookVerifier) VerifyAndParse(payload []byte, headers http.Header) (Event, error) {
	if err := v.wh.Verify(payload, headers); err != nil {
		return Event{}, fmt.Errorf("identity: webhook signature verification failed: %w", err)
	}

	var evt Event
	if err := json.Unmarshal(payload, &evt); err != nil {
		return Event{}, fmt.Errorf("identity: decode webhook payload: %w", err)
	}
	return evt, nil
}
