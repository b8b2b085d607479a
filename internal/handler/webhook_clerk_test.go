package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tildra/tildra/internal/domain"
	"github.com/tildra/tildra/internal/identity"
	"github.com/tildra/tildra/internal/service"
)

const clerkTestSecret = "dGVzdHNlY3JldHRlc3RzZWNyZXQ="

// signClerkPayload produces svix-compatible signature headers for a payload.
func signClerkPayload(t *testing.T, payload []byte) http.Header {
	t.Helper()

	key, err := base64.StdEncoding.DecodeString(clerkTestSecret)
	if err != nil {
		t.Fatalf("decode test secret: %v", err)
	}

	msgID := "msg_test"
	timestamp := fmt.Sprintf("%d", time.Now().Unix())
	signedContent := msgID + "." + timestamp + "." + string(payload)

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(signedContent))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	headers := http.Header{}
	headers.Set("svix-id", msgID)
	headers.Set("svix-timestamp", timestamp)
	headers.Set("svix-signature", "v1,"+signature)
	return headers
}

// fakeUserService implements service.UserService with canned responses.
type fakeUserService struct {
	provisionErr error
	updateErr    error
	deleteErr    error

	deleted []string
}

func (f *fakeUserService) ProvisionUser(ctx context.Context, params service.ProvisionUserParams) (*domain.User, error) {
	if f.provisionErr != nil {
		return nil, f.provisionErr
	}
	return &domain.User{ClerkID: params.ClerkID, Email: params.Email}, nil
}

func (f *fakeUserService) UpdateProfile(ctx context.Context, clerkID string, patch domain.ProfilePatch) (*domain.User, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return &domain.User{ClerkID: clerkID}, nil
}

func (f *fakeUserService) DeleteUser(ctx context.Context, clerkID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, clerkID)
	return nil
}

func (f *fakeUserService) GetUser(ctx context.Context, clerkID string) (*domain.User, error) {
	return &domain.User{ClerkID: clerkID}, nil
}

func (f *fakeUserService) UpdateSettings(ctx context.Context, clerkID string, patch domain.SettingsPatch) (*domain.User, error) {
	return &domain.User{ClerkID: clerkID}, nil
}

func newClerkHandler(t *testing.T, users *fakeUserService) *ClerkWebhookHandler {
	t.Helper()
	verifier, err := identity.NewWebhookVerifier("whsec_" + clerkTestSecret)
	if err != nil {
		t.Fatalf("NewWebhookVerifier() = %v", err)
	}
	return NewClerkWebhookHandler(verifier, users, nil, testLogger())
}

func postClerkWebhook(h *ClerkWebhookHandler, payload []byte, headers http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/webhooks/clerk", strings.NewReader(string(payload)))
	req.Header = headers
	rec := httptest.NewRecorder()
	h.HandleClerkWebhook(rec, req)
	return rec
}

func TestHandleClerkWebhook_BadSignature(t *testing.T) {
	users := &fakeUserService{}
	h := newClerkHandler(t, users)

	payload := []byte(`{"type":"user.deleted","data":{"id":"user_1"}}`)
	headers := signClerkPayload(t, []byte(`tampered`))

	rec := postClerkWebhook(h, payload, headers)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if len(users.deleted) != 0 {
		t.Error("no deletion should occur for a bad signature")
	}
}

func TestHandleClerkWebhook_UserDeleted(t *testing.T) {
	users := &fakeUserService{}
	h := newClerkHandler(t, users)

	payload := []byte(`{"type":"user.deleted","data":{"id":"user_1"}}`)
	rec := postClerkWebhook(h, payload, signClerkPayload(t, payload))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(users.deleted) != 1 || users.deleted[0] != "user_1" {
		t.Errorf("deleted = %v, want [user_1]", users.deleted)
	}
}

func TestHandleClerkWebhook_UpdateForUnknownUserIsAcknowledged(t *testing.T) {
	users := &fakeUserService{
		updateErr: domain.NotFound("user.update_profile", "user", "user_ghost"),
	}
	h := newClerkHandler(t, users)

	payload := []byte(`{"type":"user.updated","data":{"id":"user_ghost","first_name":"Ada"}}`)
	rec := postClerkWebhook(h, payload, signClerkPayload(t, payload))

	// A 4xx here would make Clerk retry an event that can never apply.
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["action"] != "ignore" {
		t.Errorf("action = %q, want ignore", body["action"])
	}
}

func TestHandleClerkWebhook_UserCreatedWithoutEmailIsAcknowledged(t *testing.T) {
	users := &fakeUserService{
		provisionErr: domain.Invalid("user.provision", "a primary email address is required"),
	}
	h := newClerkHandler(t, users)

	payload := []byte(`{"type":"user.created","data":{"id":"user_1","email_addresses":[]}}`)
	rec := postClerkWebhook(h, payload, signClerkPayload(t, payload))

	// The event can never become provisionable; a 4xx would have Clerk
	// redeliver it forever.
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["action"] != "ignore" {
		t.Errorf("action = %q, want ignore", body["action"])
	}
}

func TestHandleClerkWebhook_UnconsumedEventType(t *testing.T) {
	h := newClerkHandler(t, &fakeUserService{})

	payload := []byte(`{"type":"session.created","data":{"id":"sess_1"}}`)
	rec := postClerkWebhook(h, payload, signClerkPayload(t, payload))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ignore") {
		t.Errorf("body = %s, want ignore action", rec.Body.String())
	}
}

func TestProfilePatch(t *testing.T) {
	first := "Ada"
	img := "https://img.clerk.com/x"
	data := identity.EventData{
		ID:                    "user_1",
		FirstName:             &first,
		ImageURL:              &img,
		PrimaryEmailAddressID: "idn_1",
		EmailAddresses: []identity.EmailAddress{
			{ID: "idn_1", EmailAddress: "ada@example.com"},
		},
	}

	patch := profilePatch(data)
	if patch.FirstName == nil || *patch.FirstName != "Ada" {
		t.Error("first name should carry through")
	}
	if patch.LastName != nil {
		t.Error("absent last name should stay nil")
	}
	if patch.Email == nil || *patch.Email != "ada@example.com" {
		t.Error("primary email should populate the patch")
	}
}
