package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v79"

	"github.com/tildra/tildra/internal/billing"
	"github.com/tildra/tildra/internal/domain"
	"github.com/tildra/tildra/internal/repository"
)

// fakeStripe is a configurable billing.Service for interpreter tests.
type fakeStripe struct {
	subscription    billing.SubscriptionInfo
	subscriptionErr error

	getSubscriptionCalls int
}

func (f *fakeStripe) CreateCustomer(email, name, clerkID string) (string, error) {
	return "cus_fake", nil
}

func (f *fakeStripe) CreateCheckoutSession(customerID, priceID, clerkID, successURL, cancelURL string) (billing.CheckoutSession, error) {
	return billing.CheckoutSession{ID: "cs_fake", URL: "https://checkout.stripe.com/fake"}, nil
}

func (f *fakeStripe) CreatePortalSession(customerID, returnURL string) (string, error) {
	return "https://billing.stripe.com/fake", nil
}

func (f *fakeStripe) GetSubscription(subscriptionID string) (billing.SubscriptionInfo, error) {
	f.getSubscriptionCalls++
	if f.subscriptionErr != nil {
		return billing.SubscriptionInfo{}, f.subscriptionErr
	}
	return f.subscription, nil
}

func (f *fakeStripe) VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error) {
	return stripe.Event{}, nil
}

func (f *fakeStripe) PriceIDForKey(key string) string {
	switch key {
	case "monthly":
		return "price_monthly"
	case "yearly":
		return "price_yearly"
	}
	return ""
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func makeEvent(t *testing.T, id, eventType string, payload interface{}) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal event payload: %v", err)
	}
	return stripe.Event{
		ID:   id,
		Type: stripe.EventType(eventType),
		Data: &stripe.EventData{Raw: raw},
	}
}

func TestInterpretEvent_UnconsumedEventType(t *testing.T) {
	svc := NewBillingService(nil, &fakeStripe{}, testLogger())

	event := makeEvent(t, "evt_1", "customer.subscription.deleted", map[string]string{"id": "sub_1"})
	action := svc.InterpretEvent(context.Background(), event)

	if action.Kind != domain.ReconcileIgnore {
		t.Errorf("kind = %q, want ignore", action.Kind)
	}
	if action.EventID != "evt_1" {
		t.Errorf("event id = %q, want evt_1", action.EventID)
	}
}

func TestInterpretEvent_CheckoutCompleted(t *testing.T) {
	periodEnd := time.Date(2026, 9, 28, 12, 0, 0, 0, time.UTC)
	stripeSvc := &fakeStripe{
		subscription: billing.SubscriptionInfo{
			PriceID:          "price_monthly",
			CurrentPeriodEnd: periodEnd,
		},
	}
	svc := NewBillingService(nil, stripeSvc, testLogger())

	event := makeEvent(t, "evt_2", "checkout.session.completed", map[string]interface{}{
		"id":           "cs_123",
		"customer":     "cus_123",
		"subscription": "sub_123",
	})
	action := svc.InterpretEvent(context.Background(), event)

	if action.Kind != domain.ReconcileUpgrade {
		t.Fatalf("kind = %q, want upgrade (reason: %q)", action.Kind, action.Reason)
	}
	if action.CustomerID != "cus_123" {
		t.Errorf("customer id = %q, want cus_123", action.CustomerID)
	}
	if action.SubscriptionID != "sub_123" {
		t.Errorf("subscription id = %q, want sub_123", action.SubscriptionID)
	}
	if action.PriceID != "price_monthly" {
		t.Errorf("price id = %q, want price_monthly", action.PriceID)
	}
	if !action.PeriodEnd.Equal(periodEnd) {
		t.Errorf("period end = %v, want %v", action.PeriodEnd, periodEnd)
	}
}

func TestInterpretEvent_CheckoutWithoutSubscription(t *testing.T) {
	stripeSvc := &fakeStripe{}
	svc := NewBillingService(nil, stripeSvc, testLogger())

	// One-time payment sessions carry no subscription reference.
	event := makeEvent(t, "evt_3", "checkout.session.completed", map[string]interface{}{
		"id":       "cs_124",
		"customer": "cus_123",
	})
	action := svc.InterpretEvent(context.Background(), event)

	if action.Kind != domain.ReconcileIgnore {
		t.Errorf("kind = %q, want ignore", action.Kind)
	}
	if stripeSvc.getSubscriptionCalls != 0 {
		t.Errorf("subscription lookup should not run, got %d calls", stripeSvc.getSubscriptionCalls)
	}
}

func TestInterpretEvent_SubscriptionLookupFailureIsAcknowledged(t *testing.T) {
	stripeSvc := &fakeStripe{subscriptionErr: errors.New("stripe: connection reset")}
	svc := NewBillingService(nil, stripeSvc, testLogger())

	event := makeEvent(t, "evt_4", "checkout.session.completed", map[string]interface{}{
		"id":           "cs_125",
		"customer":     "cus_123",
		"subscription": "sub_123",
	})
	action := svc.InterpretEvent(context.Background(), event)

	// The lookup failure must classify as ignore, not error: Stripe retries
	// the delivery on its own cadence.
	if action.Kind != domain.ReconcileIgnore {
		t.Fatalf("kind = %q, want ignore", action.Kind)
	}
	if action.Reason != "subscription lookup failed" {
		t.Errorf("reason = %q, want subscription lookup failed", action.Reason)
	}
}

func TestInterpretEvent_InvoiceBillingReasons(t *testing.T) {
	periodEnd := time.Date(2026, 10, 28, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		billingReason string
		wantKind      domain.ReconciliationKind
	}{
		{
			name:          "subscription_cycle renews the window",
			billingReason: "subscription_cycle",
			wantKind:      domain.ReconcileRenew,
		},
		{
			name:          "subscription_update renews the window",
			billingReason: "subscription_update",
			wantKind:      domain.ReconcileRenew,
		},
		{
			// The first invoice is covered by the checkout event; renewing
			// here would wipe usage recorded since the upgrade.
			name:          "subscription_create is ignored",
			billingReason: "subscription_create",
			wantKind:      domain.ReconcileIgnore,
		},
		{
			name:          "manual invoice is ignored",
			billingReason: "manual",
			wantKind:      domain.ReconcileIgnore,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stripeSvc := &fakeStripe{
				subscription: billing.SubscriptionInfo{
					PriceID:          "price_monthly",
					CurrentPeriodEnd: periodEnd,
				},
			}
			svc := NewBillingService(nil, stripeSvc, testLogger())

			event := makeEvent(t, "evt_5", "invoice.payment_succeeded", map[string]interface{}{
				"id":             "in_123",
				"billing_reason": tt.billingReason,
				"customer":       "cus_123",
				"subscription":   "sub_123",
			})
			action := svc.InterpretEvent(context.Background(), event)

			if action.Kind != tt.wantKind {
				t.Errorf("kind = %q, want %q (reason: %q)", action.Kind, tt.wantKind, action.Reason)
			}
			if tt.wantKind == domain.ReconcileRenew && !action.PeriodEnd.Equal(periodEnd) {
				t.Errorf("period end = %v, want %v", action.PeriodEnd, periodEnd)
			}
		})
	}
}

func TestInterpretEvent_MalformedPayload(t *testing.T) {
	svc := NewBillingService(nil, &fakeStripe{}, testLogger())

	event := stripe.Event{
		ID:   "evt_6",
		Type: stripe.EventType("checkout.session.completed"),
		Data: &stripe.EventData{Raw: json.RawMessage(`{"customer": 42`)},
	}
	action := svc.InterpretEvent(context.Background(), event)

	if action.Kind != domain.ReconcileIgnore {
		t.Errorf("kind = %q, want ignore", action.Kind)
	}
}

func TestExecuteAction_IgnoreIsNoOp(t *testing.T) {
	// Ignore actions never touch the store, so nil queries are safe here.
	svc := NewBillingService(nil, &fakeStripe{}, testLogger())

	err := svc.ExecuteAction(context.Background(), domain.ReconciliationAction{
		Kind:      domain.ReconcileIgnore,
		EventID:   "evt_7",
		EventType: "invoice.payment_succeeded",
		Reason:    "billing reason manual does not renew the window",
	})
	if err != nil {
		t.Errorf("ExecuteAction(ignore) = %v, want nil", err)
	}
}

func TestExecuteAction_UnknownKind(t *testing.T) {
	svc := NewBillingService(nil, &fakeStripe{}, testLogger())

	err := svc.ExecuteAction(context.Background(), domain.ReconciliationAction{
		Kind: domain.ReconciliationKind("downgrade"),
	})
	if domain.ErrorCode(err) != domain.EINVALID {
		t.Errorf("error code = %q, want %q", domain.ErrorCode(err), domain.EINVALID)
	}
}

func TestStartCheckout_UnknownInterval(t *testing.T) {
	svc := NewBillingService(nil, &fakeStripe{}, testLogger())

	_, err := svc.StartCheckout(context.Background(), "usr_1", "weekly", "https://ok", "https://no")
	if domain.ErrorCode(err) != domain.EINVALID {
		t.Errorf("error code = %q, want %q", domain.ErrorCode(err), domain.EINVALID)
	}
}

// =============================================================================
// Executor tests
// =============================================================================

func premiumCustomer(clerkID, customerID string) repository.User {
	return repository.User{
		ClerkID:          clerkID,
		Email:            clerkID + "@example.com",
		Plan:             string(domain.PlanPremium),
		SummariesUsed:    42,
		SummaryLimit:     domain.PremiumSummaryLimit,
		StripeCustomerID: sql.NullString{String: customerID, Valid: true},
	}
}

func TestExecuteAction_UpgradeSetsEntitlement(t *testing.T) {
	periodEnd := time.Date(2026, 9, 28, 0, 0, 0, 0, time.UTC)
	store := newFakeStore(repository.User{
		ClerkID:          "usr_1",
		Email:            "ada@example.com",
		Plan:             string(domain.PlanFree),
		SummariesUsed:    7,
		SummaryLimit:     domain.FreeSummaryLimit,
		StripeCustomerID: sql.NullString{String: "cus_1", Valid: true},
	})
	svc := NewBillingService(store, &fakeStripe{}, testLogger())

	err := svc.ExecuteAction(context.Background(), domain.ReconciliationAction{
		Kind:           domain.ReconcileUpgrade,
		EventID:        "evt_1",
		CustomerID:     "cus_1",
		SubscriptionID: "sub_1",
		PriceID:        "price_monthly",
		PeriodEnd:      periodEnd,
	})
	if err != nil {
		t.Fatalf("ExecuteAction(upgrade) = %v", err)
	}

	row, _ := store.GetUserByClerkID(context.Background(), "usr_1")
	if row.Plan != string(domain.PlanPremium) {
		t.Errorf("plan = %q, want premium", row.Plan)
	}
	if row.SummaryLimit != domain.PremiumSummaryLimit {
		t.Errorf("limit = %d, want %d", row.SummaryLimit, domain.PremiumSummaryLimit)
	}
	if row.SummariesUsed != 0 {
		t.Errorf("summaries used = %d, want 0 on upgrade", row.SummariesUsed)
	}
	if row.StripeSubscriptionID.String != "sub_1" || row.StripePriceID.String != "price_monthly" {
		t.Errorf("subscription refs = %q/%q, want sub_1/price_monthly",
			row.StripeSubscriptionID.String, row.StripePriceID.String)
	}
	if !row.StripeCurrentPeriodEnd.Time.Equal(periodEnd) {
		t.Errorf("period end = %v, want %v", row.StripeCurrentPeriodEnd.Time, periodEnd)
	}
}

func TestExecuteAction_UpgradeReplayIsIdempotent(t *testing.T) {
	periodEnd := time.Date(2026, 9, 28, 0, 0, 0, 0, time.UTC)
	store := newFakeStore(repository.User{
		ClerkID:          "usr_1",
		Email:            "ada@example.com",
		Plan:             string(domain.PlanFree),
		SummaryLimit:     domain.FreeSummaryLimit,
		StripeCustomerID: sql.NullString{String: "cus_1", Valid: true},
	})
	svc := NewBillingService(store, &fakeStripe{}, testLogger())

	action := domain.ReconciliationAction{
		Kind:           domain.ReconcileUpgrade,
		EventID:        "evt_1",
		CustomerID:     "cus_1",
		SubscriptionID: "sub_1",
		PriceID:        "price_monthly",
		PeriodEnd:      periodEnd,
	}
	if err := svc.ExecuteAction(context.Background(), action); err != nil {
		t.Fatalf("first ExecuteAction() = %v", err)
	}
	first, _ := store.GetUserByClerkID(context.Background(), "usr_1")

	// A redelivered event applies the same action again.
	if err := svc.ExecuteAction(context.Background(), action); err != nil {
		t.Fatalf("replayed ExecuteAction() = %v", err)
	}
	second, _ := store.GetUserByClerkID(context.Background(), "usr_1")
	if second != first {
		t.Errorf("replay changed the row:\n first = %+v\nsecond = %+v", first, second)
	}
}

func TestExecuteAction_UpgradeUnknownCustomerAcknowledged(t *testing.T) {
	store := newFakeStore()
	svc := NewBillingService(store, &fakeStripe{}, testLogger())

	err := svc.ExecuteAction(context.Background(), domain.ReconciliationAction{
		Kind:       domain.ReconcileUpgrade,
		EventID:    "evt_1",
		CustomerID: "cus_ghost",
	})
	if err != nil {
		t.Errorf("ExecuteAction(unknown customer) = %v, want acknowledged nil", err)
	}
}

func TestExecuteAction_RenewAdvancesWindow(t *testing.T) {
	store := newFakeStore(premiumCustomer("usr_1", "cus_1"))
	svc := NewBillingService(store, &fakeStripe{}, testLogger())

	periodEnd := time.Date(2026, 10, 28, 0, 0, 0, 0, time.UTC)
	err := svc.ExecuteAction(context.Background(), domain.ReconciliationAction{
		Kind:       domain.ReconcileRenew,
		EventID:    "evt_2",
		CustomerID: "cus_1",
		PeriodEnd:  periodEnd,
	})
	if err != nil {
		t.Fatalf("ExecuteAction(renew) = %v", err)
	}

	row, _ := store.GetUserByClerkID(context.Background(), "usr_1")
	if row.SummariesUsed != 0 {
		t.Errorf("summaries used = %d, want 0 after renewal", row.SummariesUsed)
	}
	if !row.UsageResetAt.Equal(periodEnd) {
		t.Errorf("window = %v, want %v", row.UsageResetAt, periodEnd)
	}
}

func TestExecuteAction_RenewOnFreeRowIsNoOp(t *testing.T) {
	// A renewal arriving after a row left premium must not resurrect it.
	store := newFakeStore(repository.User{
		ClerkID:          "usr_1",
		Email:            "ada@example.com",
		Plan:             string(domain.PlanFree),
		SummariesUsed:    3,
		SummaryLimit:     domain.FreeSummaryLimit,
		StripeCustomerID: sql.NullString{String: "cus_1", Valid: true},
	})
	svc := NewBillingService(store, &fakeStripe{}, testLogger())

	err := svc.ExecuteAction(context.Background(), domain.ReconciliationAction{
		Kind:       domain.ReconcileRenew,
		EventID:    "evt_2",
		CustomerID: "cus_1",
		PeriodEnd:  time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("ExecuteAction(renew on free row) = %v", err)
	}

	row, _ := store.GetUserByClerkID(context.Background(), "usr_1")
	if row.Plan != string(domain.PlanFree) || row.SummariesUsed != 3 {
		t.Errorf("row changed: plan = %q, used = %d; want free/3 untouched", row.Plan, row.SummariesUsed)
	}
}
