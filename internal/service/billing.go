// Package service contains the business logic layer.
//
// This file implements billing reconciliation: interpreting verified
// Stripe webhook events into reconciliation actions and executing those
// actions against the entitlement store. It also drives Checkout session
// creation for upgrades.
package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/stripe/stripe-go/v79"

	"github.com/tildra/tildra/internal/billing"
	"github.com/tildra/tildra/internal/domain"
	"github.com/tildra/tildra/internal/repository"
)

// =============================================================================
// Interface Definition
// =============================================================================

// BillingService reconciles Stripe state into the entitlement store.
type BillingService interface {
	// InterpretEvent classifies a verified webhook event into a
	// reconciliation action. Events we do not consume, and events missing
	// the data needed to act, come back as an Ignore action with a reason;
	// only store or transport faults return an error.
	InterpretEvent(ctx context.Context, event stripe.Event) domain.ReconciliationAction

	// ExecuteAction applies a reconciliation action to the store. Ignore
	// actions are logged and acknowledged. Unknown customer references are
	// logged as provisioning-order anomalies and acknowledged without
	// error so the provider does not retry an event we cannot ever apply.
	ExecuteAction(ctx context.Context, action domain.ReconciliationAction) error

	// StartCheckout creates a Stripe Checkout session for the user,
	// creating and linking a Stripe customer first if the user has none.
	StartCheckout(ctx context.Context, clerkID, priceKey, successURL, cancelURL string) (billing.CheckoutSession, error)

	// PortalURL creates a Stripe Customer Portal session for the user.
	PortalURL(ctx context.Context, clerkID, returnURL string) (string, error)
}

// BillingStore is the slice of the repository reconciliation touches.
// *repository.Queries satisfies it.
type BillingStore interface {
	GetUserByClerkID(ctx context.Context, clerkID string) (repository.User, error)
	SetStripeCustomerID(ctx context.Context, clerkID, customerID string) (repository.User, error)
	UpgradeUserToPremium(ctx context.Context, arg repository.UpgradeUserToPremiumParams) (repository.User, error)
	RenewPremiumUsage(ctx context.Context, customerID string, periodEnd time.Time) (repository.User, error)
}

// =============================================================================
// Implementation
// =============================================================================

type billingService struct {
	queries BillingStore
	stripe  billing.Service
	logger  *slog.Logger
}

// NewBillingService creates a new BillingService.
func NewBillingService(queries BillingStore, stripeSvc billing.Service, logger *slog.Logger) BillingService {
	return &billingService{
		queries: queries,
		stripe:  stripeSvc,
		logger:  logger,
	}
}

// renewableBillingReasons are the invoice billing reasons that advance the
// premium usage window. The initial subscription invoice
// (subscription_create) is excluded: the checkout event already opened the
// first window, and resetting again here would wipe usage recorded since.
var renewableBillingReasons = map[stripe.InvoiceBillingReason]bool{
	stripe.InvoiceBillingReasonSubscriptionCycle:  true,
	stripe.InvoiceBillingReasonSubscriptionUpdate: true,
}

// InterpretEvent classifies a verified Stripe event.
func (s *billingService) InterpretEvent(ctx context.Context, event stripe.Event) domain.ReconciliationAction {
	switch event.Type {
	case "checkout.session.completed":
		return s.interpretCheckoutCompleted(event)
	case "invoice.payment_succeeded":
		return s.interpretInvoicePaid(event)
	default:
		return ignoreAction(event, "event type not consumed")
	}
}

// interpretCheckoutCompleted turns a completed checkout into an upgrade
// action, fetching the price and period end from the subscription lookup
// side channel.
func (s *billingService) interpretCheckoutCompleted(event stripe.Event) domain.ReconciliationAction {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		s.logger.Error("Malformed checkout session payload", "event_id", event.ID, "error", err)
		return ignoreAction(event, "malformed checkout session payload")
	}

	if session.Customer == nil || session.Subscription == nil {
		return ignoreAction(event, "checkout session has no customer or subscription")
	}

	info, err := s.stripe.GetSubscription(session.Subscription.ID)
	if err != nil {
		// Acknowledge rather than fail: Stripe retries the delivery on its
		// own cadence, and a 5xx here would just multiply lookup attempts.
		s.logger.Error("Subscription lookup failed for completed checkout",
			"event_id", event.ID,
			"subscription_id", session.Subscription.ID,
			"error", err,
		)
		return ignoreAction(event, "subscription lookup failed")
	}

	return domain.ReconciliationAction{
		Kind:           domain.ReconcileUpgrade,
		EventID:        event.ID,
		EventType:      string(event.Type),
		CustomerID:     session.Customer.ID,
		SubscriptionID: session.Subscription.ID,
		PriceID:        info.PriceID,
		PeriodEnd:      info.CurrentPeriodEnd,
	}
}

// interpretInvoicePaid turns a renewal invoice into a window-renew action.
func (s *billingService) interpretInvoicePaid(event stripe.Event) domain.ReconciliationAction {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		s.logger.Error("Malformed invoice payload", "event_id", event.ID, "error", err)
		return ignoreAction(event, "malformed invoice payload")
	}

	if !renewableBillingReasons[invoice.BillingReason] {
		return ignoreAction(event, "billing reason "+string(invoice.BillingReason)+" does not renew the window")
	}

	if invoice.Customer == nil || invoice.Subscription == nil {
		return ignoreAction(event, "invoice has no customer or subscription")
	}

	info, err := s.stripe.GetSubscription(invoice.Subscription.ID)
	if err != nil {
		s.logger.Error("Subscription lookup failed for paid invoice",
			"event_id", event.ID,
			"subscription_id", invoice.Subscription.ID,
			"error", err,
		)
		return ignoreAction(event, "subscription lookup failed")
	}

	return domain.ReconciliationAction{
		Kind:           domain.ReconcileRenew,
		EventID:        event.ID,
		EventType:      string(event.Type),
		CustomerID:     invoice.Customer.ID,
		SubscriptionID: invoice.Subscription.ID,
		PeriodEnd:      info.CurrentPeriodEnd,
	}
}

// ExecuteAction applies a reconciliation action to the entitlement store.
func (s *billingService) ExecuteAction(ctx context.Context, action domain.ReconciliationAction) error {
	const op = "billing.execute_action"

	switch action.Kind {
	case domain.ReconcileIgnore:
		s.logger.Info("Billing event acknowledged without state change",
			"event_id", action.EventID,
			"event_type", action.EventType,
			"reason", action.Reason,
		)
		return nil

	case domain.ReconcileUpgrade:
		user, err := s.queries.UpgradeUserToPremium(ctx, repository.UpgradeUserToPremiumParams{
			StripeCustomerID:     action.CustomerID,
			StripeSubscriptionID: action.SubscriptionID,
			StripePriceID:        action.PriceID,
			PeriodEnd:            action.PeriodEnd,
			SummaryLimit:         domain.PremiumSummaryLimit,
			WindowStart:          action.PeriodEnd,
		})
		if errors.Is(err, sql.ErrNoRows) {
			// No row carries this customer reference. Checkout sessions are
			// only created for provisioned users, so this points at a
			// provisioning-order anomaly upstream. Acknowledge; retrying
			// the same delivery cannot make the row appear.
			s.logger.Error("Upgrade for unknown billing customer",
				"event_id", action.EventID,
				"customer_id", action.CustomerID,
			)
			return nil
		}
		if err != nil {
			return domain.Internal(err, op, "failed to apply premium upgrade")
		}
		s.logger.Info("Upgraded user to premium",
			"clerk_id", user.ClerkID,
			"event_id", action.EventID,
			"period_end", action.PeriodEnd,
		)
		return nil

	case domain.ReconcileRenew:
		user, err := s.queries.RenewPremiumUsage(ctx, action.CustomerID, action.PeriodEnd)
		if errors.Is(err, sql.ErrNoRows) {
			// Either an unknown customer or a row that is no longer
			// premium; both are acknowledged no-ops for a renewal.
			s.logger.Warn("Renewal did not match a premium user",
				"event_id", action.EventID,
				"customer_id", action.CustomerID,
			)
			return nil
		}
		if err != nil {
			return domain.Internal(err, op, "failed to renew premium window")
		}
		s.logger.Info("Renewed premium usage window",
			"clerk_id", user.ClerkID,
			"event_id", action.EventID,
			"period_end", action.PeriodEnd,
		)
		return nil

	default:
		return domain.Invalid(op, "unknown reconciliation action kind")
	}
}

// StartCheckout creates a Checkout session, linking a Stripe customer to
// the user first if one does not exist yet.
func (s *billingService) StartCheckout(ctx context.Context, clerkID, priceKey, successURL, cancelURL string) (billing.CheckoutSession, error) {
	const op = "billing.start_checkout"

	priceID := s.stripe.PriceIDForKey(priceKey)
	if priceID == "" {
		return billing.CheckoutSession{}, domain.Invalid(op, "unknown plan interval")
	}

	row, err := s.queries.GetUserByClerkID(ctx, clerkID)
	if errors.Is(err, sql.ErrNoRows) {
		return billing.CheckoutSession{}, domain.EntitlementMissing(op, clerkID)
	}
	if err != nil {
		return billing.CheckoutSession{}, domain.Internal(err, op, "failed to load user")
	}

	customerID := domain.NullStringValue(row.StripeCustomerID)
	if customerID == "" {
		customerID, err = s.ensureStripeCustomer(ctx, row)
		if err != nil {
			return billing.CheckoutSession{}, err
		}
	}

	session, err := s.stripe.CreateCheckoutSession(customerID, priceID, clerkID, successURL, cancelURL)
	if err != nil {
		return billing.CheckoutSession{}, domain.Internal(err, op, "failed to create checkout session")
	}
	return session, nil
}

// ensureStripeCustomer creates a Stripe customer and links it to the user
// row. The link statement only fires when no customer reference exists, so
// a racing second checkout keeps the first customer and the newly created
// duplicate is simply never referenced.
func (s *billingService) ensureStripeCustomer(ctx context.Context, row repository.User) (string, error) {
	const op = "billing.ensure_customer"

	user := toDomainUser(row)
	customerID, err := s.stripe.CreateCustomer(user.Email, user.DisplayName(), user.ClerkID)
	if err != nil {
		return "", domain.Internal(err, op, "failed to create billing customer")
	}

	linked, err := s.queries.SetStripeCustomerID(ctx, user.ClerkID, customerID)
	if errors.Is(err, sql.ErrNoRows) {
		// Lost the race; use whichever customer landed first.
		fresh, err := s.queries.GetUserByClerkID(ctx, user.ClerkID)
		if err != nil {
			return "", domain.Internal(err, op, "failed to re-read user after customer link race")
		}
		return domain.NullStringValue(fresh.StripeCustomerID), nil
	}
	if err != nil {
		return "", domain.Internal(err, op, "failed to link billing customer")
	}
	return domain.NullStringValue(linked.StripeCustomerID), nil
}

// PortalURL creates a Customer Portal session for a subscribed user.
func (s *billingService) PortalURL(ctx context.Context, clerkID, returnURL string) (string, error) {
	const op = "billing.portal_url"

	row, err := s.queries.GetUserByClerkID(ctx, clerkID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.EntitlementMissing(op, clerkID)
	}
	if err != nil {
		return "", domain.Internal(err, op, "failed to load user")
	}

	customerID := domain.NullStringValue(row.StripeCustomerID)
	if customerID == "" {
		return "", domain.Invalid(op, "no billing account exists for this user")
	}

	url, err := s.stripe.CreatePortalSession(customerID, returnURL)
	if err != nil {
		return "", domain.Internal(err, op, "failed to create portal session")
	}
	return url, nil
}

// ignoreAction builds an acknowledged no-op action for an event.
func ignoreAction(event stripe.Event, reason string) domain.ReconciliationAction {
	return domain.ReconciliationAction{
		Kind:      domain.ReconcileIgnore,
		EventID:   event.ID,
		EventType: string(event.Type),
		Reason:    reason,
	}
}
