// Package billing provides Stripe billing integration for subscription management.
package billing

import (
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v79"
	billingportalsession "github.com/stripe/stripe-go/v79/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/customer"
	"github.com/stripe/stripe-go/v79/subscription"
	"github.com/stripe/stripe-go/v79/webhook"
)

// SubscriptionInfo is the subset of a Stripe subscription the
// reconciliation engine needs: the active price and when the current
// billing period ends.
type SubscriptionInfo struct {
	PriceID          string
	CurrentPeriodEnd time.Time
}

// CheckoutSession is the result of creating a Stripe Checkout session.
type CheckoutSession struct {
	ID  string
	URL string
}

// Service defines the interface for billing operations.
type Service interface {
	// CreateCustomer creates a new Stripe customer for the given email,
	// tagging it with the Clerk id for traceability.
	CreateCustomer(email, name, clerkID string) (string, error)

	// CreateCheckoutSession creates a subscription-mode Checkout session.
	CreateCheckoutSession(customerID, priceID, clerkID, successURL, cancelURL string) (CheckoutSession, error)

	// CreatePortalSession creates a Stripe Customer Portal session.
	// Returns the portal URL to redirect the user to.
	CreatePortalSession(customerID, returnURL string) (string, error)

	// GetSubscription retrieves the price and period end of a subscription.
	// This is the side-channel lookup used by webhook reconciliation.
	GetSubscription(subscriptionID string) (SubscriptionInfo, error)

	// VerifyWebhookSignature verifies the Stripe webhook signature and returns the event.
	VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error)

	// PriceIDForKey resolves a price lookup key ("monthly" or "yearly") to
	// a Stripe price id. Returns empty string for unknown keys.
	PriceIDForKey(key string) string
}

// PriceConfig holds the Stripe price IDs for the premium plan.
type PriceConfig struct {
	PremiumMonthlyPriceID string
	PremiumYearlyPriceID  string
}

// stripeService is the concrete implementation of Service.
type stripeService struct {
	webhookSecret string
	prices        PriceConfig
}

// NewStripeService creates a new Stripe billing service.
//
// The secretKey is used to authenticate Stripe API calls.
// The webhookSecret is used to verify incoming webhook signatures.
// The prices configure which Stripe price IDs back the premium plan.
func NewStripeService(secretKey, webhookSecret string, prices PriceConfig) Service {
	stripe.Key = secretKey

	return &stripeService{
		webhookSecret: webhookSecret,
		prices:        prices,
	}
}

func (s *stripeService) CreateCustomer(email, name, clerkID string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	params.AddMetadata("clerk_id", clerkID)
	c, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create customer: %w", err)
	}
	return c.ID, nil
}

func (s *stripeService) CreateCheckoutSession(customerID, priceID, clerkID, successURL, cancelURL string) (CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Customer: stripe.String(customerID),
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		AllowPromotionCodes: stripe.Bool(true),
		SuccessURL:          stripe.String(successURL),
		CancelURL:           stripe.String(cancelURL),
	}
	params.AddMetadata("clerk_id", clerkID)
	sess, err := checkoutsession.New(params)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("stripe create checkout session: %w", err)
	}
	return CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

func (s *stripeService) CreatePortalSession(customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	sess, err := billingportalsession.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create portal session: %w", err)
	}
	return sess.URL, nil
}

func (s *stripeService) GetSubscription(subscriptionID string) (SubscriptionInfo, error) {
	sub, err := subscription.Get(subscriptionID, nil)
	if err != nil {
		return SubscriptionInfo{}, fmt.Errorf("stripe get subscription: %w", err)
	}

	info := SubscriptionInfo{
		CurrentPeriodEnd: time.Unix(sub.CurrentPeriodEnd, 0).UTC(),
	}
	if len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		info.PriceID = sub.Items.Data[0].Price.ID
	}
	if info.PriceID == "" || sub.CurrentPeriodEnd == 0 {
		return SubscriptionInfo{}, fmt.Errorf("stripe subscription %s missing price or period end", subscriptionID)
	}
	return info, nil
}

func (s *stripeService) VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error) {
	event, err := webhook.ConstructEvent(payload, signature, s.webhookSecret)
	if err != nil {
		return stripe.Event{}, fmt.Errorf("stripe webhook signature verification failed: %w", err)
	}
	return event, nil
}

func (s *stripeService) PriceIDForKey(key string) string {
	switch key {
	case "monthly":
		return s.prices.PremiumMonthlyPriceID
	case "yearly":
		return s.prices.PremiumYearlyPriceID
	}
	return ""
}
