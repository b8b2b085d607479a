package domain

import "time"

// ReconciliationKind classifies what a billing event asks us to do.
type ReconciliationKind string

const (
	// ReconcileUpgrade moves a user to the premium plan after checkout.
	ReconcileUpgrade ReconciliationKind = "upgrade_to_premium"
	// ReconcileRenew advances the premium window after an invoice payment.
	ReconcileRenew ReconciliationKind = "renew_premium_window"
	// ReconcileIgnore acknowledges an event without changing state.
	ReconcileIgnore ReconciliationKind = "ignore"
)

// ReconciliationAction is the classified outcome of a billing webhook
// event. Actions are applied to the single user row identified by
// CustomerID, always as one atomic statement, and are idempotent:
// replaying the same delivery leaves the row unchanged beyond its first
// application.
type ReconciliationAction struct {
	Kind           ReconciliationKind
	EventID        string
	EventType      string
	CustomerID     string
	SubscriptionID string
	PriceID        string    // upgrade only
	PeriodEnd      time.Time // upgrade and renew
	// Reason records why an event was classified ReconcileIgnore, for logs.
	Reason string
}
