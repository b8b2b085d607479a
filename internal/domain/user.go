// Package domain contains core business types and interfaces.
//
// This file defines the User entitlement record and related types. These
// types are separate from the repository models to allow for business
// logic enrichment and to decouple the domain layer from the database
// layer.
package domain

import (
	"database/sql"
	"time"
)

// User represents one provisioned identity and its entitlement state.
//
// The row is keyed by ClerkID (the identity provider's stable id) with
// Email as a unique secondary key used to de-duplicate identity-provider
// re-registration under a new Clerk id.
//
// Usage fields are mutated by the quota gate (lazy window reset) and the
// usage accountant (increments); plan and Stripe fields are mutated only
// by billing reconciliation.
type User struct {
	ClerkID         string
	Email           string
	FirstName       string
	LastName        string
	ProfileImageURL string

	Plan          Plan
	SummariesUsed int32
	SummaryLimit  int32
	// UsageResetAt marks the start of the current counting window for free
	// users. For premium users it mirrors the billing period end and is
	// advanced only by webhook reconciliation.
	UsageResetAt       time.Time
	TotalSummariesMade int64

	// Stripe references; empty until first checkout. StripeCustomerID is
	// created at most once per user.
	StripeCustomerID       string
	StripeSubscriptionID   string
	StripePriceID          string
	StripeCurrentPeriodEnd *time.Time

	// Settings persisted on the user row.
	Theme                string
	DefaultSummaryLength string
	AutoSaveHistory      bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsPro returns true if the user is on the premium plan.
func (u *User) IsPro() bool {
	return u.Plan == PlanPremium
}

// DisplayName returns the user's name or email if the name is empty.
func (u *User) DisplayName() string {
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name != "" {
		return name
	}
	return u.Email
}

// ProfilePatch carries the optional profile fields of an identity event.
// Nil fields are absent from the event and must not overwrite stored data.
type ProfilePatch struct {
	Email           *string
	FirstName       *string
	LastName        *string
	ProfileImageURL *string
}

// Empty reports whether the patch carries no fields at all.
func (p ProfilePatch) Empty() bool {
	return p.Email == nil && p.FirstName == nil && p.LastName == nil && p.ProfileImageURL == nil
}

// SettingsPatch carries the optional fields of a settings update.
type SettingsPatch struct {
	Theme                *string
	DefaultSummaryLength *string
	AutoSaveHistory      *bool
}

// =============================================================================
// Conversion helpers from repository types
// =============================================================================

// NullStringValue safely extracts a string from sql.NullString.
func NullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// NullTimeValue safely extracts a time pointer from sql.NullTime.
func NullTimeValue(nt sql.NullTime) *time.Time {
	if nt.Valid {
		return &nt.Time
	}
	return nil
}
