// Package domain contains core business types and interfaces.
//
// This file defines plan tiers and their usage limits. Limits are policy,
// not protocol: the gate reads the limit stored on the user row, and these
// values are only applied when a row is created or a plan transition runs.
package domain

// Plan identifies a subscription tier.
type Plan string

const (
	PlanFree    Plan = "free"
	PlanPremium Plan = "premium"
)

// Valid reports whether p is a known plan.
func (p Plan) Valid() bool {
	return p == PlanFree || p == PlanPremium
}

// Summary limits per plan. The free window is a UTC calendar day; the
// premium window is the Stripe billing cycle.
const (
	FreeSummaryLimit    int32 = 10
	PremiumSummaryLimit int32 = 500
)

// LimitForPlan returns the summary limit for a plan, defaulting to the
// free tier for unknown plans.
func LimitForPlan(plan Plan) int32 {
	if plan == PlanPremium {
		return PremiumSummaryLimit
	}
	return FreeSummaryLimit
}

// QuotaUsage represents current usage against the plan limit, as reported
// to the account endpoints.
type QuotaUsage struct {
	Used  int32
	Limit int32
	Plan  Plan
}

// Remaining returns the number of summaries left in the current window.
func (q QuotaUsage) Remaining() int32 {
	if q.Used >= q.Limit {
		return 0
	}
	return q.Limit - q.Used
}
