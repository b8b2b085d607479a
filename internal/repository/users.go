package repository

import (
	"context"
	"database/sql"
	"time"
)

// User is the database representation of a user entitlement row.
type User struct {
	ClerkID                string
	Email                  string
	FirstName              sql.NullString
	LastName               sql.NullString
	ProfileImageUrl        sql.NullString
	Plan                   string
	SummariesUsed          int32
	SummaryLimit           int32
	UsageResetAt           time.Time
	TotalSummariesMade     int64
	StripeCustomerID       sql.NullString
	StripeSubscriptionID   sql.NullString
	StripePriceID          sql.NullString
	StripeCurrentPeriodEnd sql.NullTime
	Theme                  string
	DefaultSummaryLength   string
	AutoSaveHistory        bool
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

const userColumns = `clerk_id, email, first_name, last_name, profile_image_url,
	plan, summaries_used, summary_limit, usage_reset_at, total_summaries_made,
	stripe_customer_id, stripe_subscription_id, stripe_price_id, stripe_current_period_end,
	theme, default_summary_length, auto_save_history, created_at, updated_at`

func scanUser(row *sql.Row) (User, error) {
	var u User
	err := row.Scan(
		&u.ClerkID, &u.Email, &u.FirstName, &u.LastName, &u.ProfileImageUrl,
		&u.Plan, &u.SummariesUsed, &u.SummaryLimit, &u.UsageResetAt, &u.TotalSummariesMade,
		&u.StripeCustomerID, &u.StripeSubscriptionID, &u.StripePriceID, &u.StripeCurrentPeriodEnd,
		&u.Theme, &u.DefaultSummaryLength, &u.AutoSaveHistory, &u.CreatedAt, &u.UpdatedAt,
	)
	return u, err
}

// CreateUserParams contains the fields for provisioning a new user row.
type CreateUserParams struct {
	ClerkID         string
	Email           string
	FirstName       sql.NullString
	LastName        sql.NullString
	ProfileImageUrl sql.NullString
	Plan            string
	SummaryLimit    int32
	UsageResetAt    time.Time
}

const createUser = `
INSERT INTO users (clerk_id, email, first_name, last_name, profile_image_url, plan, summary_limit, usage_reset_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + userColumns

// CreateUser inserts a new user row with zeroed usage counters.
func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, createUser,
		arg.ClerkID, arg.Email, arg.FirstName, arg.LastName, arg.ProfileImageUrl,
		arg.Plan, arg.SummaryLimit, arg.UsageResetAt,
	))
}

const getUserByClerkID = `SELECT ` + userColumns + ` FROM users WHERE clerk_id = $1`

// GetUserByClerkID fetches a user by the identity provider's stable id.
func (q *Queries) GetUserByClerkID(ctx context.Context, clerkID string) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByClerkID, clerkID))
}

const getUserByEmail = `SELECT ` + userColumns + ` FROM users WHERE email = $1`

// GetUserByEmail fetches a user by the unique email secondary key.
func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByEmail, email))
}

const getUserByStripeCustomerID = `SELECT ` + userColumns + ` FROM users WHERE stripe_customer_id = $1`

// GetUserByStripeCustomerID fetches a user by its Stripe customer reference.
func (q *Queries) GetUserByStripeCustomerID(ctx context.Context, customerID string) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByStripeCustomerID,
		sql.NullString{String: customerID, Valid: true}))
}

// RelinkUserClerkIDParams re-keys an existing row (matched by email) to a
// new Clerk id, patching profile fields in the same statement.
type RelinkUserClerkIDParams struct {
	Email           string
	ClerkID         string
	FirstName       sql.NullString
	LastName        sql.NullString
	ProfileImageUrl sql.NullString
}

const relinkUserClerkID = `
UPDATE users SET
	clerk_id = $2,
	first_name = COALESCE($3, first_name),
	last_name = COALESCE($4, last_name),
	profile_image_url = COALESCE($5, profile_image_url),
	updated_at = now()
WHERE email = $1
RETURNING ` + userColumns

// RelinkUserClerkID handles identity-provider account recreation: the row
// keeps its usage and billing history and only the identity key moves.
// summary_history rows follow through the FK's ON UPDATE CASCADE, so a
// re-key never trips a referential check.
func (q *Queries) RelinkUserClerkID(ctx context.Context, arg RelinkUserClerkIDParams) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, relinkUserClerkID,
		arg.Email, arg.ClerkID, arg.FirstName, arg.LastName, arg.ProfileImageUrl,
	))
}

// UpdateUserProfileParams patches profile fields; null params leave the
// stored value untouched.
type UpdateUserProfileParams struct {
	ClerkID         string
	Email           sql.NullString
	FirstName       sql.NullString
	LastName        sql.NullString
	ProfileImageUrl sql.NullString
}

const updateUserProfile = `
UPDATE users SET
	email = COALESCE($2, email),
	first_name = COALESCE($3, first_name),
	last_name = COALESCE($4, last_name),
	profile_image_url = COALESCE($5, profile_image_url),
	updated_at = now()
WHERE clerk_id = $1
RETURNING ` + userColumns

// UpdateUserProfile applies a partial profile patch from a user.updated event.
func (q *Queries) UpdateUserProfile(ctx context.Context, arg UpdateUserProfileParams) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, updateUserProfile,
		arg.ClerkID, arg.Email, arg.FirstName, arg.LastName, arg.ProfileImageUrl,
	))
}

// UpdateUserSettingsParams patches persisted settings; null params keep
// the stored value.
type UpdateUserSettingsParams struct {
	ClerkID              string
	Theme                sql.NullString
	DefaultSummaryLength sql.NullString
	AutoSaveHistory      sql.NullBool
}

const updateUserSettings = `
UPDATE users SET
	theme = COALESCE($2, theme),
	default_summary_length = COALESCE($3, default_summary_length),
	auto_save_history = COALESCE($4, auto_save_history),
	updated_at = now()
WHERE clerk_id = $1
RETURNING ` + userColumns

// UpdateUserSettings applies a partial settings patch.
func (q *Queries) UpdateUserSettings(ctx context.Context, arg UpdateUserSettingsParams) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, updateUserSettings,
		arg.ClerkID, arg.Theme, arg.DefaultSummaryLength, arg.AutoSaveHistory,
	))
}

const setStripeCustomerID = `
UPDATE users SET stripe_customer_id = $2, updated_at = now()
WHERE clerk_id = $1 AND stripe_customer_id IS NULL
RETURNING ` + userColumns

// SetStripeCustomerID links a Stripe customer to a user exactly once.
// Returns sql.ErrNoRows if the user already has a customer reference, so
// a racing second checkout cannot overwrite the first link.
func (q *Queries) SetStripeCustomerID(ctx context.Context, clerkID, customerID string) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, setStripeCustomerID, clerkID, customerID))
}

const resetDailyUsage = `
UPDATE users SET summaries_used = 0, usage_reset_at = $3, updated_at = now()
WHERE clerk_id = $1 AND plan = 'free' AND usage_reset_at < $2
RETURNING ` + userColumns

// ResetDailyUsage performs the lazy free-tier window reset as a single
// conditional statement. The cutoff guard means that of two concurrent
// requests observing a stale window, only one statement actually resets;
// the loser returns sql.ErrNoRows and re-reads.
func (q *Queries) ResetDailyUsage(ctx context.Context, clerkID string, cutoff, now time.Time) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, resetDailyUsage, clerkID, cutoff, now))
}

const incrementUsage = `
UPDATE users SET
	summaries_used = summaries_used + 1,
	total_summaries_made = total_summaries_made + 1,
	updated_at = now()
WHERE clerk_id = $1
RETURNING summaries_used, total_summaries_made`

// IncrementUsageRow is the result of a usage increment.
type IncrementUsageRow struct {
	SummariesUsed      int32
	TotalSummariesMade int64
}

// IncrementUsage atomically consumes one unit of quota and advances the
// lifetime counter.
func (q *Queries) IncrementUsage(ctx context.Context, clerkID string) (IncrementUsageRow, error) {
	var row IncrementUsageRow
	err := q.db.QueryRowContext(ctx, incrementUsage, clerkID).
		Scan(&row.SummariesUsed, &row.TotalSummariesMade)
	return row, err
}

// UpgradeUserToPremiumParams carries the reconciled state of a completed
// checkout.
type UpgradeUserToPremiumParams struct {
	StripeCustomerID     string
	StripeSubscriptionID string
	StripePriceID        string
	PeriodEnd            time.Time
	SummaryLimit         int32
	WindowStart          time.Time
}

const upgradeUserToPremium = `
UPDATE users SET
	plan = 'premium',
	summary_limit = $5,
	summaries_used = 0,
	stripe_subscription_id = $2,
	stripe_price_id = $3,
	stripe_current_period_end = $4,
	usage_reset_at = $6,
	updated_at = now()
WHERE stripe_customer_id = $1
RETURNING ` + userColumns

// UpgradeUserToPremium applies an UpgradeToPremium action. Re-applying
// the same parameters is harmless by construction: every field is set to
// the same value. Returns sql.ErrNoRows for an unknown customer reference.
func (q *Queries) UpgradeUserToPremium(ctx context.Context, arg UpgradeUserToPremiumParams) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, upgradeUserToPremium,
		sql.NullString{String: arg.StripeCustomerID, Valid: true},
		sql.NullString{String: arg.StripeSubscriptionID, Valid: true},
		sql.NullString{String: arg.StripePriceID, Valid: true},
		arg.PeriodEnd, arg.SummaryLimit, arg.WindowStart,
	))
}

const renewPremiumUsage = `
UPDATE users SET
	summaries_used = 0,
	stripe_current_period_end = $2,
	usage_reset_at = $2,
	updated_at = now()
WHERE stripe_customer_id = $1 AND plan = 'premium'
RETURNING ` + userColumns

// RenewPremiumUsage applies a RenewPremiumWindow action. The plan guard
// makes a stale renewal for a no-longer-premium row a no-op rather than a
// resurrection; sql.ErrNoRows covers both that case and an unknown
// customer, which the caller distinguishes with a follow-up read.
func (q *Queries) RenewPremiumUsage(ctx context.Context, customerID string, periodEnd time.Time) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, renewPremiumUsage,
		sql.NullString{String: customerID, Valid: true}, periodEnd))
}

const deleteUser = `DELETE FROM users WHERE clerk_id = $1`

// DeleteUser removes a user row. Returns the number of rows deleted so
// callers can treat an already-absent row as idempotent success.
func (q *Queries) DeleteUser(ctx context.Context, clerkID string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteUser, clerkID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
