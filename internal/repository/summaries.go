package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// SummaryHistory is one saved summary row.
type SummaryHistory struct {
	ID        uuid.UUID
	ClerkID   string
	Url       string
	Title     string
	Tldr      string
	KeyPoints []string
	CreatedAt time.Time
}

// CreateSummaryHistoryParams contains the fields for saving a summary.
type CreateSummaryHistoryParams struct {
	ClerkID   string
	Url       string
	Title     string
	Tldr      string
	KeyPoints []string
}

const createSummaryHistory = `
INSERT INTO summary_history (id, clerk_id, url, title, tldr, key_points)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, clerk_id, url, title, tldr, key_points, created_at`

// CreateSummaryHistory saves a completed summary for the user.
func (q *Queries) CreateSummaryHistory(ctx context.Context, arg CreateSummaryHistoryParams) (SummaryHistory, error) {
	var s SummaryHistory
	err := q.db.QueryRowContext(ctx, createSummaryHistory,
		uuid.New(), arg.ClerkID, arg.Url, arg.Title, arg.Tldr, pq.Array(arg.KeyPoints),
	).Scan(&s.ID, &s.ClerkID, &s.Url, &s.Title, &s.Tldr, pq.Array(&s.KeyPoints), &s.CreatedAt)
	return s, err
}

const listSummaryHistory = `
SELECT id, clerk_id, url, title, tldr, key_points, created_at
FROM summary_history
WHERE clerk_id = $1
ORDER BY created_at DESC
LIMIT $2`

// ListSummaryHistory returns the user's most recent summaries.
func (q *Queries) ListSummaryHistory(ctx context.Context, clerkID string, limit int32) ([]SummaryHistory, error) {
	rows, err := q.db.QueryContext(ctx, listSummaryHistory, clerkID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []SummaryHistory
	for rows.Next() {
		var s SummaryHistory
		if err := rows.Scan(&s.ID, &s.ClerkID, &s.Url, &s.Title, &s.Tldr, pq.Array(&s.KeyPoints), &s.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

const deleteSummaryHistoryItem = `
DELETE FROM summary_history WHERE id = $1 AND clerk_id = $2`

// DeleteSummaryHistoryItem removes one history row, scoped to the owner so
// a caller cannot delete another user's rows. Returns rows affected.
func (q *Queries) DeleteSummaryHistoryItem(ctx context.Context, id uuid.UUID, clerkID string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteSummaryHistoryItem, id, clerkID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteSummaryHistoryByUser = `
DELETE FROM summary_history WHERE clerk_id = $1`

// DeleteSummaryHistoryByUser removes all of a user's history rows. Used
// both by the "clear history" endpoint and as the cascade step of user
// deletion.
func (q *Queries) DeleteSummaryHistoryByUser(ctx context.Context, clerkID string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteSummaryHistoryByUser, clerkID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
