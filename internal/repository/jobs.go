package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Job is one row of the background job queue.
type Job struct {
	ID           uuid.UUID
	JobType      string
	Payload      json.RawMessage
	Status       string
	Priority     int32
	Attempts     int32
	MaxAttempts  int32
	ErrorMessage sql.NullString
	ScheduledAt  time.Time
	StartedAt    sql.NullTime
	CompletedAt  sql.NullTime
	CreatedAt    time.Time
}

// EnqueueJobParams contains the fields for scheduling a new job.
type EnqueueJobParams struct {
	JobType     string
	Payload     json.RawMessage
	Priority    int32
	MaxAttempts int32
	ScheduledAt time.Time
}

const jobColumns = `id, job_type, payload, status, priority, attempts, max_attempts,
	error_message, scheduled_at, started_at, completed_at, created_at`

func scanJob(row *sql.Row) (Job, error) {
	var j Job
	err := row.Scan(
		&j.ID, &j.JobType, &j.Payload, &j.Status, &j.Priority, &j.Attempts, &j.MaxAttempts,
		&j.ErrorMessage, &j.ScheduledAt, &j.StartedAt, &j.CompletedAt, &j.CreatedAt,
	)
	return j, err
}

const enqueueJob = `
INSERT INTO jobs (id, job_type, payload, priority, max_attempts, scheduled_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + jobColumns

// EnqueueJob schedules a new background job.
func (q *Queries) EnqueueJob(ctx context.Context, arg EnqueueJobParams) (Job, error) {
	return scanJob(q.db.QueryRowContext(ctx, enqueueJob,
		uuid.New(), arg.JobType, arg.Payload, arg.Priority, arg.MaxAttempts, arg.ScheduledAt,
	))
}

const dequeueJob = `
SELECT ` + jobColumns + `
FROM jobs
WHERE status = 'pending' AND scheduled_at <= now()
ORDER BY priority DESC, scheduled_at ASC
LIMIT 1
FOR UPDATE SKIP LOCKED`

// DequeueJob selects the next runnable job. Must run inside a transaction:
// SKIP LOCKED keeps concurrent workers from claiming the same row.
// Returns sql.ErrNoRows when the queue is empty.
func (q *Queries) DequeueJob(ctx context.Context) (Job, error) {
	return scanJob(q.db.QueryRowContext(ctx, dequeueJob))
}

const updateJobStarted = `
UPDATE jobs SET status = 'running', attempts = attempts + 1, started_at = now()
WHERE id = $1`

// UpdateJobStarted marks a dequeued job as running.
func (q *Queries) UpdateJobStarted(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, updateJobStarted, id)
	return err
}

const updateJobCompleted = `
UPDATE jobs SET status = 'completed', completed_at = now()
WHERE id = $1`

// UpdateJobCompleted marks a job as successfully completed.
func (q *Queries) UpdateJobCompleted(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, updateJobCompleted, id)
	return err
}

// UpdateJobFailedParams records a job failure.
type UpdateJobFailedParams struct {
	ID           uuid.UUID
	ErrorMessage sql.NullString
	// Permanent marks the failure as non-retryable regardless of attempts.
	Permanent bool
}

const updateJobFailed = `
UPDATE jobs SET
	status = CASE WHEN $3 OR attempts >= max_attempts THEN 'failed' ELSE 'pending' END,
	scheduled_at = CASE WHEN $3 OR attempts >= max_attempts THEN scheduled_at
		ELSE now() + (interval '30 seconds' * power(2, attempts - 1)) END,
	error_message = $2
WHERE id = $1`

// UpdateJobFailed marks a job as failed, or reschedules it with
// exponential backoff when attempts remain.
func (q *Queries) UpdateJobFailed(ctx context.Context, arg UpdateJobFailedParams) error {
	_, err := q.db.ExecContext(ctx, updateJobFailed, arg.ID, arg.ErrorMessage, arg.Permanent)
	return err
}

const recoverStaleJobs = `
UPDATE jobs SET status = 'pending', started_at = NULL
WHERE status = 'running' AND started_at < now() - ($1 * interval '1 second')`

// RecoverStaleJobs resets jobs left 'running' by a crashed worker back to
// pending. Returns the number of recovered jobs.
func (q *Queries) RecoverStaleJobs(ctx context.Context, thresholdSeconds float64) (int64, error) {
	res, err := q.db.ExecContext(ctx, recoverStaleJobs, thresholdSeconds)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
