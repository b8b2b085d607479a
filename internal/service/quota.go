// Package service contains the business logic layer.
//
// This file implements the quota gate: loading a user's entitlement,
// lazily resetting the free-tier daily window, and deciding whether a
// summarization request may proceed.
package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/tildra/tildra/internal/domain"
	"github.com/tildra/tildra/internal/metrics"
	"github.com/tildra/tildra/internal/repository"
)

// =============================================================================
// Interface Definition
// =============================================================================

// QuotaService gates summarization requests against the caller's
// entitlement and records consumed usage.
type QuotaService interface {
	// Authorize checks whether the identified user may perform one
	// summarization. It applies the lazy free-tier window reset before
	// comparing the counter and returns the post-reset user on success,
	// or a QuotaExceeded / EntitlementMissing error on denial.
	Authorize(ctx context.Context, clerkID string) (*domain.User, error)

	// RecordUsage consumes one unit of quota and advances the lifetime
	// counter. It is called after a summary has been produced; a failure
	// here under-counts rather than blocking the response.
	RecordUsage(ctx context.Context, clerkID string) error

	// GetUsage returns the user's current window usage, applying the same
	// lazy reset Authorize does so a fresh day never reads as exhausted.
	GetUsage(ctx context.Context, clerkID string) (*domain.QuotaUsage, error)
}

// QuotaStore is the slice of the repository the quota gate touches.
// *repository.Queries satisfies it.
type QuotaStore interface {
	GetUserByClerkID(ctx context.Context, clerkID string) (repository.User, error)
	ResetDailyUsage(ctx context.Context, clerkID string, cutoff, now time.Time) (repository.User, error)
	IncrementUsage(ctx context.Context, clerkID string) (repository.IncrementUsageRow, error)
}

// =============================================================================
// Implementation
// =============================================================================

type quotaService struct {
	queries QuotaStore
	logger  *slog.Logger
}

// NewQuotaService creates a new QuotaService.
func NewQuotaService(queries QuotaStore, logger *slog.Logger) QuotaService {
	return &quotaService{
		queries: queries,
		logger:  logger,
	}
}

// Authorize checks whether the user has quota remaining for one summary.
func (s *quotaService) Authorize(ctx context.Context, clerkID string) (*domain.User, error) {
	const op = "quota.authorize"

	row, err := s.currentEntitlement(ctx, op, clerkID)
	if err != nil {
		return nil, err
	}

	if row.SummariesUsed >= row.SummaryLimit {
		metrics.QuotaDenials.WithLabelValues(row.Plan).Inc()
		s.logger.Info("Summary quota exceeded",
			"clerk_id", clerkID,
			"plan", row.Plan,
			"used", row.SummariesUsed,
			"limit", row.SummaryLimit,
		)
		return nil, domain.QuotaExceeded(op, domain.Plan(row.Plan), row.SummaryLimit)
	}

	user := toDomainUser(row)
	return &user, nil
}

// RecordUsage consumes one unit of quota after a summary was delivered.
func (s *quotaService) RecordUsage(ctx context.Context, clerkID string) error {
	const op = "quota.record_usage"

	row, err := s.queries.IncrementUsage(ctx, clerkID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.EntitlementMissing(op, clerkID)
	}
	if err != nil {
		return domain.Internal(err, op, "failed to record usage")
	}

	s.logger.Debug("Recorded summary usage",
		"clerk_id", clerkID,
		"used", row.SummariesUsed,
		"total", row.TotalSummariesMade,
	)
	return nil
}

// GetUsage returns the current window usage for a user.
func (s *quotaService) GetUsage(ctx context.Context, clerkID string) (*domain.QuotaUsage, error) {
	const op = "quota.get_usage"

	row, err := s.currentEntitlement(ctx, op, clerkID)
	if err != nil {
		return nil, err
	}

	return &domain.QuotaUsage{
		Used:  row.SummariesUsed,
		Limit: row.SummaryLimit,
		Plan:  domain.Plan(row.Plan),
	}, nil
}

// currentEntitlement loads the user row and brings its usage window up to
// date. Free-tier rows whose window predates the current UTC day are reset
// with a single conditional UPDATE; when two requests race, the statement's
// cutoff guard lets only one reset land and the loser re-reads. Premium
// windows are never advanced here - only billing reconciliation moves them -
// so a stale premium window is logged and left alone.
func (s *quotaService) currentEntitlement(ctx context.Context, op, clerkID string) (repository.User, error) {
	row, err := s.queries.GetUserByClerkID(ctx, clerkID)
	if errors.Is(err, sql.ErrNoRows) {
		s.logger.Error("Authenticated user has no entitlement row", "clerk_id", clerkID)
		return repository.User{}, domain.EntitlementMissing(op, clerkID)
	}
	if err != nil {
		return repository.User{}, domain.Internal(err, op, "failed to load entitlement")
	}

	now := time.Now().UTC()

	switch domain.Plan(row.Plan) {
	case domain.PlanFree:
		cutoff := startOfDayUTC(now)
		if !row.UsageResetAt.Before(cutoff) {
			break
		}
		reset, err := s.queries.ResetDailyUsage(ctx, clerkID, cutoff, now)
		switch {
		case err == nil:
			row = reset
		case errors.Is(err, sql.ErrNoRows):
			// A concurrent request won the reset; re-read the fresh window.
			row, err = s.queries.GetUserByClerkID(ctx, clerkID)
			if err != nil {
				return repository.User{}, domain.Internal(err, op, "failed to re-read entitlement after reset race")
			}
		default:
			return repository.User{}, domain.Internal(err, op, "failed to reset daily usage")
		}
	case domain.PlanPremium:
		if row.UsageResetAt.Before(now) {
			s.logger.Warn("Premium usage window is stale; awaiting billing renewal",
				"clerk_id", clerkID,
				"usage_reset_at", row.UsageResetAt,
			)
		}
	}

	return row, nil
}

// startOfDayUTC returns midnight UTC for the given instant.
func startOfDayUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
