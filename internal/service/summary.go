// Package service contains the business logic layer.
//
// This file implements the summarization flow: gate the request through
// the quota service, call the summarization provider, and account for the
// consumed usage in the background.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tildra/tildra/internal/ai"
	"github.com/tildra/tildra/internal/domain"
	"github.com/tildra/tildra/internal/metrics"
	"github.com/tildra/tildra/internal/repository"
)

// backgroundTimeout bounds the detached usage-accounting and history-save
// work spawned after a summary is delivered.
const backgroundTimeout = 15 * time.Second

// =============================================================================
// Interface Definition
// =============================================================================

// SummaryService produces summaries and manages saved history.
type SummaryService interface {
	// Summarize gates the request on the user's quota, produces a summary,
	// and schedules usage accounting plus an optional history save in the
	// background. The response never waits on either background step.
	Summarize(ctx context.Context, clerkID string, req domain.SummaryRequest) (*domain.Summary, error)

	// ListHistory returns the user's most recent saved summaries.
	ListHistory(ctx context.Context, clerkID string, limit int32) ([]domain.HistoryItem, error)

	// DeleteHistoryItem removes one saved summary owned by the user.
	DeleteHistoryItem(ctx context.Context, clerkID string, id uuid.UUID) error

	// ClearHistory removes all of the user's saved summaries.
	ClearHistory(ctx context.Context, clerkID string) error
}

// =============================================================================
// Implementation
// =============================================================================

type summaryService struct {
	queries    *repository.Queries
	quota      QuotaService
	summarizer ai.Summarizer
	logger     *slog.Logger
}

// NewSummaryService creates a new SummaryService.
func NewSummaryService(queries *repository.Queries, quota QuotaService, summarizer ai.Summarizer, logger *slog.Logger) SummaryService {
	return &summaryService{
		queries:    queries,
		quota:      quota,
		summarizer: summarizer,
		logger:     logger,
	}
}

// Summarize produces a summary for the user if their quota allows it.
func (s *summaryService) Summarize(ctx context.Context, clerkID string, req domain.SummaryRequest) (*domain.Summary, error) {
	const op = "summary.summarize"

	if req.ArticleText == "" {
		return nil, domain.Invalid(op, "article text is required")
	}

	user, err := s.quota.Authorize(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	length := req.Length
	if length == "" {
		length = domain.SummaryLength(user.DefaultSummaryLength)
	}
	if !length.Valid() {
		return nil, domain.Invalid(op, "invalid summary length")
	}

	summary, err := s.summarizer.Summarize(ctx, ai.SummarizeParams{
		ArticleText: req.ArticleText,
		Length:      length,
	})
	if err != nil {
		metrics.AIAPICalls.WithLabelValues("error").Inc()
		return nil, s.mapSummarizerError(op, err)
	}
	metrics.AIAPICalls.WithLabelValues("ok").Inc()
	metrics.SummariesGenerated.WithLabelValues(string(user.Plan), string(length)).Inc()

	// The summary is already in the caller's hands at this point, so the
	// accounting and history writes must not block or fail the response.
	// Each runs at most once; a crash between respond and record
	// under-counts, which is the direction we accept.
	go s.recordUsageDetached(clerkID)
	if user.AutoSaveHistory {
		go s.saveHistoryDetached(clerkID, req, summary)
	}

	return summary, nil
}

// recordUsageDetached runs usage accounting on a fresh context so it
// survives the request context being cancelled at response time.
func (s *summaryService) recordUsageDetached(clerkID string) {
	ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
	defer cancel()

	if err := s.quota.RecordUsage(ctx, clerkID); err != nil {
		s.logger.Error("Failed to record summary usage", "clerk_id", clerkID, "error", err)
	}
}

// saveHistoryDetached persists the summary for the user's history view.
func (s *summaryService) saveHistoryDetached(clerkID string, req domain.SummaryRequest, summary *domain.Summary) {
	ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
	defer cancel()

	_, err := s.queries.CreateSummaryHistory(ctx, repository.CreateSummaryHistoryParams{
		ClerkID:   clerkID,
		Url:       req.URL,
		Title:     req.Title,
		Tldr:      summary.TLDR,
		KeyPoints: summary.KeyPoints,
	})
	if err != nil {
		s.logger.Error("Failed to save summary history", "clerk_id", clerkID, "error", err)
	}
}

// mapSummarizerError translates provider errors into the domain taxonomy.
func (s *summaryService) mapSummarizerError(op string, err error) error {
	switch {
	case errors.Is(err, ai.EAIEmptyArticle):
		return domain.Invalid(op, "article text is required")
	case errors.Is(err, ai.EAIRateLimit):
		return domain.Errorf(domain.ERATELIMIT, op, "The summarizer is busy. Please try again in a moment.")
	default:
		return domain.Internal(err, op, "failed to summarize article")
	}
}

// ListHistory returns the user's most recent saved summaries.
func (s *summaryService) ListHistory(ctx context.Context, clerkID string, limit int32) ([]domain.HistoryItem, error) {
	const op = "summary.list_history"

	if limit <= 0 || limit > 100 {
		limit = 50
	}

	rows, err := s.queries.ListSummaryHistory(ctx, clerkID, limit)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list summary history")
	}

	items := make([]domain.HistoryItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, domain.HistoryItem{
			ID:        row.ID,
			ClerkID:   row.ClerkID,
			URL:       row.Url,
			Title:     row.Title,
			TLDR:      row.Tldr,
			KeyPoints: row.KeyPoints,
			CreatedAt: row.CreatedAt,
		})
	}
	return items, nil
}

// DeleteHistoryItem removes one saved summary owned by the user.
func (s *summaryService) DeleteHistoryItem(ctx context.Context, clerkID string, id uuid.UUID) error {
	const op = "summary.delete_history_item"

	deleted, err := s.queries.DeleteSummaryHistoryItem(ctx, id, clerkID)
	if err != nil {
		return domain.Internal(err, op, "failed to delete summary")
	}
	if deleted == 0 {
		return domain.NotFound(op, "summary", id.String())
	}
	return nil
}

// ClearHistory removes all of the user's saved summaries.
func (s *summaryService) ClearHistory(ctx context.Context, clerkID string) error {
	const op = "summary.clear_history"

	if _, err := s.queries.DeleteSummaryHistoryByUser(ctx, clerkID); err != nil {
		return domain.Internal(err, op, "failed to clear summary history")
	}
	return nil
}
