// Package ai defines the summarization provider interface and its error
// vocabulary. Concrete providers live in subpackages (deepseek, mock).
package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tildra/tildra/internal/domain"
)

// Summarizer defines the interface for article summarization providers.
type Summarizer interface {
	// Summarize produces a TLDR and key points for the given article.
	Summarize(ctx context.Context, params SummarizeParams) (*domain.Summary, error)
}

// SummarizeParams contains parameters for a summarization call.
type SummarizeParams struct {
	ArticleText string
	Length      domain.SummaryLength
}

// ProviderConfig contains common configuration for summarization providers.
type ProviderConfig struct {
	MaxRetries     int           // Maximum retry attempts for transient errors
	RetryBaseDelay time.Duration // Base delay for exponential backoff
	RequestTimeout time.Duration // Timeout for individual requests
}

// Error codes for summarization provider operations
var (
	// EAIRateLimit indicates the API rate limit has been exceeded
	EAIRateLimit = errors.New("ai provider rate limit exceeded")

	// EAIEmptyArticle indicates there was no article text to summarize
	EAIEmptyArticle = errors.New("article text is empty")

	// EAITimeout indicates the request timed out
	EAITimeout = errors.New("ai request timed out")

	// EAIUnavailable indicates the AI service is temporarily unavailable
	EAIUnavailable = errors.New("ai service temporarily unavailable")

	// EAIUnauthorized indicates invalid API credentials
	EAIUnauthorized = errors.New("ai provider authentication failed")

	// EAIBadResponse indicates the provider returned an unparseable result
	EAIBadResponse = errors.New("ai provider returned malformed response")
)

// IsRetryable returns true if the error is a transient error that can be retried
func IsRetryable(err error) bool {
	return errors.Is(err, EAIRateLimit) ||
		errors.Is(err, EAITimeout) ||
		errors.Is(err, EAIUnavailable)
}

// WrapError wraps an error with context about the AI operation
func WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("ai %s: %w", operation, err)
}
