package mock

import (
	"context"
	"log/slog"
	"strings"

	"github.com/tildra/tildra/internal/ai"
	"github.com/tildra/tildra/internal/domain"
)

// Provider is a mock summarizer for testing and development
type Provider struct {
	logger *slog.Logger

	// Configurable responses for testing
	SummarizeResponse *domain.Summary
	SummarizeError    error

	// Call tracking for testing
	SummarizeCalls int
	LastParams     ai.SummarizeParams
}

// New creates a new mock summarizer
func New(logger *slog.Logger) *Provider {
	return &Provider{
		logger: logger,
	}
}

// Summarize returns a canned summary derived from the article text
func (p *Provider) Summarize(ctx context.Context, params ai.SummarizeParams) (*domain.Summary, error) {
	p.SummarizeCalls++
	p.LastParams = params

	// If a custom response or error is set, use it
	if p.SummarizeError != nil {
		return nil, p.SummarizeError
	}
	if p.SummarizeResponse != nil {
		return p.SummarizeResponse, nil
	}

	if strings.TrimSpace(params.ArticleText) == "" {
		return nil, ai.WrapError("summarize", ai.EAIEmptyArticle)
	}

	// Default canned response seeded with the opening of the article so
	// development output is recognizably tied to the input.
	opening := params.ArticleText
	if len(opening) > 80 {
		opening = opening[:80]
	}

	points := []string{
		"The article's central argument is restated in its opening section.",
		"Supporting evidence is presented through examples.",
		"The conclusion ties the argument back to the headline claim.",
	}
	if params.Length == domain.SummaryLengthDetailed {
		points = append(points,
			"Counterarguments are acknowledged and addressed.",
			"Implications for the broader field are discussed.",
		)
	}

	return &domain.Summary{
		TLDR:      "Mock summary: " + strings.TrimSpace(opening),
		KeyPoints: points,
	}, nil
}

// Reset clears call counters and custom responses for testing
func (p *Provider) Reset() {
	p.SummarizeCalls = 0
	p.SummarizeResponse = nil
	p.SummarizeError = nil
	p.LastParams = ai.SummarizeParams{}
}
