package domain

import (
	"time"

	"github.com/google/uuid"
)

// SummaryLength selects the level of detail for a summary.
type SummaryLength string

const (
	SummaryLengthShort    SummaryLength = "short"
	SummaryLengthStandard SummaryLength = "standard"
	SummaryLengthDetailed SummaryLength = "detailed"
)

// Valid reports whether l is a known summary length preset.
func (l SummaryLength) Valid() bool {
	switch l {
	case SummaryLengthShort, SummaryLengthStandard, SummaryLengthDetailed:
		return true
	}
	return false
}

// Summary is the result of summarizing one article.
type Summary struct {
	TLDR      string
	KeyPoints []string
}

// SummaryRequest carries the input of the metered summarize operation.
type SummaryRequest struct {
	ArticleText string
	URL         string
	Title       string
	Length      SummaryLength
}

// HistoryItem is one saved summary in a user's history.
type HistoryItem struct {
	ID        uuid.UUID
	ClerkID   string
	URL       string
	Title     string
	TLDR      string
	KeyPoints []string
	CreatedAt time.Time
}
