// This file implements the summarization endpoint.
//
// Route:
//   - POST /api/summarize -> HandleSummarize (auth required)
package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/tildra/tildra/internal/domain"
	"github.com/tildra/tildra/internal/middleware"
	"github.com/tildra/tildra/internal/service"
)

// maxArticleBody bounds the summarize request body (1MB).
const maxArticleBody = 1 << 20

// SummarizeHandler serves summarization requests.
type SummarizeHandler struct {
	summaries service.SummaryService
	logger    *slog.Logger
}

// NewSummarizeHandler creates a new SummarizeHandler.
func NewSummarizeHandler(summaries service.SummaryService, logger *slog.Logger) *SummarizeHandler {
	return &SummarizeHandler{
		summaries: summaries,
		logger:    logger,
	}
}

// RegisterRoutes registers summarize routes on the provided mux.
// The mux is expected to be wrapped in auth middleware.
func (h *SummarizeHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/summarize", h.HandleSummarize)
}

type summarizeRequest struct {
	ArticleText string `json:"article_text"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	Length      string `json:"length"`
}

type summarizeResponse struct {
	TLDR      string   `json:"tldr"`
	KeyPoints []string `json:"key_points"`
}

// HandleSummarize gates the request on quota and produces a summary.
func (h *SummarizeHandler) HandleSummarize(w http.ResponseWriter, r *http.Request) {
	clerkID := middleware.GetClerkID(r.Context())

	var req summarizeRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxArticleBody)).Decode(&req); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("summarize.decode", "invalid JSON body"))
		return
	}

	summary, err := h.summaries.Summarize(r.Context(), clerkID, domain.SummaryRequest{
		ArticleText: req.ArticleText,
		URL:         req.URL,
		Title:       req.Title,
		Length:      domain.SummaryLength(req.Length),
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, summarizeResponse{
		TLDR:      summary.TLDR,
		KeyPoints: summary.KeyPoints,
	})
}
