// This file implements the summary history endpoints.
//
// Routes (all auth required):
//   - GET    /api/history      -> HandleListHistory
//   - DELETE /api/history      -> HandleClearHistory
//   - DELETE /api/history/{id} -> HandleDeleteHistoryItem
package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/tildra/tildra/internal/domain"
	"github.com/tildra/tildra/internal/middleware"
	"github.com/tildra/tildra/internal/service"
)

// HistoryHandler serves saved-summary endpoints.
type HistoryHandler struct {
	summaries service.SummaryService
	logger    *slog.Logger
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(summaries service.SummaryService, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{
		summaries: summaries,
		logger:    logger,
	}
}

// RegisterRoutes registers history routes on the provided mux.
// The mux is expected to be wrapped in auth middleware.
func (h *HistoryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/history", h.HandleListHistory)
	mux.HandleFunc("DELETE /api/history", h.HandleClearHistory)
	mux.HandleFunc("DELETE /api/history/{id}", h.HandleDeleteHistoryItem)
}

type historyItemResponse struct {
	ID        uuid.UUID `json:"id"`
	URL       string    `json:"url,omitempty"`
	Title     string    `json:"title,omitempty"`
	TLDR      string    `json:"tldr"`
	KeyPoints []string  `json:"key_points"`
	CreatedAt time.Time `json:"created_at"`
}

// HandleListHistory returns the caller's most recent saved summaries.
func (h *HistoryHandler) HandleListHistory(w http.ResponseWriter, r *http.Request) {
	clerkID := middleware.GetClerkID(r.Context())

	var limit int32
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			ErrorResponse(w, r, h.logger, domain.Invalid("history.list", "limit must be a positive integer"))
			return
		}
		limit = int32(n)
	}

	items, err := h.summaries.ListHistory(r.Context(), clerkID, limit)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	resp := make([]historyItemResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, historyItemResponse{
			ID:        item.ID,
			URL:       item.URL,
			Title:     item.Title,
			TLDR:      item.TLDR,
			KeyPoints: item.KeyPoints,
			CreatedAt: item.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"items": resp})
}

// HandleClearHistory removes all of the caller's saved summaries.
func (h *HistoryHandler) HandleClearHistory(w http.ResponseWriter, r *http.Request) {
	clerkID := middleware.GetClerkID(r.Context())

	if err := h.summaries.ClearHistory(r.Context(), clerkID); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleDeleteHistoryItem removes one saved summary owned by the caller.
func (h *HistoryHandler) HandleDeleteHistoryItem(w http.ResponseWriter, r *http.Request) {
	clerkID := middleware.GetClerkID(r.Context())

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("history.delete", "invalid summary id"))
		return
	}

	if err := h.summaries.DeleteHistoryItem(r.Context(), clerkID, id); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
