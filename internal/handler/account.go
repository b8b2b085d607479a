// This file implements the account endpoints: profile details, current
// usage, and persisted settings.
//
// Routes (all auth required):
//   - GET /api/account-details   -> HandleAccountDetails
//   - GET /api/summaries/status  -> HandleUsageStatus
//   - GET /api/settings          -> HandleGetSettings
//   - PUT /api/settings          -> HandleUpdateSettings
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/tildra/tildra/internal/domain"
	"github.com/tildra/tildra/internal/middleware"
	"github.com/tildra/tildra/internal/service"
)

// AccountHandler serves account, usage and settings endpoints.
type AccountHandler struct {
	users  service.UserService
	quota  service.QuotaService
	logger *slog.Logger
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(users service.UserService, quota service.QuotaService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		users:  users,
		quota:  quota,
		logger: logger,
	}
}

// RegisterRoutes registers account routes on the provided mux.
// The mux is expected to be wrapped in auth middleware.
func (h *AccountHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/account-details", h.HandleAccountDetails)
	mux.HandleFunc("GET /api/summaries/status", h.HandleUsageStatus)
	mux.HandleFunc("GET /api/settings", h.HandleGetSettings)
	mux.HandleFunc("PUT /api/settings", h.HandleUpdateSettings)
}

type accountDetailsResponse struct {
	ClerkID            string     `json:"clerk_id"`
	Email              string     `json:"email"`
	FirstName          string     `json:"first_name,omitempty"`
	LastName           string     `json:"last_name,omitempty"`
	ProfileImageURL    string     `json:"profile_image_url,omitempty"`
	Plan               string     `json:"plan"`
	SummariesUsed      int32      `json:"summaries_used"`
	SummaryLimit       int32      `json:"summary_limit"`
	UsageResetAt       time.Time  `json:"usage_reset_at"`
	TotalSummariesMade int64      `json:"total_summaries_made"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

// HandleAccountDetails returns the caller's profile and plan state.
func (h *AccountHandler) HandleAccountDetails(w http.ResponseWriter, r *http.Request) {
	clerkID := middleware.GetClerkID(r.Context())

	user, err := h.users.GetUser(r.Context(), clerkID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, accountDetailsResponse{
		ClerkID:            user.ClerkID,
		Email:              user.Email,
		FirstName:          user.FirstName,
		LastName:           user.LastName,
		ProfileImageURL:    user.ProfileImageURL,
		Plan:               string(user.Plan),
		SummariesUsed:      user.SummariesUsed,
		SummaryLimit:       user.SummaryLimit,
		UsageResetAt:       user.UsageResetAt,
		TotalSummariesMade: user.TotalSummariesMade,
		CurrentPeriodEnd:   user.StripeCurrentPeriodEnd,
		CreatedAt:          user.CreatedAt,
	})
}

type usageStatusResponse struct {
	Plan      string `json:"plan"`
	Used      int32  `json:"used"`
	Limit     int32  `json:"limit"`
	Remaining int32  `json:"remaining"`
}

// HandleUsageStatus returns the caller's current window usage. It runs
// through the quota service so a fresh free-tier day reads as reset.
func (h *AccountHandler) HandleUsageStatus(w http.ResponseWriter, r *http.Request) {
	clerkID := middleware.GetClerkID(r.Context())

	usage, err := h.quota.GetUsage(r.Context(), clerkID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, usageStatusResponse{
		Plan:      string(usage.Plan),
		Used:      usage.Used,
		Limit:     usage.Limit,
		Remaining: usage.Remaining(),
	})
}

type settingsResponse struct {
	Theme                string `json:"theme"`
	DefaultSummaryLength string `json:"default_summary_length"`
	AutoSaveHistory      bool   `json:"auto_save_history"`
}

// HandleGetSettings returns the caller's persisted settings.
func (h *AccountHandler) HandleGetSettings(w http.ResponseWriter, r *http.Request) {
	clerkID := middleware.GetClerkID(r.Context())

	user, err := h.users.GetUser(r.Context(), clerkID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, settingsResponse{
		Theme:                user.Theme,
		DefaultSummaryLength: user.DefaultSummaryLength,
		AutoSaveHistory:      user.AutoSaveHistory,
	})
}

type updateSettingsRequest struct {
	Theme                *string `json:"theme"`
	DefaultSummaryLength *string `json:"default_summary_length"`
	AutoSaveHistory      *bool   `json:"auto_save_history"`
}

// HandleUpdateSettings applies a partial settings patch.
func (h *AccountHandler) HandleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	clerkID := middleware.GetClerkID(r.Context())

	var req updateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("settings.decode", "invalid JSON body"))
		return
	}

	user, err := h.users.UpdateSettings(r.Context(), clerkID, domain.SettingsPatch{
		Theme:                req.Theme,
		DefaultSummaryLength: req.DefaultSummaryLength,
		AutoSaveHistory:      req.AutoSaveHistory,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, settingsResponse{
		Theme:                user.Theme,
		DefaultSummaryLength: user.DefaultSummaryLength,
		AutoSaveHistory:      user.AutoSaveHistory,
	})
}
