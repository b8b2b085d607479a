package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tildra/tildra/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestErrorCodeToHTTPStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{domain.EINVALID, http.StatusBadRequest},
		{domain.EUNAUTHORIZED, http.StatusUnauthorized},
		{domain.EFORBIDDEN, http.StatusForbidden},
		{domain.ENOTFOUND, http.StatusNotFound},
		{domain.ECONFLICT, http.StatusConflict},
		{domain.ERATELIMIT, http.StatusTooManyRequests},
		{domain.EINTERNAL, http.StatusInternalServerError},
		{"something_else", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := ErrorCodeToHTTPStatus(tt.code); got != tt.want {
				t.Errorf("ErrorCodeToHTTPStatus(%q) = %d, want %d", tt.code, got, tt.want)
			}
		})
	}
}

func TestErrorResponse_JSONShape(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/summarize", nil)
	rec := httptest.NewRecorder()

	ErrorResponse(rec, req, testLogger(), domain.QuotaExceeded("quota.authorize", domain.PlanFree, 10))

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q, want application/json", ct)
	}

	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Error.Code != domain.ERATELIMIT {
		t.Errorf("error code = %q, want %q", body.Error.Code, domain.ERATELIMIT)
	}
	if !strings.Contains(body.Error.Message, "Daily summary limit") {
		t.Errorf("error message = %q, want quota message", body.Error.Message)
	}
}

func TestErrorResponse_InternalErrorHidesDetails(t *testing.T) {
	dbErr := errors.New("pq: relation \"users\" does not exist")
	err := domain.Internal(dbErr, "repository.get_user", "Database query failed")

	req := httptest.NewRequest("GET", "/api/account-details", nil)
	rec := httptest.NewRecorder()

	ErrorResponse(rec, req, testLogger(), err)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}

	body := rec.Body.String()
	if strings.Contains(body, "pq:") || strings.Contains(body, "relation") {
		t.Errorf("response exposes database details: %s", body)
	}
	if strings.Contains(body, "repository.get_user") {
		t.Errorf("response exposes internal operation name: %s", body)
	}
}
