package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSanitizePath(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		rawQuery string
		want     string
	}{
		{
			name: "no query",
			path: "/api/history",
			want: "/api/history",
		},
		{
			name:     "benign query passes through",
			path:     "/api/history",
			rawQuery: "limit=20",
			want:     "/api/history?limit=20",
		},
		{
			name:     "token is redacted",
			path:     "/api/summarize",
			rawQuery: "token=abc123",
			want:     "/api/summarize?token=[REDACTED]",
		},
		{
			name:     "mixed params redact only sensitive ones",
			path:     "/api/history",
			rawQuery: "limit=20&api_key=secret123",
			want:     "/api/history?limit=20&api_key=[REDACTED]",
		},
		{
			name:     "case insensitive param names",
			path:     "/api/history",
			rawQuery: "TOKEN=abc",
			want:     "/api/history?TOKEN=[REDACTED]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizePath(tt.path, tt.rawQuery); got != tt.want {
				t.Errorf("sanitizePath(%q, %q) = %q, want %q", tt.path, tt.rawQuery, got, tt.want)
			}
		})
	}
}

func TestRequestLogging_SkipsHealthAndMetrics(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	mw := NewRequestLoggingMiddleware(logger)

	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, path := range []string{"/health", "/metrics"} {
		req := httptest.NewRequest("GET", path, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
	}
	if buf.Len() != 0 {
		t.Errorf("health/metrics requests should not be logged, got: %s", buf.String())
	}

	req := httptest.NewRequest("GET", "/api/history", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if !strings.Contains(buf.String(), "/api/history") {
		t.Errorf("API request should be logged, got: %s", buf.String())
	}
}

func TestRequestLogging_CapturesStatusCode(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	mw := NewRequestLoggingMiddleware(logger)

	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	req := httptest.NewRequest("POST", "/api/summarize", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !strings.Contains(buf.String(), "status=429") {
		t.Errorf("log should capture the response status, got: %s", buf.String())
	}
}
