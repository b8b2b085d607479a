package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func historyMux(t *testing.T) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()
	NewHistoryHandler(&fakeSummaryService{}, testLogger()).RegisterRoutes(mux)
	return mux
}

func TestHandleListHistory_InvalidLimit(t *testing.T) {
	mux := historyMux(t)

	for _, raw := range []string{"abc", "0", "-5"} {
		req := httptest.NewRequest("GET", "/api/history?limit="+raw, nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("limit=%q status = %d, want 400", raw, rec.Code)
		}
	}
}

func TestHandleListHistory_EmptyResult(t *testing.T) {
	mux := historyMux(t)

	req := httptest.NewRequest("GET", "/api/history", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	// An empty history serializes as an empty list, never null.
	if body := rec.Body.String(); !jsonHasEmptyItems(body) {
		t.Errorf("body = %s, want empty items array", body)
	}
}

func jsonHasEmptyItems(body string) bool {
	return body == "{\"items\":[]}\n"
}

func TestHandleDeleteHistoryItem_InvalidID(t *testing.T) {
	mux := historyMux(t)

	req := httptest.NewRequest("DELETE", "/api/history/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleClearHistory(t *testing.T) {
	mux := historyMux(t)

	req := httptest.NewRequest("DELETE", "/api/history", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
}
