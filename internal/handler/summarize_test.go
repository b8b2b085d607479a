package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/tildra/tildra/internal/domain"
)

// fakeSummaryService implements service.SummaryService with canned behavior.
type fakeSummaryService struct {
	summary      *domain.Summary
	summarizeErr error

	lastClerkID string
	lastRequest domain.SummaryRequest
}

func (f *fakeSummaryService) Summarize(ctx context.Context, clerkID string, req domain.SummaryRequest) (*domain.Summary, error) {
	f.lastClerkID = clerkID
	f.lastRequest = req
	if f.summarizeErr != nil {
		return nil, f.summarizeErr
	}
	return f.summary, nil
}

func (f *fakeSummaryService) ListHistory(ctx context.Context, clerkID string, limit int32) ([]domain.HistoryItem, error) {
	return nil, nil
}

func (f *fakeSummaryService) DeleteHistoryItem(ctx context.Context, clerkID string, id uuid.UUID) error {
	return nil
}

func (f *fakeSummaryService) ClearHistory(ctx context.Context, clerkID string) error {
	return nil
}

func TestHandleSummarize_Success(t *testing.T) {
	svc := &fakeSummaryService{
		summary: &domain.Summary{TLDR: "A summary.", KeyPoints: []string{"one", "two"}},
	}
	h := NewSummarizeHandler(svc, testLogger())

	body := `{"article_text":"Some article.","url":"https://example.com/a","length":"short"}`
	req := httptest.NewRequest("POST", "/api/summarize", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.HandleSummarize(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		TLDR      string   `json:"tldr"`
		KeyPoints []string `json:"key_points"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.TLDR != "A summary." {
		t.Errorf("tldr = %q, want A summary.", resp.TLDR)
	}
	if len(resp.KeyPoints) != 2 {
		t.Errorf("key points = %v, want two entries", resp.KeyPoints)
	}
	if svc.lastRequest.Length != domain.SummaryLengthShort {
		t.Errorf("forwarded length = %q, want short", svc.lastRequest.Length)
	}
}

func TestHandleSummarize_InvalidJSON(t *testing.T) {
	h := NewSummarizeHandler(&fakeSummaryService{}, testLogger())

	req := httptest.NewRequest("POST", "/api/summarize", strings.NewReader(`{"article_text": `))
	rec := httptest.NewRecorder()
	h.HandleSummarize(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleSummarize_QuotaExceeded(t *testing.T) {
	svc := &fakeSummaryService{
		summarizeErr: domain.QuotaExceeded("quota.authorize", domain.PlanFree, 10),
	}
	h := NewSummarizeHandler(svc, testLogger())

	req := httptest.NewRequest("POST", "/api/summarize", strings.NewReader(`{"article_text":"text"}`))
	rec := httptest.NewRecorder()
	h.HandleSummarize(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Daily summary limit") {
		t.Errorf("body = %s, want quota message", rec.Body.String())
	}
}

func TestHandleSummarize_MissingEntitlement(t *testing.T) {
	svc := &fakeSummaryService{
		summarizeErr: domain.EntitlementMissing("quota.authorize", "usr_ghost"),
	}
	h := NewSummarizeHandler(svc, testLogger())

	req := httptest.NewRequest("POST", "/api/summarize", strings.NewReader(`{"article_text":"text"}`))
	rec := httptest.NewRecorder()
	h.HandleSummarize(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}
