package deepseek

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tildra/tildra/internal/ai"
	"github.com/tildra/tildra/internal/domain"
)

const (
	// APIBaseURL is the chat completions endpoint for the DeepSeek API
	APIBaseURL = "https://api.deepseek.com/chat/completions"

	// DefaultModel is the default DeepSeek model to use
	DefaultModel = "deepseek-chat"

	// MaxArticleChars caps the article text sent to the model. Longer
	// articles are truncated rather than rejected.
	MaxArticleChars = 48_000
)

// Config contains configuration for the DeepSeek provider
type Config struct {
	APIKey         string
	Model          string
	ProviderConfig ai.ProviderConfig
}

// Provider implements the Summarizer interface using DeepSeek's chat API
type Provider struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

// New creates a new DeepSeek summarization provider
func New(config Config, logger *slog.Logger) (*Provider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("deepseek API key is required")
	}

	// Set defaults
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.ProviderConfig.MaxRetries == 0 {
		config.ProviderConfig.MaxRetries = 3
	}
	if config.ProviderConfig.RetryBaseDelay == 0 {
		config.ProviderConfig.RetryBaseDelay = 1 * time.Second
	}
	if config.ProviderConfig.RequestTimeout == 0 {
		config.ProviderConfig.RequestTimeout = 60 * time.Second
	}

	return &Provider{
		config: config,
		client: &http.Client{
			Timeout: config.ProviderConfig.RequestTimeout,
		},
		logger: logger,
	}, nil
}

// Summarize summarizes an article into a TLDR and key points
func (p *Provider) Summarize(ctx context.Context, params ai.SummarizeParams) (*domain.Summary, error) {
	if strings.TrimSpace(params.ArticleText) == "" {
		return nil, ai.WrapError("summarize", ai.EAIEmptyArticle)
	}

	body, err := p.buildRequestBody(params)
	if err != nil {
		return nil, ai.WrapError("build request", err)
	}

	resp, err := p.executeWithRetry(ctx, body)
	if err != nil {
		return nil, ai.WrapError("execute request", err)
	}

	summary, err := p.parseSummaryResponse(resp)
	if err != nil {
		return nil, ai.WrapError("parse response", err)
	}

	return summary, nil
}

// buildRequestBody builds the JSON request body for a summarization call
func (p *Provider) buildRequestBody(params ai.SummarizeParams) ([]byte, error) {
	article := truncateArticle(params.ArticleText, MaxArticleChars)

	reqBody := apiRequest{
		Model: p.config.Model,
		Messages: []apiMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildSummaryPrompt(article, params.Length)},
		},
		ResponseFormat: &apiResponseFormat{Type: "json_object"},
		Temperature:    0.3,
		MaxTokens:      maxTokensForLength(params.Length),
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	return bodyBytes, nil
}

// executeWithRetry executes the request with exponential backoff retry
func (p *Provider) executeWithRetry(ctx context.Context, body []byte) (*apiResponse, error) {
	var lastErr error

	for attempt := 1; attempt <= p.config.ProviderConfig.MaxRetries; attempt++ {
		resp, err := p.executeRequest(ctx, body)
		if err == nil {
			return resp, nil
		}

		lastErr = err

		// Only retry on retryable errors
		if !ai.IsRetryable(err) {
			return nil, err
		}

		// Don't retry if we've exhausted attempts
		if attempt >= p.config.ProviderConfig.MaxRetries {
			break
		}

		// Calculate backoff delay (exponential: base * 2^(attempt-1))
		delay := p.config.ProviderConfig.RetryBaseDelay * time.Duration(1<<(attempt-1))
		p.logger.Info("Retrying summarization request", "attempt", attempt, "delay", delay, "error", err)

		select {
		case <-time.After(delay):
			// Continue to next attempt
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}

// executeRequest executes a single HTTP request against the DeepSeek API
func (p *Provider) executeRequest(ctx context.Context, body []byte) (*apiResponse, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", APIBaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ai.EAITimeout
		}
		// Network errors are typically retryable
		return nil, ai.EAIUnavailable
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, p.mapHTTPError(resp.StatusCode, bodyBytes)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	return &apiResp, nil
}

// mapHTTPError maps HTTP status codes to provider errors
func (p *Provider) mapHTTPError(statusCode int, body []byte) error {
	var errResp apiErrorResponse
	_ = json.Unmarshal(body, &errResp)

	switch statusCode {
	case http.StatusUnauthorized:
		return ai.EAIUnauthorized
	case http.StatusTooManyRequests:
		return ai.EAIRateLimit
	case http.StatusRequestTimeout:
		return ai.EAITimeout
	case http.StatusBadRequest:
		return fmt.Errorf("bad request: %s", errResp.Error.Message)
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return ai.EAIUnavailable
	default:
		return fmt.Errorf("API error (status %d): %s", statusCode, errResp.Error.Message)
	}
}

// parseSummaryResponse parses the API response into a domain.Summary
func (p *Provider) parseSummaryResponse(resp *apiResponse) (*domain.Summary, error) {
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices", ai.EAIBadResponse)
	}

	content := resp.Choices[0].Message.Content
	if content == "" {
		return nil, fmt.Errorf("%w: empty message content", ai.EAIBadResponse)
	}

	var output summaryOutput
	if err := json.Unmarshal([]byte(content), &output); err != nil {
		return nil, fmt.Errorf("%w: %v", ai.EAIBadResponse, err)
	}

	if strings.TrimSpace(output.TLDR) == "" {
		return nil, fmt.Errorf("%w: missing tldr", ai.EAIBadResponse)
	}

	points := make([]string, 0, len(output.KeyPoints))
	for _, kp := range output.KeyPoints {
		if s := strings.TrimSpace(kp); s != "" {
			points = append(points, s)
		}
	}

	return &domain.Summary{
		TLDR:      strings.TrimSpace(output.TLDR),
		KeyPoints: points,
	}, nil
}

const systemPrompt = `You are a precise article summarizer. Respond only with a JSON object of the form {"tldr": string, "key_points": [string]}. Do not include any other text.`

// buildSummaryPrompt builds the user prompt for the given length preset
func buildSummaryPrompt(article string, length domain.SummaryLength) string {
	var instruction string
	switch length {
	case domain.SummaryLengthShort:
		instruction = "Write a one-sentence TLDR and exactly 3 key points."
	case domain.SummaryLengthDetailed:
		instruction = "Write a thorough TLDR of 3-4 sentences and 6-8 key points covering all major arguments."
	default:
		instruction = "Write a TLDR of 1-2 sentences and 4-5 key points."
	}
	return fmt.Sprintf("Summarize the following article. %s\n\nArticle:\n%s", instruction, article)
}

// truncateArticle caps the article at max bytes without splitting a
// multi-byte rune at the cut point.
func truncateArticle(article string, max int) string {
	if len(article) <= max {
		return article
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(article[cut]) {
		cut--
	}
	return article[:cut]
}

// maxTokensForLength returns the output token budget per length preset
func maxTokensForLength(length domain.SummaryLength) int {
	switch length {
	case domain.SummaryLengthShort:
		return 512
	case domain.SummaryLengthDetailed:
		return 2048
	default:
		return 1024
	}
}

// API request/response types

type apiRequest struct {
	Model          string             `json:"model"`
	Messages       []apiMessage       `json:"messages"`
	ResponseFormat *apiResponseFormat `json:"response_format,omitempty"`
	Temperature    float64            `json:"temperature,omitempty"`
	MaxTokens      int                `json:"max_tokens,omitempty"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiResponseFormat struct {
	Type string `json:"type"`
}

type apiResponse struct {
	ID      string      `json:"id"`
	Model   string      `json:"model"`
	Choices []apiChoice `json:"choices"`
	Usage   apiUsage    `json:"usage"`
}

type apiChoice struct {
	Index        int        `json:"index"`
	Message      apiMessage `json:"message"`
	FinishReason string     `json:"finish_reason"`
}

type apiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// summaryOutput is the JSON object the model is instructed to return.
type summaryOutput struct {
	TLDR      string   `json:"tldr"`
	KeyPoints []string `json:"key_points"`
}

type apiErrorResponse struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
