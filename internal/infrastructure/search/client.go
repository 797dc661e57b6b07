package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/docchatlabs/docchat/internal/infrastructure/resilience"
)

// Client queries an external search API and folds the hits into one
// attributed plain-text digest for downstream summarization and answering.
type Client struct {
	baseURL    string
	apiKey     string
	maxResults int
	httpClient *http.Client
	exec       *resilience.Executor
	logger     *slog.Logger
}

func New(baseURL, apiKey string, maxResults int, exec *resilience.Executor, logger *slog.Logger) *Client {
	if maxResults <= 0 {
		maxResults = 5
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		maxResults: maxResults,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		exec:       exec,
		logger:     logger,
	}
}

type searchResponse struct {
	Answer  string `json:"answer"`
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

func (c *Client) Search(ctx context.Context, query string) (string, error) {
	payload := map[string]any{
		"api_key":     c.apiKey,
		"query":       query,
		"max_results": c.maxResults,
	}

	var resp searchResponse
	err := c.exec.Do(ctx, "search.query", func(ctx context.Context) error {
		return c.postJSON(ctx, "/search", payload, &resp)
	}, classifySearchError)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	if answer := strings.TrimSpace(resp.Answer); answer != "" {
		sb.WriteString(answer)
		sb.WriteString("\n\n")
	}
	for _, result := range resp.Results {
		content := strings.TrimSpace(result.Content)
		if content == "" {
			continue
		}
		if result.Title != "" || result.URL != "" {
			sb.WriteString(fmt.Sprintf("%s (%s):\n", result.Title, result.URL))
		}
		sb.WriteString(content)
		sb.WriteString("\n\n")
	}

	digest := strings.TrimSpace(sb.String())
	c.logger.Debug("web_search_done", "query", query, "results", len(resp.Results), "digest_chars", len(digest))
	return digest, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &HTTPStatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode search response: %w", err)
	}
	return nil
}

type HTTPStatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "search status error"
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("search status: %s", e.Status)
	}
	return fmt.Sprintf("search status: %s: %s", e.Status, strings.TrimSpace(e.Body))
}

func classifySearchError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		default:
			return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}
