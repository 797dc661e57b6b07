package status

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

	"github.com/docchatlabs/docchat/internal/core/domain"
)

// Notifier POSTs terminal ingestion statuses back to the caller's callback
// endpoint. Delivery is fire-and-forget: failures are logged and never
// change the ingestion outcome.
type Notifier struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewNotifier(baseURL string, logger *slog.Logger) *Notifier {
	return &Notifier{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

func (n *Notifier) Notify(ctx context.Context, callbackPath string, status domain.IngestionStatus) {
	url := n.resolveURL(callbackPath)
	if url == "" {
		n.logger.Debug("status_callback_skipped", "request_id", status.RequestID)
		return
	}

	if err := n.post(ctx, url, status); err != nil {
		n.logger.Error("status_callback_failed",
			"request_id", status.RequestID,
			"url", url,
			"state", string(status.State),
			"error", err,
		)
		return
	}
	n.logger.Info("status_callback_delivered", "request_id", status.RequestID, "state", string(status.State))
}

func (n *Notifier) resolveURL(callbackPath string) string {
	path := strings.TrimSpace(callbackPath)
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if n.baseURL == "" {
		return ""
	}
	return n.baseURL + "/" + strings.TrimLeft(path, "/")
}

func (n *Notifier) post(ctx context.Context, url string, status domain.IngestionStatus) error {
	payload, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshal status payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("callback request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if msg := strings.TrimSpace(string(body)); msg != "" {
			return fmt.Errorf("callback status: %s: %s", resp.Status, msg)
		}
		return fmt.Errorf("callback status: %s", resp.Status)
	}
	return nil
}
