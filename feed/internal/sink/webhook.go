// CLAUDE:SUMMARY POSTs feed updates to a webhook; retries transient failures with doubling delay, fails fast on client errors.
package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Webhook POSTs each update to a URL. Network failures, 408, 429 and 5xx
// responses are retried with doubling delays; other statuses fail at once.
type Webhook struct {
	url        string
	client     *http.Client
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger
}

// WebhookOption configures a Webhook sink.
type WebhookOption func(*Webhook)

// WithWebhookRetries sets the maximum number of retries. Default: 3.
func WithWebhookRetries(n int) WebhookOption {
	return func(w *Webhook) { w.maxRetries = n }
}

// WithWebhookBackoff sets the first retry delay, doubled each retry.
// Default: 1s.
func WithWebhookBackoff(d time.Duration) WebhookOption {
	return func(w *Webhook) { w.backoff = d }
}

// WithWebhookClient sets the HTTP client.
func WithWebhookClient(c *http.Client) WebhookOption {
	return func(w *Webhook) { w.client = c }
}

// WithWebhookLogger sets a custom logger.
func WithWebhookLogger(l *slog.Logger) WebhookOption {
	return func(w *Webhook) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewWebhook creates a Webhook sink targeting the given URL.
func NewWebhook(url string, opts ...WebhookOption) *Webhook {
	w := &Webhook{
		url:        url,
		client:     &http.Client{Timeout: 10 * time.Second},
		maxRetries: 3,
		backoff:    time.Second,
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

func (w *Webhook) Send(ctx context.Context, u Update) error {
	body, err := json.Marshal(envelope{Type: "feed", Data: u})
	if err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}

	delay := w.backoff
	var lastErr error
	for try := 1; try <= w.maxRetries+1; try++ {
		retry, err := w.post(ctx, body)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry || try > w.maxRetries {
			break
		}
		w.logger.Warn("webhook: delivery failed, retrying", "url", w.url, "try", try, "in", delay, "error", err)

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		delay *= 2
	}
	return fmt.Errorf("webhook: %s: %w", w.url, lastErr)
}

// post sends body once. retry is false for client errors other than
// 408 and 429: resending the same payload cannot succeed.
func (w *Webhook) post(ctx context.Context, body []byte) (retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "teamsfeed")

	resp, err := w.client.Do(req)
	if err != nil {
		return ctx.Err() == nil, err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	switch code := resp.StatusCode; {
	case code >= 200 && code < 300:
		return false, nil
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests, code >= 500:
		return true, fmt.Errorf("status %d", code)
	default:
		return false, fmt.Errorf("status %d", code)
	}
}

func (w *Webhook) Close() error { return nil }
