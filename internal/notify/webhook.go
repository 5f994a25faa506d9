package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	domain "github.com/donaldgifford/report-dispatch/pkg/types"
)

// WebhookNotifier implements Notifier by POSTing alert JSON to an arbitrary
// endpoint. Outbound requests pass through a token-bucket rate limiter so a
// burst of triggers cannot flood the receiver.
type WebhookNotifier struct {
	url     string
	headers map[string]string
	client  *http.Client
	limiter *rate.Limiter
}

// NewWebhookNotifier creates a WebhookNotifier posting to url with the given
// extra headers. perSecond and burst configure the outbound rate limit.
func NewWebhookNotifier(
	url string,
	headers map[string]string,
	perSecond float64,
	burst int,
	opts ...WebhookOption,
) *WebhookNotifier {
	w := &WebhookNotifier{
		url:     url,
		headers: headers,
		client:  &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WebhookOption configures a WebhookNotifier.
type WebhookOption func(*WebhookNotifier)

// WithWebhookHTTPClient sets a custom HTTP client.
func WithWebhookHTTPClient(c *http.Client) WebhookOption {
	return func(w *WebhookNotifier) {
		w.client = c
	}
}

// webhookPayload is the JSON body POSTed to the receiver.
type webhookPayload struct {
	Event  string                  `json:"event"`
	Alerts []domain.TriggeredAlert `json:"alerts"`
}

// SendAlert posts a single alert.
func (w *WebhookNotifier) SendAlert(ctx context.Context, alert *domain.TriggeredAlert) error {
	return w.post(ctx, webhookPayload{
		Event:  "alert.triggered",
		Alerts: []domain.TriggeredAlert{*alert},
	})
}

// SendBatchAlert posts a batch of alerts in one request.
func (w *WebhookNotifier) SendBatchAlert(
	ctx context.Context,
	alerts []domain.TriggeredAlert,
) error {
	return w.post(ctx, webhookPayload{
		Event:  "alert.triggered.batch",
		Alerts: alerts,
	})
}

func (w *WebhookNotifier) post(ctx context.Context, payload webhookPayload) error {
	if err := w.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for webhook rate limiter: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("webhook returned %d (body unreadable)", resp.StatusCode)
		}
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, respBody)
	}

	return nil
}
