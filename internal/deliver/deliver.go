// Package deliver hands rendered artifacts to their recipients.
package deliver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	domain "github.com/donaldgifford/report-dispatch/pkg/types"
)

// WebhookDeliverer posts artifacts as JSON to a delivery endpoint, which is
// responsible for fanning out to the actual recipients (mail relay, chat
// bridge, and so on).
type WebhookDeliverer struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// NewWebhookDeliverer creates a WebhookDeliverer posting to url.
func NewWebhookDeliverer(
	url string,
	headers map[string]string,
	opts ...WebhookDelivererOption,
) *WebhookDeliverer {
	d := &WebhookDeliverer{
		url:     url,
		headers: headers,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// WebhookDelivererOption configures a WebhookDeliverer.
type WebhookDelivererOption func(*WebhookDeliverer)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) WebhookDelivererOption {
	return func(d *WebhookDeliverer) {
		d.client = c
	}
}

// deliveryPayload is the JSON body posted to the delivery endpoint. Artifact
// bytes travel base64-encoded.
type deliveryPayload struct {
	ReportID    string   `json:"report_id"`
	ReportName  string   `json:"report_name"`
	Format      string   `json:"format"`
	Recipients  []string `json:"recipients"`
	Filename    string   `json:"filename"`
	ContentType string   `json:"content_type"`
	Content     string   `json:"content"`
}

// Deliver posts the artifact and recipient list to the delivery endpoint.
func (d *WebhookDeliverer) Deliver(
	ctx context.Context,
	report *domain.ScheduledReport,
	artifact *domain.Artifact,
) error {
	body, err := json.Marshal(deliveryPayload{
		ReportID:    report.ID,
		ReportName:  report.Name,
		Format:      report.DeliveryFormat,
		Recipients:  report.Recipients,
		Filename:    artifact.Name,
		ContentType: artifact.ContentType,
		Content:     base64.StdEncoding.EncodeToString(artifact.Data),
	})
	if err != nil {
		return fmt.Errorf("marshaling delivery payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating delivery request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range d.headers {
		req.Header.Set(k, v)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting artifact: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("delivery endpoint returned %d (body unreadable)", resp.StatusCode)
		}
		return fmt.Errorf("delivery endpoint returned %d: %s", resp.StatusCode, respBody)
	}

	return nil
}
