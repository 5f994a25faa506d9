// Package render produces report artifacts, either via an external render
// service or locally as a JSON snapshot.
package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	domain "github.com/donaldgifford/report-dispatch/pkg/types"
)

// HTTPRenderer renders reports by POSTing to an external render service.
// The service receives the report definition and responds with the artifact
// bytes; the Content-Type response header carries the artifact type.
type HTTPRenderer struct {
	endpoint string
	client   *http.Client
}

// NewHTTPRenderer creates a renderer against the given endpoint.
func NewHTTPRenderer(endpoint string, opts ...HTTPRendererOption) *HTTPRenderer {
	r := &HTTPRenderer{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// HTTPRendererOption configures an HTTPRenderer.
type HTTPRendererOption func(*HTTPRenderer)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) HTTPRendererOption {
	return func(r *HTTPRenderer) {
		r.client = c
	}
}

// renderRequest is the JSON body sent to the render service.
type renderRequest struct {
	ReportID string `json:"report_id"`
	Name     string `json:"name"`
	Format   string `json:"format"`
}

// Render requests the artifact for a report from the render service.
func (r *HTTPRenderer) Render(
	ctx context.Context,
	report *domain.ScheduledReport,
) (*domain.Artifact, error) {
	body, err := json.Marshal(renderRequest{
		ReportID: report.ID,
		Name:     report.Name,
		Format:   report.DeliveryFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling render request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, r.endpoint, bytes.NewReader(body),
	)
	if err != nil {
		return nil, fmt.Errorf("creating render request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling render service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("render service returned %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading rendered artifact: %w", err)
	}

	return &domain.Artifact{
		Name:        artifactName(report),
		ContentType: resp.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func artifactName(report *domain.ScheduledReport) string {
	ext := report.DeliveryFormat
	if ext == "" {
		ext = "bin"
	}
	return fmt.Sprintf("%s.%s", report.ID, ext)
}
