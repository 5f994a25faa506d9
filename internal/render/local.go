package render

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	domain "github.com/donaldgifford/report-dispatch/pkg/types"
)

// LocalRenderer produces a JSON snapshot of the report definition. It is the
// default when no render service is configured, so deliveries still carry a
// meaningful payload.
type LocalRenderer struct {
	clock func() time.Time
}

// NewLocalRenderer creates a LocalRenderer.
func NewLocalRenderer() *LocalRenderer {
	return &LocalRenderer{clock: time.Now}
}

// Render serializes the report definition as the artifact.
func (r *LocalRenderer) Render(
	_ context.Context,
	report *domain.ScheduledReport,
) (*domain.Artifact, error) {
	payload := struct {
		ReportID    string    `json:"report_id"`
		Name        string    `json:"name"`
		Frequency   string    `json:"frequency"`
		GeneratedAt time.Time `json:"generated_at"`
	}{
		ReportID:    report.ID,
		Name:        report.Name,
		Frequency:   string(report.Frequency),
		GeneratedAt: r.clock(),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling local artifact: %w", err)
	}

	return &domain.Artifact{
		Name:        fmt.Sprintf("%s.json", report.ID),
		ContentType: "application/json",
		Data:        data,
	}, nil
}
