package deliver

import (
	"context"
	"log/slog"

	domain "github.com/donaldgifford/report-dispatch/pkg/types"
)

// LogDeliverer implements delivery by logging the artifact metadata. It is
// used when no delivery endpoint is configured, keeping the pipeline and its
// history rows exercised in development setups.
type LogDeliverer struct {
	log *slog.Logger
}

// NewLogDeliverer creates a deliverer that logs and discards artifacts.
func NewLogDeliverer(log *slog.Logger) *LogDeliverer {
	return &LogDeliverer{log: log}
}

// Deliver logs the artifact metadata and discards the payload.
func (d *LogDeliverer) Deliver(
	_ context.Context,
	report *domain.ScheduledReport,
	artifact *domain.Artifact,
) error {
	d.log.Info("artifact discarded (no delivery endpoint configured)",
		"report_id", report.ID,
		"filename", artifact.Name,
		"bytes", len(artifact.Data),
		"recipients", len(report.Recipients),
	)
	return nil
}
