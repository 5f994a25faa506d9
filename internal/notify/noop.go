package notify

import (
	"context"
	"log/slog"

	domain "github.com/donaldgifford/report-dispatch/pkg/types"
)

// NoOpNotifier implements Notifier by logging discarded alerts. It is used
// when no notification backend is configured for a channel.
type NoOpNotifier struct {
	log *slog.Logger
}

// NewNoOpNotifier creates a notifier that discards alerts with a log message.
func NewNoOpNotifier(log *slog.Logger) *NoOpNotifier {
	return &NoOpNotifier{log: log}
}

// SendAlert logs and discards a single alert.
func (n *NoOpNotifier) SendAlert(_ context.Context, alert *domain.TriggeredAlert) error {
	n.log.Debug("notification discarded (no backend configured)",
		"metric", alert.MetricName,
		"condition", alert.Condition,
		"value", alert.ActualValue,
	)
	return nil
}

// SendBatchAlert logs and discards a batch of alerts.
func (n *NoOpNotifier) SendBatchAlert(_ context.Context, alerts []domain.TriggeredAlert) error {
	n.log.Debug("batch notification discarded (no backend configured)",
		"count", len(alerts),
	)
	return nil
}
