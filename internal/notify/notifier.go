// Package notify defines the notification interface and implementations
// for dispatching triggered threshold alerts.
package notify

import (
	"context"

	domain "github.com/donaldgifford/report-dispatch/pkg/types"
)

// Notifier defines the interface for sending triggered-alert notifications.
type Notifier interface {
	SendAlert(ctx context.Context, alert *domain.TriggeredAlert) error
	SendBatchAlert(ctx context.Context, alerts []domain.TriggeredAlert) error
}
