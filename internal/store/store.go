// Package store defines the datastore abstraction for report-dispatch.
// All business logic depends on the Store interface, never on concrete
// implementations. This enables testing the engine without a running database.
package store

import (
	"context"
	"errors"
	"time"

	domain "github.com/donaldgifford/report-dispatch/pkg/types"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrAlreadyFinalized is returned when finalizing a delivery attempt that has
// already left the pending state. Attempts transition exactly once.
var ErrAlreadyFinalized = errors.New("delivery attempt already finalized")

// Store defines all data access operations for report-dispatch.
type Store interface {
	// Scheduled reports
	CreateReport(ctx context.Context, r *domain.ScheduledReport) error
	GetReport(ctx context.Context, id string) (*domain.ScheduledReport, error)
	ListReports(ctx context.Context, scheduledOnly bool) ([]domain.ScheduledReport, error)
	UpdateReport(ctx context.Context, r *domain.ScheduledReport) error
	SetReportScheduled(ctx context.Context, id string, scheduled bool) error
	UpdateReportLastSent(ctx context.Context, id string, t time.Time) error

	// Job bindings
	UpsertBinding(ctx context.Context, b *domain.JobBinding) error
	GetBindingByReport(ctx context.Context, reportID string) (*domain.JobBinding, error)
	ListBindings(ctx context.Context, activeOnly bool) ([]domain.JobBinding, error)
	ListDueBindings(ctx context.Context, now time.Time) ([]domain.JobBinding, error)
	UpdateBindingRun(ctx context.Context, id string, lastRun, nextRun time.Time) error
	SetBindingActive(ctx context.Context, reportID string, active bool) error
	DeleteBinding(ctx context.Context, reportID string) error

	// Delivery history (append-only)
	InsertDeliveryAttempt(ctx context.Context, a *domain.DeliveryAttempt) error
	FinalizeDeliveryAttempt(
		ctx context.Context,
		id string,
		status domain.DeliveryStatus,
		errorMessage string,
		fileSize *int64,
	) error
	ListDeliveryAttempts(ctx context.Context, reportID string, limit int) ([]domain.DeliveryAttempt, error)

	// Threshold rules
	CreateRule(ctx context.Context, r *domain.ThresholdRule) error
	GetRule(ctx context.Context, id string) (*domain.ThresholdRule, error)
	UpdateRule(ctx context.Context, r *domain.ThresholdRule) error
	DeleteRule(ctx context.Context, id string) error
	ListRules(ctx context.Context) ([]domain.ThresholdRule, error)
	ListRulesByMetric(ctx context.Context, metricID string, activeOnly bool) ([]domain.ThresholdRule, error)

	// Alert trigger history (append-only)
	InsertAlertTrigger(ctx context.Context, t *domain.AlertTrigger) error
	ListAlertTriggers(ctx context.Context, metricID string, limit int) ([]domain.AlertTrigger, error)
	ListAlertTriggersByRule(ctx context.Context, ruleID string, limit int) ([]domain.AlertTrigger, error)

	// Metrics (reference data)
	CreateMetric(ctx context.Context, m *domain.Metric) error
	GetMetric(ctx context.Context, id string) (*domain.Metric, error)
	ListMetrics(ctx context.Context) ([]domain.Metric, error)

	// Counts
	GetSystemState(ctx context.Context) (*domain.SystemState, error)

	// Migrations
	Migrate(ctx context.Context) error

	// Health
	Ping(ctx context.Context) error
}
