package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domain "github.com/donaldgifford/report-dispatch/pkg/types"
)

const defaultPoolSize = 10

// PostgresStore implements Store using pgxpool (connection-pooled PostgreSQL).
//
// TODO(test): PostgresStore methods require live Postgres, tested via integration tests.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore with connection pooling.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	cfg.MaxConns = defaultPoolSize

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close gracefully shuts down the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping verifies the database connection is alive.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate applies pending SQL schema migrations.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	return RunMigrations(ctx, s.pool)
}

// notFound maps pgx.ErrNoRows to the store sentinel.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// CreateReport inserts a new scheduled report.
func (s *PostgresStore) CreateReport(ctx context.Context, r *domain.ScheduledReport) error {
	scheduleJSON, err := json.Marshal(r.Schedule)
	if err != nil {
		return fmt.Errorf("marshaling schedule config: %w", err)
	}

	args := pgx.NamedArgs{
		"name":            r.Name,
		"frequency":       string(r.Frequency),
		"delivery_format": r.DeliveryFormat,
		"recipients":      r.Recipients,
		"is_scheduled":    r.IsScheduled,
		"schedule":        scheduleJSON,
	}

	return s.pool.QueryRow(ctx, queryCreateReport, args).Scan(
		&r.ID, &r.CreatedAt, &r.UpdatedAt,
	)
}

// GetReport retrieves a scheduled report by its ID.
func (s *PostgresStore) GetReport(ctx context.Context, id string) (*domain.ScheduledReport, error) {
	r := &domain.ScheduledReport{}
	if err := scanReport(s.pool.QueryRow(ctx, queryGetReport, id), r); err != nil {
		return nil, notFound(err)
	}
	return r, nil
}

// ListReports returns all reports, optionally filtered to scheduled only.
func (s *PostgresStore) ListReports(
	ctx context.Context,
	scheduledOnly bool,
) ([]domain.ScheduledReport, error) {
	query := queryListReportsAll
	if scheduledOnly {
		query = queryListReportsScheduled
	}

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying reports: %w", err)
	}
	defer rows.Close()

	var reports []domain.ScheduledReport
	for rows.Next() {
		var r domain.ScheduledReport
		if err := scanReport(rows, &r); err != nil {
			return nil, fmt.Errorf("scanning report: %w", err)
		}
		reports = append(reports, r)
	}

	return reports, rows.Err()
}

// UpdateReport updates a report's definition. Delivery state fields
// (is_scheduled, last_sent_at) are managed by their dedicated methods.
func (s *PostgresStore) UpdateReport(ctx context.Context, r *domain.ScheduledReport) error {
	scheduleJSON, err := json.Marshal(r.Schedule)
	if err != nil {
		return fmt.Errorf("marshaling schedule config: %w", err)
	}

	args := pgx.NamedArgs{
		"id":              r.ID,
		"name":            r.Name,
		"frequency":       string(r.Frequency),
		"delivery_format": r.DeliveryFormat,
		"recipients":      r.Recipients,
		"schedule":        scheduleJSON,
	}

	if err := s.pool.QueryRow(ctx, queryUpdateReport, args).Scan(&r.UpdatedAt); err != nil {
		return notFound(err)
	}
	return nil
}

// SetReportScheduled enables or disables automatic delivery for a report.
func (s *PostgresStore) SetReportScheduled(ctx context.Context, id string, scheduled bool) error {
	tag, err := s.pool.Exec(ctx, querySetReportScheduled, id, scheduled)
	if err != nil {
		return fmt.Errorf("setting report scheduled: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateReportLastSent advances the last_sent_at timestamp for a report.
func (s *PostgresStore) UpdateReportLastSent(ctx context.Context, id string, t time.Time) error {
	tag, err := s.pool.Exec(ctx, queryUpdateReportLastSent, id, t)
	if err != nil {
		return fmt.Errorf("updating report last_sent_at: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertBinding inserts or updates the 1:1 job binding for a report.
func (s *PostgresStore) UpsertBinding(ctx context.Context, b *domain.JobBinding) error {
	args := pgx.NamedArgs{
		"report_id":       b.ReportID,
		"cron_expression": b.CronExpression,
		"timezone":        b.Timezone,
		"is_active":       b.IsActive,
		"next_run_at":     b.NextRunAt,
	}

	return s.pool.QueryRow(ctx, queryUpsertBinding, args).Scan(
		&b.ID, &b.CreatedAt, &b.UpdatedAt,
	)
}

// GetBindingByReport retrieves the binding for a report, if any.
func (s *PostgresStore) GetBindingByReport(
	ctx context.Context,
	reportID string,
) (*domain.JobBinding, error) {
	b := &domain.JobBinding{}
	if err := scanBinding(s.pool.QueryRow(ctx, queryGetBindingByReport, reportID), b); err != nil {
		return nil, notFound(err)
	}
	return b, nil
}

// ListBindings returns all bindings, optionally filtered to active only.
func (s *PostgresStore) ListBindings(
	ctx context.Context,
	activeOnly bool,
) ([]domain.JobBinding, error) {
	query := queryListBindingsAll
	if activeOnly {
		query = queryListBindingsActive
	}
	return s.queryBindings(ctx, query)
}

// ListDueBindings returns active bindings whose next_run_at has been reached.
func (s *PostgresStore) ListDueBindings(
	ctx context.Context,
	now time.Time,
) ([]domain.JobBinding, error) {
	return s.queryBindings(ctx, queryListDueBindings, now)
}

// UpdateBindingRun records a run and the recomputed next run time.
func (s *PostgresStore) UpdateBindingRun(
	ctx context.Context,
	id string,
	lastRun, nextRun time.Time,
) error {
	tag, err := s.pool.Exec(ctx, queryUpdateBindingRun, id, lastRun, nextRun)
	if err != nil {
		return fmt.Errorf("updating binding run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetBindingActive activates or deactivates the binding for a report.
func (s *PostgresStore) SetBindingActive(ctx context.Context, reportID string, active bool) error {
	tag, err := s.pool.Exec(ctx, querySetBindingActive, reportID, active)
	if err != nil {
		return fmt.Errorf("setting binding active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteBinding removes the binding for a report.
func (s *PostgresStore) DeleteBinding(ctx context.Context, reportID string) error {
	_, err := s.pool.Exec(ctx, queryDeleteBinding, reportID)
	if err != nil {
		return fmt.Errorf("deleting binding: %w", err)
	}
	return nil
}

// InsertDeliveryAttempt appends a new delivery attempt row. The attempt is
// expected to carry status pending; the caller finalizes it later.
func (s *PostgresStore) InsertDeliveryAttempt(
	ctx context.Context,
	a *domain.DeliveryAttempt,
) error {
	args := pgx.NamedArgs{
		"report_id":       a.ReportID,
		"delivery_format": a.DeliveryFormat,
		"recipients":      a.Recipients,
		"status":          string(a.Status),
	}

	return s.pool.QueryRow(ctx, queryInsertDeliveryAttempt, args).Scan(&a.ID, &a.CreatedAt)
}

// FinalizeDeliveryAttempt transitions a pending attempt to success or failed.
// Finalizing an attempt that already left pending returns ErrAlreadyFinalized;
// an unknown attempt id returns ErrNotFound.
func (s *PostgresStore) FinalizeDeliveryAttempt(
	ctx context.Context,
	id string,
	status domain.DeliveryStatus,
	errorMessage string,
	fileSize *int64,
) error {
	tag, err := s.pool.Exec(ctx, queryFinalizeDeliveryAttempt,
		id, string(status), errorMessage, fileSize,
	)
	if err != nil {
		return fmt.Errorf("finalizing delivery attempt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Zero rows means the attempt either does not exist or already left
		// pending; a second read tells the two apart.
		var current string
		err := s.pool.QueryRow(ctx, queryGetDeliveryAttemptStatus, id).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("checking delivery attempt status: %w", err)
		}
		return ErrAlreadyFinalized
	}
	return nil
}

// ListDeliveryAttempts returns the delivery history for a report, newest first.
func (s *PostgresStore) ListDeliveryAttempts(
	ctx context.Context,
	reportID string,
	limit int,
) ([]domain.DeliveryAttempt, error) {
	rows, err := s.pool.Query(ctx, queryListDeliveryAttempts, reportID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying delivery attempts: %w", err)
	}
	defer rows.Close()

	var attempts []domain.DeliveryAttempt
	for rows.Next() {
		var a domain.DeliveryAttempt
		if err := rows.Scan(
			&a.ID, &a.ReportID, &a.DeliveryFormat, &a.Recipients, &a.Status,
			&a.ErrorMessage, &a.FileSize, &a.DeliveredAt, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning delivery attempt: %w", err)
		}
		attempts = append(attempts, a)
	}

	return attempts, rows.Err()
}

// CreateRule inserts a new threshold rule.
func (s *PostgresStore) CreateRule(ctx context.Context, r *domain.ThresholdRule) error {
	args := pgx.NamedArgs{
		"kpi_id":     r.MetricID,
		"condition":  string(r.Condition),
		"threshold":  r.Threshold,
		"channels":   r.Channels,
		"recipients": r.Recipients,
		"active":     r.Active,
	}

	return s.pool.QueryRow(ctx, queryCreateRule, args).Scan(
		&r.ID, &r.CreatedAt, &r.UpdatedAt,
	)
}

// GetRule retrieves a threshold rule by its ID.
func (s *PostgresStore) GetRule(ctx context.Context, id string) (*domain.ThresholdRule, error) {
	r := &domain.ThresholdRule{}
	if err := scanRule(s.pool.QueryRow(ctx, queryGetRule, id), r); err != nil {
		return nil, notFound(err)
	}
	return r, nil
}

// UpdateRule updates an existing threshold rule.
func (s *PostgresStore) UpdateRule(ctx context.Context, r *domain.ThresholdRule) error {
	args := pgx.NamedArgs{
		"id":         r.ID,
		"condition":  string(r.Condition),
		"threshold":  r.Threshold,
		"channels":   r.Channels,
		"recipients": r.Recipients,
		"active":     r.Active,
	}

	tag, err := s.pool.Exec(ctx, queryUpdateRule, args)
	if err != nil {
		return fmt.Errorf("updating rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteRule removes a threshold rule by its ID.
func (s *PostgresStore) DeleteRule(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, queryDeleteRule, id)
	if err != nil {
		return fmt.Errorf("deleting rule: %w", err)
	}
	return nil
}

// ListRules returns all threshold rules.
func (s *PostgresStore) ListRules(ctx context.Context) ([]domain.ThresholdRule, error) {
	return s.queryRules(ctx, queryListRules)
}

// ListRulesByMetric returns the rules attached to a metric, optionally
// filtered to active rules only.
func (s *PostgresStore) ListRulesByMetric(
	ctx context.Context,
	metricID string,
	activeOnly bool,
) ([]domain.ThresholdRule, error) {
	query := queryListRulesByMetric
	if activeOnly {
		query = queryListRulesByMetricActive
	}
	return s.queryRules(ctx, query, metricID)
}

// InsertAlertTrigger appends a new trigger-history row.
func (s *PostgresStore) InsertAlertTrigger(ctx context.Context, t *domain.AlertTrigger) error {
	args := pgx.NamedArgs{
		"alert_id":     t.RuleID,
		"kpi_id":       t.MetricID,
		"actual_value": t.ActualValue,
		"threshold":    t.Threshold,
		"message":      t.Message,
		"triggered_at": t.TriggeredAt,
	}

	return s.pool.QueryRow(ctx, queryInsertAlertTrigger, args).Scan(&t.ID)
}

// ListAlertTriggers returns trigger history for a metric, newest first.
func (s *PostgresStore) ListAlertTriggers(
	ctx context.Context,
	metricID string,
	limit int,
) ([]domain.AlertTrigger, error) {
	return s.queryTriggers(ctx, queryListAlertTriggers, metricID, limit)
}

// ListAlertTriggersByRule returns trigger history for a rule, newest first.
func (s *PostgresStore) ListAlertTriggersByRule(
	ctx context.Context,
	ruleID string,
	limit int,
) ([]domain.AlertTrigger, error) {
	return s.queryTriggers(ctx, queryListAlertTriggersByRule, ruleID, limit)
}

// CreateMetric inserts a new metric.
func (s *PostgresStore) CreateMetric(ctx context.Context, m *domain.Metric) error {
	args := pgx.NamedArgs{
		"name": m.Name,
		"unit": m.Unit,
	}
	return s.pool.QueryRow(ctx, queryCreateMetric, args).Scan(&m.ID, &m.CreatedAt)
}

// GetMetric retrieves a metric by its ID.
func (s *PostgresStore) GetMetric(ctx context.Context, id string) (*domain.Metric, error) {
	m := &domain.Metric{}
	err := s.pool.QueryRow(ctx, queryGetMetric, id).Scan(&m.ID, &m.Name, &m.Unit, &m.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return m, nil
}

// ListMetrics returns all metrics ordered by name.
func (s *PostgresStore) ListMetrics(ctx context.Context) ([]domain.Metric, error) {
	rows, err := s.pool.Query(ctx, queryListMetrics)
	if err != nil {
		return nil, fmt.Errorf("querying metrics: %w", err)
	}
	defer rows.Close()

	var ms []domain.Metric
	for rows.Next() {
		var m domain.Metric
		if err := rows.Scan(&m.ID, &m.Name, &m.Unit, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning metric: %w", err)
		}
		ms = append(ms, m)
	}

	return ms, rows.Err()
}

// GetSystemState returns a snapshot of aggregate engine counts.
func (s *PostgresStore) GetSystemState(ctx context.Context) (*domain.SystemState, error) {
	st := &domain.SystemState{}
	err := s.pool.QueryRow(ctx, querySystemState).Scan(
		&st.ReportsTotal, &st.ReportsScheduled, &st.BindingsActive,
		&st.DeliveriesPending, &st.DeliveriesFailed,
		&st.RulesTotal, &st.RulesActive, &st.TriggersTotal,
	)
	if err != nil {
		return nil, fmt.Errorf("querying system state: %w", err)
	}
	return st, nil
}

// queryBindings is a helper for binding queries.
func (s *PostgresStore) queryBindings(
	ctx context.Context,
	query string,
	args ...any,
) ([]domain.JobBinding, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying bindings: %w", err)
	}
	defer rows.Close()

	var bindings []domain.JobBinding
	for rows.Next() {
		var b domain.JobBinding
		if err := scanBinding(rows, &b); err != nil {
			return nil, fmt.Errorf("scanning binding: %w", err)
		}
		bindings = append(bindings, b)
	}

	return bindings, rows.Err()
}

// queryRules is a helper for threshold rule queries.
func (s *PostgresStore) queryRules(
	ctx context.Context,
	query string,
	args ...any,
) ([]domain.ThresholdRule, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying rules: %w", err)
	}
	defer rows.Close()

	var rules []domain.ThresholdRule
	for rows.Next() {
		var r domain.ThresholdRule
		if err := scanRule(rows, &r); err != nil {
			return nil, fmt.Errorf("scanning rule: %w", err)
		}
		rules = append(rules, r)
	}

	return rules, rows.Err()
}

// queryTriggers is a helper for alert trigger queries.
func (s *PostgresStore) queryTriggers(
	ctx context.Context,
	query string,
	args ...any,
) ([]domain.AlertTrigger, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying alert triggers: %w", err)
	}
	defer rows.Close()

	var triggers []domain.AlertTrigger
	for rows.Next() {
		var t domain.AlertTrigger
		if err := rows.Scan(
			&t.ID, &t.RuleID, &t.MetricID,
			&t.ActualValue, &t.Threshold, &t.Message, &t.TriggeredAt,
		); err != nil {
			return nil, fmt.Errorf("scanning alert trigger: %w", err)
		}
		triggers = append(triggers, t)
	}

	return triggers, rows.Err()
}

// scannable abstracts pgx.Row and pgx.Rows for reuse.
type scannable interface {
	Scan(dest ...any) error
}

// scanReport scans a scheduled report row, unmarshaling the schedule JSON.
func scanReport(row scannable, r *domain.ScheduledReport) error {
	var scheduleJSON []byte
	if err := row.Scan(
		&r.ID, &r.Name, &r.Frequency, &r.DeliveryFormat, &r.Recipients,
		&r.IsScheduled, &scheduleJSON, &r.LastSentAt, &r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return err
	}
	if len(scheduleJSON) > 0 {
		if err := json.Unmarshal(scheduleJSON, &r.Schedule); err != nil {
			return fmt.Errorf("unmarshaling schedule config: %w", err)
		}
	}
	return nil
}

// scanBinding scans a job binding row.
func scanBinding(row scannable, b *domain.JobBinding) error {
	return row.Scan(
		&b.ID, &b.ReportID, &b.CronExpression, &b.Timezone, &b.IsActive,
		&b.LastRunAt, &b.NextRunAt, &b.CreatedAt, &b.UpdatedAt,
	)
}

// scanRule scans a threshold rule row.
func scanRule(row scannable, r *domain.ThresholdRule) error {
	return row.Scan(
		&r.ID, &r.MetricID, &r.Condition, &r.Threshold,
		&r.Channels, &r.Recipients, &r.Active, &r.CreatedAt, &r.UpdatedAt,
	)
}
