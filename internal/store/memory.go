package store

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	domain "github.com/donaldgifford/report-dispatch/pkg/types"
)

// MemoryStore is an in-memory Store implementation. It backs unit tests and
// local development; production deployments use PostgresStore.
type MemoryStore struct {
	mu sync.RWMutex

	reports  map[string]*domain.ScheduledReport
	bindings map[string]*domain.JobBinding // keyed by report ID
	attempts []*domain.DeliveryAttempt
	rules    map[string]*domain.ThresholdRule
	triggers []*domain.AlertTrigger
	metrics  map[string]*domain.Metric

	clock func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		reports:  make(map[string]*domain.ScheduledReport),
		bindings: make(map[string]*domain.JobBinding),
		rules:    make(map[string]*domain.ThresholdRule),
		metrics:  make(map[string]*domain.Metric),
		clock:    time.Now,
	}
}

// SetClock overrides the store's notion of now. Test hook.
func (s *MemoryStore) SetClock(clock func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = clock
}

// CreateReport inserts a new scheduled report.
func (s *MemoryStore) CreateReport(_ context.Context, r *domain.ScheduledReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := s.clock()
	r.CreatedAt = now
	r.UpdatedAt = now

	cp := *r
	s.reports[r.ID] = &cp
	return nil
}

// GetReport retrieves a scheduled report by its ID.
func (s *MemoryStore) GetReport(_ context.Context, id string) (*domain.ScheduledReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reports[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

// ListReports returns all reports, optionally filtered to scheduled only.
func (s *MemoryStore) ListReports(
	_ context.Context,
	scheduledOnly bool,
) ([]domain.ScheduledReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.ScheduledReport
	for _, r := range s.reports {
		if scheduledOnly && !r.IsScheduled {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// UpdateReport updates a report's definition.
func (s *MemoryStore) UpdateReport(_ context.Context, r *domain.ScheduledReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.reports[r.ID]
	if !ok {
		return ErrNotFound
	}
	existing.Name = r.Name
	existing.Frequency = r.Frequency
	existing.DeliveryFormat = r.DeliveryFormat
	existing.Recipients = slices.Clone(r.Recipients)
	existing.Schedule = r.Schedule
	existing.UpdatedAt = s.clock()
	*r = *existing
	return nil
}

// SetReportScheduled enables or disables automatic delivery for a report.
func (s *MemoryStore) SetReportScheduled(_ context.Context, id string, scheduled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reports[id]
	if !ok {
		return ErrNotFound
	}
	r.IsScheduled = scheduled
	r.UpdatedAt = s.clock()
	return nil
}

// UpdateReportLastSent advances the last_sent_at timestamp for a report.
func (s *MemoryStore) UpdateReportLastSent(_ context.Context, id string, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reports[id]
	if !ok {
		return ErrNotFound
	}
	sent := t
	r.LastSentAt = &sent
	r.UpdatedAt = s.clock()
	return nil
}

// UpsertBinding inserts or updates the 1:1 job binding for a report.
func (s *MemoryStore) UpsertBinding(_ context.Context, b *domain.JobBinding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	if existing, ok := s.bindings[b.ReportID]; ok {
		existing.CronExpression = b.CronExpression
		existing.Timezone = b.Timezone
		existing.IsActive = b.IsActive
		existing.NextRunAt = b.NextRunAt
		existing.UpdatedAt = now
		*b = *existing
		return nil
	}

	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	b.CreatedAt = now
	b.UpdatedAt = now

	cp := *b
	s.bindings[b.ReportID] = &cp
	return nil
}

// GetBindingByReport retrieves the binding for a report, if any.
func (s *MemoryStore) GetBindingByReport(
	_ context.Context,
	reportID string,
) (*domain.JobBinding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bindings[reportID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *b
	return &cp, nil
}

// ListBindings returns all bindings, optionally filtered to active only.
func (s *MemoryStore) ListBindings(
	_ context.Context,
	activeOnly bool,
) ([]domain.JobBinding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.JobBinding
	for _, b := range s.bindings {
		if activeOnly && !b.IsActive {
			continue
		}
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ListDueBindings returns active bindings whose next_run_at has been reached.
func (s *MemoryStore) ListDueBindings(
	_ context.Context,
	now time.Time,
) ([]domain.JobBinding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.JobBinding
	for _, b := range s.bindings {
		if !b.IsActive || b.NextRunAt == nil || b.NextRunAt.After(now) {
			continue
		}
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextRunAt.Before(*out[j].NextRunAt) })
	return out, nil
}

// UpdateBindingRun records a run and the recomputed next run time.
func (s *MemoryStore) UpdateBindingRun(
	_ context.Context,
	id string,
	lastRun, nextRun time.Time,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range s.bindings {
		if b.ID == id {
			last, next := lastRun, nextRun
			b.LastRunAt = &last
			b.NextRunAt = &next
			b.UpdatedAt = s.clock()
			return nil
		}
	}
	return ErrNotFound
}

// SetBindingActive activates or deactivates the binding for a report.
func (s *MemoryStore) SetBindingActive(_ context.Context, reportID string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bindings[reportID]
	if !ok {
		return ErrNotFound
	}
	b.IsActive = active
	b.UpdatedAt = s.clock()
	return nil
}

// DeleteBinding removes the binding for a report.
func (s *MemoryStore) DeleteBinding(_ context.Context, reportID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.bindings, reportID)
	return nil
}

// InsertDeliveryAttempt appends a new delivery attempt row.
func (s *MemoryStore) InsertDeliveryAttempt(
	_ context.Context,
	a *domain.DeliveryAttempt,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.CreatedAt = s.clock()

	cp := *a
	cp.Recipients = slices.Clone(a.Recipients)
	s.attempts = append(s.attempts, &cp)
	return nil
}

// FinalizeDeliveryAttempt transitions a pending attempt to success or failed.
func (s *MemoryStore) FinalizeDeliveryAttempt(
	_ context.Context,
	id string,
	status domain.DeliveryStatus,
	errorMessage string,
	fileSize *int64,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.attempts {
		if a.ID != id {
			continue
		}
		if a.Status != domain.DeliveryPending {
			return ErrAlreadyFinalized
		}
		a.Status = status
		a.ErrorMessage = errorMessage
		a.FileSize = fileSize
		now := s.clock()
		a.DeliveredAt = &now
		return nil
	}
	return ErrNotFound
}

// ListDeliveryAttempts returns the delivery history for a report, newest first.
func (s *MemoryStore) ListDeliveryAttempts(
	_ context.Context,
	reportID string,
	limit int,
) ([]domain.DeliveryAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.DeliveryAttempt
	for i := len(s.attempts) - 1; i >= 0; i-- {
		if s.attempts[i].ReportID != reportID {
			continue
		}
		out = append(out, *s.attempts[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// CreateRule inserts a new threshold rule.
func (s *MemoryStore) CreateRule(_ context.Context, r *domain.ThresholdRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := s.clock()
	r.CreatedAt = now
	r.UpdatedAt = now

	cp := *r
	cp.Channels = slices.Clone(r.Channels)
	cp.Recipients = slices.Clone(r.Recipients)
	s.rules[r.ID] = &cp
	return nil
}

// GetRule retrieves a threshold rule by its ID.
func (s *MemoryStore) GetRule(_ context.Context, id string) (*domain.ThresholdRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rules[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

// UpdateRule updates an existing threshold rule.
func (s *MemoryStore) UpdateRule(_ context.Context, r *domain.ThresholdRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.rules[r.ID]
	if !ok {
		return ErrNotFound
	}
	existing.Condition = r.Condition
	existing.Threshold = r.Threshold
	existing.Channels = slices.Clone(r.Channels)
	existing.Recipients = slices.Clone(r.Recipients)
	existing.Active = r.Active
	existing.UpdatedAt = s.clock()
	return nil
}

// DeleteRule removes a threshold rule by its ID.
func (s *MemoryStore) DeleteRule(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.rules, id)
	return nil
}

// ListRules returns all threshold rules.
func (s *MemoryStore) ListRules(_ context.Context) ([]domain.ThresholdRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.ThresholdRule
	for _, r := range s.rules {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ListRulesByMetric returns the rules attached to a metric.
func (s *MemoryStore) ListRulesByMetric(
	_ context.Context,
	metricID string,
	activeOnly bool,
) ([]domain.ThresholdRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.ThresholdRule
	for _, r := range s.rules {
		if r.MetricID != metricID {
			continue
		}
		if activeOnly && !r.Active {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// InsertAlertTrigger appends a new trigger-history row.
func (s *MemoryStore) InsertAlertTrigger(_ context.Context, t *domain.AlertTrigger) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	cp := *t
	s.triggers = append(s.triggers, &cp)
	return nil
}

// ListAlertTriggers returns trigger history for a metric, newest first.
func (s *MemoryStore) ListAlertTriggers(
	_ context.Context,
	metricID string,
	limit int,
) ([]domain.AlertTrigger, error) {
	return s.filterTriggers(func(t *domain.AlertTrigger) bool {
		return t.MetricID == metricID
	}, limit), nil
}

// ListAlertTriggersByRule returns trigger history for a rule, newest first.
func (s *MemoryStore) ListAlertTriggersByRule(
	_ context.Context,
	ruleID string,
	limit int,
) ([]domain.AlertTrigger, error) {
	return s.filterTriggers(func(t *domain.AlertTrigger) bool {
		return t.RuleID == ruleID
	}, limit), nil
}

func (s *MemoryStore) filterTriggers(
	match func(*domain.AlertTrigger) bool,
	limit int,
) []domain.AlertTrigger {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.AlertTrigger
	for i := len(s.triggers) - 1; i >= 0; i-- {
		if !match(s.triggers[i]) {
			continue
		}
		out = append(out, *s.triggers[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// CreateMetric inserts a new metric.
func (s *MemoryStore) CreateMetric(_ context.Context, m *domain.Metric) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.CreatedAt = s.clock()

	cp := *m
	s.metrics[m.ID] = &cp
	return nil
}

// GetMetric retrieves a metric by its ID.
func (s *MemoryStore) GetMetric(_ context.Context, id string) (*domain.Metric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.metrics[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m
	return &cp, nil
}

// ListMetrics returns all metrics ordered by name.
func (s *MemoryStore) ListMetrics(_ context.Context) ([]domain.Metric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Metric
	for _, m := range s.metrics {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// GetSystemState returns a snapshot of aggregate engine counts.
func (s *MemoryStore) GetSystemState(_ context.Context) (*domain.SystemState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := &domain.SystemState{
		ReportsTotal:  len(s.reports),
		RulesTotal:    len(s.rules),
		TriggersTotal: len(s.triggers),
	}
	for _, r := range s.reports {
		if r.IsScheduled {
			st.ReportsScheduled++
		}
	}
	for _, b := range s.bindings {
		if b.IsActive {
			st.BindingsActive++
		}
	}
	for _, a := range s.attempts {
		switch a.Status {
		case domain.DeliveryPending:
			st.DeliveriesPending++
		case domain.DeliveryFailed:
			st.DeliveriesFailed++
		}
	}
	for _, r := range s.rules {
		if r.Active {
			st.RulesActive++
		}
	}
	return st, nil
}

// Migrate is a no-op for the in-memory store.
func (s *MemoryStore) Migrate(_ context.Context) error {
	return nil
}

// Ping always succeeds for the in-memory store.
func (s *MemoryStore) Ping(_ context.Context) error {
	return nil
}
