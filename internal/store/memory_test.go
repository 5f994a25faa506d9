package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/report-dispatch/internal/store"
	domain "github.com/donaldgifford/report-dispatch/pkg/types"
)

func TestMemoryStore_ImplementsStore(t *testing.T) {
	t.Parallel()
	var _ store.Store = store.NewMemoryStore()
}

func TestMemoryStore_ReportLifecycle(t *testing.T) {
	t.Parallel()

	s := store.NewMemoryStore()
	ctx := context.Background()

	r := &domain.ScheduledReport{
		Name:        "Daily Sales",
		Frequency:   domain.FrequencyDaily,
		IsScheduled: true,
	}
	require.NoError(t, s.CreateReport(ctx, r))
	require.NotEmpty(t, r.ID)

	got, err := s.GetReport(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "Daily Sales", got.Name)

	// Mutating the returned copy must not touch the stored row.
	got.Name = "mutated"
	again, err := s.GetReport(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "Daily Sales", again.Name)

	sent := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, s.UpdateReportLastSent(ctx, r.ID, sent))

	got, err = s.GetReport(ctx, r.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastSentAt)
	assert.True(t, got.LastSentAt.Equal(sent))

	require.NoError(t, s.SetReportScheduled(ctx, r.ID, false))
	scheduled, err := s.ListReports(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, scheduled)

	_, err = s.GetReport(ctx, "ghost")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMemoryStore_FinalizeDeliveryAttempt(t *testing.T) {
	t.Parallel()

	s := store.NewMemoryStore()
	ctx := context.Background()

	a := &domain.DeliveryAttempt{ReportID: "r1", Status: domain.DeliveryPending}
	require.NoError(t, s.InsertDeliveryAttempt(ctx, a))

	size := int64(1024)
	require.NoError(t, s.FinalizeDeliveryAttempt(ctx, a.ID, domain.DeliverySuccess, "", &size))

	// Exactly-once transition.
	err := s.FinalizeDeliveryAttempt(ctx, a.ID, domain.DeliveryFailed, "late", nil)
	assert.ErrorIs(t, err, store.ErrAlreadyFinalized)

	err = s.FinalizeDeliveryAttempt(ctx, "ghost", domain.DeliverySuccess, "", nil)
	assert.ErrorIs(t, err, store.ErrNotFound)

	attempts, err := s.ListDeliveryAttempts(ctx, "r1", 10)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, domain.DeliverySuccess, attempts[0].Status)
	require.NotNil(t, attempts[0].DeliveredAt)
}

func TestMemoryStore_DueBindings(t *testing.T) {
	t.Parallel()

	s := store.NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	due := &domain.JobBinding{
		ReportID:       "r1",
		CronExpression: "0 * * * *",
		IsActive:       true,
		NextRunAt:      &past,
	}
	notYet := &domain.JobBinding{
		ReportID:       "r2",
		CronExpression: "0 * * * *",
		IsActive:       true,
		NextRunAt:      &future,
	}
	inactive := &domain.JobBinding{
		ReportID:       "r3",
		CronExpression: "0 * * * *",
		IsActive:       false,
		NextRunAt:      &past,
	}
	for _, b := range []*domain.JobBinding{due, notYet, inactive} {
		require.NoError(t, s.UpsertBinding(ctx, b))
	}

	got, err := s.ListDueBindings(ctx, now)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "r1", got[0].ReportID)

	// Advancing the run clears it from the due set.
	require.NoError(t, s.UpdateBindingRun(ctx, due.ID, now, future))

	got, err = s.ListDueBindings(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryStore_TriggerHistoryNewestFirst(t *testing.T) {
	t.Parallel()

	s := store.NewMemoryStore()
	ctx := context.Background()

	for i := range 3 {
		require.NoError(t, s.InsertAlertTrigger(ctx, &domain.AlertTrigger{
			RuleID:      "rule-1",
			MetricID:    "metric-1",
			ActualValue: float64(i),
		}))
	}

	got, err := s.ListAlertTriggers(ctx, "metric-1", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.InDelta(t, 2, got[0].ActualValue, 0.001)
	assert.InDelta(t, 1, got[1].ActualValue, 0.001)
}

func TestMemoryStore_SystemState(t *testing.T) {
	t.Parallel()

	s := store.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.CreateReport(ctx, &domain.ScheduledReport{
		Name: "a", Frequency: domain.FrequencyDaily, IsScheduled: true,
	}))
	require.NoError(t, s.CreateReport(ctx, &domain.ScheduledReport{
		Name: "b", Frequency: domain.FrequencyOnDemand,
	}))
	require.NoError(t, s.CreateRule(ctx, &domain.ThresholdRule{
		MetricID: "m1", Condition: domain.ConditionEquals, Active: true,
	}))
	require.NoError(t, s.InsertDeliveryAttempt(ctx, &domain.DeliveryAttempt{
		ReportID: "r1", Status: domain.DeliveryFailed,
	}))

	state, err := s.GetSystemState(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, state.ReportsTotal)
	assert.Equal(t, 1, state.ReportsScheduled)
	assert.Equal(t, 1, state.RulesTotal)
	assert.Equal(t, 1, state.RulesActive)
	assert.Equal(t, 1, state.DeliveriesFailed)
	assert.Zero(t, state.DeliveriesPending)
}
