package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/report-dispatch/internal/store"
	domain "github.com/donaldgifford/report-dispatch/pkg/types"
)

func intPtr(v int) *int { return &v }

func TestCronForReport(t *testing.T) {
	tests := []struct {
		name     string
		report   domain.ScheduledReport
		wantExpr string
		wantOK   bool
	}{
		{
			name:     "hourly runs on the hour",
			report:   domain.ScheduledReport{Frequency: domain.FrequencyHourly},
			wantExpr: "0 * * * *",
			wantOK:   true,
		},
		{
			name:     "realtime runs every five minutes",
			report:   domain.ScheduledReport{Frequency: domain.FrequencyRealtime},
			wantExpr: "*/5 * * * *",
			wantOK:   true,
		},
		{
			name:     "daily defaults to 08:00",
			report:   domain.ScheduledReport{Frequency: domain.FrequencyDaily},
			wantExpr: "0 8 * * *",
			wantOK:   true,
		},
		{
			name: "daily honors time_of_day",
			report: domain.ScheduledReport{
				Frequency: domain.FrequencyDaily,
				Schedule:  domain.ScheduleConfig{TimeOfDay: "17:30"},
			},
			wantExpr: "30 17 * * *",
			wantOK:   true,
		},
		{
			name: "invalid time_of_day falls back to 08:00",
			report: domain.ScheduledReport{
				Frequency: domain.FrequencyDaily,
				Schedule:  domain.ScheduleConfig{TimeOfDay: "25:99"},
			},
			wantExpr: "0 8 * * *",
			wantOK:   true,
		},
		{
			name: "weekly defaults to Monday",
			report: domain.ScheduledReport{
				Frequency: domain.FrequencyWeekly,
				Schedule:  domain.ScheduleConfig{TimeOfDay: "09:15"},
			},
			wantExpr: "15 9 * * 1",
			wantOK:   true,
		},
		{
			name: "weekly honors day_of_week",
			report: domain.ScheduledReport{
				Frequency: domain.FrequencyWeekly,
				Schedule:  domain.ScheduleConfig{DayOfWeek: intPtr(5)},
			},
			wantExpr: "0 8 * * 5",
			wantOK:   true,
		},
		{
			name: "monthly honors day_of_month",
			report: domain.ScheduledReport{
				Frequency: domain.FrequencyMonthly,
				Schedule:  domain.ScheduleConfig{DayOfMonth: intPtr(15)},
			},
			wantExpr: "0 8 15 * *",
			wantOK:   true,
		},
		{
			name: "monthly rejects out-of-range day_of_month",
			report: domain.ScheduledReport{
				Frequency: domain.FrequencyMonthly,
				Schedule:  domain.ScheduleConfig{DayOfMonth: intPtr(31)},
			},
			wantExpr: "0 8 1 * *",
			wantOK:   true,
		},
		{
			name:   "on_demand has no cron",
			report: domain.ScheduledReport{Frequency: domain.FrequencyOnDemand},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, ok := CronForReport(&tt.report)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantExpr, expr)
			}
		})
	}
}

func TestSyncBindingCreatesActiveBinding(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	report := &domain.ScheduledReport{
		Name:        "weekly revenue",
		Frequency:   domain.FrequencyDaily,
		IsScheduled: true,
		Schedule:    domain.ScheduleConfig{TimeOfDay: "06:00"},
	}
	require.NoError(t, mem.CreateReport(ctx, report))

	b, err := SyncBinding(ctx, mem, report, now)
	require.NoError(t, err)
	require.NotNil(t, b)

	assert.Equal(t, "0 6 * * *", b.CronExpression)
	assert.True(t, b.IsActive)
	require.NotNil(t, b.NextRunAt)
	assert.Equal(t, time.Date(2026, 3, 11, 6, 0, 0, 0, time.UTC), b.NextRunAt.UTC())

	stored, err := mem.GetBindingByReport(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, b.CronExpression, stored.CronExpression)
}

func TestSyncBindingUpdatesExistingBinding(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	report := &domain.ScheduledReport{
		Name:        "ops digest",
		Frequency:   domain.FrequencyHourly,
		IsScheduled: true,
	}
	require.NoError(t, mem.CreateReport(ctx, report))

	first, err := SyncBinding(ctx, mem, report, now)
	require.NoError(t, err)

	report.Frequency = domain.FrequencyWeekly
	second, err := SyncBinding(ctx, mem, report, now)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "0 8 * * 1", second.CronExpression)
}

func TestSyncBindingDeactivatesOnDemand(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	now := time.Now()

	report := &domain.ScheduledReport{
		Name:        "ad-hoc export",
		Frequency:   domain.FrequencyDaily,
		IsScheduled: true,
	}
	require.NoError(t, mem.CreateReport(ctx, report))

	_, err := SyncBinding(ctx, mem, report, now)
	require.NoError(t, err)

	report.Frequency = domain.FrequencyOnDemand
	b, err := SyncBinding(ctx, mem, report, now)
	require.NoError(t, err)
	assert.Nil(t, b)

	stored, err := mem.GetBindingByReport(ctx, report.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
}

func TestSyncBindingNoBindingToDeactivate(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()

	report := &domain.ScheduledReport{
		ID:        "never-bound",
		Frequency: domain.FrequencyOnDemand,
	}

	b, err := SyncBinding(ctx, mem, report, time.Now())
	assert.NoError(t, err)
	assert.Nil(t, b)
}

func TestSyncBindingRejectsBadTimezone(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()

	report := &domain.ScheduledReport{
		ID:          "tz",
		Frequency:   domain.FrequencyDaily,
		IsScheduled: true,
		Schedule:    domain.ScheduleConfig{Timezone: "Mars/Olympus"},
	}

	_, err := SyncBinding(ctx, mem, report, time.Now())
	assert.Error(t, err)
}
