package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/donaldgifford/report-dispatch/internal/cronexpr"
	"github.com/donaldgifford/report-dispatch/internal/store"
	domain "github.com/donaldgifford/report-dispatch/pkg/types"
)

// BindingStore is the slice of the store the binding maintainer needs.
type BindingStore interface {
	UpsertBinding(ctx context.Context, b *domain.JobBinding) error
	SetBindingActive(ctx context.Context, reportID string, active bool) error
}

// CronForReport derives the cron expression for a report from its frequency
// and schedule preferences. The second return value is false for frequencies
// that never run on a binding (on_demand, unknown values).
func CronForReport(r *domain.ScheduledReport) (string, bool) {
	hour, minute := scheduledTime(r.Schedule.TimeOfDay)

	switch r.Frequency {
	case domain.FrequencyRealtime:
		return "*/5 * * * *", true
	case domain.FrequencyHourly:
		return "0 * * * *", true
	case domain.FrequencyDaily:
		return fmt.Sprintf("%d %d * * *", minute, hour), true
	case domain.FrequencyWeekly:
		dow := 1 // Monday
		if r.Schedule.DayOfWeek != nil && *r.Schedule.DayOfWeek >= 0 && *r.Schedule.DayOfWeek <= 6 {
			dow = *r.Schedule.DayOfWeek
		}
		return fmt.Sprintf("%d %d * * %d", minute, hour, dow), true
	case domain.FrequencyMonthly:
		dom := 1
		if r.Schedule.DayOfMonth != nil && *r.Schedule.DayOfMonth >= 1 && *r.Schedule.DayOfMonth <= 28 {
			dom = *r.Schedule.DayOfMonth
		}
		return fmt.Sprintf("%d %d %d * *", minute, hour, dom), true
	default:
		return "", false
	}
}

// scheduledTime parses an "HH:MM" preference, falling back to 08:00.
func scheduledTime(timeOfDay string) (hour, minute int) {
	hour, minute = 8, 0
	parts := strings.SplitN(timeOfDay, ":", 2)
	if len(parts) != 2 {
		return hour, minute
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 8, 0
	}
	return h, m
}

// SyncBinding reconciles the 1:1 job binding for a report with its current
// frequency and schedule. Reports that should not run on a cron (on_demand,
// or delivery disabled) get their binding deactivated rather than deleted so
// run history survives a toggle.
func SyncBinding(
	ctx context.Context,
	s BindingStore,
	r *domain.ScheduledReport,
	now time.Time,
) (*domain.JobBinding, error) {
	expr, ok := CronForReport(r)
	if !ok || !r.IsScheduled {
		if err := s.SetBindingActive(ctx, r.ID, false); err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("deactivating binding for report %s: %w", r.ID, err)
		}
		return nil, nil
	}

	tz := r.Schedule.Timezone
	if err := cronexpr.Validate(expr, tz); err != nil {
		return nil, fmt.Errorf("validating schedule for report %s: %w", r.ID, err)
	}

	next, err := cronexpr.Next(expr, tz, now)
	if err != nil {
		return nil, fmt.Errorf("computing next run for report %s: %w", r.ID, err)
	}

	b := &domain.JobBinding{
		ReportID:       r.ID,
		CronExpression: expr,
		Timezone:       tz,
		IsActive:       true,
		NextRunAt:      &next,
	}
	if err := s.UpsertBinding(ctx, b); err != nil {
		return nil, fmt.Errorf("upserting binding for report %s: %w", r.ID, err)
	}
	return b, nil
}
