// Package engine implements the scheduling, delivery, and alert-evaluation
// core of report-dispatch.
package engine

import (
	"time"

	domain "github.com/donaldgifford/report-dispatch/pkg/types"
)

// FindDue filters candidates down to the reports due for delivery at now,
// using per-frequency fallback intervals. A report with no recorded delivery
// is always due. Reports whose frequency carries no interval (on_demand,
// unknown values) are never due.
func FindDue(candidates []domain.ScheduledReport, now time.Time) []domain.ScheduledReport {
	var due []domain.ScheduledReport
	for _, r := range candidates {
		if !r.IsScheduled {
			continue
		}
		interval, ok := r.Frequency.Interval()
		if !ok {
			continue
		}
		if r.LastSentAt == nil || now.Sub(*r.LastSentAt) >= interval {
			due = append(due, r)
		}
	}
	return due
}
