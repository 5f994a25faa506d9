package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	domain "github.com/donaldgifford/report-dispatch/pkg/types"
)

// tabWriter wraps tabwriter with error tracking.
type tabWriter struct {
	*tabwriter.Writer
	err error
}

func newTabWriter(w io.Writer) *tabWriter {
	return &tabWriter{Writer: tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)}
}

func (tw *tabWriter) writef(format string, args ...any) {
	if tw.err != nil {
		return
	}
	_, tw.err = fmt.Fprintf(tw.Writer, format, args...)
}

func (tw *tabWriter) finish() error {
	if tw.err != nil {
		return tw.err
	}
	return tw.Flush()
}

func printReportTable(reports []domain.ScheduledReport) error {
	tw := newTabWriter(os.Stdout)
	tw.writef("ID\tNAME\tFREQUENCY\tFORMAT\tSCHEDULED\tLAST SENT\n")
	for i := range reports {
		r := &reports[i]
		lastSent := "-"
		if r.LastSentAt != nil {
			lastSent = r.LastSentAt.Format("2006-01-02 15:04:05")
		}
		tw.writef("%s\t%s\t%s\t%s\t%v\t%s\n",
			r.ID,
			r.Name,
			r.Frequency,
			r.DeliveryFormat,
			r.IsScheduled,
			lastSent,
		)
	}
	return tw.finish()
}

func printReportDetail(r *domain.ScheduledReport) error {
	tw := newTabWriter(os.Stdout)
	tw.writef("ID:\t%s\n", r.ID)
	tw.writef("Name:\t%s\n", r.Name)
	tw.writef("Frequency:\t%s\n", r.Frequency)
	tw.writef("Format:\t%s\n", r.DeliveryFormat)
	tw.writef("Recipients:\t%s\n", joinRecipients(r.Recipients))
	tw.writef("Scheduled:\t%v\n", r.IsScheduled)
	if r.Schedule.TimeOfDay != "" {
		tw.writef("Time of day:\t%s\n", r.Schedule.TimeOfDay)
	}
	if r.Schedule.DayOfWeek != nil {
		tw.writef("Day of week:\t%d\n", *r.Schedule.DayOfWeek)
	}
	if r.Schedule.DayOfMonth != nil {
		tw.writef("Day of month:\t%d\n", *r.Schedule.DayOfMonth)
	}
	if r.Schedule.Timezone != "" {
		tw.writef("Timezone:\t%s\n", r.Schedule.Timezone)
	}
	if r.LastSentAt != nil {
		tw.writef("Last sent:\t%s\n", r.LastSentAt.Format("2006-01-02 15:04:05"))
	}
	return tw.finish()
}

func printAttemptTable(attempts []domain.DeliveryAttempt) error {
	tw := newTabWriter(os.Stdout)
	tw.writef("ID\tSTATUS\tCREATED\tDELIVERED\tSIZE\tERROR\n")
	for i := range attempts {
		a := &attempts[i]
		delivered := "-"
		if a.DeliveredAt != nil {
			delivered = a.DeliveredAt.Format("2006-01-02 15:04:05")
		}
		size := "-"
		if a.FileSize != nil {
			size = fmt.Sprintf("%d", *a.FileSize)
		}
		tw.writef("%s\t%s\t%s\t%s\t%s\t%s\n",
			a.ID,
			a.Status,
			a.CreatedAt.Format("2006-01-02 15:04:05"),
			delivered,
			size,
			truncate(a.ErrorMessage, 40),
		)
	}
	return tw.finish()
}

func printBindingDetail(b *domain.JobBinding) error {
	tw := newTabWriter(os.Stdout)
	tw.writef("ID:\t%s\n", b.ID)
	tw.writef("Report:\t%s\n", b.ReportID)
	tw.writef("Cron:\t%s\n", b.CronExpression)
	tw.writef("Timezone:\t%s\n", b.Timezone)
	tw.writef("Active:\t%v\n", b.IsActive)
	if b.LastRunAt != nil {
		tw.writef("Last run:\t%s\n", b.LastRunAt.Format("2006-01-02 15:04:05"))
	}
	if b.NextRunAt != nil {
		tw.writef("Next run:\t%s\n", b.NextRunAt.Format("2006-01-02 15:04:05"))
	}
	return tw.finish()
}

func printRuleTable(rules []domain.ThresholdRule) error {
	tw := newTabWriter(os.Stdout)
	tw.writef("ID\tMETRIC\tCONDITION\tTHRESHOLD\tCHANNELS\tACTIVE\n")
	for i := range rules {
		r := &rules[i]
		tw.writef("%s\t%s\t%s\t%.2f\t%s\t%v\n",
			r.ID,
			r.MetricID,
			r.Condition,
			r.Threshold,
			joinRecipients(r.Channels),
			r.Active,
		)
	}
	return tw.finish()
}

func printRuleDetail(r *domain.ThresholdRule) error {
	tw := newTabWriter(os.Stdout)
	tw.writef("ID:\t%s\n", r.ID)
	tw.writef("Metric:\t%s\n", r.MetricID)
	tw.writef("Condition:\t%s\n", r.Condition)
	tw.writef("Threshold:\t%.2f\n", r.Threshold)
	tw.writef("Channels:\t%s\n", joinRecipients(r.Channels))
	tw.writef("Recipients:\t%s\n", joinRecipients(r.Recipients))
	tw.writef("Active:\t%v\n", r.Active)
	return tw.finish()
}

func printTriggerTable(triggers []domain.AlertTrigger) error {
	tw := newTabWriter(os.Stdout)
	tw.writef("TRIGGERED\tVALUE\tTHRESHOLD\tMESSAGE\n")
	for i := range triggers {
		t := &triggers[i]
		tw.writef("%s\t%.2f\t%.2f\t%s\n",
			t.TriggeredAt.Format("2006-01-02 15:04:05"),
			t.ActualValue,
			t.Threshold,
			truncate(t.Message, 60),
		)
	}
	return tw.finish()
}

func printMetricTable(metrics []domain.Metric) error {
	tw := newTabWriter(os.Stdout)
	tw.writef("ID\tNAME\tUNIT\n")
	for i := range metrics {
		unit := metrics[i].Unit
		if unit == "" {
			unit = "-"
		}
		tw.writef("%s\t%s\t%s\n", metrics[i].ID, metrics[i].Name, unit)
	}
	return tw.finish()
}

func printSystemState(s *domain.SystemState) error {
	tw := newTabWriter(os.Stdout)
	tw.writef("Reports:\t%d (%d scheduled)\n", s.ReportsTotal, s.ReportsScheduled)
	tw.writef("Active bindings:\t%d\n", s.BindingsActive)
	tw.writef("Pending deliveries:\t%d\n", s.DeliveriesPending)
	tw.writef("Failed deliveries:\t%d\n", s.DeliveriesFailed)
	tw.writef("Rules:\t%d (%d active)\n", s.RulesTotal, s.RulesActive)
	tw.writef("Triggers recorded:\t%d\n", s.TriggersTotal)
	return tw.finish()
}

func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
