// Package domain defines the core business types for the report dispatch engine.
package domain

import "time"

// ReportFrequency represents how often a scheduled report is delivered.
type ReportFrequency string

// Report frequency constants.
const (
	FrequencyRealtime ReportFrequency = "realtime"
	FrequencyHourly   ReportFrequency = "hourly"
	FrequencyDaily    ReportFrequency = "daily"
	FrequencyWeekly   ReportFrequency = "weekly"
	FrequencyMonthly  ReportFrequency = "monthly"
	FrequencyOnDemand ReportFrequency = "on_demand"
)

// Interval returns the fallback due interval for the frequency. The second
// return value is false for frequencies that are never due automatically.
// Monthly uses a fixed 30-day approximation, not calendar-month arithmetic.
func (f ReportFrequency) Interval() (time.Duration, bool) {
	switch f {
	case FrequencyRealtime, FrequencyHourly:
		return time.Hour, true
	case FrequencyDaily:
		return 24 * time.Hour, true
	case FrequencyWeekly:
		return 7 * 24 * time.Hour, true
	case FrequencyMonthly:
		return 30 * 24 * time.Hour, true
	default:
		return 0, false
	}
}

// Valid reports whether f is a known frequency.
func (f ReportFrequency) Valid() bool {
	switch f {
	case FrequencyRealtime, FrequencyHourly, FrequencyDaily,
		FrequencyWeekly, FrequencyMonthly, FrequencyOnDemand:
		return true
	}
	return false
}

// ScheduleConfig holds the optional delivery-time preferences for a report.
// All fields may be absent; missing values fall back to frequency defaults.
type ScheduleConfig struct {
	DayOfWeek  *int   `json:"day_of_week,omitempty"`  // 0 (Sunday) - 6
	DayOfMonth *int   `json:"day_of_month,omitempty"` // 1 - 28
	TimeOfDay  string `json:"time_of_day,omitempty"`  // "HH:MM", 24-hour
	Timezone   string `json:"timezone,omitempty"`     // IANA name, default UTC
}

// ScheduledReport represents a recurring report whose delivery is time-driven.
type ScheduledReport struct {
	ID             string          `json:"id"                     db:"id"`
	Name           string          `json:"name"                   db:"name"`
	Frequency      ReportFrequency `json:"frequency"              db:"frequency"`
	DeliveryFormat string          `json:"delivery_format"        db:"delivery_format"`
	Recipients     []string        `json:"recipients"             db:"recipients"`
	IsScheduled    bool            `json:"is_scheduled"           db:"is_scheduled"`
	Schedule       ScheduleConfig  `json:"schedule"               db:"schedule"`
	LastSentAt     *time.Time      `json:"last_sent_at,omitempty" db:"last_sent_at"`
	CreatedAt      time.Time       `json:"created_at"             db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"             db:"updated_at"`
}

// JobBinding maps a report to its cron expression and next run time.
// At most one binding exists per report.
type JobBinding struct {
	ID             string     `json:"id"                    db:"id"`
	ReportID       string     `json:"report_id"             db:"report_id"`
	CronExpression string     `json:"cron_expression"       db:"cron_expression"`
	Timezone       string     `json:"timezone"              db:"timezone"`
	IsActive       bool       `json:"is_active"             db:"is_active"`
	LastRunAt      *time.Time `json:"last_run_at,omitempty" db:"last_run_at"`
	NextRunAt      *time.Time `json:"next_run_at,omitempty" db:"next_run_at"`
	CreatedAt      time.Time  `json:"created_at"            db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"            db:"updated_at"`
}

// DeliveryStatus represents the lifecycle state of a delivery attempt.
type DeliveryStatus string

// Delivery status constants. An attempt transitions pending -> success or
// pending -> failed exactly once.
const (
	DeliveryPending DeliveryStatus = "pending"
	DeliverySuccess DeliveryStatus = "success"
	DeliveryFailed  DeliveryStatus = "failed"
)

// DeliveryAttempt is one append-only row in the delivery history of a report.
type DeliveryAttempt struct {
	ID             string         `json:"id"                      db:"id"`
	ReportID       string         `json:"report_id"               db:"report_id"`
	DeliveryFormat string         `json:"delivery_format"         db:"delivery_format"`
	Recipients     []string       `json:"recipients"              db:"recipients"`
	Status         DeliveryStatus `json:"status"                  db:"status"`
	ErrorMessage   string         `json:"error_message,omitempty" db:"error_message"`
	FileSize       *int64         `json:"file_size,omitempty"     db:"file_size"`
	DeliveredAt    *time.Time     `json:"delivered_at,omitempty"  db:"delivered_at"`
	CreatedAt      time.Time      `json:"created_at"              db:"created_at"`
}

// AlertCondition represents the comparison a threshold rule applies.
type AlertCondition string

// Alert condition constants.
const (
	ConditionAboveThreshold AlertCondition = "above_threshold"
	ConditionBelowThreshold AlertCondition = "below_threshold"
	ConditionEquals         AlertCondition = "equals"
	ConditionPercentChange  AlertCondition = "percent_change"
)

// Valid reports whether c is a condition this engine evaluates. The evaluator
// skips unknown conditions rather than rejecting them, so storage accepts any
// string; Valid exists for boundary validation of user input.
func (c AlertCondition) Valid() bool {
	switch c {
	case ConditionAboveThreshold, ConditionBelowThreshold,
		ConditionEquals, ConditionPercentChange:
		return true
	}
	return false
}

// ThresholdRule attaches a condition and notification targets to a metric.
type ThresholdRule struct {
	ID         string         `json:"id"         db:"id"`
	MetricID   string         `json:"metric_id"  db:"metric_id"`
	Condition  AlertCondition `json:"condition"  db:"condition"`
	Threshold  float64        `json:"threshold"  db:"threshold"`
	Channels   []string       `json:"channels"   db:"channels"`
	Recipients []string       `json:"recipients" db:"recipients"`
	Active     bool           `json:"active"     db:"active"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at" db:"updated_at"`
}

// AlertTrigger is one append-only row recording a rule-satisfying evaluation.
type AlertTrigger struct {
	ID          string    `json:"id"           db:"id"`
	RuleID      string    `json:"rule_id"      db:"rule_id"`
	MetricID    string    `json:"metric_id"    db:"metric_id"`
	ActualValue float64   `json:"actual_value" db:"actual_value"`
	Threshold   float64   `json:"threshold"    db:"threshold"`
	Message     string    `json:"message"      db:"message"`
	TriggeredAt time.Time `json:"triggered_at" db:"triggered_at"`
}

// Artifact is a rendered report payload handed from the renderer to the
// deliverer. It never outlives a single delivery attempt.
type Artifact struct {
	Name        string
	ContentType string
	Data        []byte
}

// Metric is the reference data for a tracked numeric metric.
type Metric struct {
	ID        string    `json:"id"             db:"id"`
	Name      string    `json:"name"           db:"name"`
	Unit      string    `json:"unit,omitempty" db:"unit"`
	CreatedAt time.Time `json:"created_at"     db:"created_at"`
}

// TriggeredAlert is the evaluator's summary of one satisfied rule. It carries
// the rule's channels and recipients so a notifier can dispatch without
// re-querying the rule store.
type TriggeredAlert struct {
	RuleID      string         `json:"rule_id"`
	MetricID    string         `json:"metric_id"`
	MetricName  string         `json:"metric_name"`
	Condition   AlertCondition `json:"condition"`
	ActualValue float64        `json:"actual_value"`
	Threshold   float64        `json:"threshold"`
	Message     string         `json:"message"`
	Channels    []string       `json:"channels"`
	Recipients  []string       `json:"recipients"`
}

// EvaluationEntry is one metric reading submitted for evaluation.
type EvaluationEntry struct {
	MetricID string   `json:"metric_id"`
	Value    float64  `json:"value"`
	Baseline *float64 `json:"baseline,omitempty"`
}

// EvaluationResult summarizes the evaluation of one metric reading. In batch
// evaluation a per-entry failure is captured in Error and does not abort the
// other entries.
type EvaluationResult struct {
	MetricID        string           `json:"metric_id"`
	AlertsChecked   int              `json:"alerts_checked"`
	TriggeredAlerts []TriggeredAlert `json:"triggered_alerts"`
	Error           string           `json:"error,omitempty"`
}

// SystemState holds a precomputed snapshot of aggregate engine counts.
type SystemState struct {
	ReportsTotal      int `json:"reports_total"      db:"reports_total"`
	ReportsScheduled  int `json:"reports_scheduled"  db:"reports_scheduled"`
	BindingsActive    int `json:"bindings_active"    db:"bindings_active"`
	DeliveriesPending int `json:"deliveries_pending" db:"deliveries_pending"`
	DeliveriesFailed  int `json:"deliveries_failed"  db:"deliveries_failed"`
	RulesTotal        int `json:"rules_total"        db:"rules_total"`
	RulesActive       int `json:"rules_active"       db:"rules_active"`
	TriggersTotal     int `json:"triggers_total"     db:"triggers_total"`
}
