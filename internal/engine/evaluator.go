package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/donaldgifford/report-dispatch/internal/metrics"
	domain "github.com/donaldgifford/report-dispatch/pkg/types"
)

// EvaluatorStore is the slice of the store the alert evaluator needs.
type EvaluatorStore interface {
	GetMetric(ctx context.Context, id string) (*domain.Metric, error)
	ListRulesByMetric(
		ctx context.Context,
		metricID string,
		activeOnly bool,
	) ([]domain.ThresholdRule, error)
	InsertAlertTrigger(ctx context.Context, t *domain.AlertTrigger) error
}

// Evaluator checks metric readings against their active threshold rules and
// records a trigger-history row per satisfied rule. It does not dispatch
// notifications; callers hand the returned alerts to a notifier.
type Evaluator struct {
	store EvaluatorStore
	log   *slog.Logger
	clock func() time.Time
}

// NewEvaluator creates an alert evaluator.
func NewEvaluator(s EvaluatorStore, log *slog.Logger) *Evaluator {
	return &Evaluator{store: s, log: log, clock: time.Now}
}

// Evaluate checks one metric reading against the metric's active rules.
// Rules with unknown conditions, or percent_change rules missing a usable
// baseline, are skipped silently. A metric with no active rules yields an
// empty result, not an error.
func (e *Evaluator) Evaluate(
	ctx context.Context,
	entry domain.EvaluationEntry,
) (*domain.EvaluationResult, error) {
	metrics.EvaluationsTotal.Inc()

	metric, err := e.store.GetMetric(ctx, entry.MetricID)
	if err != nil {
		metrics.EvaluationErrorsTotal.Inc()
		return nil, fmt.Errorf("looking up metric %s: %w", entry.MetricID, err)
	}

	rules, err := e.store.ListRulesByMetric(ctx, entry.MetricID, true)
	if err != nil {
		metrics.EvaluationErrorsTotal.Inc()
		return nil, fmt.Errorf("listing rules for metric %s: %w", entry.MetricID, err)
	}

	result := &domain.EvaluationResult{
		MetricID:        entry.MetricID,
		AlertsChecked:   len(rules),
		TriggeredAlerts: []domain.TriggeredAlert{},
	}

	for _, rule := range rules {
		if !conditionSatisfied(rule.Condition, entry.Value, rule.Threshold, entry.Baseline) {
			continue
		}

		msg := triggerMessage(metric, &rule, entry.Value)
		trigger := &domain.AlertTrigger{
			RuleID:      rule.ID,
			MetricID:    entry.MetricID,
			ActualValue: entry.Value,
			Threshold:   rule.Threshold,
			Message:     msg,
			TriggeredAt: e.clock(),
		}
		if err := e.store.InsertAlertTrigger(ctx, trigger); err != nil {
			metrics.EvaluationErrorsTotal.Inc()
			return nil, fmt.Errorf("recording trigger for rule %s: %w", rule.ID, err)
		}
		metrics.AlertsTriggeredTotal.Inc()

		result.TriggeredAlerts = append(result.TriggeredAlerts, domain.TriggeredAlert{
			RuleID:      rule.ID,
			MetricID:    entry.MetricID,
			MetricName:  metric.Name,
			Condition:   rule.Condition,
			ActualValue: entry.Value,
			Threshold:   rule.Threshold,
			Message:     msg,
			Channels:    rule.Channels,
			Recipients:  rule.Recipients,
		})

		e.log.Info("threshold rule triggered",
			"rule_id", rule.ID,
			"metric", metric.Name,
			"condition", rule.Condition,
			"value", entry.Value,
			"threshold", rule.Threshold,
		)
	}

	return result, nil
}

// EvaluateMany evaluates each entry independently. A failing entry is
// captured in its result slot and does not abort the remaining entries.
func (e *Evaluator) EvaluateMany(
	ctx context.Context,
	entries []domain.EvaluationEntry,
) []domain.EvaluationResult {
	results := make([]domain.EvaluationResult, 0, len(entries))
	for _, entry := range entries {
		res, err := e.Evaluate(ctx, entry)
		if err != nil {
			results = append(results, domain.EvaluationResult{
				MetricID: entry.MetricID,
				Error:    err.Error(),
			})
			continue
		}
		results = append(results, *res)
	}
	return results
}

// conditionSatisfied applies one rule condition to a reading. Comparisons are
// strict where the condition names a strict relation; equals is exact numeric
// equality with no epsilon. percent_change compares the absolute percentage
// move from baseline and never triggers without a non-zero baseline.
// Unknown conditions never trigger.
func conditionSatisfied(
	cond domain.AlertCondition,
	value, threshold float64,
	baseline *float64,
) bool {
	switch cond {
	case domain.ConditionAboveThreshold:
		return value > threshold
	case domain.ConditionBelowThreshold:
		return value < threshold
	case domain.ConditionEquals:
		return value == threshold
	case domain.ConditionPercentChange:
		if baseline == nil || *baseline == 0 {
			return false
		}
		change := math.Abs((value-*baseline)/(*baseline)) * 100
		return change > threshold
	default:
		return false
	}
}

// triggerMessage renders the human-readable alert text for one trigger.
func triggerMessage(metric *domain.Metric, rule *domain.ThresholdRule, value float64) string {
	name := metric.Name
	if metric.Unit != "" {
		name = fmt.Sprintf("%s (%s)", metric.Name, metric.Unit)
	}
	switch rule.Condition {
	case domain.ConditionAboveThreshold:
		return fmt.Sprintf("%s is %.2f, above the threshold of %.2f", name, value, rule.Threshold)
	case domain.ConditionBelowThreshold:
		return fmt.Sprintf("%s is %.2f, below the threshold of %.2f", name, value, rule.Threshold)
	case domain.ConditionEquals:
		return fmt.Sprintf("%s hit the exact value %.2f", name, value)
	case domain.ConditionPercentChange:
		return fmt.Sprintf("%s is %.2f, moved more than %.2f%% from its baseline", name, value, rule.Threshold)
	default:
		return fmt.Sprintf("%s is %.2f (threshold %.2f)", name, value, rule.Threshold)
	}
}
