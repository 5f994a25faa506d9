package client

import (
	"context"
	"fmt"

	domain "github.com/donaldgifford/report-dispatch/pkg/types"
)

// ruleRequest contains only the fields the API accepts for create/update.
type ruleRequest struct {
	MetricID   string                `json:"metric_id,omitempty"`
	Condition  domain.AlertCondition `json:"condition,omitempty"`
	Threshold  float64               `json:"threshold"`
	Channels   []string              `json:"channels,omitempty"`
	Recipients []string              `json:"recipients,omitempty"`
	Active     bool                  `json:"active"`
}

// ListRules returns threshold rules, optionally scoped to one metric.
func (c *Client) ListRules(ctx context.Context, metricID string) ([]domain.ThresholdRule, error) {
	path := "/api/v1/alerts"
	if metricID != "" {
		path += "?metric_id=" + metricID
	}

	var rules []domain.ThresholdRule
	if err := c.get(ctx, path, &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

// GetRule returns a single threshold rule by ID.
func (c *Client) GetRule(ctx context.Context, id string) (*domain.ThresholdRule, error) {
	var r domain.ThresholdRule
	if err := c.get(ctx, "/api/v1/alerts/"+id, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateRule creates a new threshold rule.
func (c *Client) CreateRule(
	ctx context.Context,
	r *domain.ThresholdRule,
) (*domain.ThresholdRule, error) {
	var created domain.ThresholdRule
	req := ruleRequest{
		MetricID:   r.MetricID,
		Condition:  r.Condition,
		Threshold:  r.Threshold,
		Channels:   r.Channels,
		Recipients: r.Recipients,
		Active:     r.Active,
	}
	if err := c.post(ctx, "/api/v1/alerts", req, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateRule updates an existing threshold rule.
func (c *Client) UpdateRule(
	ctx context.Context,
	r *domain.ThresholdRule,
) (*domain.ThresholdRule, error) {
	var updated domain.ThresholdRule
	req := ruleRequest{
		MetricID:   r.MetricID,
		Condition:  r.Condition,
		Threshold:  r.Threshold,
		Channels:   r.Channels,
		Recipients: r.Recipients,
		Active:     r.Active,
	}
	if err := c.put(ctx, "/api/v1/alerts/"+r.ID, req, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteRule deletes a threshold rule by ID.
func (c *Client) DeleteRule(ctx context.Context, id string) error {
	return c.del(ctx, "/api/v1/alerts/"+id, nil)
}

// ListMetrics returns all tracked metrics.
func (c *Client) ListMetrics(ctx context.Context) ([]domain.Metric, error) {
	var metrics []domain.Metric
	if err := c.get(ctx, "/api/v1/metrics", &metrics); err != nil {
		return nil, err
	}
	return metrics, nil
}

// CreateMetric registers a new metric.
func (c *Client) CreateMetric(ctx context.Context, m *domain.Metric) (*domain.Metric, error) {
	var created domain.Metric
	req := map[string]string{"name": m.Name, "unit": m.Unit}
	if err := c.post(ctx, "/api/v1/metrics", req, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// Evaluate checks one metric reading against its active threshold rules.
func (c *Client) Evaluate(
	ctx context.Context,
	entry domain.EvaluationEntry,
) (*domain.EvaluationResult, error) {
	var result domain.EvaluationResult
	if err := c.post(ctx, "/api/v1/evaluate", entry, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// EvaluateBatch checks several metric readings in one request.
func (c *Client) EvaluateBatch(
	ctx context.Context,
	entries []domain.EvaluationEntry,
) ([]domain.EvaluationResult, error) {
	body := map[string]any{"entries": entries}

	var results []domain.EvaluationResult
	if err := c.post(ctx, "/api/v1/evaluate/batch", body, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// ListMetricTriggers returns the alert history for a metric, newest first.
func (c *Client) ListMetricTriggers(
	ctx context.Context,
	metricID string,
	limit int,
) ([]domain.AlertTrigger, error) {
	path := fmt.Sprintf("/api/v1/metrics/%s/triggers", metricID)
	if limit > 0 {
		path = fmt.Sprintf("%s?limit=%d", path, limit)
	}

	var triggers []domain.AlertTrigger
	if err := c.get(ctx, path, &triggers); err != nil {
		return nil, err
	}
	return triggers, nil
}

// GetSystemState returns aggregate engine counts.
func (c *Client) GetSystemState(ctx context.Context) (*domain.SystemState, error) {
	var state domain.SystemState
	if err := c.get(ctx, "/api/v1/system/state", &state); err != nil {
		return nil, err
	}
	return &state, nil
}
