package handlers

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	domain "github.com/donaldgifford/report-dispatch/pkg/types"
)

const defaultTriggerHistoryLimit = 50

// TriggerHistoryProvider defines the store methods required by the alert
// history handler.
type TriggerHistoryProvider interface {
	ListAlertTriggers(ctx context.Context, metricID string, limit int) ([]domain.AlertTrigger, error)
	ListAlertTriggersByRule(ctx context.Context, ruleID string, limit int) ([]domain.AlertTrigger, error)
}

// TriggerHistoryHandler handles alert trigger history requests.
type TriggerHistoryHandler struct {
	store TriggerHistoryProvider
}

// NewTriggerHistoryHandler creates a new TriggerHistoryHandler.
func NewTriggerHistoryHandler(s TriggerHistoryProvider) *TriggerHistoryHandler {
	return &TriggerHistoryHandler{store: s}
}

// MetricTriggersInput is the request for a metric's trigger history.
type MetricTriggersInput struct {
	MetricID string `path:"id" doc:"Metric UUID"`
	Limit    int    `query:"limit" default:"50" doc:"Maximum rows to return"`
}

// RuleTriggersInput is the request for a rule's trigger history.
type RuleTriggersInput struct {
	RuleID string `path:"id" doc:"Rule UUID"`
	Limit  int    `query:"limit" default:"50" doc:"Maximum rows to return"`
}

// TriggersOutput is the response body for trigger history, newest first.
type TriggersOutput struct {
	Body []domain.AlertTrigger
}

// ListByMetric returns the trigger history for one metric.
func (h *TriggerHistoryHandler) ListByMetric(
	ctx context.Context,
	input *MetricTriggersInput,
) (*TriggersOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultTriggerHistoryLimit
	}

	triggers, err := h.store.ListAlertTriggers(ctx, input.MetricID, limit)
	if err != nil {
		return nil, huma.Error500InternalServerError("listing triggers failed: " + err.Error())
	}

	if triggers == nil {
		triggers = []domain.AlertTrigger{}
	}
	return &TriggersOutput{Body: triggers}, nil
}

// ListByRule returns the trigger history for one rule.
func (h *TriggerHistoryHandler) ListByRule(
	ctx context.Context,
	input *RuleTriggersInput,
) (*TriggersOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultTriggerHistoryLimit
	}

	triggers, err := h.store.ListAlertTriggersByRule(ctx, input.RuleID, limit)
	if err != nil {
		return nil, huma.Error500InternalServerError("listing triggers failed: " + err.Error())
	}

	if triggers == nil {
		triggers = []domain.AlertTrigger{}
	}
	return &TriggersOutput{Body: triggers}, nil
}

// RegisterTriggerHistoryRoutes registers alert history endpoints with the
// Huma API.
func RegisterTriggerHistoryRoutes(api huma.API, h *TriggerHistoryHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "list-metric-triggers",
		Method:      http.MethodGet,
		Path:        "/api/v1/metrics/{id}/triggers",
		Summary:     "Get a metric's alert history",
		Description: "Returns recorded alert triggers for a metric, newest first.",
		Tags:        []string{"alerts"},
		Errors:      []int{http.StatusInternalServerError},
	}, h.ListByMetric)

	huma.Register(api, huma.Operation{
		OperationID: "list-rule-triggers",
		Method:      http.MethodGet,
		Path:        "/api/v1/alerts/{id}/triggers",
		Summary:     "Get a rule's alert history",
		Description: "Returns recorded alert triggers for a threshold rule, newest first.",
		Tags:        []string{"alerts"},
		Errors:      []int{http.StatusInternalServerError},
	}, h.ListByRule)
}
