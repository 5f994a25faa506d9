package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/donaldgifford/report-dispatch/internal/store"
	domain "github.com/donaldgifford/report-dispatch/pkg/types"
)

// MetricEvaluator checks readings against threshold rules.
type MetricEvaluator interface {
	Evaluate(ctx context.Context, entry domain.EvaluationEntry) (*domain.EvaluationResult, error)
	EvaluateMany(ctx context.Context, entries []domain.EvaluationEntry) []domain.EvaluationResult
}

// AlertDispatcher fans triggered alerts out to notification channels.
type AlertDispatcher interface {
	Dispatch(ctx context.Context, alerts []domain.TriggeredAlert)
}

// EvaluateHandler handles metric evaluation requests. Triggered alerts are
// handed to the dispatcher after evaluation; dispatch failures never fail
// the evaluation response.
type EvaluateHandler struct {
	evaluator  MetricEvaluator
	dispatcher AlertDispatcher
}

// NewEvaluateHandler creates a new EvaluateHandler.
func NewEvaluateHandler(e MetricEvaluator, d AlertDispatcher) *EvaluateHandler {
	return &EvaluateHandler{evaluator: e, dispatcher: d}
}

// EvaluateInput is the request body for a single evaluation.
type EvaluateInput struct {
	Body struct {
		MetricID string   `json:"metric_id" doc:"Metric UUID"`
		Value    float64  `json:"value" doc:"Current metric reading"`
		Baseline *float64 `json:"baseline,omitempty" doc:"Prior reading for percent_change rules"`
	}
}

// EvaluateOutput is the response body for a single evaluation.
type EvaluateOutput struct {
	Body domain.EvaluationResult
}

// Evaluate checks one metric reading against its active threshold rules.
func (h *EvaluateHandler) Evaluate(
	ctx context.Context,
	input *EvaluateInput,
) (*EvaluateOutput, error) {
	entry := domain.EvaluationEntry{
		MetricID: input.Body.MetricID,
		Value:    input.Body.Value,
		Baseline: input.Body.Baseline,
	}

	result, err := h.evaluator.Evaluate(ctx, entry)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, huma.Error404NotFound("metric not found: " + entry.MetricID)
		}
		return nil, huma.Error500InternalServerError("evaluation failed: " + err.Error())
	}

	if len(result.TriggeredAlerts) > 0 {
		h.dispatcher.Dispatch(ctx, result.TriggeredAlerts)
	}

	return &EvaluateOutput{Body: *result}, nil
}

// EvaluateBatchInput is the request body for a batch evaluation.
type EvaluateBatchInput struct {
	Body struct {
		Entries []domain.EvaluationEntry `json:"entries" doc:"Metric readings to evaluate"`
	}
}

// EvaluateBatchOutput is the response body for a batch evaluation, one result
// per input entry in order.
type EvaluateBatchOutput struct {
	Body []domain.EvaluationResult
}

// EvaluateBatch checks several metric readings independently. Per-entry
// failures land in the matching result slot and never abort the batch.
func (h *EvaluateHandler) EvaluateBatch(
	ctx context.Context,
	input *EvaluateBatchInput,
) (*EvaluateBatchOutput, error) {
	results := h.evaluator.EvaluateMany(ctx, input.Body.Entries)

	var triggered []domain.TriggeredAlert
	for _, r := range results {
		triggered = append(triggered, r.TriggeredAlerts...)
	}
	if len(triggered) > 0 {
		h.dispatcher.Dispatch(ctx, triggered)
	}

	if results == nil {
		results = []domain.EvaluationResult{}
	}
	return &EvaluateBatchOutput{Body: results}, nil
}

// RegisterEvaluateRoutes registers evaluation endpoints with the Huma API.
func RegisterEvaluateRoutes(api huma.API, h *EvaluateHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "evaluate-metric",
		Method:      http.MethodPost,
		Path:        "/api/v1/evaluate",
		Summary:     "Evaluate a metric reading",
		Description: "Checks one reading against the metric's active threshold " +
			"rules, records triggers, and dispatches notifications.",
		Tags: []string{"alerts"},
		Errors: []int{
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, h.Evaluate)

	huma.Register(api, huma.Operation{
		OperationID: "evaluate-metrics-batch",
		Method:      http.MethodPost,
		Path:        "/api/v1/evaluate/batch",
		Summary:     "Evaluate a batch of metric readings",
		Description: "Evaluates each entry independently; one entry's failure is " +
			"reported in its result slot and does not abort the batch.",
		Tags: []string{"alerts"},
	}, h.EvaluateBatch)
}
