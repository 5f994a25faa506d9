package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/donaldgifford/report-dispatch/internal/store"
	domain "github.com/donaldgifford/report-dispatch/pkg/types"
)

// ReportProvider loads reports for manual triggering.
type ReportProvider interface {
	GetReport(ctx context.Context, id string) (*domain.ScheduledReport, error)
}

// Dispatcher runs a single delivery through the pipeline.
type Dispatcher interface {
	DeliverOnce(ctx context.Context, report *domain.ScheduledReport) (*domain.DeliveryAttempt, error)
}

// TriggerHandler handles manual delivery trigger requests. Manual triggers
// run the same pipeline as scheduled sweeps, including for on_demand reports
// that the scheduler never picks up.
type TriggerHandler struct {
	store    ReportProvider
	pipeline Dispatcher
}

// NewTriggerHandler creates a new TriggerHandler.
func NewTriggerHandler(s ReportProvider, p Dispatcher) *TriggerHandler {
	return &TriggerHandler{store: s, pipeline: p}
}

// TriggerInput is the request path for a manual delivery.
type TriggerInput struct {
	ID string `path:"id" doc:"Report UUID"`
}

// TriggerOutput is the response body for a manual delivery.
type TriggerOutput struct {
	Body domain.DeliveryAttempt
}

// Trigger runs one delivery for a report immediately.
func (h *TriggerHandler) Trigger(
	ctx context.Context,
	input *TriggerInput,
) (*TriggerOutput, error) {
	report, err := h.store.GetReport(ctx, input.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, huma.Error404NotFound("report not found: " + input.ID)
		}
		return nil, huma.Error500InternalServerError("loading report failed: " + err.Error())
	}

	attempt, err := h.pipeline.DeliverOnce(ctx, report)
	if err != nil {
		// The failed attempt is already recorded; surface both to the caller.
		if attempt != nil {
			return nil, huma.Error502BadGateway("delivery failed: " + err.Error())
		}
		return nil, huma.Error500InternalServerError("delivery failed: " + err.Error())
	}

	return &TriggerOutput{Body: *attempt}, nil
}

// RegisterTriggerRoutes registers the manual trigger endpoint with the Huma API.
func RegisterTriggerRoutes(api huma.API, h *TriggerHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "trigger-report",
		Method:      http.MethodPost,
		Path:        "/api/v1/reports/{id}/trigger",
		Summary:     "Trigger a report delivery",
		Description: "Renders and delivers one report immediately, recording the " +
			"attempt in delivery history. Works for on_demand reports too.",
		Tags: []string{"reports"},
		Errors: []int{
			http.StatusNotFound,
			http.StatusBadGateway,
			http.StatusInternalServerError,
		},
	}, h.Trigger)
}
