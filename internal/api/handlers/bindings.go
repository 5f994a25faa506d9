package handlers

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	domain "github.com/donaldgifford/report-dispatch/pkg/types"
)

// BindingsProvider defines the store methods required by the bindings handler.
type BindingsProvider interface {
	ListBindings(ctx context.Context, activeOnly bool) ([]domain.JobBinding, error)
	GetBindingByReport(ctx context.Context, reportID string) (*domain.JobBinding, error)
}

// BindingsHandler handles job binding inspection requests.
type BindingsHandler struct {
	store BindingsProvider
}

// NewBindingsHandler creates a new BindingsHandler.
func NewBindingsHandler(s BindingsProvider) *BindingsHandler {
	return &BindingsHandler{store: s}
}

// ListBindingsInput is the query for listing bindings.
type ListBindingsInput struct {
	Active bool `query:"active" doc:"Return only active bindings"`
}

// ListBindingsOutput is the response body for listing bindings.
type ListBindingsOutput struct {
	Body []domain.JobBinding
}

// GetReportBindingInput is the request path for a report's binding.
type GetReportBindingInput struct {
	ReportID string `path:"id" doc:"Report UUID"`
}

// GetReportBindingOutput is the response body for a report's binding.
type GetReportBindingOutput struct {
	Body *domain.JobBinding
}

// ListBindings returns all job bindings.
func (h *BindingsHandler) ListBindings(
	ctx context.Context,
	input *ListBindingsInput,
) (*ListBindingsOutput, error) {
	bindings, err := h.store.ListBindings(ctx, input.Active)
	if err != nil {
		return nil, huma.Error500InternalServerError("listing bindings failed: " + err.Error())
	}

	if bindings == nil {
		bindings = []domain.JobBinding{}
	}

	return &ListBindingsOutput{Body: bindings}, nil
}

// GetReportBinding returns the binding for one report.
func (h *BindingsHandler) GetReportBinding(
	ctx context.Context,
	input *GetReportBindingInput,
) (*GetReportBindingOutput, error) {
	b, err := h.store.GetBindingByReport(ctx, input.ReportID)
	if err != nil {
		return nil, huma.Error404NotFound("no binding for report " + input.ReportID)
	}

	return &GetReportBindingOutput{Body: b}, nil
}

// RegisterBindingRoutes registers binding endpoints with the Huma API.
func RegisterBindingRoutes(api huma.API, h *BindingsHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "list-bindings",
		Method:      http.MethodGet,
		Path:        "/api/v1/bindings",
		Summary:     "List job bindings",
		Description: "Returns the cron bindings backing scheduled reports.",
		Tags:        []string{"scheduler"},
		Errors:      []int{http.StatusInternalServerError},
	}, h.ListBindings)

	huma.Register(api, huma.Operation{
		OperationID: "get-report-binding",
		Method:      http.MethodGet,
		Path:        "/api/v1/reports/{id}/binding",
		Summary:     "Get a report's job binding",
		Description: "Returns the cron binding for a single report.",
		Tags:        []string{"scheduler"},
		Errors:      []int{http.StatusNotFound},
	}, h.GetReportBinding)
}
