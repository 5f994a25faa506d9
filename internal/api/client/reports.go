package client

import (
	"context"
	"fmt"

	domain "github.com/donaldgifford/report-dispatch/pkg/types"
)

// reportRequest contains only the fields the API accepts for create/update.
type reportRequest struct {
	Name           string                 `json:"name,omitempty"`
	Frequency      domain.ReportFrequency `json:"frequency,omitempty"`
	DeliveryFormat string                 `json:"delivery_format,omitempty"`
	Recipients     []string               `json:"recipients,omitempty"`
	IsScheduled    bool                   `json:"is_scheduled,omitempty"`
	Schedule       domain.ScheduleConfig  `json:"schedule,omitempty"`
}

// ListReports returns all scheduled reports.
func (c *Client) ListReports(ctx context.Context) ([]domain.ScheduledReport, error) {
	var reports []domain.ScheduledReport
	if err := c.get(ctx, "/api/v1/reports", &reports); err != nil {
		return nil, err
	}
	return reports, nil
}

// GetReport returns a single report by ID.
func (c *Client) GetReport(ctx context.Context, id string) (*domain.ScheduledReport, error) {
	var r domain.ScheduledReport
	if err := c.get(ctx, "/api/v1/reports/"+id, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateReport creates a new scheduled report.
func (c *Client) CreateReport(
	ctx context.Context,
	r *domain.ScheduledReport,
) (*domain.ScheduledReport, error) {
	var created domain.ScheduledReport
	req := reportRequest{
		Name:           r.Name,
		Frequency:      r.Frequency,
		DeliveryFormat: r.DeliveryFormat,
		Recipients:     r.Recipients,
		IsScheduled:    r.IsScheduled,
		Schedule:       r.Schedule,
	}
	if err := c.post(ctx, "/api/v1/reports", req, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateReport updates an existing report.
func (c *Client) UpdateReport(
	ctx context.Context,
	r *domain.ScheduledReport,
) (*domain.ScheduledReport, error) {
	var updated domain.ScheduledReport
	req := reportRequest{
		Name:           r.Name,
		Frequency:      r.Frequency,
		DeliveryFormat: r.DeliveryFormat,
		Recipients:     r.Recipients,
		IsScheduled:    r.IsScheduled,
		Schedule:       r.Schedule,
	}
	if err := c.put(ctx, "/api/v1/reports/"+r.ID, req, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// SetReportScheduled enables or disables automatic delivery for a report.
func (c *Client) SetReportScheduled(ctx context.Context, id string, scheduled bool) error {
	body := map[string]bool{"scheduled": scheduled}
	return c.put(ctx, fmt.Sprintf("/api/v1/reports/%s/scheduled", id), body, nil)
}

// TriggerReport runs one delivery for a report immediately.
func (c *Client) TriggerReport(ctx context.Context, id string) (*domain.DeliveryAttempt, error) {
	var attempt domain.DeliveryAttempt
	if err := c.post(ctx, fmt.Sprintf("/api/v1/reports/%s/trigger", id), nil, &attempt); err != nil {
		return nil, err
	}
	return &attempt, nil
}

// GetReportHistory returns delivery attempts for a report, newest first.
func (c *Client) GetReportHistory(
	ctx context.Context,
	id string,
	limit int,
) ([]domain.DeliveryAttempt, error) {
	path := fmt.Sprintf("/api/v1/reports/%s/history", id)
	if limit > 0 {
		path = fmt.Sprintf("%s?limit=%d", path, limit)
	}

	var attempts []domain.DeliveryAttempt
	if err := c.get(ctx, path, &attempts); err != nil {
		return nil, err
	}
	return attempts, nil
}

// GetReportBinding returns the cron binding backing a report.
func (c *Client) GetReportBinding(ctx context.Context, id string) (*domain.JobBinding, error) {
	var b domain.JobBinding
	if err := c.get(ctx, fmt.Sprintf("/api/v1/reports/%s/binding", id), &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// ListBindings returns job bindings, optionally limited to active ones.
func (c *Client) ListBindings(ctx context.Context, activeOnly bool) ([]domain.JobBinding, error) {
	path := "/api/v1/bindings"
	if activeOnly {
		path += "?active=true"
	}

	var bindings []domain.JobBinding
	if err := c.get(ctx, path, &bindings); err != nil {
		return nil, err
	}
	return bindings, nil
}
