package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/donaldgifford/report-dispatch/internal/engine"
	"github.com/donaldgifford/report-dispatch/internal/store"
	domain "github.com/donaldgifford/report-dispatch/pkg/types"
)

const defaultHistoryLimit = 20

// ReportHandler handles scheduled report CRUD and history operations.
// Mutations that affect when a report runs also reconcile its job binding.
type ReportHandler struct {
	store store.Store
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(s store.Store) *ReportHandler {
	return &ReportHandler{store: s}
}

// List handles GET /api/v1/reports.
//
// @Summary List scheduled reports
// @Description Returns all reports, optionally filtered by scheduled status.
// @Tags reports
// @Produce json
// @Param scheduled query string false "Filter by scheduled status" Enums(true, false)
// @Success 200 {array} domain.ScheduledReport
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/reports [get]
func (h *ReportHandler) List(c echo.Context) error {
	scheduledOnly := c.QueryParam("scheduled") == "true"

	reports, err := h.store.ListReports(c.Request().Context(), scheduledOnly)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "listing reports: " + err.Error(),
		})
	}

	if reports == nil {
		reports = []domain.ScheduledReport{}
	}

	return c.JSON(http.StatusOK, reports)
}

// Get handles GET /api/v1/reports/:id.
//
// @Summary Get a report by ID
// @Description Returns a single scheduled report by its UUID.
// @Tags reports
// @Produce json
// @Param id path string true "Report UUID"
// @Success 200 {object} domain.ScheduledReport
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/reports/{id} [get]
func (h *ReportHandler) Get(c echo.Context) error {
	id := c.Param("id")

	r, err := h.store.GetReport(c.Request().Context(), id)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "report not found",
		})
	}

	return c.JSON(http.StatusOK, r)
}

// Create handles POST /api/v1/reports.
//
// @Summary Create a report
// @Description Creates a new scheduled report and its job binding.
// @Tags reports
// @Accept json
// @Produce json
// @Param report body domain.ScheduledReport true "Report to create"
// @Success 201 {object} domain.ScheduledReport
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/reports [post]
func (h *ReportHandler) Create(c echo.Context) error {
	var r domain.ScheduledReport
	if err := c.Bind(&r); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request body: " + err.Error(),
		})
	}

	if r.Name == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "name is required",
		})
	}
	if !r.Frequency.Valid() {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "unknown frequency: " + string(r.Frequency),
		})
	}
	if r.DeliveryFormat == "" {
		r.DeliveryFormat = "pdf"
	}

	ctx := c.Request().Context()
	if err := h.store.CreateReport(ctx, &r); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "creating report: " + err.Error(),
		})
	}

	if _, err := engine.SyncBinding(ctx, h.store, &r, time.Now()); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "creating schedule binding: " + err.Error(),
		})
	}

	return c.JSON(http.StatusCreated, r)
}

// Update handles PUT /api/v1/reports/:id.
//
// @Summary Update a report
// @Description Updates a report's definition and reconciles its job binding.
// @Tags reports
// @Accept json
// @Produce json
// @Param id path string true "Report UUID"
// @Param report body domain.ScheduledReport true "Updated report"
// @Success 200 {object} domain.ScheduledReport
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/reports/{id} [put]
func (h *ReportHandler) Update(c echo.Context) error {
	id := c.Param("id")

	var r domain.ScheduledReport
	if err := c.Bind(&r); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request body: " + err.Error(),
		})
	}
	if !r.Frequency.Valid() {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "unknown frequency: " + string(r.Frequency),
		})
	}

	ctx := c.Request().Context()
	r.ID = id
	if err := h.store.UpdateReport(ctx, &r); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{
				"error": "report not found",
			})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "updating report: " + err.Error(),
		})
	}

	if _, err := engine.SyncBinding(ctx, h.store, &r, time.Now()); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "updating schedule binding: " + err.Error(),
		})
	}

	return c.JSON(http.StatusOK, r)
}

type setScheduledRequest struct {
	Scheduled bool `json:"scheduled" example:"true"`
}

// SetScheduled handles PUT /api/v1/reports/:id/scheduled.
//
// @Summary Enable or disable automatic delivery
// @Description Toggles automatic delivery and the matching binding state.
// @Tags reports
// @Accept json
// @Produce json
// @Param id path string true "Report UUID"
// @Param body body setScheduledRequest true "Scheduled status"
// @Success 200 {object} StatusResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/reports/{id}/scheduled [put]
func (h *ReportHandler) SetScheduled(c echo.Context) error {
	id := c.Param("id")

	var req setScheduledRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request body: " + err.Error(),
		})
	}

	ctx := c.Request().Context()
	if err := h.store.SetReportScheduled(ctx, id, req.Scheduled); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{
				"error": "report not found",
			})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "setting report scheduled: " + err.Error(),
		})
	}

	r, err := h.store.GetReport(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "reloading report: " + err.Error(),
		})
	}
	if _, err := engine.SyncBinding(ctx, h.store, r, time.Now()); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "reconciling schedule binding: " + err.Error(),
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "updated",
	})
}

// History handles GET /api/v1/reports/:id/history.
//
// @Summary Get delivery history
// @Description Returns delivery attempts for a report, newest first.
// @Tags reports
// @Produce json
// @Param id path string true "Report UUID"
// @Param limit query int false "Maximum rows to return (default 20)"
// @Success 200 {array} domain.DeliveryAttempt
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/reports/{id}/history [get]
func (h *ReportHandler) History(c echo.Context) error {
	id := c.Param("id")

	limit := defaultHistoryLimit
	if raw := c.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	attempts, err := h.store.ListDeliveryAttempts(c.Request().Context(), id, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "listing delivery history: " + err.Error(),
		})
	}

	if attempts == nil {
		attempts = []domain.DeliveryAttempt{}
	}

	return c.JSON(http.StatusOK, attempts)
}
