package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/donaldgifford/report-dispatch/internal/store"
	domain "github.com/donaldgifford/report-dispatch/pkg/types"
)

// RuleHandler handles threshold rule CRUD operations.
type RuleHandler struct {
	store store.Store
}

// NewRuleHandler creates a new RuleHandler.
func NewRuleHandler(s store.Store) *RuleHandler {
	return &RuleHandler{store: s}
}

// List handles GET /api/v1/alerts.
//
// @Summary List threshold rules
// @Description Returns all threshold rules, optionally scoped to one metric.
// @Tags alerts
// @Produce json
// @Param metric_id query string false "Filter by metric UUID"
// @Success 200 {array} domain.ThresholdRule
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/alerts [get]
func (h *RuleHandler) List(c echo.Context) error {
	ctx := c.Request().Context()

	var (
		rules []domain.ThresholdRule
		err   error
	)
	if metricID := c.QueryParam("metric_id"); metricID != "" {
		rules, err = h.store.ListRulesByMetric(ctx, metricID, false)
	} else {
		rules, err = h.store.ListRules(ctx)
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "listing rules: " + err.Error(),
		})
	}

	if rules == nil {
		rules = []domain.ThresholdRule{}
	}

	return c.JSON(http.StatusOK, rules)
}

// Get handles GET /api/v1/alerts/:id.
//
// @Summary Get a threshold rule by ID
// @Description Returns a single threshold rule by its UUID.
// @Tags alerts
// @Produce json
// @Param id path string true "Rule UUID"
// @Success 200 {object} domain.ThresholdRule
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/alerts/{id} [get]
func (h *RuleHandler) Get(c echo.Context) error {
	id := c.Param("id")

	r, err := h.store.GetRule(c.Request().Context(), id)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "rule not found",
		})
	}

	return c.JSON(http.StatusOK, r)
}

// Create handles POST /api/v1/alerts.
//
// @Summary Create a threshold rule
// @Description Creates a new threshold rule attached to a metric.
// @Tags alerts
// @Accept json
// @Produce json
// @Param rule body domain.ThresholdRule true "Rule to create"
// @Success 201 {object} domain.ThresholdRule
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/alerts [post]
func (h *RuleHandler) Create(c echo.Context) error {
	var r domain.ThresholdRule
	if err := c.Bind(&r); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request body: " + err.Error(),
		})
	}

	if r.MetricID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "metric_id is required",
		})
	}
	if !r.Condition.Valid() {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "unknown condition: " + string(r.Condition),
		})
	}

	ctx := c.Request().Context()
	if _, err := h.store.GetMetric(ctx, r.MetricID); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "metric not found: " + r.MetricID,
		})
	}

	if err := h.store.CreateRule(ctx, &r); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "creating rule: " + err.Error(),
		})
	}

	return c.JSON(http.StatusCreated, r)
}

// Update handles PUT /api/v1/alerts/:id.
//
// @Summary Update a threshold rule
// @Description Updates an existing threshold rule by its UUID.
// @Tags alerts
// @Accept json
// @Produce json
// @Param id path string true "Rule UUID"
// @Param rule body domain.ThresholdRule true "Updated rule"
// @Success 200 {object} domain.ThresholdRule
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/alerts/{id} [put]
func (h *RuleHandler) Update(c echo.Context) error {
	id := c.Param("id")

	var r domain.ThresholdRule
	if err := c.Bind(&r); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request body: " + err.Error(),
		})
	}
	if !r.Condition.Valid() {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "unknown condition: " + string(r.Condition),
		})
	}

	r.ID = id
	if err := h.store.UpdateRule(c.Request().Context(), &r); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{
				"error": "rule not found",
			})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "updating rule: " + err.Error(),
		})
	}

	return c.JSON(http.StatusOK, r)
}

// Delete handles DELETE /api/v1/alerts/:id.
//
// @Summary Delete a threshold rule
// @Description Deletes a threshold rule by its UUID.
// @Tags alerts
// @Param id path string true "Rule UUID"
// @Success 204
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/alerts/{id} [delete]
func (h *RuleHandler) Delete(c echo.Context) error {
	id := c.Param("id")

	if err := h.store.DeleteRule(c.Request().Context(), id); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "deleting rule: " + err.Error(),
		})
	}

	return c.NoContent(http.StatusNoContent)
}
