package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/donaldgifford/report-dispatch/internal/store"
	domain "github.com/donaldgifford/report-dispatch/pkg/types"
)

// MetricHandler handles metric reference-data operations.
type MetricHandler struct {
	store store.Store
}

// NewMetricHandler creates a new MetricHandler.
func NewMetricHandler(s store.Store) *MetricHandler {
	return &MetricHandler{store: s}
}

// List handles GET /api/v1/metrics.
//
// @Summary List metrics
// @Description Returns all tracked metrics ordered by name.
// @Tags metrics
// @Produce json
// @Success 200 {array} domain.Metric
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/metrics [get]
func (h *MetricHandler) List(c echo.Context) error {
	metrics, err := h.store.ListMetrics(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "listing metrics: " + err.Error(),
		})
	}

	if metrics == nil {
		metrics = []domain.Metric{}
	}

	return c.JSON(http.StatusOK, metrics)
}

// Get handles GET /api/v1/metrics/:id.
//
// @Summary Get a metric by ID
// @Description Returns a single metric by its UUID.
// @Tags metrics
// @Produce json
// @Param id path string true "Metric UUID"
// @Success 200 {object} domain.Metric
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/metrics/{id} [get]
func (h *MetricHandler) Get(c echo.Context) error {
	id := c.Param("id")

	m, err := h.store.GetMetric(c.Request().Context(), id)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "metric not found",
		})
	}

	return c.JSON(http.StatusOK, m)
}

// Create handles POST /api/v1/metrics.
//
// @Summary Create a metric
// @Description Registers a new metric for threshold rules to reference.
// @Tags metrics
// @Accept json
// @Produce json
// @Param metric body domain.Metric true "Metric to create"
// @Success 201 {object} domain.Metric
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/metrics [post]
func (h *MetricHandler) Create(c echo.Context) error {
	var m domain.Metric
	if err := c.Bind(&m); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request body: " + err.Error(),
		})
	}

	if m.Name == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "name is required",
		})
	}

	if err := h.store.CreateMetric(c.Request().Context(), &m); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "creating metric: " + err.Error(),
		})
	}

	return c.JSON(http.StatusCreated, m)
}
