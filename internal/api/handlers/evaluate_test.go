package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/report-dispatch/internal/api/handlers"
	"github.com/donaldgifford/report-dispatch/internal/engine"
	"github.com/donaldgifford/report-dispatch/internal/store"
	"github.com/donaldgifford/report-dispatch/pkg/logger"
	domain "github.com/donaldgifford/report-dispatch/pkg/types"
)

type recordingDispatcher struct {
	mu     sync.Mutex
	alerts []domain.TriggeredAlert
}

func (d *recordingDispatcher) Dispatch(_ context.Context, alerts []domain.TriggeredAlert) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.alerts = append(d.alerts, alerts...)
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.alerts)
}

func newEvaluateFixture(t *testing.T) (humatest.TestAPI, *store.MemoryStore, *recordingDispatcher) {
	t.Helper()
	s := store.NewMemoryStore()
	d := &recordingDispatcher{}
	h := handlers.NewEvaluateHandler(engine.NewEvaluator(s, logger.Nop()), d)

	_, api := humatest.New(t)
	handlers.RegisterEvaluateRoutes(api, h)
	return api, s, d
}

func seedMetricWithRule(t *testing.T, s *store.MemoryStore) *domain.Metric {
	t.Helper()
	ctx := context.Background()

	m := &domain.Metric{Name: "cpu_usage", Unit: "%"}
	require.NoError(t, s.CreateMetric(ctx, m))
	require.NoError(t, s.CreateRule(ctx, &domain.ThresholdRule{
		MetricID:  m.ID,
		Condition: domain.ConditionAboveThreshold,
		Threshold: 90,
		Channels:  []string{"discord"},
		Active:    true,
	}))
	return m
}

func TestEvaluateHandler_Triggered(t *testing.T) {
	t.Parallel()

	api, s, d := newEvaluateFixture(t)
	m := seedMetricWithRule(t, s)

	resp := api.Post("/api/v1/evaluate", map[string]any{
		"metric_id": m.ID,
		"value":     95.5,
	})
	require.Equal(t, http.StatusOK, resp.Code)

	var result domain.EvaluationResult
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &result))
	assert.Equal(t, 1, result.AlertsChecked)
	require.Len(t, result.TriggeredAlerts, 1)
	assert.InDelta(t, 95.5, result.TriggeredAlerts[0].ActualValue, 0.001)

	assert.Equal(t, 1, d.count(), "triggered alerts reach the dispatcher")
}

func TestEvaluateHandler_NotTriggered(t *testing.T) {
	t.Parallel()

	api, s, d := newEvaluateFixture(t)
	m := seedMetricWithRule(t, s)

	resp := api.Post("/api/v1/evaluate", map[string]any{
		"metric_id": m.ID,
		"value":     50.0,
	})
	require.Equal(t, http.StatusOK, resp.Code)

	var result domain.EvaluationResult
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &result))
	assert.Equal(t, 1, result.AlertsChecked)
	assert.Empty(t, result.TriggeredAlerts)
	assert.Zero(t, d.count())
}

func TestEvaluateHandler_MetricNotFound(t *testing.T) {
	t.Parallel()

	api, _, _ := newEvaluateFixture(t)

	resp := api.Post("/api/v1/evaluate", map[string]any{
		"metric_id": "ghost",
		"value":     1.0,
	})
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestEvaluateHandler_Batch(t *testing.T) {
	t.Parallel()

	api, s, d := newEvaluateFixture(t)
	m := seedMetricWithRule(t, s)

	resp := api.Post("/api/v1/evaluate/batch", map[string]any{
		"entries": []map[string]any{
			{"metric_id": m.ID, "value": 99.0},
			{"metric_id": "ghost", "value": 1.0},
		},
	})
	require.Equal(t, http.StatusOK, resp.Code)

	var results []domain.EvaluationResult
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &results))
	require.Len(t, results, 2)

	assert.Len(t, results[0].TriggeredAlerts, 1)
	assert.Empty(t, results[0].Error)
	assert.NotEmpty(t, results[1].Error, "unknown metric fails its slot only")

	assert.Equal(t, 1, d.count())
}
