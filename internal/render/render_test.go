package render

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/donaldgifford/report-dispatch/pkg/types"
)

func testReport() *domain.ScheduledReport {
	return &domain.ScheduledReport{
		ID:             "rep-1",
		Name:           "weekly revenue",
		Frequency:      domain.FrequencyWeekly,
		DeliveryFormat: "pdf",
	}
}

func TestHTTPRenderer_Render(t *testing.T) {
	t.Parallel()

	var received renderRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.7 fake"))
	}))
	defer srv.Close()

	renderer := NewHTTPRenderer(srv.URL)
	artifact, err := renderer.Render(context.Background(), testReport())
	require.NoError(t, err)

	assert.Equal(t, "rep-1", received.ReportID)
	assert.Equal(t, "pdf", received.Format)

	assert.Equal(t, "rep-1.pdf", artifact.Name)
	assert.Equal(t, "application/pdf", artifact.ContentType)
	assert.Equal(t, []byte("%PDF-1.7 fake"), artifact.Data)
}

func TestHTTPRenderer_ServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "render broke", http.StatusInternalServerError)
	}))
	defer srv.Close()

	renderer := NewHTTPRenderer(srv.URL)
	_, err := renderer.Render(context.Background(), testReport())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "render service returned 500")
}

func TestHTTPRenderer_Unreachable(t *testing.T) {
	t.Parallel()

	renderer := NewHTTPRenderer("http://127.0.0.1:1")
	_, err := renderer.Render(context.Background(), testReport())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "calling render service")
}

func TestLocalRenderer_Render(t *testing.T) {
	t.Parallel()

	renderer := NewLocalRenderer()
	artifact, err := renderer.Render(context.Background(), testReport())
	require.NoError(t, err)

	assert.Equal(t, "rep-1.json", artifact.Name)
	assert.Equal(t, "application/json", artifact.ContentType)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(artifact.Data, &payload))
	assert.Equal(t, "rep-1", payload["report_id"])
	assert.Equal(t, "weekly revenue", payload["name"])
	assert.Equal(t, "weekly", payload["frequency"])
}
