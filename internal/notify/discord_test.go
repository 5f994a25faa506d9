package notify

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

func testAlert(cond domain.AlertCondition) domain.TriggeredAlert {
	return domain.TriggeredAlert{
		RuleID:      "rule-1",
		MetricID:    "metric-1",
		MetricName:  "error_rate",
		Condition:   cond,
		ActualValue: 7.5,
		Threshold:   5,
		Message:     "error_rate is 7.50, above the threshold of 5.00",
		Channels:    []string{"discord"},
		Recipients:  []string{"ops@example.com"},
	}
}

func TestDiscordNotifier_SendAlert(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		cond       domain.AlertCondition
		statusCode int
		wantErr    bool
		errMsg     string
		wantColor  int
	}{
		{
			name:       "above_threshold uses red",
			cond:       domain.ConditionAboveThreshold,
			statusCode: http.StatusNoContent,
			wantColor:  colorRed,
		},
		{
			name:       "below_threshold uses blue",
			cond:       domain.ConditionBelowThreshold,
			statusCode: http.StatusNoContent,
			wantColor:  colorBlue,
		},
		{
			name:       "equals uses yellow",
			cond:       domain.ConditionEquals,
			statusCode: http.StatusNoContent,
			wantColor:  colorYellow,
		},
		{
			name:       "percent_change uses purple",
			cond:       domain.ConditionPercentChange,
			statusCode: http.StatusNoContent,
			wantColor:  colorPurple,
		},
		{
			name:       "discord returns 429 rate limited",
			cond:       domain.ConditionAboveThreshold,
			statusCode: http.StatusTooManyRequests,
			wantErr:    true,
			errMsg:     "rate limited",
		},
		{
			name:       "discord returns 400 error",
			cond:       domain.ConditionAboveThreshold,
			statusCode: http.StatusBadRequest,
			wantErr:    true,
			errMsg:     "discord returned 400",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var received discordWebhookPayload

			srv := httptest.NewServer(
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
					assert.Equal(t, http.MethodPost, r.Method)

					err := json.NewDecoder(r.Body).Decode(&received)
					assert.NoError(t, err)

					w.WriteHeader(tt.statusCode)
				}),
			)
			defer srv.Close()

			alert := testAlert(tt.cond)
			d := NewDiscordNotifier(srv.URL)
			err := d.SendAlert(context.Background(), &alert)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}

			require.NoError(t, err)
			require.Len(t, received.Embeds, 1)

			embed := received.Embeds[0]
			assert.Equal(t, tt.wantColor, embed.Color)
			assert.Contains(t, embed.Title, "error_rate")
			assert.Equal(t, alert.Message, embed.Description)

			fieldMap := make(map[string]string)
			for _, f := range embed.Fields {
				fieldMap[f.Name] = f.Value
			}
			assert.Equal(t, string(tt.cond), fieldMap["Condition"])
			assert.Equal(t, "7.50", fieldMap["Value"])
			assert.Equal(t, "5.00", fieldMap["Threshold"])
		})
	}
}

func TestDiscordNotifier_SendBatchAlert(t *testing.T) {
	t.Parallel()

	var received discordWebhookPayload

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := json.NewDecoder(r.Body).Decode(&received)
		assert.NoError(t, err)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	alerts := make([]domain.TriggeredAlert, 3)
	for i := range alerts {
		alerts[i] = testAlert(domain.ConditionAboveThreshold)
	}

	d := NewDiscordNotifier(srv.URL)
	err := d.SendBatchAlert(context.Background(), alerts)
	require.NoError(t, err)

	assert.Len(t, received.Embeds, 3)
}

func TestDiscordNotifier_SendBatchAlert_Overflow(t *testing.T) {
	t.Parallel()

	var received discordWebhookPayload

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := json.NewDecoder(r.Body).Decode(&received)
		assert.NoError(t, err)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	alerts := make([]domain.TriggeredAlert, 14)
	for i := range alerts {
		alerts[i] = testAlert(domain.ConditionBelowThreshold)
	}

	d := NewDiscordNotifier(srv.URL)
	err := d.SendBatchAlert(context.Background(), alerts)
	require.NoError(t, err)

	// 10 embeds plus the overflow summary.
	require.Len(t, received.Embeds, 11)
	assert.Contains(t, received.Embeds[10].Title, "4 more")
}

func TestDiscordNotifier_NetworkError(t *testing.T) {
	t.Parallel()

	d := NewDiscordNotifier("http://127.0.0.1:1") // nothing listening
	alert := testAlert(domain.ConditionAboveThreshold)
	err := d.SendAlert(context.Background(), &alert)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sending discord webhook")
}

func TestDiscordNotifier_InvalidWebhookURL(t *testing.T) {
	t.Parallel()

	d := NewDiscordNotifier("://not-a-valid-url")
	alert := testAlert(domain.ConditionAboveThreshold)
	err := d.SendAlert(context.Background(), &alert)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "creating discord request")
}

func TestWithHTTPClient(t *testing.T) {
	t.Parallel()

	custom := &http.Client{}
	d := NewDiscordNotifier("https://example.com", WithHTTPClient(custom))
	assert.Same(t, custom, d.client)
}
