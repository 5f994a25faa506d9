package cronexpr_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/report-dispatch/internal/cronexpr"
)

func TestNext(t *testing.T) {
	t.Parallel()

	after := time.Date(2025, 6, 2, 7, 15, 0, 0, time.UTC) // Monday

	tests := []struct {
		name     string
		expr     string
		timezone string
		want     time.Time
	}{
		{
			name: "daily at 08:00",
			expr: "0 8 * * *",
			want: time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC),
		},
		{
			name: "hourly on the hour",
			expr: "0 * * * *",
			want: time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC),
		},
		{
			name: "every five minutes",
			expr: "*/5 * * * *",
			want: time.Date(2025, 6, 2, 7, 20, 0, 0, time.UTC),
		},
		{
			name: "weekly next monday when time has passed",
			expr: "0 7 * * 1",
			want: time.Date(2025, 6, 9, 7, 0, 0, 0, time.UTC),
		},
		{
			name: "monthly on the first",
			expr: "0 8 1 * *",
			want: time.Date(2025, 7, 1, 8, 0, 0, 0, time.UTC),
		},
		{
			name:     "timezone shifts wall clock",
			expr:     "0 8 * * *",
			timezone: "America/New_York",
			// 08:00 New York is 12:00 UTC in June (EDT).
			want: time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := cronexpr.Next(tt.expr, tt.timezone, after)
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %s, want %s", got, tt.want)
		})
	}
}

func TestNext_InvalidExpression(t *testing.T) {
	t.Parallel()

	_, err := cronexpr.Next("not a cron", "", time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing cron expression")
}

func TestNext_InvalidTimezone(t *testing.T) {
	t.Parallel()

	_, err := cronexpr.Next("0 8 * * *", "Mars/Olympus", time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading timezone")
}

func TestValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, cronexpr.Validate("0 8 * * 1", ""))
	assert.NoError(t, cronexpr.Validate("@hourly", "Europe/Berlin"))
	assert.Error(t, cronexpr.Validate("61 8 * * *", ""))
	assert.Error(t, cronexpr.Validate("0 8 * * *", "Mars/Olympus"))
}
