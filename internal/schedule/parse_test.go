package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validPayload = `{
	"profile_id": 7,
	"sleep_start_utc_seconds": 79200,
	"sleep_end_utc_seconds": 21600,
	"min_color_temp": 2400,
	"max_color_temp": 6500,
	"night_mode_enabled": true,
	"motion_timeout_seconds": 300,
	"generated_at": "2026-03-14T00:00:00",
	"valid_until": "2026-03-15T00:00:00",
	"schedule": [
		{"utc": "2026-03-14T00:00:00", "temp": 2700},
		{"utc": "2026-03-14T12:00:00", "temp": 6500}
	]
}`

func TestParseValidPayload(t *testing.T) {
	meta, points, err := Parse([]byte(validPayload))
	require.NoError(t, err)

	assert.Equal(t, int64(7), meta.ProfileID)
	assert.Equal(t, 79200, meta.SleepStartSeconds)
	assert.Equal(t, 21600, meta.SleepEndSeconds)
	assert.Equal(t, 2400, meta.MinColorTempK)
	assert.Equal(t, 6500, meta.MaxColorTempK)
	assert.True(t, meta.NightModeEnabled)
	assert.Equal(t, 300*time.Second, meta.MotionTimeout)
	assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), meta.GeneratedAt)
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), meta.ValidUntil)

	require.Len(t, points, 2)
	assert.Equal(t, 2700, points[0].ColorTempK)
	assert.Equal(t, time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC), points[1].Timestamp)
}

func TestParseRejectsWholePayload(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{
			name:    "not_json",
			payload: `<html>gateway timeout</html>`,
		},
		{
			name:    "malformed_valid_until",
			payload: `{"generated_at":"2026-03-14T00:00:00","valid_until":"not-a-time","schedule":[]}`,
		},
		{
			name: "malformed_point_timestamp",
			payload: `{"generated_at":"2026-03-14T00:00:00","valid_until":"2026-03-15T00:00:00",
				"schedule":[{"utc":"2026-03-14T00:00:00","temp":2700},{"utc":"garbage","temp":3000}]}`,
		},
		{
			name: "negative_motion_timeout",
			payload: `{"motion_timeout_seconds":-1,"generated_at":"2026-03-14T00:00:00",
				"valid_until":"2026-03-15T00:00:00","schedule":[]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, points, err := Parse([]byte(tt.payload))
			assert.Error(t, err)
			assert.Nil(t, points)
		})
	}
}

func TestParseRejectionLeavesStoreUntouched(t *testing.T) {
	s := NewStore()
	meta, points, err := Parse([]byte(validPayload))
	require.NoError(t, err)
	s.Replace(meta, points)

	_, _, err = Parse([]byte(`{"valid_until":"garbage"}`))
	require.Error(t, err)

	// The previously committed schedule stays authoritative.
	assert.True(t, s.Loaded())
	assert.Equal(t, 2, s.PointCount())
	assert.Equal(t, 4600, s.Lookup(atDaySeconds(21600)))
}
