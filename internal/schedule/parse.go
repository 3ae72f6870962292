package schedule

import (
	"encoding/json"
	"fmt"
	"time"
)

// timestampLayout is the wire format of the server's timestamps:
// ISO-8601 without a zone designator, always UTC.
const timestampLayout = "2006-01-02T15:04:05"

// payload mirrors the schedule document served by the API.
type payload struct {
	ProfileID            int64          `json:"profile_id"`
	SleepStartUTCSeconds int            `json:"sleep_start_utc_seconds"`
	SleepEndUTCSeconds   int            `json:"sleep_end_utc_seconds"`
	MinColorTemp         int            `json:"min_color_temp"`
	MaxColorTemp         int            `json:"max_color_temp"`
	NightModeEnabled     bool           `json:"night_mode_enabled"`
	MotionTimeoutSeconds int            `json:"motion_timeout_seconds"`
	GeneratedAt          string         `json:"generated_at"`
	ValidUntil           string         `json:"valid_until"`
	Schedule             []payloadPoint `json:"schedule"`
}

type payloadPoint struct {
	UTC  string `json:"utc"`
	Temp int    `json:"temp"`
}

// Parse decodes a schedule document. Any malformed field rejects the
// whole payload; a partial schedule is never returned.
func Parse(data []byte) (Metadata, []Point, error) {
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Metadata{}, nil, fmt.Errorf("decode schedule payload: %w", err)
	}

	generatedAt, err := parseTimestamp(p.GeneratedAt)
	if err != nil {
		return Metadata{}, nil, fmt.Errorf("generated_at: %w", err)
	}
	validUntil, err := parseTimestamp(p.ValidUntil)
	if err != nil {
		return Metadata{}, nil, fmt.Errorf("valid_until: %w", err)
	}

	if p.MotionTimeoutSeconds < 0 {
		return Metadata{}, nil, fmt.Errorf("motion_timeout_seconds is negative: %d", p.MotionTimeoutSeconds)
	}

	meta := Metadata{
		ProfileID:         p.ProfileID,
		SleepStartSeconds: p.SleepStartUTCSeconds,
		SleepEndSeconds:   p.SleepEndUTCSeconds,
		MinColorTempK:     p.MinColorTemp,
		MaxColorTempK:     p.MaxColorTemp,
		NightModeEnabled:  p.NightModeEnabled,
		MotionTimeout:     time.Duration(p.MotionTimeoutSeconds) * time.Second,
		GeneratedAt:       generatedAt,
		ValidUntil:        validUntil,
	}

	points := make([]Point, 0, len(p.Schedule))
	for i, pp := range p.Schedule {
		ts, err := parseTimestamp(pp.UTC)
		if err != nil {
			return Metadata{}, nil, fmt.Errorf("schedule point %d: %w", i, err)
		}
		points = append(points, Point{Timestamp: ts, ColorTempK: pp.Temp})
	}

	return meta, points, nil
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}
