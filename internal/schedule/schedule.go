// Package schedule holds the daily lighting schedule and answers
// cyclic, interpolated color temperature queries against it.
package schedule

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// MaxPoints bounds the schedule table. Payloads with more entries are
// truncated to the first MaxPoints points.
const MaxPoints = 96

// DefaultColorTempK is served while no schedule is loaded.
const DefaultColorTempK = 3500

// DefaultMotionTimeout applies until a schedule provides its own.
const DefaultMotionTimeout = 5 * time.Minute

// Metadata carries the per-profile settings that arrive alongside the
// schedule points.
type Metadata struct {
	ProfileID         int64
	SleepStartSeconds int // seconds since UTC midnight
	SleepEndSeconds   int
	MinColorTempK     int
	MaxColorTempK     int
	NightModeEnabled  bool
	MotionTimeout     time.Duration
	GeneratedAt       time.Time
	ValidUntil        time.Time
}

// Point is a single schedule entry. Only the UTC time-of-day of the
// timestamp participates in lookup; the calendar date is ignored.
type Point struct {
	Timestamp  time.Time
	ColorTempK int
}

// Store is the active schedule. The control loop replaces it wholesale
// on each successful fetch; a stale schedule stays in force until a
// replacement lands. The diagnostic surfaces (console, /status) read it
// from their own goroutines, so all access is mutex-guarded.
type Store struct {
	mu     sync.Mutex
	meta   Metadata
	points []Point
	loaded bool

	expiredWarned bool
}

// NewStore returns an empty store serving defaults.
func NewStore() *Store {
	return &Store{
		meta: Metadata{
			MinColorTempK: DefaultColorTempK,
			MaxColorTempK: 6500,
			MotionTimeout: DefaultMotionTimeout,
		},
	}
}

// Replace swaps in a freshly fetched schedule. Points beyond MaxPoints
// are dropped. The expiry warning re-arms for the new validity window.
func (s *Store) Replace(meta Metadata, points []Point) {
	if len(points) > MaxPoints {
		log.Warn().
			Int("points", len(points)).
			Int("max", MaxPoints).
			Msg("Schedule exceeds capacity, truncating")
		points = points[:MaxPoints]
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.meta = meta
	s.points = points
	s.loaded = true
	s.expiredWarned = false

	log.Info().
		Int64("profile_id", meta.ProfileID).
		Int("points", len(points)).
		Dur("motion_timeout", meta.MotionTimeout).
		Bool("night_mode", meta.NightModeEnabled).
		Time("valid_until", meta.ValidUntil).
		Msg("Schedule loaded")
}

// Loaded reports whether a schedule has been committed since boot.
func (s *Store) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// Metadata returns a copy of the active schedule metadata.
func (s *Store) Metadata() Metadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meta
}

// PointCount returns the number of stored points.
func (s *Store) PointCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.points)
}

// MotionTimeout returns the active motion timeout, falling back to the
// default when no schedule has arrived yet.
func (s *Store) MotionTimeout() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.meta.MotionTimeout <= 0 {
		return DefaultMotionTimeout
	}
	return s.meta.MotionTimeout
}

// Lookup returns the color temperature for now.
//
// The schedule is treated as cyclic over the UTC day: consecutive
// point pairs are compared by time-of-day and the first pair bracketing
// now is interpolated linearly. Past the last point the last point's
// temperature is served flat; the wrap segment back to the first point
// is intentionally not interpolated. Night mode, when enabled and
// active, overrides interpolation with the profile minimum.
//
// Expiry of the validity window is advisory: it is logged once per
// schedule and lookup keeps serving cyclic data.
func (s *Store) Lookup(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded || len(s.points) == 0 {
		return DefaultColorTempK
	}

	if s.meta.NightModeEnabled && s.isNight(now) {
		return s.meta.MinColorTempK
	}

	if !s.meta.ValidUntil.IsZero() && now.After(s.meta.ValidUntil) && !s.expiredWarned {
		log.Warn().
			Time("valid_until", s.meta.ValidUntil).
			Msg("Schedule expired, continuing with cyclic lookup")
		s.expiredWarned = true
	}

	nowSec := daySeconds(now)

	for i := 0; i < len(s.points)-1; i++ {
		sec1 := daySeconds(s.points[i].Timestamp)
		sec2 := daySeconds(s.points[i+1].Timestamp)

		if nowSec >= sec1 && nowSec < sec2 {
			progress := float64(nowSec-sec1) / float64(sec2-sec1)
			t1 := s.points[i].ColorTempK
			t2 := s.points[i+1].ColorTempK
			return t1 + int(progress*float64(t2-t1))
		}
	}

	return s.points[len(s.points)-1].ColorTempK
}

// IsNight reports whether now falls inside the configured sleep
// window. A window with start > end wraps across midnight.
func (s *Store) IsNight(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isNight(now)
}

func (s *Store) isNight(now time.Time) bool {
	sec := daySeconds(now)
	start := s.meta.SleepStartSeconds
	end := s.meta.SleepEndSeconds

	if start <= end {
		return sec >= start && sec < end
	}
	return sec >= start || sec < end
}

// daySeconds converts an instant to seconds since UTC midnight.
func daySeconds(t time.Time) int {
	utc := t.UTC()
	return utc.Hour()*3600 + utc.Minute()*60 + utc.Second()
}
