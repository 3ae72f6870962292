// Package engine computes per-tick lighting decisions from the device
// state, the active schedule, and the polled inputs. All functions
// operate on state copies and return the result; the control machine
// commits it.
package engine

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/noatu/lumirum/internal/device"
)

// Event is a device event the engine asks to have emitted.
type Event string

const (
	EventModeChange     Event = "mode_change"
	EventMotionDetected Event = "motion_detected"
	EventMotionTimeout  Event = "motion_timeout"
)

// ScheduleSource is the subset of the schedule store the engine
// consumes. Tests substitute synthetic schedules through it.
type ScheduleSource interface {
	Lookup(now time.Time) int
	MotionTimeout() time.Duration
}

// Params are the fixed thresholds of the decision rules.
type Params struct {
	DefaultColorTempK int
	PotMax            int // raw ADC full-scale value
	OffThreshold      int // percent at or below which the pot forces off
	Hysteresis        int // percent band a brightness change must exceed
}

// Inputs are one tick's worth of polled input signals. ButtonPressed
// is the debounced edge supplied by the control machine, not the raw
// button level.
type Inputs struct {
	ButtonPressed bool
	Motion        bool
	PotRaw        int
}

// Engine evaluates the decision rules against a schedule source.
type Engine struct {
	sched  ScheduleSource
	params Params
}

// New creates an engine.
func New(sched ScheduleSource, params Params) *Engine {
	return &Engine{sched: sched, params: params}
}

// Evaluate runs one tick of decisions over a copy of st and returns
// the resulting state plus the events to emit. Inputs are applied in
// priority order: button (explicit mode toggle), then motion
// (presence), then potentiometer (ambient dimmer). Later writers win
// within the tick.
func (e *Engine) Evaluate(now time.Time, st device.State, in Inputs) (device.State, []Event) {
	var events []Event

	if in.ButtonPressed {
		st = e.toggleMode(st)
		events = append(events, EventModeChange)
	}

	if st.Mode == device.ModeAuto {
		st, events = e.applyMotion(now, st, in.Motion, events)
	}

	st = e.applyPot(st, in.PotRaw)

	return st, events
}

// toggleMode flips between automatic and manual mode. Entering auto
// drops the light so motion has to re-assert it; entering manual
// raises it at the default color temperature.
func (e *Engine) toggleMode(st device.State) device.State {
	if st.Mode == device.ModeAuto {
		st.Mode = device.ModeManual
		st.LightOn = true
		st.ColorTempK = e.params.DefaultColorTempK
	} else {
		st.Mode = device.ModeAuto
		st.LightOn = false
	}

	log.Info().Stringer("mode", st.Mode).Msg("Mode switched")
	return st
}

// applyMotion handles the presence signal. While motion is present the
// color temperature tracks the schedule every tick, so interpolation
// drift is rendered live.
func (e *Engine) applyMotion(now time.Time, st device.State, motion bool, events []Event) (device.State, []Event) {
	if motion {
		if !st.LightOn {
			log.Info().Msg("Motion detected, turning light on")
			events = append(events, EventMotionDetected)
		}
		st.LightOn = true
		st.MotionLastSeenAt = now
		st.ColorTempK = e.sched.Lookup(now)
		return st, events
	}

	if st.LightOn && now.Sub(st.MotionLastSeenAt) > e.sched.MotionTimeout() {
		log.Info().Dur("timeout", e.sched.MotionTimeout()).Msg("Motion timeout, turning light off")
		st.LightOn = false
		events = append(events, EventMotionTimeout)
	}

	return st, events
}

// applyPot maps the raw potentiometer reading to percent and applies
// the two-threshold policy: at or below OffThreshold the light is
// forced off (outside auto) and brightness clamps to zero; above it a
// dark manual light comes back on. The Hysteresis band gates only the
// stored brightness value, not the on/off boundary.
func (e *Engine) applyPot(st device.State, potRaw int) device.State {
	brightness := e.mapPot(potRaw)

	if brightness <= e.params.OffThreshold {
		if st.LightOn && st.Mode != device.ModeAuto {
			log.Debug().Msg("Potentiometer at minimum, turning light off")
			st.LightOn = false
		}
		st.BrightnessPercent = 0
		return st
	}

	if st.Mode == device.ModeManual && !st.LightOn {
		log.Debug().Int("brightness", brightness).Msg("Potentiometer raised, turning light on")
		st.LightOn = true
	}

	if abs(brightness-st.BrightnessPercent) > e.params.Hysteresis {
		st.BrightnessPercent = brightness
	}

	return st
}

// mapPot converts a raw ADC reading into [0,100] percent.
func (e *Engine) mapPot(raw int) int {
	if raw < 0 {
		raw = 0
	}
	if raw > e.params.PotMax {
		raw = e.params.PotMax
	}
	return raw * 100 / e.params.PotMax
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
