// Package device defines the authoritative device state types.
package device

import "time"

// Mode is the operating mode of the lighting decision engine.
type Mode uint8

const (
	// ModeAuto lets motion govern the light.
	ModeAuto Mode = iota
	// ModeManual ignores motion; the user drives the light directly.
	ModeManual
)

// String returns a human-readable mode name.
func (m Mode) String() string {
	switch m {
	case ModeAuto:
		return "auto"
	case ModeManual:
		return "manual"
	default:
		return "unknown"
	}
}

// State is the mutable device state. It is owned exclusively by the
// control machine; everything else receives value copies.
//
// Config fallback is not part of this struct on purpose: it is a
// top-level operating state of the process, and keeping it out of the
// per-tick state makes the illegal combination "ticking while in
// fallback" unrepresentable.
type State struct {
	Mode              Mode
	LightOn           bool
	BrightnessPercent int // 0..100
	ColorTempK        int
	MotionLastSeenAt  time.Time
	LastKnownTime     time.Time
}

// NewState returns the boot state: automatic mode, light off, default
// color temperature.
func NewState(defaultColorTempK int, now time.Time) State {
	return State{
		Mode:          ModeAuto,
		ColorTempK:    defaultColorTempK,
		LastKnownTime: now,
	}
}
