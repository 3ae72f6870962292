// Package input abstracts the polled input signals. Raw GPIO/ADC
// access is outside this process; drivers implement Source.
package input

import "sync"

// Sample is one tick's worth of raw input levels.
type Sample struct {
	Button bool // button level, pressed = true
	Motion bool // PIR level, presence = true
	PotRaw int  // raw ADC reading, 0..pot full scale
}

// Source provides input samples to the control loop, one per tick.
type Source interface {
	Poll() Sample
}

// Sim is an in-memory input driver, driven by the diagnostic console.
// Button presses latch for exactly one poll; motion and pot hold their
// level until changed.
type Sim struct {
	mu     sync.Mutex
	button bool
	motion bool
	potRaw int
}

// NewSim creates a simulator with the pot at the given raw level.
func NewSim(potRaw int) *Sim {
	return &Sim{potRaw: potRaw}
}

// Poll returns the current levels and releases a latched button press.
func (s *Sim) Poll() Sample {
	s.mu.Lock()
	defer s.mu.Unlock()

	sample := Sample{Button: s.button, Motion: s.motion, PotRaw: s.potRaw}
	s.button = false
	return sample
}

// PressButton latches a button press for the next poll.
func (s *Sim) PressButton() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.button = true
}

// SetMotion sets the presence level.
func (s *Sim) SetMotion(present bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.motion = present
}

// SetPot sets the raw potentiometer level.
func (s *Sim) SetPot(raw int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.potRaw = raw
}
