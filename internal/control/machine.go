// Package control owns the authoritative device state and advances it
// one tick at a time: clock reconciliation, input debounce, decision
// engine, commit. Side effects are returned as intents; the machine
// itself never fetches or renders.
package control

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/noatu/lumirum/internal/device"
	"github.com/noatu/lumirum/internal/engine"
	"github.com/noatu/lumirum/internal/input"
	"github.com/noatu/lumirum/internal/schedule"
	"github.com/noatu/lumirum/internal/timejump"
)

// TickResult is the committed state plus the side effects one tick
// asks for.
type TickResult struct {
	State           device.State
	Events          []engine.Event
	TimeJumped      bool
	RefetchSchedule bool
}

// Machine is the device state machine. Ticks are driven from a single
// goroutine and run to completion before the next begins; the mutex
// exists for the diagnostic surfaces, which snapshot the state from
// their own goroutines.
type Machine struct {
	mu    sync.Mutex
	state device.State
	sched *schedule.Store
	eng   *engine.Engine

	buttonDebounce    time.Duration
	lastButtonLevel   bool
	lastAcceptedPress time.Time
}

// New creates a machine at the boot state.
func New(sched *schedule.Store, eng *engine.Engine, buttonDebounce time.Duration, boot device.State) *Machine {
	return &Machine{
		state:          boot,
		sched:          sched,
		eng:            eng,
		buttonDebounce: buttonDebounce,
	}
}

// Snapshot returns a value copy of the current state.
func (m *Machine) Snapshot() device.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Tick advances the machine by one control tick.
func (m *Machine) Tick(now time.Time, in input.Sample) TickResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.state

	rep := timejump.Observe(
		now,
		st.LastKnownTime,
		m.sched.MotionTimeout(),
		st.LightOn && st.Mode == device.ModeAuto,
		st.MotionLastSeenAt,
	)
	if rep.Jumped {
		log.Warn().
			Dur("delta", rep.Delta).
			Bool("expire_light", rep.ExpireLight).
			Bool("refetch", rep.RefetchSchedule).
			Msg("Time jump detected")

		if rep.ExpireLight {
			st.LightOn = false
		}
	}

	pressed := m.debounceButton(now, in.Button)

	st, events := m.eng.Evaluate(now, st, engine.Inputs{
		ButtonPressed: pressed,
		Motion:        in.Motion,
		PotRaw:        in.PotRaw,
	})

	st.LastKnownTime = now
	m.state = st

	return TickResult{
		State:           st,
		Events:          events,
		TimeJumped:      rep.Jumped,
		RefetchSchedule: rep.RefetchSchedule,
	}
}

// debounceButton turns the raw button level into an accepted press
// edge. Rising edges closer together than the debounce window are
// silently absorbed.
func (m *Machine) debounceButton(now time.Time, level bool) bool {
	accepted := level && !m.lastButtonLevel && now.Sub(m.lastAcceptedPress) > m.buttonDebounce
	if accepted {
		m.lastAcceptedPress = now
	}
	m.lastButtonLevel = level
	return accepted
}
