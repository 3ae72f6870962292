package control

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noatu/lumirum/internal/device"
	"github.com/noatu/lumirum/internal/engine"
	"github.com/noatu/lumirum/internal/input"
	"github.com/noatu/lumirum/internal/schedule"
)

var boot = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func testMachine(t *testing.T) (*Machine, *schedule.Store) {
	t.Helper()

	sched := schedule.NewStore()
	sched.Replace(schedule.Metadata{
		MinColorTempK: 2400,
		MaxColorTempK: 6500,
		MotionTimeout: 300 * time.Second,
	}, []schedule.Point{
		{Timestamp: boot.Truncate(24 * time.Hour), ColorTempK: 2700},
		{Timestamp: boot.Truncate(24 * time.Hour).Add(12 * time.Hour), ColorTempK: 6500},
	})

	eng := engine.New(sched, engine.Params{
		DefaultColorTempK: 3500,
		PotMax:            4095,
		OffThreshold:      10,
		Hysteresis:        5,
	})

	return New(sched, eng, 200*time.Millisecond, device.NewState(3500, boot)), sched
}

func midPot() input.Sample {
	return input.Sample{PotRaw: 2048}
}

func TestButtonDebounceAbsorbsRapidPresses(t *testing.T) {
	m, _ := testMachine(t)

	in := midPot()
	in.Button = true
	res := m.Tick(boot, in)
	require.Equal(t, device.ModeManual, res.State.Mode)

	// Release, then a second press 150ms after the first: within the
	// debounce window, so it must not toggle again.
	res = m.Tick(boot.Add(100*time.Millisecond), midPot())
	in = midPot()
	in.Button = true
	res = m.Tick(boot.Add(150*time.Millisecond), in)
	assert.Equal(t, device.ModeManual, res.State.Mode, "two presses within 200ms count once")

	// A press after the window toggles back.
	res = m.Tick(boot.Add(300*time.Millisecond), midPot())
	in = midPot()
	in.Button = true
	res = m.Tick(boot.Add(400*time.Millisecond), in)
	assert.Equal(t, device.ModeAuto, res.State.Mode)
}

func TestHeldButtonTogglesOnce(t *testing.T) {
	m, _ := testMachine(t)

	in := midPot()
	in.Button = true
	res := m.Tick(boot, in)
	require.Equal(t, device.ModeManual, res.State.Mode)

	// Level stays high for many ticks: no further edges.
	for i := 1; i <= 10; i++ {
		res = m.Tick(boot.Add(time.Duration(i)*time.Second), in)
	}
	assert.Equal(t, device.ModeManual, res.State.Mode)
}

func TestTickCommitsLastKnownTime(t *testing.T) {
	m, _ := testMachine(t)

	at := boot.Add(50 * time.Millisecond)
	res := m.Tick(at, midPot())
	assert.Equal(t, at, res.State.LastKnownTime)
	assert.Equal(t, at, m.Snapshot().LastKnownTime)
	assert.False(t, res.TimeJumped)
}

func TestForwardJumpExpiresAutoLight(t *testing.T) {
	m, _ := testMachine(t)

	// Motion lights the lamp.
	in := midPot()
	in.Motion = true
	res := m.Tick(boot, in)
	require.True(t, res.State.LightOn)

	// Clock leaps 10 minutes with no motion: the jump retroactively
	// times the light out on the same tick.
	res = m.Tick(boot.Add(10*time.Minute), midPot())
	assert.True(t, res.TimeJumped)
	assert.False(t, res.State.LightOn)
	assert.False(t, res.RefetchSchedule, "10 minutes is below the refetch threshold")
}

func TestLargeForwardJumpRequestsRefetch(t *testing.T) {
	m, _ := testMachine(t)

	m.Tick(boot, midPot())
	res := m.Tick(boot.Add(2*time.Hour), midPot())
	assert.True(t, res.TimeJumped)
	assert.True(t, res.RefetchSchedule)
}

func TestBackwardJumpNeverRefetches(t *testing.T) {
	m, _ := testMachine(t)

	m.Tick(boot, midPot())
	res := m.Tick(boot.Add(-2*time.Hour), midPot())
	assert.True(t, res.TimeJumped)
	assert.False(t, res.RefetchSchedule)
}

func TestMotionLifecycleThroughMachine(t *testing.T) {
	m, _ := testMachine(t)

	in := midPot()
	in.Motion = true
	res := m.Tick(boot, in)
	assert.True(t, res.State.LightOn)
	assert.Equal(t, []engine.Event{engine.EventMotionDetected}, res.Events)

	// Motion clears; ticks walk past the timeout. The timeout event is
	// emitted exactly once.
	var timeouts int
	for i := 1; i <= 320; i++ {
		res = m.Tick(boot.Add(time.Duration(i)*time.Second), midPot())
		for _, ev := range res.Events {
			if ev == engine.EventMotionTimeout {
				timeouts++
			}
		}
	}
	assert.False(t, res.State.LightOn)
	assert.Equal(t, 1, timeouts)
}

func TestSnapshotIsValueCopy(t *testing.T) {
	m, _ := testMachine(t)

	snap := m.Snapshot()
	snap.LightOn = true
	snap.BrightnessPercent = 99

	assert.False(t, m.Snapshot().LightOn, "mutating a snapshot must not touch the machine")
	assert.Zero(t, m.Snapshot().BrightnessPercent)
}

// The console and the /status handler read the machine and the
// schedule store from their own goroutines while the control loop
// ticks and replaces. Run with -race.
func TestConcurrentDiagnosticReads(t *testing.T) {
	m, sched := testMachine(t)

	stop := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		now := boot
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}

			in := midPot()
			in.Motion = i%2 == 0
			m.Tick(now, in)
			now = now.Add(50 * time.Millisecond)

			if i%10 == 0 {
				sched.Replace(schedule.Metadata{
					MinColorTempK: 2400,
					MaxColorTempK: 6500,
					MotionTimeout: 300 * time.Second,
					ValidUntil:    now.Add(-time.Minute),
				}, []schedule.Point{
					{Timestamp: boot.Truncate(24 * time.Hour), ColorTempK: 2700 + i},
				})
			}
		}
	}()

	for i := 0; i < 2000; i++ {
		st := m.Snapshot()
		require.GreaterOrEqual(t, st.BrightnessPercent, 0)
		temp := sched.Lookup(boot.Add(time.Duration(i) * time.Minute))
		require.Greater(t, temp, 0)
		require.LessOrEqual(t, sched.PointCount(), schedule.MaxPoints)
	}

	close(stop)
	<-done
}
