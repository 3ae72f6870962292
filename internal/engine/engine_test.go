package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/noatu/lumirum/internal/device"
)

var now = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

// fakeSchedule is a synthetic schedule source for engine tests.
type fakeSchedule struct {
	temp    int
	timeout time.Duration
}

func (f *fakeSchedule) Lookup(time.Time) int         { return f.temp }
func (f *fakeSchedule) MotionTimeout() time.Duration { return f.timeout }

func newTestEngine(temp int) *Engine {
	return New(&fakeSchedule{temp: temp, timeout: 300 * time.Second}, Params{
		DefaultColorTempK: 3500,
		PotMax:            4095,
		OffThreshold:      10,
		Hysteresis:        5,
	})
}

// potRaw returns the smallest raw ADC value that maps to the given
// percent under the engine's truncating range map.
func potRaw(percent int) int {
	return (percent*4095 + 99) / 100
}

func TestButtonTogglesMode(t *testing.T) {
	e := newTestEngine(4600)
	st := device.NewState(3500, now)

	st, events := e.Evaluate(now, st, Inputs{ButtonPressed: true, PotRaw: potRaw(50)})
	assert.Equal(t, device.ModeManual, st.Mode)
	assert.True(t, st.LightOn, "entering manual forces light on")
	assert.Equal(t, 3500, st.ColorTempK, "manual starts at default temp")
	assert.Equal(t, []Event{EventModeChange}, events)

	st, events = e.Evaluate(now.Add(time.Second), st, Inputs{ButtonPressed: true, PotRaw: potRaw(50)})
	assert.Equal(t, device.ModeAuto, st.Mode)
	assert.False(t, st.LightOn, "entering auto forces light off until motion re-asserts")
	assert.Equal(t, []Event{EventModeChange}, events)
}

func TestMotionRisingEdgeTurnsLightOn(t *testing.T) {
	e := newTestEngine(4600)
	st := device.NewState(3500, now)

	st, events := e.Evaluate(now, st, Inputs{Motion: true, PotRaw: potRaw(50)})
	assert.True(t, st.LightOn)
	assert.Equal(t, now, st.MotionLastSeenAt)
	assert.Equal(t, 4600, st.ColorTempK, "color temp comes from the schedule")
	assert.Equal(t, []Event{EventMotionDetected}, events)

	// Sustained motion keeps refreshing the stamp and temperature but
	// does not re-emit the detection event.
	later := now.Add(time.Minute)
	st, events = e.Evaluate(later, st, Inputs{Motion: true, PotRaw: potRaw(50)})
	assert.True(t, st.LightOn)
	assert.Equal(t, later, st.MotionLastSeenAt)
	assert.Empty(t, events)
}

func TestMotionTracksScheduleWhilePresent(t *testing.T) {
	sched := &fakeSchedule{temp: 4000, timeout: 300 * time.Second}
	e := New(sched, Params{DefaultColorTempK: 3500, PotMax: 4095, OffThreshold: 10, Hysteresis: 5})
	st := device.NewState(3500, now)

	st, _ = e.Evaluate(now, st, Inputs{Motion: true, PotRaw: potRaw(50)})
	assert.Equal(t, 4000, st.ColorTempK)

	sched.temp = 4100
	st, _ = e.Evaluate(now.Add(time.Second), st, Inputs{Motion: true, PotRaw: potRaw(50)})
	assert.Equal(t, 4100, st.ColorTempK, "interpolation drift is tracked live")
}

func TestMotionTimeoutFiresOnce(t *testing.T) {
	e := newTestEngine(4600)
	st := device.NewState(3500, now)

	st, _ = e.Evaluate(now, st, Inputs{Motion: true, PotRaw: potRaw(50)})

	// Motion clears; inside the timeout the light stays on.
	at := now.Add(300 * time.Second)
	st, events := e.Evaluate(at, st, Inputs{PotRaw: potRaw(50)})
	assert.True(t, st.LightOn, "exactly at the timeout the light is still on")
	assert.Empty(t, events)

	at = at.Add(time.Second)
	st, events = e.Evaluate(at, st, Inputs{PotRaw: potRaw(50)})
	assert.False(t, st.LightOn)
	assert.Equal(t, []Event{EventMotionTimeout}, events)

	// Further ticks past the timeout stay dark and silent.
	for i := 0; i < 5; i++ {
		at = at.Add(time.Second)
		st, events = e.Evaluate(at, st, Inputs{PotRaw: potRaw(50)})
		assert.False(t, st.LightOn)
		assert.Empty(t, events)
	}
}

func TestManualModeIgnoresMotion(t *testing.T) {
	e := newTestEngine(4600)
	st := device.NewState(3500, now)
	st.Mode = device.ModeManual
	st.LightOn = true
	st.ColorTempK = 3500

	st, events := e.Evaluate(now, st, Inputs{Motion: true, PotRaw: potRaw(50)})
	assert.Empty(t, events)
	assert.Equal(t, 3500, st.ColorTempK, "manual does not follow the schedule")

	// No motion for hours: a manual light never times out.
	st, events = e.Evaluate(now.Add(3*time.Hour), st, Inputs{PotRaw: potRaw(50)})
	assert.True(t, st.LightOn)
	assert.Empty(t, events)
}

func TestPotOffThresholdForcesManualLightOff(t *testing.T) {
	e := newTestEngine(4600)
	st := device.NewState(3500, now)
	st.Mode = device.ModeManual
	st.LightOn = true
	st.BrightnessPercent = 50

	st, _ = e.Evaluate(now, st, Inputs{PotRaw: potRaw(8)})
	assert.False(t, st.LightOn)
	assert.Equal(t, 0, st.BrightnessPercent)

	// Raising the pot again relights a manual light.
	st, _ = e.Evaluate(now.Add(time.Second), st, Inputs{PotRaw: potRaw(60)})
	assert.True(t, st.LightOn)
	assert.Equal(t, 60, st.BrightnessPercent)
}

func TestPotOffThresholdDoesNotKillAutoLight(t *testing.T) {
	e := newTestEngine(4600)
	st := device.NewState(3500, now)

	st, _ = e.Evaluate(now, st, Inputs{Motion: true, PotRaw: potRaw(8)})
	assert.True(t, st.LightOn, "auto on/off stays motion-governed")
	assert.Equal(t, 0, st.BrightnessPercent, "brightness still clamps to zero")
}

func TestPotHysteresisSuppressesSmallChanges(t *testing.T) {
	e := newTestEngine(4600)
	st := device.NewState(3500, now)
	st.Mode = device.ModeManual
	st.LightOn = true
	st.BrightnessPercent = 50

	tests := []struct {
		name    string
		percent int
		want    int
	}{
		{name: "small_wiggle_up", percent: 54, want: 50},
		{name: "small_wiggle_down", percent: 46, want: 50},
		{name: "at_band_edge", percent: 55, want: 50},
		{name: "beyond_band", percent: 56, want: 56},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st.BrightnessPercent = 50
			got, _ := e.Evaluate(now, st, Inputs{PotRaw: potRaw(tt.percent)})
			assert.Equal(t, tt.want, got.BrightnessPercent)
		})
	}
}

func TestInputPriorityWithinTick(t *testing.T) {
	// Button and motion in the same tick: the toggle lands first, so a
	// device leaving auto ignores the motion signal that same tick.
	e := newTestEngine(4600)
	st := device.NewState(3500, now)

	st, events := e.Evaluate(now, st, Inputs{ButtonPressed: true, Motion: true, PotRaw: potRaw(50)})
	assert.Equal(t, device.ModeManual, st.Mode)
	assert.True(t, st.LightOn)
	assert.Equal(t, 3500, st.ColorTempK, "temp stays at manual default, not schedule")
	assert.Equal(t, []Event{EventModeChange}, events)
}
