// Package timejump detects wall-clock discontinuities and reports the
// recovery actions they call for. It never fetches or mutates state;
// callers act on the returned intents.
package timejump

import "time"

// RefetchThreshold is the forward jump beyond which the schedule is
// considered stale enough to refetch immediately.
const RefetchThreshold = time.Hour

// Report describes an observed clock discontinuity.
type Report struct {
	// Jumped is set when the wall clock moved more than the motion
	// timeout, in either direction, since the previous tick.
	Jumped bool

	// Delta is now minus the previously known time. Negative for
	// backward jumps.
	Delta time.Duration

	// RefetchSchedule is set only for forward jumps larger than
	// RefetchThreshold. Small or backward jumps never trigger a fetch.
	RefetchSchedule bool

	// ExpireLight is set when the jump retroactively invalidates a
	// still-on light: in auto mode, the motion age recomputed under
	// the new clock already exceeds the motion timeout.
	ExpireLight bool
}

// Observe compares now against the previously known time and reports
// whether the clock jumped and what should follow from it.
//
// lightOnAuto is whether the light is currently on with the device in
// automatic mode; motionLastSeen is the last motion stamp, both needed
// to decide ExpireLight. The function is pure given its inputs.
func Observe(now, lastKnown time.Time, motionTimeout time.Duration, lightOnAuto bool, motionLastSeen time.Time) Report {
	delta := now.Sub(lastKnown)

	abs := delta
	if abs < 0 {
		abs = -abs
	}
	if abs <= motionTimeout {
		return Report{Delta: delta}
	}

	r := Report{Jumped: true, Delta: delta}

	if lightOnAuto && now.Sub(motionLastSeen) > motionTimeout {
		r.ExpireLight = true
	}

	if delta > RefetchThreshold {
		r.RefetchSchedule = true
	}

	return r
}
