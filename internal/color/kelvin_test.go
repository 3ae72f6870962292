package color

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKelvinToRGBKnownValues(t *testing.T) {
	tests := []struct {
		name    string
		kelvin  int
		r, g, b uint8
	}{
		{name: "candlelight", kelvin: 1900, r: 255, g: 131, b: 0},
		{name: "warm_white", kelvin: 3500, r: 255, g: 192, b: 140},
		{name: "daylight_boundary", kelvin: 6600, r: 255, g: 255, b: 255},
		{name: "cool_daylight", kelvin: 10000, r: 201, g: 218, b: 255},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, g, b := KelvinToRGB(tt.kelvin)
			assert.Equal(t, tt.r, r, "red")
			assert.Equal(t, tt.g, g, "green")
			assert.Equal(t, tt.b, b, "blue")
		})
	}
}

// The red and green curves switch formulas at temp=66. A schedule
// sweeping through 6600K must not produce a visible step: red stays
// continuous within one unit, green carries the empirical fit's small
// seam but stays near-white on both sides.
func TestKelvinToRGBBoundaryContinuity(t *testing.T) {
	rBelow, gBelow, bBelow := KelvinToRGB(6600)
	rAbove, gAbove, bAbove := KelvinToRGB(6601)

	assert.Equal(t, [3]uint8{255, 255, 255}, [3]uint8{rBelow, gBelow, bBelow})
	assert.InDelta(t, int(rBelow), int(rAbove), 1)
	assert.GreaterOrEqual(t, gAbove, uint8(250))
	assert.Equal(t, uint8(255), bAbove)
}

func TestKelvinToRGBBlueCutoffs(t *testing.T) {
	_, _, b := KelvinToRGB(1900)
	assert.Equal(t, uint8(0), b, "blue is zero at temp<=19")

	_, _, b = KelvinToRGB(6600)
	assert.Equal(t, uint8(255), b, "blue saturates at temp>=66")
}

func TestKelvinToRGBRangeSweep(t *testing.T) {
	// Truncated uint8 results cannot leave [0,255]; what the sweep
	// guards is that no channel hits NaN or an overflow wrap anywhere
	// in the device's plausible input range.
	for k := 1000; k <= 40000; k += 50 {
		r, _, b := KelvinToRGB(k)
		if k <= 6600 {
			assert.Equal(t, uint8(255), r, "kelvin=%d red saturates on warm side", k)
		}
		if k >= 6600 {
			assert.Equal(t, uint8(255), b, "kelvin=%d blue saturates on cool side", k)
		}
	}
}
