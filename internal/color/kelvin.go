// Package color converts color temperature to a drive color.
package color

import "math"

// KelvinToRGB maps a color temperature in Kelvin to an RGB drive color
// using Tanner Helland's empirical approximation.
// https://tannerhelland.com/2012/09/18/convert-temperature-rgb-algorithm-code.html
//
// The input is not range-checked; each channel is clamped to [0,255]
// before truncation, so out-of-range temperatures still yield a valid
// color. Channel values are truncated, not rounded.
func KelvinToRGB(kelvin int) (r, g, b uint8) {
	temp := float64(kelvin) / 100.0

	var red, green, blue float64

	if temp <= 66 {
		red = 255
	} else {
		red = 329.698727446 * math.Pow(temp-60, -0.1332047592)
		red = clamp(red)
	}

	if temp <= 66 {
		green = 99.4708025861*math.Log(temp) - 161.1195681661
		green = clamp(green)
	} else {
		green = 288.1221695283 * math.Pow(temp-60, -0.0755148492)
		green = clamp(green)
	}

	switch {
	case temp >= 66:
		blue = 255
	case temp <= 19:
		blue = 0
	default:
		blue = 138.5177312231*math.Log(temp-10) - 305.0447927307
		blue = clamp(blue)
	}

	return uint8(red), uint8(green), uint8(blue)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}
