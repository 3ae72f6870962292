// Package render turns a committed device state into a drive frame
// and hands it to a rendering backend. The physical LED strip lives
// outside this process; backends are the stand-ins.
package render

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/noatu/lumirum/internal/color"
	"github.com/noatu/lumirum/internal/device"
)

// Frame is one rendered lighting frame. R, G, B carry the drive color
// for strip-style backends; ColorTempK carries the source temperature
// for backends that speak color temperature natively.
type Frame struct {
	On         bool
	R, G, B    uint8
	Brightness int // 0..100
	ColorTempK int
}

// Renderer applies frames to a backend.
type Renderer interface {
	Apply(ctx context.Context, frame Frame) error
	Close() error
}

// FrameFor computes the drive frame for a state snapshot.
func FrameFor(st device.State) Frame {
	if !st.LightOn {
		return Frame{}
	}

	r, g, b := color.KelvinToRGB(st.ColorTempK)
	return Frame{
		On:         true,
		R:          r,
		G:          g,
		B:          b,
		Brightness: st.BrightnessPercent,
		ColorTempK: st.ColorTempK,
	}
}

// Console renders frames to the log. It is the default backend when
// the daemon runs without any light attached.
type Console struct {
	mu   sync.Mutex
	last Frame
	seen bool
}

// NewConsole creates a console renderer.
func NewConsole() *Console {
	return &Console{}
}

// Apply implements Renderer. Only frame changes are logged. Safe for
// concurrent use; fallback mode applies its frame off the tick loop.
func (c *Console) Apply(_ context.Context, frame Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.seen && frame == c.last {
		return nil
	}
	c.last = frame
	c.seen = true

	if !frame.On {
		log.Info().Msg("Light off")
		return nil
	}

	log.Info().
		Uint8("r", frame.R).
		Uint8("g", frame.G).
		Uint8("b", frame.B).
		Int("brightness", frame.Brightness).
		Msg("Light on")
	return nil
}

// Close implements Renderer.
func (c *Console) Close() error { return nil }
