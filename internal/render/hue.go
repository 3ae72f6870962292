package render

import (
	"context"
	"fmt"
	"sync"

	"github.com/amimof/huego"
	"github.com/rs/zerolog/log"
)

// Hue renders frames onto a single Hue light, for running the daemon
// against a bridge instead of a strip.
type Hue struct {
	bridge  *huego.Bridge
	lightID int

	mu   sync.Mutex
	last Frame
	seen bool
}

// NewHue connects to a bridge and verifies the target light exists.
func NewHue(host, user string, lightID int) (*Hue, error) {
	bridge := huego.New(host, user)

	if _, err := bridge.GetLight(lightID); err != nil {
		return nil, fmt.Errorf("hue light %d: %w", lightID, err)
	}

	log.Info().Str("bridge", host).Int("light", lightID).Msg("Hue renderer connected")
	return &Hue{bridge: bridge, lightID: lightID}, nil
}

// Apply implements Renderer. The frame's color temperature reaches the
// bridge as mireds; brightness percent maps onto the 1..254 range.
func (h *Hue) Apply(ctx context.Context, frame Frame) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.seen && frame == h.last {
		return nil
	}

	state := huego.State{On: frame.On}
	if frame.On {
		state.Bri = briFromPercent(frame.Brightness)
		state.Ct = miredsFromKelvin(frame.ColorTempK)
	}

	if _, err := h.bridge.SetLightStateContext(ctx, h.lightID, state); err != nil {
		return fmt.Errorf("set light state: %w", err)
	}

	h.last = frame
	h.seen = true
	return nil
}

// Close implements Renderer.
func (h *Hue) Close() error { return nil }

func briFromPercent(percent int) uint8 {
	if percent <= 0 {
		return 1
	}
	if percent >= 100 {
		return 254
	}
	return uint8(1 + percent*253/100)
}

// miredsFromKelvin converts a color temperature into the bridge's
// mired scale, clamped to the 153..500 range Hue lights accept.
func miredsFromKelvin(kelvin int) uint16 {
	if kelvin <= 0 {
		return 500
	}
	mireds := 1_000_000 / kelvin
	if mireds < 153 {
		mireds = 153
	}
	if mireds > 500 {
		mireds = 500
	}
	return uint16(mireds)
}
