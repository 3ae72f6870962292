package app

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/noatu/lumirum/internal/color"
	"github.com/noatu/lumirum/internal/config"
	"github.com/noatu/lumirum/internal/keystore"
	"github.com/noatu/lumirum/internal/recovery"
	"github.com/noatu/lumirum/internal/render"
)

// RecoveryService owns config fallback mode: when the device has no
// usable API key, normal control is suspended, the light is parked on
// a warm warning color, and a local portal accepts a replacement key.
// Accepting a key requests a process restart.
type RecoveryService struct {
	cfg      *config.Config
	keys     *keystore.Store
	renderer render.Renderer
	control  *ControlService
	restart  func()

	active atomic.Bool
}

func NewRecoveryService(
	cfg *config.Config,
	keys *keystore.Store,
	renderer render.Renderer,
	control *ControlService,
	restart func(),
) *RecoveryService {
	return &RecoveryService{
		cfg:      cfg,
		keys:     keys,
		renderer: renderer,
		control:  control,
		restart:  restart,
	}
}

// Active reports whether the device is in config fallback mode.
func (s *RecoveryService) Active() bool {
	return s.active.Load()
}

// Enter switches the device into config fallback mode. Safe to call
// from any goroutine; repeated triggers (fetch 401 and telemetry 401
// racing each other) enter only once.
func (s *RecoveryService) Enter(ctx context.Context) {
	if !s.active.CompareAndSwap(false, true) {
		return
	}

	log.Warn().Msg("Entering config fallback mode")
	s.control.Suspend()

	if err := s.renderer.Apply(ctx, s.warningFrame()); err != nil {
		log.Warn().Err(err).Msg("Failed to render fallback warning color")
	}

	server := recovery.NewServer(
		s.cfg.Recovery.Host,
		s.cfg.Recovery.Port,
		s.cfg.API.KeyLength,
		s.keys,
		func() {
			log.Info().Msg("New API key accepted, restarting")
			s.restart()
		},
	)

	go func() {
		if err := server.Run(ctx, s.cfg.GetShutdownTimeout()); err != nil {
			log.Error().Err(err).Msg("Config portal stopped with error")
		}
	}()
}

// warningFrame is the steady half-brightness warm glow that signals
// the device is waiting for credentials.
func (s *RecoveryService) warningFrame() render.Frame {
	kelvin := s.cfg.Control.MinColorTemp
	r, g, b := color.KelvinToRGB(kelvin)
	return render.Frame{
		On:         true,
		R:          r,
		G:          g,
		B:          b,
		Brightness: 50,
		ColorTempK: kelvin,
	}
}
