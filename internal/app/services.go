package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/noatu/lumirum/internal/api"
	"github.com/noatu/lumirum/internal/config"
	"github.com/noatu/lumirum/internal/console"
	"github.com/noatu/lumirum/internal/control"
	"github.com/noatu/lumirum/internal/db"
	"github.com/noatu/lumirum/internal/device"
	"github.com/noatu/lumirum/internal/engine"
	"github.com/noatu/lumirum/internal/eventbus"
	"github.com/noatu/lumirum/internal/input"
	"github.com/noatu/lumirum/internal/keystore"
	"github.com/noatu/lumirum/internal/ledger"
	"github.com/noatu/lumirum/internal/render"
	"github.com/noatu/lumirum/internal/schedule"
	"github.com/noatu/lumirum/internal/telemetry"
)

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg *config.Config

	// Core infrastructure
	DB     *db.DB
	Ledger *ledger.Ledger
	Keys   *keystore.Store
	Bus    *eventbus.Bus
	Clock  *Clock

	// Device core
	Schedule *schedule.Store
	Machine  *control.Machine
	Input    *input.Sim
	Renderer render.Renderer

	// Reporting
	Client  *api.Client
	Emitter *telemetry.Emitter
	mqtt    *telemetry.MQTTSink

	// High-level services
	Control  *ControlService
	Recovery *RecoveryService
	Health   *HealthService
	Console  *console.Console

	apiKey  string
	restart func()
}

// NewServices creates all services with proper dependency injection.
// restart is invoked when the device must be re-executed (new key
// accepted, key reset).
func NewServices(cfg *config.Config, restart func()) (*Services, error) {
	s := &Services{cfg: cfg, restart: restart}

	// Initialize database
	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	s.DB = database

	// Initialize ledger and key store
	s.Ledger = ledger.New(database.DB)
	s.Keys = keystore.New(database.DB, cfg.API.KeyLength)

	// Resolve the API key: stored key wins, config key is the default.
	s.apiKey = s.Keys.LoadKey(cfg.API.Key)

	s.Clock = NewClock()
	s.Bus = eventbus.New()
	s.Schedule = schedule.NewStore()

	// Decision engine and state machine
	eng := engine.New(s.Schedule, engine.Params{
		DefaultColorTempK: cfg.Control.DefaultColorTemp,
		PotMax:            cfg.Control.PotMax,
		OffThreshold:      cfg.Control.BrightnessOffThreshold,
		Hysteresis:        cfg.Control.BrightnessHysteresis,
	})
	boot := device.NewState(cfg.Control.DefaultColorTemp, s.Clock.Now())
	s.Machine = control.New(s.Schedule, eng, cfg.Control.ButtonDebounce.Duration(), boot)

	// Simulated input surface, driven from the console
	s.Input = input.NewSim(cfg.Control.PotMax / 2)

	// Rendering backend
	s.Renderer, err = newRenderer(cfg)
	if err != nil {
		s.Close()
		return nil, err
	}

	// Server client and telemetry pipeline
	s.Client = api.NewClient(cfg.API.BaseURL, cfg.API.KeyHeader, s.apiKey, cfg.API.Timeout.Duration())
	s.Emitter = telemetry.NewEmitter(
		cfg.Telemetry.Debounce.Duration(),
		cfg.Telemetry.MinColorTemp,
		s.Ledger,
		telemetry.NewHTTPSink(s.Client),
	)

	// High-level services
	s.Control = NewControlService(cfg, s.Clock, s.Machine, s.Schedule, s.Input, s.Renderer, s.Client, s.Bus, nil)
	s.Recovery = NewRecoveryService(cfg, s.Keys, s.Renderer, s.Control, restart)
	s.Health = NewHealthService(cfg, s.Clock, s.Control, s.Recovery)

	return s, nil
}

// newRenderer builds the rendering backend named in the config.
func newRenderer(cfg *config.Config) (render.Renderer, error) {
	switch cfg.Render.Backend {
	case "console":
		return render.NewConsole(), nil
	case "hue":
		return render.NewHue(cfg.Render.Hue.Bridge, cfg.Render.Hue.User, cfg.Render.Hue.Light)
	default:
		return nil, fmt.Errorf("unknown render backend %q", cfg.Render.Backend)
	}
}

// Start starts all services in the correct order.
// The onFatalError callback is called when a fatal error occurs.
func (s *Services) Start(ctx context.Context, onFatalError func(error)) error {
	// A rejected key from either the fetch path or the telemetry path
	// drops the device into config fallback mode.
	enterFallback := func() { s.Recovery.Enter(ctx) }
	s.Control.onUnauthorized = enterFallback
	s.Emitter.OnUnauthorized(enterFallback)

	// Optional MQTT telemetry sink
	if s.cfg.Telemetry.IsEnabled() && s.cfg.Telemetry.MQTT.Enabled {
		sink, err := telemetry.NewMQTTSink(ctx, telemetry.MQTTOptions{
			Broker:   s.cfg.Telemetry.MQTT.Broker,
			ClientID: s.cfg.Telemetry.MQTT.ClientID,
			Username: s.cfg.Telemetry.MQTT.Username,
			Password: s.cfg.Telemetry.MQTT.Password,
			Topic:    s.cfg.Telemetry.MQTT.Topic,
		})
		if err != nil {
			return fmt.Errorf("mqtt sink: %w", err)
		}
		s.mqtt = sink
		s.Emitter.AddSink(sink)
	}

	// Schedule replacements land in the event ledger.
	s.Bus.Subscribe(eventbus.EventTypeSchedule, scheduleLedgerHandler(s.Ledger))

	// Device events flow through the bus so a slow telemetry call
	// never stalls a tick.
	if s.cfg.Telemetry.IsEnabled() {
		s.Bus.Subscribe(eventbus.EventTypeDevice, func(ev eventbus.Event) {
			eventType, _ := ev.Data["event_type"].(string)
			st, ok := ev.Data["state"].(device.State)
			if !ok {
				return
			}
			motion, _ := ev.Data["motion"].(bool)
			s.Emitter.Emit(ctx, eventType, motion, st)
		})
	}

	// Diagnostic console on stdin
	s.Console = console.New(os.Stdin, s.consoleActions(), log.Logger)
	go func() {
		if err := s.Console.Run(ctx); err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Msg("Console stopped")
		}
	}()

	s.Control.Start(ctx)
	s.Health.Start(ctx)
	go s.ledgerCleanupLoop(ctx)

	// No usable key at boot: skip straight to the config portal.
	if s.apiKey == "" {
		log.Warn().Msg("No API key available")
		s.Recovery.Enter(ctx)
	}

	return nil
}

// scheduleLedgerHandler records schedule bus events in the ledger.
func scheduleLedgerHandler(l *ledger.Ledger) eventbus.Handler {
	return func(ev eventbus.Event) {
		eventType, _ := ev.Data["event_type"].(string)
		if eventType == "" {
			return
		}

		payload := make(map[string]any)
		for k, v := range ev.Data {
			if k != "event_type" {
				payload[k] = v
			}
		}

		if err := l.Append(eventType, "", payload); err != nil {
			log.Warn().Err(err).Msg("Failed to record schedule event")
		}
	}
}

// consoleActions binds the diagnostic commands to the live services.
func (s *Services) consoleActions() console.Actions {
	return console.Actions{
		Status:   s.Control.StatusLine,
		Fetch:    s.Control.RequestFetch,
		SetTime:  s.Clock.Override,
		ResetKey: s.resetKey,
		PressButton: func() {
			s.Input.PressButton()
		},
		SetMotion: func(active bool) {
			s.Input.SetMotion(active)
		},
		SetPot: func(raw int) {
			s.Input.SetPot(raw)
		},
	}
}

// resetKey clears the stored credential and restarts the device. The
// next boot falls back to the configured default key, or to the
// config portal when there is none.
func (s *Services) resetKey() {
	if err := s.Keys.ClearKey(); err != nil {
		log.Error().Err(err).Msg("Failed to clear stored API key")
		return
	}
	s.restart()
}

// ledgerCleanupLoop periodically trims old entries from the event ledger.
func (s *Services) ledgerCleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Ledger.CleanupInterval.Duration())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := s.Ledger.DeleteOlderThan(s.cfg.Ledger.Retention.Duration())
			if err != nil {
				log.Error().Err(err).Msg("Ledger cleanup failed")
				continue
			}
			if deleted > 0 {
				log.Debug().Int64("deleted", deleted).Msg("Ledger cleanup completed")
			}
		}
	}
}

// Stop gracefully stops all services.
func (s *Services) Stop() error {
	s.Close()
	return nil
}

// Close releases all resources.
func (s *Services) Close() {
	if s.Bus != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.GetShutdownTimeout())
		s.Bus.Close(ctx)
		cancel()
	}
	if s.mqtt != nil {
		s.mqtt.Close()
	}
	if s.Renderer != nil {
		s.Renderer.Close()
	}
	if s.DB != nil {
		s.DB.Close()
	}
}
