package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/noatu/lumirum/internal/api"
	"github.com/noatu/lumirum/internal/config"
	"github.com/noatu/lumirum/internal/control"
	"github.com/noatu/lumirum/internal/device"
	"github.com/noatu/lumirum/internal/eventbus"
	"github.com/noatu/lumirum/internal/input"
	"github.com/noatu/lumirum/internal/render"
	"github.com/noatu/lumirum/internal/schedule"
)

// ControlService drives the device: it polls inputs, advances the
// state machine each tick, renders the result, and keeps the schedule
// fresh. Everything state-bearing runs on the single Run goroutine.
type ControlService struct {
	cfg      *config.Config
	clock    *Clock
	machine  *control.Machine
	sched    *schedule.Store
	source   input.Source
	renderer render.Renderer
	client   *api.Client
	bus      *eventbus.Bus

	// suspended pauses ticking while the config portal owns the device.
	suspended atomic.Bool

	// fetchRequests coalesces schedule refetch triggers (time jumps,
	// console command) into at most one pending fetch.
	fetchRequests chan struct{}

	// onUnauthorized is called when the server rejects our API key.
	onUnauthorized func()
}

func NewControlService(
	cfg *config.Config,
	clock *Clock,
	machine *control.Machine,
	sched *schedule.Store,
	source input.Source,
	renderer render.Renderer,
	client *api.Client,
	bus *eventbus.Bus,
	onUnauthorized func(),
) *ControlService {
	return &ControlService{
		cfg:            cfg,
		clock:          clock,
		machine:        machine,
		sched:          sched,
		source:         source,
		renderer:       renderer,
		client:         client,
		bus:            bus,
		fetchRequests:  make(chan struct{}, 1),
		onUnauthorized: onUnauthorized,
	}
}

// Start launches the control loop.
func (s *ControlService) Start(ctx context.Context) {
	go s.run(ctx)
}

func (s *ControlService) run(ctx context.Context) {
	// Initial schedule load; a failure here is not fatal, the device
	// falls back to the default color temperature until a fetch lands.
	s.fetch(ctx)

	ticker := time.NewTicker(s.cfg.Control.TickInterval.Duration())
	defer ticker.Stop()

	refresh := time.NewTicker(s.cfg.Control.ScheduleRefreshInterval.Duration())
	defer refresh.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-refresh.C:
			s.RequestFetch()
		case <-s.fetchRequests:
			if !s.suspended.Load() {
				s.fetch(ctx)
			}
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *ControlService) tick(ctx context.Context) {
	if s.suspended.Load() {
		return
	}

	now := s.clock.Now()
	sample := s.source.Poll()
	res := s.machine.Tick(now, sample)

	if res.RefetchSchedule {
		s.RequestFetch()
	}

	if err := s.renderer.Apply(ctx, render.FrameFor(res.State)); err != nil {
		log.Warn().Err(err).Msg("Render failed")
	}

	for _, ev := range res.Events {
		s.bus.Publish(eventbus.Event{
			Type: eventbus.EventTypeDevice,
			Data: map[string]interface{}{
				"event_type": string(ev),
				"motion":     sample.Motion,
				"state":      res.State,
			},
		})
	}
}

// fetch pulls the schedule from the server and commits it on success.
// A malformed or rejected payload leaves the current schedule intact.
func (s *ControlService) fetch(ctx context.Context) {
	reqCtx, cancel := context.WithTimeout(ctx, s.cfg.API.Timeout.Duration())
	defer cancel()

	meta, points, err := s.client.FetchSchedule(reqCtx)
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			log.Error().Msg("API key rejected while fetching schedule")
			if s.onUnauthorized != nil {
				s.onUnauthorized()
			}
			return
		}
		log.Warn().Err(err).Msg("Schedule fetch failed, keeping current schedule")
		return
	}

	s.sched.Replace(meta, points)
	s.bus.Publish(eventbus.Event{
		Type: eventbus.EventTypeSchedule,
		Data: map[string]interface{}{
			"event_type": "schedule_updated",
			"profile_id": meta.ProfileID,
			"points":     len(points),
		},
	})
}

// RequestFetch queues a schedule fetch. Duplicate requests before the
// fetch runs collapse into one.
func (s *ControlService) RequestFetch() {
	select {
	case s.fetchRequests <- struct{}{}:
	default:
	}
}

// Suspend pauses ticking. Config fallback is terminal for the running
// process, so there is no way back; leaving fallback means restarting.
func (s *ControlService) Suspend() {
	s.suspended.Store(true)
}

// Snapshot returns the current device state.
func (s *ControlService) Snapshot() device.State {
	return s.machine.Snapshot()
}

// StatusLine formats a one-line device summary for the console.
func (s *ControlService) StatusLine() string {
	st := s.machine.Snapshot()
	now := s.clock.Now()
	return fmt.Sprintf(
		"mode=%s light=%v brightness=%d%% color_temp=%dK schedule_temp=%dK points=%d time=%s",
		st.Mode, st.LightOn, st.BrightnessPercent, st.ColorTempK,
		s.sched.Lookup(now), s.sched.PointCount(), now.Format(time.RFC3339),
	)
}
