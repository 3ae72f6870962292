// Package telemetry reports device events to the server and, when
// configured, an MQTT broker. Emissions are debounced to a fixed
// minimum interval regardless of how many events occur.
package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/noatu/lumirum/internal/api"
	"github.com/noatu/lumirum/internal/device"
	"github.com/noatu/lumirum/internal/ledger"
)

// Sink delivers a telemetry event to one destination.
type Sink interface {
	Name() string
	Send(ctx context.Context, event api.TelemetryEvent) error
}

// Emitter debounces and fans out telemetry events.
type Emitter struct {
	limiter       *rate.Limiter
	sinks         []Sink
	ledger        *ledger.Ledger
	minColorTempK int

	// onUnauthorized is invoked when a sink reports a rejected API
	// key; the app uses it to enter config fallback.
	onUnauthorized func()
}

// NewEmitter creates an emitter. debounce is the minimum interval
// between emissions; minColorTempK is the API floor below which the
// color temperature field is omitted. eventLedger may be nil.
func NewEmitter(debounce time.Duration, minColorTempK int, eventLedger *ledger.Ledger, sinks ...Sink) *Emitter {
	return &Emitter{
		limiter:       rate.NewLimiter(rate.Every(debounce), 1),
		sinks:         sinks,
		ledger:        eventLedger,
		minColorTempK: minColorTempK,
	}
}

// OnUnauthorized registers the callback fired when any sink reports
// an authentication failure.
func (e *Emitter) OnUnauthorized(fn func()) {
	e.onUnauthorized = fn
}

// AddSink attaches another destination. Not safe to call once events
// are flowing; sinks are wired during startup.
func (e *Emitter) AddSink(s Sink) {
	e.sinks = append(e.sinks, s)
}

// Emit reports one device event built from a state snapshot. Events
// inside the debounce window are dropped silently; that is the rate
// limit working, not an error.
func (e *Emitter) Emit(ctx context.Context, eventType string, motionDetected bool, st device.State) {
	if !e.limiter.Allow() {
		log.Debug().Str("event_type", eventType).Msg("Telemetry debounced")
		return
	}

	event := api.TelemetryEvent{
		EventType:      eventType,
		MotionDetected: motionDetected,
		LightIsOn:      st.LightOn,
		Brightness:     st.BrightnessPercent,
	}
	if st.ColorTempK >= e.minColorTempK {
		event.ColorTemp = st.ColorTempK
	}

	eventID := uuid.NewString()

	if e.ledger != nil {
		payload := map[string]any{
			"event_type":      event.EventType,
			"motion_detected": event.MotionDetected,
			"light_is_on":     event.LightIsOn,
			"brightness":      event.Brightness,
			"color_temp":      event.ColorTemp,
		}
		if err := e.ledger.Append(event.EventType, eventID, payload); err != nil {
			log.Error().Err(err).Msg("Failed to record event in ledger")
		}
	}

	for _, sink := range e.sinks {
		if err := sink.Send(ctx, event); err != nil {
			if errors.Is(err, api.ErrUnauthorized) {
				log.Error().Str("sink", sink.Name()).Msg("Telemetry rejected, API key invalid")
				if e.onUnauthorized != nil {
					e.onUnauthorized()
				}
				continue
			}
			log.Warn().Err(err).Str("sink", sink.Name()).Str("event_type", eventType).
				Msg("Telemetry delivery failed")
			continue
		}
		log.Debug().Str("sink", sink.Name()).Str("event_type", eventType).Str("event_id", eventID).
			Msg("Telemetry sent")
	}
}

// HTTPSink posts events to the LumiRum server.
type HTTPSink struct {
	client *api.Client
}

// NewHTTPSink wraps the API client as a telemetry sink.
func NewHTTPSink(client *api.Client) *HTTPSink {
	return &HTTPSink{client: client}
}

// Name implements Sink.
func (s *HTTPSink) Name() string { return "http" }

// Send implements Sink.
func (s *HTTPSink) Send(ctx context.Context, event api.TelemetryEvent) error {
	return s.client.PostTelemetry(ctx, event)
}
