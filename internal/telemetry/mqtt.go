package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/noatu/lumirum/internal/api"
)

// MQTTSink publishes telemetry events to a broker topic, for setups
// where home-automation consumers listen alongside the server.
type MQTTSink struct {
	client pahomqtt.Client
	topic  string
}

// MQTTOptions configures the broker connection.
type MQTTOptions struct {
	Broker   string // e.g. tcp://broker:1883
	ClientID string
	Username string
	Password string
	Topic    string
}

// NewMQTTSink connects to the broker and returns a sink publishing to
// opts.Topic.
func NewMQTTSink(ctx context.Context, opts MQTTOptions) (*MQTTSink, error) {
	clientOpts := pahomqtt.NewClientOptions()
	clientOpts.AddBroker(opts.Broker)

	if opts.ClientID != "" {
		clientOpts.SetClientID(opts.ClientID)
	} else {
		clientOpts.SetClientID(fmt.Sprintf("lumirum-%d", time.Now().Unix()))
	}
	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		clientOpts.SetPassword(opts.Password)
	}

	clientOpts.SetCleanSession(true)
	clientOpts.SetAutoReconnect(true)
	clientOpts.SetConnectRetry(true)
	clientOpts.SetConnectRetryInterval(5 * time.Second)
	clientOpts.SetMaxReconnectInterval(30 * time.Second)

	clientOpts.OnConnect = func(c pahomqtt.Client) {
		log.Info().Str("broker", opts.Broker).Msg("Connected to MQTT broker")
	}
	clientOpts.OnConnectionLost = func(c pahomqtt.Client, err error) {
		log.Warn().Err(err).Msg("MQTT connection lost")
	}

	client := pahomqtt.NewClient(clientOpts)
	token := client.Connect()

	select {
	case <-token.Done():
		if token.Error() != nil {
			return nil, fmt.Errorf("connect to MQTT broker: %w", token.Error())
		}
	case <-ctx.Done():
		client.Disconnect(0)
		return nil, ctx.Err()
	}

	return &MQTTSink{client: client, topic: opts.Topic}, nil
}

// Name implements Sink.
func (s *MQTTSink) Name() string { return "mqtt" }

// Send implements Sink. Delivery failures are transient; a broker
// never rejects the device credential, so ErrUnauthorized is never
// returned here.
func (s *MQTTSink) Send(ctx context.Context, event api.TelemetryEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode telemetry: %w", err)
	}

	token := s.client.Publish(s.topic, 0, false, payload)

	select {
	case <-token.Done():
		if token.Error() != nil {
			return fmt.Errorf("publish to %s: %w", s.topic, token.Error())
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close disconnects from the broker.
func (s *MQTTSink) Close() {
	s.client.Disconnect(250)
}
