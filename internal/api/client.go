// Package api talks to the LumiRum server: schedule fetch and
// telemetry posting, authenticated with the device API key.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/noatu/lumirum/internal/schedule"
)

// ErrUnauthorized is returned when the server rejects the API key.
// Unlike transient failures it is not retried; the caller is expected
// to enter config fallback.
var ErrUnauthorized = errors.New("api key rejected")

const (
	fetchRoute     = "/devices/circadian"
	telemetryRoute = "/telemetry"
)

// TelemetryEvent is the wire shape of a telemetry record.
type TelemetryEvent struct {
	EventType      string `json:"event_type"`
	MotionDetected bool   `json:"motion_detected"`
	LightIsOn      bool   `json:"light_is_on"`
	Brightness     int    `json:"brightness"`
	ColorTemp      int    `json:"color_temp,omitempty"`
}

// Client is the HTTP client for the LumiRum server.
type Client struct {
	baseURL    string
	keyHeader  string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a client. keyHeader names the authentication
// header, normally "x-api-key".
func NewClient(baseURL, keyHeader, apiKey string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:    baseURL,
		keyHeader:  keyHeader,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// FetchSchedule retrieves and parses the current lighting schedule.
// A payload that fails to parse is rejected whole; nothing partial is
// returned.
func (c *Client) FetchSchedule(ctx context.Context) (schedule.Metadata, []schedule.Point, error) {
	body, err := c.do(ctx, http.MethodGet, fetchRoute, nil)
	if err != nil {
		return schedule.Metadata{}, nil, err
	}

	meta, points, err := schedule.Parse(body)
	if err != nil {
		return schedule.Metadata{}, nil, fmt.Errorf("schedule payload: %w", err)
	}

	return meta, points, nil
}

// PostTelemetry sends one telemetry event.
func (c *Client) PostTelemetry(ctx context.Context, event TelemetryEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode telemetry: %w", err)
	}

	_, err = c.do(ctx, http.MethodPost, telemetryRoute, payload)
	return err
}

// do performs a request and returns the response body. 401 maps to
// ErrUnauthorized; any other non-2xx status is a transient error.
func (c *Client) do(ctx context.Context, method, route string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+route, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set(c.keyHeader, c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, route, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		log.Error().Str("route", route).Msg("Server rejected API key")
		return nil, ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("%s %s: unexpected status %d", method, route, resp.StatusCode)
	}

	return respBody, nil
}
