package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
api:
  base_url: "http://localhost:9000"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9000", cfg.API.BaseURL)
	assert.Equal(t, "x-api-key", cfg.API.KeyHeader)
	assert.Equal(t, 64, cfg.API.KeyLength)
	assert.Equal(t, 50*time.Millisecond, cfg.Control.TickInterval.Duration())
	assert.Equal(t, 200*time.Millisecond, cfg.Control.ButtonDebounce.Duration())
	assert.Equal(t, time.Hour, cfg.Control.ScheduleRefreshInterval.Duration())
	assert.Equal(t, 3500, cfg.Control.DefaultColorTemp)
	assert.Equal(t, 4095, cfg.Control.PotMax)
	assert.Equal(t, 10, cfg.Control.BrightnessOffThreshold)
	assert.Equal(t, 5, cfg.Control.BrightnessHysteresis)
	assert.Equal(t, 2*time.Second, cfg.Telemetry.Debounce.Duration())
	assert.Equal(t, 1800, cfg.Telemetry.MinColorTemp)
	assert.True(t, cfg.Telemetry.IsEnabled())
	assert.Equal(t, "console", cfg.Render.Backend)
	assert.Equal(t, 8180, cfg.Recovery.Port)
	assert.Equal(t, 10*time.Second, cfg.GetShutdownTimeout())
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
api:
  base_url: "https://lights.example.com"
  key_header: "x-device-key"
  key_length: 32
  timeout: "5s"
control:
  tick_interval: "100ms"
  default_color_temp: 2700
telemetry:
  enabled: false
  debounce: "500ms"
render:
  backend: "hue"
  hue:
    bridge: "192.168.1.50"
    user: "abcdef"
    light: 3
shutdown_timeout: "3s"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "x-device-key", cfg.API.KeyHeader)
	assert.Equal(t, 32, cfg.API.KeyLength)
	assert.Equal(t, 5*time.Second, cfg.API.Timeout.Duration())
	assert.Equal(t, 100*time.Millisecond, cfg.Control.TickInterval.Duration())
	assert.Equal(t, 2700, cfg.Control.DefaultColorTemp)
	assert.False(t, cfg.Telemetry.IsEnabled())
	assert.Equal(t, 500*time.Millisecond, cfg.Telemetry.Debounce.Duration())
	assert.Equal(t, "hue", cfg.Render.Backend)
	assert.Equal(t, 3, cfg.Render.Hue.Light)
	assert.Equal(t, 3*time.Second, cfg.GetShutdownTimeout())
}

func TestLoadEnvExpansion(t *testing.T) {
	t.Setenv("LUMIRUM_API_KEY", "secret-from-env")

	path := writeConfig(t, `
api:
  base_url: "http://localhost:9000"
  key: "${LUMIRUM_API_KEY}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "secret-from-env", cfg.API.Key)
}

func TestLoadInvalidDuration(t *testing.T) {
	path := writeConfig(t, `
control:
  tick_interval: "not-a-duration"
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
