package config

import (
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	API             APIConfig         `yaml:"api"`
	Control         ControlConfig     `yaml:"control"`
	Database        DatabaseConfig    `yaml:"database"`
	Log             LogConfig         `yaml:"log"`
	Telemetry       TelemetryConfig   `yaml:"telemetry"`
	Render          RenderConfig      `yaml:"render"`
	Recovery        RecoveryConfig    `yaml:"recovery"`
	Healthcheck     HealthcheckConfig `yaml:"healthcheck"`
	Ledger          LedgerConfig      `yaml:"ledger"`
	ShutdownTimeout Duration          `yaml:"shutdown_timeout"`
}

// APIConfig contains LumiRum server connection settings
type APIConfig struct {
	BaseURL   string   `yaml:"base_url"`
	KeyHeader string   `yaml:"key_header"`
	Key       string   `yaml:"key"`        // default key, overridden by a stored one
	KeyLength int      `yaml:"key_length"` // exact length a usable key must have
	Timeout   Duration `yaml:"timeout"`
}

// ControlConfig contains the control loop timing and thresholds
type ControlConfig struct {
	TickInterval            Duration `yaml:"tick_interval"`
	ButtonDebounce          Duration `yaml:"button_debounce"`
	ScheduleRefreshInterval Duration `yaml:"schedule_refresh_interval"`
	DefaultColorTemp        int      `yaml:"default_color_temp"`
	MinColorTemp            int      `yaml:"min_color_temp"`
	PotMax                  int      `yaml:"pot_max"`
	BrightnessOffThreshold  int      `yaml:"brightness_off_threshold"`
	BrightnessHysteresis    int      `yaml:"brightness_hysteresis"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level   string `yaml:"level"`
	UseJSON bool   `yaml:"json"`
	Colors  bool   `yaml:"colors"`
}

// GetLevel returns the log level with default
func (c *LogConfig) GetLevel() string {
	if c.Level == "" {
		return "info"
	}
	return c.Level
}

// TelemetryConfig contains telemetry emission settings
type TelemetryConfig struct {
	Enabled      *bool      `yaml:"enabled"` // default: true
	Debounce     Duration   `yaml:"debounce"`
	MinColorTemp int        `yaml:"min_color_temp"` // API floor; lower temps are omitted
	MQTT         MQTTConfig `yaml:"mqtt"`
}

// IsEnabled returns whether telemetry is on (default true)
func (c *TelemetryConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// MQTTConfig contains the optional broker sink settings
type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Topic    string `yaml:"topic"`
}

// RenderConfig selects the rendering backend
type RenderConfig struct {
	Backend string          `yaml:"backend"` // "console" or "hue"
	Hue     HueRenderConfig `yaml:"hue"`
}

// HueRenderConfig contains Hue bridge settings for the hue backend
type HueRenderConfig struct {
	Bridge string `yaml:"bridge"`
	User   string `yaml:"user"`
	Light  int    `yaml:"light"`
}

// RecoveryConfig contains the config-fallback portal settings
type RecoveryConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// HealthcheckConfig contains health check server settings
type HealthcheckConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// LedgerConfig contains event ledger retention settings
type LedgerConfig struct {
	CleanupInterval Duration `yaml:"cleanup_interval"`
	Retention       Duration `yaml:"retention"`
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// GetShutdownTimeout returns the shutdown timeout with default
func (c *Config) GetShutdownTimeout() time.Duration {
	if c.ShutdownTimeout == 0 {
		return 10 * time.Second
	}
	return c.ShutdownTimeout.Duration()
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Database.Path == "" {
		c.Database.Path = "./lumirum.sqlite"
	}

	// API defaults
	if c.API.KeyHeader == "" {
		c.API.KeyHeader = "x-api-key"
	}
	if c.API.KeyLength == 0 {
		c.API.KeyLength = 64
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = Duration(10 * time.Second)
	}

	// Control loop defaults
	if c.Control.TickInterval == 0 {
		c.Control.TickInterval = Duration(50 * time.Millisecond)
	}
	if c.Control.ButtonDebounce == 0 {
		c.Control.ButtonDebounce = Duration(200 * time.Millisecond)
	}
	if c.Control.ScheduleRefreshInterval == 0 {
		c.Control.ScheduleRefreshInterval = Duration(time.Hour)
	}
	if c.Control.DefaultColorTemp == 0 {
		c.Control.DefaultColorTemp = 3500
	}
	if c.Control.MinColorTemp == 0 {
		c.Control.MinColorTemp = 1000
	}
	if c.Control.PotMax == 0 {
		c.Control.PotMax = 4095
	}
	if c.Control.BrightnessOffThreshold == 0 {
		c.Control.BrightnessOffThreshold = 10
	}
	if c.Control.BrightnessHysteresis == 0 {
		c.Control.BrightnessHysteresis = 5
	}

	// Telemetry defaults
	if c.Telemetry.Debounce == 0 {
		c.Telemetry.Debounce = Duration(2 * time.Second)
	}
	if c.Telemetry.MinColorTemp == 0 {
		c.Telemetry.MinColorTemp = 1800
	}
	if c.Telemetry.MQTT.Topic == "" {
		c.Telemetry.MQTT.Topic = "lumirum/telemetry"
	}

	// Render defaults
	if c.Render.Backend == "" {
		c.Render.Backend = "console"
	}

	// Recovery portal defaults
	if c.Recovery.Host == "" {
		c.Recovery.Host = "0.0.0.0"
	}
	if c.Recovery.Port == 0 {
		c.Recovery.Port = 8180
	}

	// Healthcheck defaults
	if c.Healthcheck.Host == "" {
		c.Healthcheck.Host = "0.0.0.0"
	}
	if c.Healthcheck.Port == 0 {
		c.Healthcheck.Port = 8080
	}

	// Ledger defaults
	if c.Ledger.CleanupInterval == 0 {
		c.Ledger.CleanupInterval = Duration(24 * time.Hour)
	}
	if c.Ledger.Retention == 0 {
		c.Ledger.Retention = Duration(30 * 24 * time.Hour)
	}
}

// envVarPattern matches ${VAR} references in the config file
var envVarPattern = regexp.MustCompile(`\$\{(\w+)\}`)

// expandEnvVars replaces ${VAR} references with environment values
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(name)
	})
}
