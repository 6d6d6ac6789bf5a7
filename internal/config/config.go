package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Presence store drivers.
const (
	DriverNone     = "none"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	LogFormat         string        `mapstructure:"log_format" yaml:"log_format"`
	MaxMessageBytes   int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	PingInterval      time.Duration `mapstructure:"ping_interval" yaml:"ping_interval"`
	CallingTimeout    time.Duration `mapstructure:"calling_timeout" yaml:"calling_timeout"`
	SweepInterval     time.Duration `mapstructure:"sweep_interval" yaml:"sweep_interval"`
	AllowedOrigins    []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`

	Presence PresenceConfig `mapstructure:"presence" yaml:"presence"`
	LiveKit  LiveKitConfig  `mapstructure:"livekit" yaml:"livekit"`
}

// PresenceConfig selects where the presence mirror writes rows.
type PresenceConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	DSN    string `mapstructure:"dsn" yaml:"dsn"`
}

// LiveKitConfig enables media join credentials on channel validation.
type LiveKitConfig struct {
	Enabled   bool          `mapstructure:"enabled" yaml:"enabled"`
	APIKey    string        `mapstructure:"api_key" yaml:"api_key"`
	APISecret string        `mapstructure:"api_secret" yaml:"api_secret"`
	URL       string        `mapstructure:"url" yaml:"url"`
	TokenTTL  time.Duration `mapstructure:"token_ttl" yaml:"token_ttl"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		LogFormat:         "console",
		MaxMessageBytes:   64 << 10,
		PingInterval:      30 * time.Second,
		CallingTimeout:    60 * time.Second,
		SweepInterval:     time.Second,
		AllowedOrigins:    []string{"*"},
		Presence: PresenceConfig{
			Driver: DriverNone,
			DSN:    "callrelay.db",
		},
		LiveKit: LiveKitConfig{
			URL:      "ws://localhost:7880",
			TokenTTL: time.Hour,
		},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.LogFormat != "" {
		c.LogFormat = other.LogFormat
	}
	if other.MaxMessageBytes != 0 {
		c.MaxMessageBytes = other.MaxMessageBytes
	}
	if other.PingInterval != 0 {
		c.PingInterval = other.PingInterval
	}
	if other.CallingTimeout != 0 {
		c.CallingTimeout = other.CallingTimeout
	}
	if other.SweepInterval != 0 {
		c.SweepInterval = other.SweepInterval
	}
	if len(other.AllowedOrigins) > 0 {
		c.AllowedOrigins = other.AllowedOrigins
	}
	if other.Presence.Driver != "" {
		c.Presence.Driver = other.Presence.Driver
	}
	if other.Presence.DSN != "" {
		c.Presence.DSN = other.Presence.DSN
	}
	if other.LiveKit.Enabled {
		c.LiveKit.Enabled = true
	}
	if other.LiveKit.APIKey != "" {
		c.LiveKit.APIKey = other.LiveKit.APIKey
	}
	if other.LiveKit.APISecret != "" {
		c.LiveKit.APISecret = other.LiveKit.APISecret
	}
	if other.LiveKit.URL != "" {
		c.LiveKit.URL = other.LiveKit.URL
	}
	if other.LiveKit.TokenTTL != 0 {
		c.LiveKit.TokenTTL = other.LiveKit.TokenTTL
	}
}

// Validate reports configuration values the server cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	switch c.LogFormat {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format must be console or json, got %q", c.LogFormat))
	}
	if c.MaxMessageBytes <= 0 {
		errs = append(errs, errors.New("max_message_bytes must be positive"))
	}
	if c.CallingTimeout < 0 {
		errs = append(errs, errors.New("calling_timeout must not be negative"))
	}
	if c.CallingTimeout > 0 && c.SweepInterval <= 0 {
		errs = append(errs, errors.New("sweep_interval must be positive when calling_timeout is set"))
	}
	for _, origin := range c.AllowedOrigins {
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			errs = append(errs, fmt.Errorf("allowed origin %q must be * or start with http:// or https://", origin))
		}
	}
	switch c.Presence.Driver {
	case "", DriverNone:
	case DriverSQLite, DriverPostgres:
		if c.Presence.DSN == "" {
			errs = append(errs, fmt.Errorf("presence.dsn is required for driver %q", c.Presence.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown presence.driver %q", c.Presence.Driver))
	}
	if c.LiveKit.Enabled && (c.LiveKit.APIKey == "" || c.LiveKit.APISecret == "") {
		errs = append(errs, errors.New("livekit.api_key and livekit.api_secret are required when livekit is enabled"))
	}
	return errors.Join(errs...)
}
