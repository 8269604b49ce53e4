package config

import (
	"fmt"
	"net"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/GriffinCanCode/uihost/internal/guest"
	"github.com/GriffinCanCode/uihost/internal/sandbox"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Sandbox   SandboxConfig
	Layout    LayoutConfig
	Guests    GuestsConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8000"`
	Host            string        `envconfig:"HOST" default:"0.0.0.0"`
	CORSOrigins     []string      `envconfig:"CORS_ORIGINS" default:"*"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
}

// SandboxConfig bounds guest execution.
type SandboxConfig struct {
	CallTimeout    time.Duration `envconfig:"GUEST_CALL_TIMEOUT" default:"5s"`
	MaxMemoryPages uint32        `envconfig:"GUEST_MAX_MEMORY_PAGES" default:"256"`
	JSPoolSize     int           `envconfig:"GUEST_JS_POOL" default:"4"`
	EnableConsole  bool          `envconfig:"GUEST_CONSOLE" default:"true"`
}

// LayoutConfig is the viewport used when a request does not name one.
type LayoutConfig struct {
	ViewportWidth  float32 `envconfig:"VIEWPORT_WIDTH" default:"1024"`
	ViewportHeight float32 `envconfig:"VIEWPORT_HEIGHT" default:"768"`
}

// GuestsConfig says where startup guests come from.
type GuestsConfig struct {
	Dir          string        `envconfig:"GUESTS_DIR" default:""`
	Pattern      string        `envconfig:"GUESTS_PATTERN" default:"**/*.{wasm,js,wasm.gz,js.gz,wasm.zst,js.zst}"`
	Manifest     string        `envconfig:"GUESTS_MANIFEST" default:""`
	FetchTimeout time.Duration `envconfig:"GUESTS_FETCH_TIMEOUT" default:"30s"`
	FetchRetries int           `envconfig:"GUESTS_FETCH_RETRIES" default:"3"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
	Tracing     bool   `envconfig:"LOG_TRACING" default:"true"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8000",
			Host:            "0.0.0.0",
			CORSOrigins:     []string{"*"},
			ShutdownTimeout: 15 * time.Second,
		},
		Sandbox: SandboxConfig{
			CallTimeout:    5 * time.Second,
			MaxMemoryPages: 256,
			JSPoolSize:     4,
			EnableConsole:  true,
		},
		Layout: LayoutConfig{
			ViewportWidth:  1024,
			ViewportHeight: 768,
		},
		Guests: GuestsConfig{
			Pattern:      guest.DefaultPattern,
			FetchTimeout: 30 * time.Second,
			FetchRetries: 3,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
			Tracing:     true,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}

// SandboxOptions converts the section for the sandbox package.
func (c SandboxConfig) SandboxOptions() sandbox.Config {
	return sandbox.Config{
		CallTimeout:    c.CallTimeout,
		MaxMemoryPages: c.MaxMemoryPages,
		JSPoolSize:     c.JSPoolSize,
		EnableConsole:  c.EnableConsole,
	}
}

// LoaderOptions converts the section for the guest loader.
func (c GuestsConfig) LoaderOptions() guest.Config {
	cfg := guest.DefaultConfig()
	cfg.FetchTimeout = c.FetchTimeout
	cfg.FetchRetries = c.FetchRetries
	return cfg
}

// Addr is the listen address.
func (c ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}
