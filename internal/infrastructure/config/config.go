// Package config loads service configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Workspace WorkspaceConfig
	Generator GeneratorConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	Stream    StreamConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
	// BaseURL is the externally visible root used to build app and
	// download URLs, e.g. "http://localhost:8000".
	BaseURL string `envconfig:"BASE_URL" default:"http://localhost:8000"`
}

// WorkspaceConfig holds generated-app storage configuration.
type WorkspaceConfig struct {
	Dir string `envconfig:"WORKSPACE_DIR" default:"./generated_apps"`
}

// GeneratorConfig holds external generator collaborator configuration.
// When Address is empty the local template scaffolder is used.
type GeneratorConfig struct {
	Address string        `envconfig:"GENERATOR_ADDR" default:""`
	Timeout time.Duration `envconfig:"GENERATOR_TIMEOUT" default:"90s"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// StreamConfig holds streaming gateway pacing configuration.
// The typing effect is cosmetic; TypingDelay of zero disables pacing.
type StreamConfig struct {
	TypingDelay    time.Duration `envconfig:"STREAM_TYPING_DELAY" default:"10ms"`
	MaxTypingLines int           `envconfig:"STREAM_MAX_TYPING_LINES" default:"400"`
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
			Port:    "8000",
			Host:    "0.0.0.0",
			BaseURL: "http://localhost:8000",
		},
		Workspace: WorkspaceConfig{
			Dir: "./generated_apps",
		},
		Generator: GeneratorConfig{
			Timeout: 90 * time.Second,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Stream: StreamConfig{
			TypingDelay:    10 * time.Millisecond,
			MaxTypingLines: 400,
		},
	}
}
