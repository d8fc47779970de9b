// Package config loads funnel-goat settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/headline-goat/funnel-goat/internal/telemetry"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	DBPath string `env:"FG_DB_PATH" envDefault:"./fg.db" validate:"required"`
	Port   int    `env:"FG_PORT"    envDefault:"8080"    validate:"min=1,max=65535"`

	// ServerURL is the public URL printed by the CLI; empty means localhost.
	ServerURL string `env:"FG_SERVER_URL" validate:"omitempty,url"`

	Environment  string `env:"FG_ENV"             envDefault:"production" validate:"oneof=development production"`
	Debug        *bool  `env:"FG_DEBUG"`
	DisableInDev bool   `env:"FG_DISABLE_IN_DEV"`

	SinkAID          string `env:"FG_SINK_A_ID"`
	SinkAEndpoint    string `env:"FG_SINK_A_ENDPOINT"     validate:"omitempty,url"`
	SinkASecret      string `env:"FG_SINK_A_SECRET"`
	SinkBContainerID string `env:"FG_SINK_B_CONTAINER_ID"`

	SessionTTL time.Duration `env:"FG_SESSION_TTL"   envDefault:"30m" validate:"gt=0"`
	RoutesFile string        `env:"FG_ROUTES_FILE"`

	AllowedOrigins []string `env:"FG_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	LogLevel  string `env:"FG_LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"FG_LOG_FORMAT" envDefault:"json" validate:"oneof=json console"`
}

// Load reads an optional .env file, then the environment, then validates.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv parses the current environment without touching .env files.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func (c *Config) Development() bool {
	return c.Environment == EnvDevelopment
}

// DebugEnabled falls back to the development flag when FG_DEBUG is unset.
func (c *Config) DebugEnabled() bool {
	if c.Debug != nil {
		return *c.Debug
	}
	return c.Development()
}

// EffectiveLogLevel lowers the level to debug when dispatcher diagnostics are on,
// so they are not filtered out.
func (c *Config) EffectiveLogLevel() string {
	if c.DebugEnabled() {
		return "debug"
	}
	return c.LogLevel
}

// PublicURL returns ServerURL without a trailing slash, or the local address.
func (c *Config) PublicURL() string {
	if c.ServerURL != "" {
		return strings.TrimRight(c.ServerURL, "/")
	}
	return fmt.Sprintf("http://localhost:%d", c.Port)
}

// Telemetry converts the settings into dispatcher configuration.
func (c *Config) Telemetry() telemetry.Config {
	debug := c.DebugEnabled()
	return telemetry.Config{
		SinkAID:          c.SinkAID,
		SinkBContainerID: c.SinkBContainerID,
		Debug:            &debug,
		DisableInDev:     c.DisableInDev,
		Development:      c.Development(),
	}
}
