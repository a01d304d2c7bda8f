// Package config provides application configuration.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration.
type Config struct {
	Port        string `env:"PORT"         envDefault:"8080"`
	FrontendURL string `env:"FRONTEND_URL"`
	DBPath      string `env:"DB_PATH"      envDefault:"./data/satty.db"`

	// BackendCanisterID identifies the quest backend the actor is bound to.
	BackendCanisterID string `env:"CANISTER_ID_SATTY_BACKEND" envDefault:"satty_backend"`
	BackendAddr       string `env:"BACKEND_ADDR"              envDefault:"localhost:50051"`

	Identity  IdentityConfig
	Session   SessionConfig
	Telemetry TelemetryConfig
}

// IdentityConfig configures the identity provider redirect flow.
type IdentityConfig struct {
	ProviderURL   string        `env:"IDENTITY_PROVIDER_URL"         envDefault:"http://localhost:4943"`
	CanisterID    string        `env:"CANISTER_ID_INTERNET_IDENTITY"`
	ProviderKey   string        `env:"IDENTITY_PROVIDER_SECRET"`
	StateSecret   string        `env:"STATE_SECRET"`
	StateTTL      time.Duration `env:"LOGIN_STATE_TTL"               envDefault:"10m"`
	DelegationTTL time.Duration `env:"DELEGATION_TTL"               envDefault:"8h"`
	// DevProvider mounts the local stand-in provider under /idp.
	DevProvider bool `env:"DEV_IDENTITY_PROVIDER" envDefault:"false"`
}

// SessionConfig controls the session sweeper.
type SessionConfig struct {
	SweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"5m"`
	// IdleTTL is how long an unauthenticated device is kept in memory.
	IdleTTL time.Duration `env:"SESSION_IDLE_TTL" envDefault:"24h"`
}

// TelemetryConfig controls opt-in tracing.
type TelemetryConfig struct {
	Enabled  bool   `env:"OTEL_ENABLED"  envDefault:"true"`
	Endpoint string `env:"OTEL_ENDPOINT"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.Identity.DevProvider && cfg.Identity.ProviderURL == "http://localhost:4943" {
		cfg.Identity.ProviderURL = "http://localhost:" + cfg.Port + "/idp/authorize"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.BackendCanisterID == "" {
		return fmt.Errorf("CANISTER_ID_SATTY_BACKEND cannot be empty")
	}
	if c.BackendAddr == "" {
		return fmt.Errorf("BACKEND_ADDR cannot be empty")
	}
	u, err := url.Parse(c.Identity.ProviderURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("IDENTITY_PROVIDER_URL must be an absolute http(s) url")
	}
	if c.Identity.ProviderKey == "" {
		return fmt.Errorf("IDENTITY_PROVIDER_SECRET cannot be empty")
	}
	if len(c.Identity.StateSecret) < 32 {
		return fmt.Errorf("STATE_SECRET must be at least 32 bytes")
	}
	if c.Identity.StateTTL <= 0 {
		return fmt.Errorf("LOGIN_STATE_TTL must be > 0")
	}
	if c.Session.SweepInterval <= 0 {
		return fmt.Errorf("SESSION_SWEEP_INTERVAL must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	if env := os.Getenv("APP_ENV"); env != "" {
		return env == "development"
	}
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// BaseURL returns the externally reachable base URL of this server.
func (c *Config) BaseURL() string {
	if c.FrontendURL != "" {
		return strings.TrimRight(c.FrontendURL, "/")
	}
	return "http://localhost:" + c.Port
}
