// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cliparse

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port         int    `env:"PORT" envDefault:"3318"`
	DatabaseURL  string `env:"DATABASE_URL"`
	DatabaseType string `env:"DATABASE_TYPE" envDefault:"sqlite"`
	ActorKeySalt string `env:"ACTOR_KEY_SALT"`
	AdminKey     string `env:"ADMIN_KEY"`

	SweepInterval    time.Duration `env:"SWEEP_INTERVAL" envDefault:"1m"`
	SweepBatchSize   int           `env:"SWEEP_BATCH_SIZE" envDefault:"100"`
	MaxDurationHours int           `env:"MAX_DURATION_HOURS" envDefault:"168"`
	RetryMaxElapsed  time.Duration `env:"RETRY_MAX_ELAPSED" envDefault:"2s"`
	EventBuffer      int           `env:"EVENT_BUFFER" envDefault:"256"`
	TracingEnabled   bool          `env:"TRACING_ENABLED" envDefault:"false"`
}

// ParseFlags reads the environment, applies CLI overrides and validates
func ParseFlags(args []string) (Config, error) {
	var cfg Config

	// Environment first; flags default to whatever it produced
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	fs := flag.NewFlagSet("stall-allot", flag.ContinueOnError)

	// Network config (can be CLI args or env)
	fs.IntVar(&cfg.Port, "p", cfg.Port, "Server port")
	fs.StringVar(&cfg.DatabaseURL, "d", cfg.DatabaseURL, "Database URL")
	fs.StringVar(&cfg.DatabaseType, "t", cfg.DatabaseType, "Database type (sqlite or postgres)")

	// Secrets (prefer env variables, but allow CLI for dev)
	fs.StringVar(&cfg.ActorKeySalt, "actor-salt", cfg.ActorKeySalt, "Actor key salt (prefer env)")
	fs.StringVar(&cfg.AdminKey, "admin-key", cfg.AdminKey, "Operator key for registry endpoints (prefer env)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg Config) validate() error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return errors.New("invalid port")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("database URL required (use -d or DATABASE_URL env)")
	}
	switch cfg.DatabaseType {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database type %q (sqlite or postgres)", cfg.DatabaseType)
	}

	// Secrets - MUST be provided
	if cfg.ActorKeySalt == "" {
		return errors.New("ACTOR_KEY_SALT required")
	}
	if cfg.AdminKey == "" {
		return errors.New("ADMIN_KEY required")
	}

	if cfg.SweepInterval <= 0 {
		return errors.New("SWEEP_INTERVAL must be positive")
	}
	if cfg.SweepBatchSize <= 0 {
		return errors.New("SWEEP_BATCH_SIZE must be positive")
	}
	if cfg.MaxDurationHours <= 0 {
		return errors.New("MAX_DURATION_HOURS must be positive")
	}
	if cfg.EventBuffer <= 0 {
		return errors.New("EVENT_BUFFER must be positive")
	}
	return nil
}
