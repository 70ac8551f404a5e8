// Package config loads process settings from FAIR_* environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"

	"github.com/dd0wney/cluso-fair/pkg/fair"
	"github.com/dd0wney/cluso-fair/pkg/logging"
	"github.com/dd0wney/cluso-fair/pkg/store"
	"github.com/dd0wney/cluso-fair/pkg/validation"
)

// Config holds the settings shared by every command.
type Config struct {
	Simulations int    `env:"FAIR_SIMULATIONS" envDefault:"10000"`
	Seed        int64  `env:"FAIR_SEED" envDefault:"42"`
	LogLevel    string `env:"FAIR_LOG_LEVEL" envDefault:"info"`
	StoreDriver string `env:"FAIR_STORE_DRIVER" envDefault:"sqlite"`
	StoreDSN    string `env:"FAIR_STORE_DSN" envDefault:"fair.sqlite3"`
	MetricsFile string `env:"FAIR_METRICS_FILE"`
}

// MaxSimulations bounds FAIR_SIMULATIONS; each vector holds one float64 per trial.
const MaxSimulations = 10_000_000

var logLevels = []string{"debug", "info", "warn", "warning", "error"}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses and validates the environment.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the configuration used when the environment is empty.
func Default() Config {
	return Config{
		Simulations: fair.DefaultSimulations,
		Seed:        fair.DefaultSeed,
		LogLevel:    "info",
		StoreDriver: store.DriverSQLite,
		StoreDSN:    "fair.sqlite3",
	}
}

// Validate checks every field and reports all problems together.
func (c Config) Validate() error {
	return validation.NewConfigValidator("config").
		Positive("FAIR_SIMULATIONS", c.Simulations).
		MaxInt("FAIR_SIMULATIONS", c.Simulations, MaxSimulations).
		OneOf("FAIR_LOG_LEVEL", strings.ToLower(c.LogLevel), logLevels).
		OneOf("FAIR_STORE_DRIVER", c.StoreDriver, store.Drivers()).
		Required("FAIR_STORE_DSN", c.StoreDSN).
		When(c.StoreDriver == store.DriverPostgres && c.StoreDSN != "", func(v *validation.ConfigValidator) {
			v.Custom("FAIR_STORE_DSN", func() error {
				_, err := store.ParsePostgresDSN(c.StoreDSN)
				return err
			})
		}).
		Validate()
}

// Level returns the configured log level.
func (c Config) Level() logging.Level {
	return logging.ParseLevel(strings.ToLower(c.LogLevel))
}
