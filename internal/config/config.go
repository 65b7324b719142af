// Package config loads critpath runtime settings from .critpath.yaml,
// CRITPATH_* environment variables and command-line flags through viper.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds all runtime configuration for a critpath invocation.
// Values are populated from .critpath.yaml, CRITPATH_* env vars, and CLI flags.
type Config struct {
	DBPath        string  `mapstructure:"db_path"`
	ManifestPath  string  `mapstructure:"manifest"`
	TelemetryPath string  `mapstructure:"telemetry_path"`
	HoursPerDay   float64 `mapstructure:"hours_per_day"`
	LogLevel      string  `mapstructure:"log_level"`
	LogFormat     string  `mapstructure:"log_format"`
	Verbose       bool    `mapstructure:"verbose"`
}

// Load reads configuration from viper, applying built-in defaults for any
// values not set by config file, environment, or flags. The result is
// validated before it is returned.
func Load() (Config, error) {
	viper.SetDefault("db_path", ".critpath/critpath.db")
	viper.SetDefault("manifest", "critpath.toml")
	viper.SetDefault("telemetry_path", "")
	viper.SetDefault("hours_per_day", 8.0)
	viper.SetDefault("log_format", "text")
	viper.SetDefault("verbose", false)

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "warn"
		if cfg.Verbose {
			cfg.LogLevel = "debug"
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that every field holds a usable value.
func (c Config) Validate() error {
	if c.HoursPerDay <= 0 {
		return fmt.Errorf("config: %w: hours_per_day must be positive, got %g", ErrInvalidConfig, c.HoursPerDay)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("config: %w: unknown log_level %q", ErrInvalidConfig, c.LogLevel)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("config: %w: unknown log_format %q", ErrInvalidConfig, c.LogFormat)
	}
	return nil
}
