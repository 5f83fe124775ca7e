// Package config loads process-wide sandbox configuration from environment
// variables, following the same envconfig-based pattern the rest of the
// ambient stack uses for 12-factor configuration.
package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"

	"github.com/microvm-js/sandbox/internal/logging"
)

// Config holds all environment-derived configuration for the sandbox core.
type Config struct {
	Monitor MonitorConfig
	Dump    DumpConfig
	Logging LogConfig
}

// MonitorConfig holds the shared execution-monitor runtime's configuration.
type MonitorConfig struct {
	// Threads is the worker count for the process-wide monitor runtime.
	// Read once, at first use; never reconfigurable afterward.
	Threads int `envconfig:"HYPERLIGHT_MONITOR_THREADS" default:"2"`
}

// DumpConfig holds settings for the out-of-scope crash-dump subsystem.
// Recorded for completeness per spec.md §6; this module never reads the
// directory, since ELF core-dump emission is an external collaborator.
type DumpConfig struct {
	Dir string `envconfig:"HYPERLIGHT_CORE_DUMP_DIR" default:""`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"SANDBOX_LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"SANDBOX_LOG_DEV" default:"false"`
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

// Default returns default configuration. The logging defaults follow the
// process's ENV variable (logging.IsProduction/IsDevelopment) rather than
// a single hardcoded value, so a fallback used because the environment
// couldn't be parsed still logs at the right verbosity for where it's
// actually running.
func Default() *Config {
	return &Config{
		Monitor: MonitorConfig{Threads: 2},
		Dump:    DumpConfig{Dir: ""},
		Logging: LogConfig{Level: defaultLogLevel(), Development: logging.IsDevelopment()},
	}
}

func defaultLogLevel() string {
	if logging.IsProduction() {
		return "info"
	}
	return "debug"
}
