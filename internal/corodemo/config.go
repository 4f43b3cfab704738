// Package corodemo is the optional demo CLI built around the coro
// scheduler: a small host loop that drives Manager.Update off a
// time.Ticker, grounded in ChuLiYu-raft-recovery's internal/cli package
// (same cobra + YAML config shape, applied to a frame-ticking host instead
// of a job queue).
package corodemo

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the YAML-loaded configuration for the demo CLI's run command.
type Config struct {
	Tick struct {
		// IntervalMs is the host tick period, in milliseconds, used to
		// drive Manager.Update on DefaultPhase/DefaultClock.
		IntervalMs int `yaml:"interval_ms"`
		// Count bounds how many ticks the run command drives before
		// exiting; zero means run until every demo coroutine is down.
		Count int `yaml:"count"`
	} `yaml:"tick"`

	Metrics struct {
		Enabled bool `yaml:"enabled"`
		Port    int  `yaml:"port"`
	} `yaml:"metrics"`

	Logging struct {
		// Format selects the demo's Logger: "stumpy" for structured JSON
		// via NewStumpyLogger, anything else (including empty) for
		// NoOpLogger.
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// defaultConfig is what a freshly-constructed Config would be without a
// file on disk, used when loadConfig's path doesn't exist.
func defaultConfig() Config {
	var cfg Config
	cfg.Tick.IntervalMs = 16
	cfg.Tick.Count = 120
	cfg.Metrics.Enabled = false
	cfg.Metrics.Port = 9090
	cfg.Logging.Format = "stumpy"
	return cfg
}

// loadConfig reads and parses a YAML config file at path. A missing file is
// not an error: the demo falls back to defaultConfig, matching a CLI tool
// that works out of the box without a config file present.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("corodemo: failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("corodemo: failed to parse config YAML: %w", err)
	}
	return cfg, nil
}

// tickInterval returns the configured tick period as a time.Duration,
// falling back to defaultConfig's value for a non-positive IntervalMs.
func (c Config) tickInterval() time.Duration {
	if c.Tick.IntervalMs <= 0 {
		return 16 * time.Millisecond
	}
	return time.Duration(c.Tick.IntervalMs) * time.Millisecond
}
