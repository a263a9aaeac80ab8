// Package config provides configuration types and defaults for procsync.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Lkhag/procsync/internal/log"
	"github.com/Lkhag/procsync/internal/pool"
	"github.com/Lkhag/procsync/internal/priority"
	"github.com/Lkhag/procsync/internal/tracing"
)

// PoolConfig holds the defaults used when starting a task pool.
type PoolConfig struct {
	Count             int           `mapstructure:"count"`
	Speed             float64       `mapstructure:"speed"`
	Priority          string        `mapstructure:"priority"`
	BaseDelay         time.Duration `mapstructure:"base_delay"`
	GracePeriod       time.Duration `mapstructure:"grace_period"`
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`
}

// SamplerConfig controls the system utilization sampler.
type SamplerConfig struct {
	Interval       time.Duration `mapstructure:"interval"`
	LogProbability float64       `mapstructure:"log_probability"`
}

// HistoryConfig controls run persistence.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
}

// Config holds all configuration options for procsync.
type Config struct {
	Pool    PoolConfig     `mapstructure:"pool"`
	Sampler SamplerConfig  `mapstructure:"sampler"`
	History HistoryConfig  `mapstructure:"history"`
	Metrics MetricsConfig  `mapstructure:"metrics"`
	Tracing tracing.Config `mapstructure:"tracing"`
	LogFile string         `mapstructure:"log_file"`
}

// DefaultConfigDir returns the directory procsync keeps its files in.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".procsync"
	}
	return filepath.Join(home, ".config", "procsync")
}

// DefaultHistoryPath returns the default location for the run database.
func DefaultHistoryPath() string {
	return filepath.Join(DefaultConfigDir(), "history.db")
}

// DefaultTracesFilePath returns the default location for exported traces.
func DefaultTracesFilePath() string {
	return filepath.Join(DefaultConfigDir(), "traces", "traces.jsonl")
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Pool: PoolConfig{
			Count:             4,
			Speed:             1.0,
			Priority:          priority.Normal.String(),
			BaseDelay:         pool.DefaultBaseDelay,
			GracePeriod:       pool.DefaultGracePeriod,
			ReconcileInterval: 200 * time.Millisecond,
		},
		Sampler: SamplerConfig{
			Interval:       time.Second,
			LogProbability: 0.1,
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    "", // Derived from config dir at runtime
		},
		Metrics: MetricsConfig{
			Enabled:    false,
			ListenAddr: "localhost:9187",
		},
		Tracing: tracing.DefaultConfig(),
	}
}

// Validate checks the configuration for values the pool would reject.
func Validate(cfg Config) error {
	if cfg.Pool.Count < pool.MinTasks || cfg.Pool.Count > pool.MaxTasks {
		return fmt.Errorf("pool.count must be between %d and %d, got %d",
			pool.MinTasks, pool.MaxTasks, cfg.Pool.Count)
	}
	if !pool.ValidSpeed(cfg.Pool.Speed) {
		return fmt.Errorf("pool.speed must be one of %v, got %g", pool.Speeds, cfg.Pool.Speed)
	}
	if _, err := priority.Parse(cfg.Pool.Priority); err != nil {
		return fmt.Errorf("pool.priority: %w", err)
	}
	if cfg.Pool.BaseDelay <= 0 {
		return fmt.Errorf("pool.base_delay must be positive, got %s", cfg.Pool.BaseDelay)
	}
	if cfg.Pool.GracePeriod <= 0 {
		return fmt.Errorf("pool.grace_period must be positive, got %s", cfg.Pool.GracePeriod)
	}
	if cfg.Pool.ReconcileInterval <= 0 {
		return fmt.Errorf("pool.reconcile_interval must be positive, got %s", cfg.Pool.ReconcileInterval)
	}
	if cfg.Sampler.Interval <= 0 {
		return fmt.Errorf("sampler.interval must be positive, got %s", cfg.Sampler.Interval)
	}
	if cfg.Sampler.LogProbability < 0 || cfg.Sampler.LogProbability > 1 {
		return fmt.Errorf("sampler.log_probability must be in [0, 1], got %g", cfg.Sampler.LogProbability)
	}
	if cfg.Metrics.Enabled && cfg.Metrics.ListenAddr == "" {
		return fmt.Errorf("metrics.listen_addr is required when metrics are enabled")
	}
	if err := ValidateTracing(cfg.Tracing); err != nil {
		return err
	}
	return nil
}

// ValidateTracing checks the tracing section.
func ValidateTracing(cfg tracing.Config) error {
	if !cfg.Enabled {
		return nil
	}
	switch cfg.Exporter {
	case "", "none", "file", "stdout", "otlp":
	default:
		return fmt.Errorf("tracing.exporter must be one of none, file, stdout, otlp; got %q", cfg.Exporter)
	}
	if cfg.Exporter == "otlp" && cfg.OTLPEndpoint == "" {
		return fmt.Errorf("tracing.otlp_endpoint is required for the otlp exporter")
	}
	if cfg.SampleRate < 0 || cfg.SampleRate > 1 {
		return fmt.Errorf("tracing.sample_rate must be in [0, 1], got %g", cfg.SampleRate)
	}
	return nil
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# Procsync Configuration

# Task pool defaults. These apply when the matching flag is not given.
pool:
  count: 4                  # Number of worker tasks (1-32)
  speed: 1.0                # Speed multiplier: 0.1, 0.25, 0.5, 1, 2, 5, 10
  priority: Normal          # Scheduling priority: Low, Normal, High
  base_delay: 50ms          # Per-step delay before the speed divisor
  grace_period: 1s          # How long Stop waits before reclaiming tasks
  reconcile_interval: 200ms # How often worker events are drained

# System utilization sampling
sampler:
  interval: 1s
  log_probability: 0.1      # Chance a sample is also logged

# Run history persistence (SQLite)
history:
  enabled: true
  # path: ~/.config/procsync/history.db

# Prometheus metrics endpoint
metrics:
  enabled: false
  listen_addr: localhost:9187

# Distributed tracing (one span per pool run)
# tracing:
#   enabled: true
#   exporter: file
#   file_path: ~/.config/procsync/traces/traces.jsonl
#
# Example: send traces to a collector via OTLP
# tracing:
#   enabled: true
#   exporter: otlp
#   otlp_endpoint: jaeger.internal:4317
#   sample_rate: 0.1

# Debug log destination (empty disables file logging)
# log_file: ~/.config/procsync/debug.log
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
