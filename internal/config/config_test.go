package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/Lkhag/procsync/internal/tracing"
)

func TestDefaultsAreValid(t *testing.T) {
	require.NoError(t, Validate(Defaults()))
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"count too low", func(c *Config) { c.Pool.Count = 0 }},
		{"count too high", func(c *Config) { c.Pool.Count = 33 }},
		{"speed off the menu", func(c *Config) { c.Pool.Speed = 3.0 }},
		{"unknown priority", func(c *Config) { c.Pool.Priority = "Urgent" }},
		{"zero base delay", func(c *Config) { c.Pool.BaseDelay = 0 }},
		{"zero grace period", func(c *Config) { c.Pool.GracePeriod = 0 }},
		{"zero reconcile interval", func(c *Config) { c.Pool.ReconcileInterval = 0 }},
		{"zero sampler interval", func(c *Config) { c.Sampler.Interval = 0 }},
		{"log probability above one", func(c *Config) { c.Sampler.LogProbability = 1.5 }},
		{"metrics without address", func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.ListenAddr = ""
		}},
		{"bad tracing exporter", func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.Exporter = "carrier-pigeon"
		}},
		{"otlp without endpoint", func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.Exporter = "otlp"
			c.Tracing.OTLPEndpoint = ""
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			require.Error(t, Validate(cfg))
		})
	}
}

func TestValidateTracingSkipsDisabled(t *testing.T) {
	cfg := tracing.Config{Enabled: false, Exporter: "carrier-pigeon"}
	require.NoError(t, ValidateTracing(cfg))
}

func TestDefaultConfigTemplateParses(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "procsync.yaml")
	require.NoError(t, WriteDefaultConfig(path))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg := Defaults()
	require.NoError(t, v.Unmarshal(&cfg))
	require.NoError(t, Validate(cfg))

	require.Equal(t, 4, cfg.Pool.Count)
	require.Equal(t, 50*time.Millisecond, cfg.Pool.BaseDelay)
	require.Equal(t, 200*time.Millisecond, cfg.Pool.ReconcileInterval)
	require.Equal(t, time.Second, cfg.Sampler.Interval)
}

func TestWriteDefaultConfigCreatesParentDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "deeper", "procsync.yaml")
	require.NoError(t, WriteDefaultConfig(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.False(t, info.IsDir())
}
