package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestSavePoolSettingsCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "procsync.yaml")

	require.NoError(t, SavePoolSettings(path, PoolConfig{Count: 8, Speed: 2.0, Priority: "High"}))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())
	require.Equal(t, 8, v.GetInt("pool.count"))
	require.Equal(t, 2.0, v.GetFloat64("pool.speed"))
	require.Equal(t, "High", v.GetString("pool.priority"))
}

func TestSavePoolSettingsPreservesOtherSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "procsync.yaml")
	require.NoError(t, WriteDefaultConfig(path))

	require.NoError(t, SavePoolSettings(path, PoolConfig{Count: 16, Speed: 0.5, Priority: "Low"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)

	// Comments and untouched sections survive the rewrite.
	require.Contains(t, text, "# Procsync Configuration")
	require.Contains(t, text, "sampler:")
	require.Contains(t, text, "grace_period: 1s")

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())
	require.Equal(t, 16, v.GetInt("pool.count"))
	require.Equal(t, "Low", v.GetString("pool.priority"))
	// Cadence keys in the pool section are left alone.
	require.Equal(t, "50ms", v.GetString("pool.base_delay"))
}

func TestSavePoolSettingsUpdatesExistingValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "procsync.yaml")

	require.NoError(t, SavePoolSettings(path, PoolConfig{Count: 2, Speed: 1.0, Priority: "Normal"}))
	require.NoError(t, SavePoolSettings(path, PoolConfig{Count: 4, Speed: 5.0, Priority: "High"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, 1, strings.Count(string(data), "count:"))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())
	require.Equal(t, 4, v.GetInt("pool.count"))
	require.Equal(t, 5.0, v.GetFloat64("pool.speed"))
}
