package watcher_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Lkhag/procsync/internal/watcher"
)

func TestWatcher_DebounceMultipleWrites(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "procsync.yaml")
	err := os.WriteFile(configPath, []byte("pool:\n  count: 4\n"), 0644)
	require.NoError(t, err, "failed to create config file")

	w, err := watcher.New(watcher.Config{
		ConfigPath:  configPath,
		DebounceDur: 50 * time.Millisecond,
	})
	require.NoError(t, err, "failed to create watcher")
	defer func() { _ = w.Stop() }()

	onChange, err := w.Start()
	require.NoError(t, err, "failed to start watcher")

	// Rapid writes should coalesce into a single notification
	for i := 0; i < 10; i++ {
		err := os.WriteFile(configPath, []byte(fmt.Sprintf("pool:\n  count: %d\n", i+1)), 0644)
		require.NoError(t, err, "failed to write file")
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case <-onChange:
		// Expected
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected notification but got timeout")
	}

	// No second notification should come quickly
	select {
	case <-onChange:
		t.Fatal("unexpected second notification")
	case <-time.After(100 * time.Millisecond):
		// Expected
	}
}

func TestWatcher_IgnoresIrrelevantFiles(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "procsync.yaml")
	otherPath := filepath.Join(dir, "other.txt")
	require.NoError(t, os.WriteFile(configPath, []byte("pool: {}\n"), 0644))
	// Pre-create the other file so writes to it are just Write events
	require.NoError(t, os.WriteFile(otherPath, []byte("initial"), 0644))

	w, err := watcher.New(watcher.Config{
		ConfigPath:  configPath,
		DebounceDur: 50 * time.Millisecond,
	})
	require.NoError(t, err, "failed to create watcher")
	defer func() { _ = w.Stop() }()

	onChange, err := w.Start()
	require.NoError(t, err, "failed to start watcher")

	require.NoError(t, os.WriteFile(otherPath, []byte("other content"), 0644))

	select {
	case <-onChange:
		t.Fatal("unexpected notification for unrelated file")
	case <-time.After(150 * time.Millisecond):
		// Expected
	}
}

func TestWatcher_DetectsRenameOver(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "procsync.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("pool: {}\n"), 0644))

	w, err := watcher.New(watcher.Config{
		ConfigPath:  configPath,
		DebounceDur: 50 * time.Millisecond,
	})
	require.NoError(t, err, "failed to create watcher")
	defer func() { _ = w.Stop() }()

	onChange, err := w.Start()
	require.NoError(t, err, "failed to start watcher")

	// Editors save by renaming a temp file over the config.
	tempPath := filepath.Join(dir, ".procsync.yaml.tmp")
	require.NoError(t, os.WriteFile(tempPath, []byte("pool:\n  count: 8\n"), 0644))
	require.NoError(t, os.Rename(tempPath, configPath))

	select {
	case <-onChange:
		// Expected
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected notification after rename")
	}
}

func TestWatcher_StopReleasesResources(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "procsync.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("pool: {}\n"), 0644))

	w, err := watcher.New(watcher.Config{
		ConfigPath:  configPath,
		DebounceDur: 50 * time.Millisecond,
	})
	require.NoError(t, err, "failed to create watcher")

	_, err = w.Start()
	require.NoError(t, err, "failed to start watcher")
	require.NoError(t, w.Stop())
}
