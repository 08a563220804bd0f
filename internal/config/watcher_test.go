package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigWatcherStart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("env: development\n"), 0644))

	cfg := Default()
	watcher := NewConfigWatcher(cfg, path)
	watcher.OnConfigChange(func(*Config) {})

	require.NoError(t, watcher.Start())
	defer watcher.Stop()

	assert.Same(t, cfg, watcher.GetConfig())
}

func TestConfigWatcherMissingFile(t *testing.T) {
	watcher := NewConfigWatcher(Default(), "/nonexistent/config.yaml")
	assert.Error(t, watcher.Start())
}
