package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".prpulse"), cfg.DataDir)
	assert.Equal(t, filepath.Join(cfg.DataDir, "logs", "prpulse.log"), cfg.LogFile)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 2*time.Second, cfg.TUI.RefreshInterval)
	assert.False(t, cfg.MockClient)
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
data_dir: /tmp/prpulse-data
log_file: /tmp/prpulse.log
log:
  level: debug
tui:
  refresh_interval: 5s
mock_client: true
mock_viewer: octocat
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/prpulse-data", cfg.DataDir)
	assert.Equal(t, "/tmp/prpulse.log", cfg.LogFile)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 5*time.Second, cfg.TUI.RefreshInterval)
	assert.True(t, cfg.MockClient)
	assert.Equal(t, "octocat", cfg.MockViewer)
}

func TestLoadPartialConfigFillsDefaults(t *testing.T) {
	path := writeConfig(t, "data_dir: /tmp/custom\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom", cfg.DataDir)
	assert.Equal(t, filepath.Join("/tmp/custom", "logs", "prpulse.log"), cfg.LogFile)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadRejectsInvalidLogLevel(t *testing.T) {
	path := writeConfig(t, "log:\n  level: verbose\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validate config")
}

func TestLoadRejectsBadInterval(t *testing.T) {
	_, err := Load(writeConfig(t, "tui:\n  refresh_interval: soonish\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "tui:\n  refresh_interval: -1s\n"))
	assert.Error(t, err)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "data_dir: [unclosed\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}
