package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_CreatesDefaultWhenMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clusterview.yaml")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	_, statErr := os.Stat(path)
	assert.NoError(t, statErr, "default config should be written to disk")

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "http://localhost:8000", cfg.Backend.BaseURL)
	assert.Equal(t, 30, cfg.Polling.MaxAttempts)
	assert.Equal(t, time.Second, cfg.PollInterval())
	assert.False(t, cfg.Polling.RetryOnError)
	assert.Equal(t, filepath.Join(dir, "data", "blobs"), cfg.Storage.BlobDirectory)
}

func TestLoadConfig_PartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clusterview.yaml")
	content := `
backend:
  base_url: http://cluster.internal:9000
polling:
  max_attempts: 5
  retry_on_error: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "http://cluster.internal:9000", cfg.Backend.BaseURL)
	assert.Equal(t, 5, cfg.Polling.MaxAttempts)
	assert.True(t, cfg.Polling.RetryOnError)
	assert.Equal(t, 1000, cfg.Polling.IntervalMillis)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clusterview.yaml")
	dataDir := filepath.Join(dir, "elsewhere")

	t.Setenv("PORT", "4567")
	t.Setenv("CLUSTERVIEW_BACKEND_URL", "http://10.0.0.2:8000")
	t.Setenv("DATA_DIR", dataDir)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 4567, cfg.Server.Port)
	assert.Equal(t, "http://10.0.0.2:8000", cfg.Backend.BaseURL)
	assert.Equal(t, dataDir, cfg.Storage.DataDirectory)
	assert.Equal(t, filepath.Join(dataDir, "blobs"), cfg.Storage.BlobDirectory)
	assert.Equal(t, filepath.Join(dataDir, "spool"), cfg.Storage.SpoolDirectory)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clusterview.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not, a, map"), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *AppConfig)
		wantErr bool
	}{
		{name: "defaults", mutate: func(c *AppConfig) {}},
		{name: "bad port", mutate: func(c *AppConfig) { c.Server.Port = 0 }, wantErr: true},
		{name: "relative backend url", mutate: func(c *AppConfig) { c.Backend.BaseURL = "localhost:8000" }, wantErr: true},
		{name: "zero interval", mutate: func(c *AppConfig) { c.Polling.IntervalMillis = 0 }, wantErr: true},
		{name: "zero attempts", mutate: func(c *AppConfig) { c.Polling.MaxAttempts = 0 }, wantErr: true},
		{name: "zero screens", mutate: func(c *AppConfig) { c.Screens.MaxScreens = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Storage.DataDirectory = filepath.Join(dir, "data")
	cfg.Storage.BlobDirectory = filepath.Join(dir, "data", "blobs")
	cfg.Storage.SpoolDirectory = filepath.Join(dir, "data", "spool")

	require.NoError(t, cfg.EnsureDirectories())

	info, err := os.Stat(cfg.Storage.BlobDirectory)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, "127.0.0.1:3000", cfg.GetServerAddr())
}

func TestDurations(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Polling.IntervalMillis = 250
	cfg.Backend.RequestTimeout = 30
	cfg.Backend.UploadTimeout = 600
	cfg.Screens.IdleTimeoutMinutes = 15
	cfg.Advanced.UploadJobMaxAgeMins = 60

	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval())
	assert.Equal(t, 30*time.Second, cfg.BackendTimeout())
	assert.Equal(t, 10*time.Minute, cfg.UploadTimeout())
	assert.Equal(t, 15*time.Minute, cfg.ScreenIdleTimeout())
	assert.Equal(t, time.Hour, cfg.JobMaxAge())
}
