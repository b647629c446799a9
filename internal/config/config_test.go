package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "leadenrich.db", cfg.Store.SQLitePath)
	assert.Equal(t, 3, cfg.Job.MaxRetries)
	assert.Equal(t, time.Second, cfg.Job.RetryDelay())
	assert.Equal(t, 10, cfg.Job.CheckpointEvery)
	assert.Equal(t, 10*time.Second, cfg.Scrape.Timeout())
	assert.Equal(t, 2, cfg.Scrape.MaxRetries)
	assert.Equal(t, 5*time.Minute, cfg.Monitor.StaleThreshold())
	assert.Equal(t, time.Minute, cfg.Monitor.CheckInterval())
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.Identity.CompanyCityMatch)
	assert.True(t, cfg.Discovery.Enabled)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LEADENRICH_STORE_DRIVER", "postgres")
	t.Setenv("LEADENRICH_JOB_MAX_RETRIES", "5")
	t.Setenv("LEADENRICH_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, 5, cfg.Job.MaxRetries)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir+"/config.yaml", `
store:
  driver: postgres
  database_url: postgres://localhost/leads
job:
  checkpoint_every: 25
monitor:
  stale_threshold_secs: 600
`)
	t.Chdir(dir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/leads", cfg.Store.DatabaseURL)
	assert.Equal(t, 25, cfg.Job.CheckpointEvery)
	assert.Equal(t, 10*time.Minute, cfg.Monitor.StaleThreshold())
	// Untouched sections keep defaults.
	assert.Equal(t, 3, cfg.Job.MaxRetries)
}

func TestInitLogger(t *testing.T) {
	tests := []struct {
		name    string
		cfg     LogConfig
		wantErr bool
	}{
		{"json info", LogConfig{Level: "info", Format: "json"}, false},
		{"console debug", LogConfig{Level: "debug", Format: "console"}, false},
		{"invalid level", LogConfig{Level: "verbose", Format: "json"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := InitLogger(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
