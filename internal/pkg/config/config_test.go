package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 15*time.Second, cfg.Scheduler.LiveInterval)
	assert.Equal(t, 180*time.Second, cfg.Scheduler.UpcomingInterval)
	assert.Equal(t, 300*time.Second, cfg.Scheduler.FullRefreshTimeout)
	assert.Equal(t, 45*time.Second, cfg.Scheduler.FetchTimeout)
	assert.Equal(t, 7*24*time.Hour, cfg.Maintenance.Retention)
	assert.Equal(t, 100, cfg.Storage.MaxHistory)
	assert.True(t, cfg.Browser.Headless)
	require.Len(t, cfg.Sources, len(DefaultSources))
	for _, s := range cfg.Sources {
		assert.Equal(t, "hardrock", s.Parser)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
sources:
  - name: TT Cup
    url: https://example.test/tt-cup
scheduler:
  live_interval: 10s
storage:
  driver: sqlite
  dsn: ":memory:"
  max_history: 50
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	require.Len(t, cfg.Sources, 1)
	assert.Equal(t, "TT Cup", cfg.Sources[0].Name)
	assert.Equal(t, 10*time.Second, cfg.Scheduler.LiveInterval)
	assert.Equal(t, 180*time.Second, cfg.Scheduler.UpcomingInterval)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, 50, cfg.Storage.MaxHistory)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"STORE_DRIVER":          "postgres",
		"STORE_DSN":             "postgres://localhost/tt",
		"HEADLESS":              "false",
		"LIVE_REFRESH_INTERVAL": "20",
		"MAX_RUNTIME_HOURS":     "24",
		"TELEGRAM_CHAT_ID":      "-1001",
		"HEALTH_PORT":           "9090",
	}
	cfg := Default()
	err := cfg.applyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, "postgres://localhost/tt", cfg.Storage.DSN)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 20*time.Second, cfg.Scheduler.LiveInterval)
	assert.Equal(t, 24*time.Hour, cfg.Scheduler.MaxDuration)
	assert.Equal(t, int64(-1001), cfg.Telegram.ChatID)
	assert.Equal(t, 9090, cfg.Health.Port)
}

func TestApplyEnvRejectsGarbage(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(func(k string) (string, bool) {
		if k == "FULL_REFRESH_TIMEOUT" {
			return "soon", true
		}
		return "", false
	})
	assert.ErrorContains(t, err, "FULL_REFRESH_TIMEOUT")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing dsn",
			mutate:  func(c *Config) { c.Storage.Driver = "postgres" },
			wantErr: "storage.dsn is required",
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Storage.Driver = "cosmos" },
			wantErr: "unknown storage driver",
		},
		{
			name: "duplicate source",
			mutate: func(c *Config) {
				c.Sources = append(c.Sources, c.Sources[0])
			},
			wantErr: "duplicate name",
		},
		{
			name:    "zero fetch timeout",
			mutate:  func(c *Config) { c.Scheduler.FetchTimeout = 0 },
			wantErr: "fetch_timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Sources = append([]SourceConfig(nil), DefaultSources...)
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
