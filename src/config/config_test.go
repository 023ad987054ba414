package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 10*time.Second, cfg.Monitor.Interval)
	assert.Equal(t, 1000, cfg.Monitor.MaxEventsHistory)
	assert.Equal(t, 10, cfg.Monitor.AlertMinRequests)
	assert.Equal(t, 10, cfg.Advisor.BatchSize)
	assert.Equal(t, 100*time.Millisecond, cfg.Advisor.BatchDebounce)
	assert.Equal(t, 60*time.Second, cfg.Orchestrator.HealthInterval)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.False(t, cfg.Database.Enabled)
	assert.False(t, cfg.Diag.Enabled)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
logging:
  level: debug
monitor:
  interval: 30s
  max_events_history: 200
orchestrator:
  memory_tier_entries: 50
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 30*time.Second, cfg.Monitor.Interval)
	assert.Equal(t, 200, cfg.Monitor.MaxEventsHistory)
	assert.Equal(t, 50, cfg.Orchestrator.MemoryTierEntries)
	assert.Equal(t, 10, cfg.Advisor.BatchSize, "unset sections keep defaults")
}

func TestLoadConfigExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_REDIS_ADDR", "redis.internal:6379")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
storage:
  backend: redis
  addr: ${TEST_REDIS_ADDR}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "redis", cfg.Storage.Backend)
	assert.Equal(t, "redis.internal:6379", cfg.Storage.Addr)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("MONITOR_INTERVAL", "5s")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("DATABASE_HOST", "db.internal")
	t.Setenv("DATABASE_PORT", "5433")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, 5*time.Second, cfg.Monitor.Interval)
	assert.Equal(t, "redis", cfg.Storage.Backend)
	assert.Equal(t, "localhost:6379", cfg.Storage.Addr)
	assert.True(t, cfg.Database.Enabled)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		message string
	}{
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "invalid log level"},
		{"zero monitor interval", func(c *Config) { c.Monitor.Interval = 0 }, "monitor interval"},
		{"tiny event history", func(c *Config) { c.Monitor.MaxEventsHistory = 5 }, "max events history"},
		{"zero batch size", func(c *Config) { c.Advisor.BatchSize = 0 }, "batch size"},
		{"zero debounce", func(c *Config) { c.Advisor.BatchDebounce = 0 }, "batch debounce"},
		{"zero baseline refresh", func(c *Config) { c.Orchestrator.BaselineRefreshEvery = 0 }, "baseline_refresh_every"},
		{"bad backend", func(c *Config) { c.Storage.Backend = "dynamo" }, "invalid storage backend"},
		{"redis without addr", func(c *Config) { c.Storage.Backend = "redis"; c.Storage.Addr = "" }, "requires an address"},
		{"db without host", func(c *Config) { c.Database.Enabled = true; c.Database.Host = "" }, "database host"},
		{"bad diag port", func(c *Config) { c.Diag.Enabled = true; c.Diag.Port = 0 }, "invalid diag port"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.message)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestExpandEnvVarsKeepsUnknownPatterns(t *testing.T) {
	assert.Equal(t, "${NOT_SET_ANYWHERE_42}", expandEnvVars("${NOT_SET_ANYWHERE_42}"))
}
