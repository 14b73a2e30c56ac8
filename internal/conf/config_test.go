package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "campuspulse.db", cfg.Database.DSN)
	assert.Equal(t, ":8880", cfg.HTTP.Listen)
	assert.Equal(t, time.Minute, cfg.Engine.TickInterval.Std())
	assert.Equal(t, 2*time.Minute, cfg.Engine.LeaseTTL.Std())
	assert.Equal(t, 5*time.Second, cfg.Engine.MetricTimeout.Std())
	assert.Equal(t, 2, cfg.Engine.MetricRetries)
	assert.Equal(t, 1000, cfg.Engine.DispatchBuffer)
	assert.True(t, cfg.Engine.SeedDefaults)
	assert.Empty(t, cfg.Engine.TickCron)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
log:
  level: debug
database:
  driver: mysql
  dsn: user:pass@tcp(localhost:3306)/campuspulse
http:
  listen: ":9000"
engine:
  tick_interval: 30s
  lease_ttl: 5m
  metric_retries: 4
  seed_defaults: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, ":9000", cfg.HTTP.Listen)
	assert.Equal(t, 30*time.Second, cfg.Engine.TickInterval.Std())
	assert.Equal(t, 5*time.Minute, cfg.Engine.LeaseTTL.Std())
	assert.Equal(t, 4, cfg.Engine.MetricRetries)
	assert.False(t, cfg.Engine.SeedDefaults)
	// Unset keys keep their defaults.
	assert.Equal(t, 5*time.Second, cfg.Engine.MetricTimeout.Std())
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("CAMPUSPULSE_HTTP_LISTEN", ":7070")
	t.Setenv("CAMPUSPULSE_ENGINE_TICK_INTERVAL", "45s")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.HTTP.Listen)
	assert.Equal(t, 45*time.Second, cfg.Engine.TickInterval.Std())
}

func TestLoad_CronSchedule(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine:\n  tick_cron: \"0 6 * * *\"\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0 6 * * *", cfg.Engine.TickCron)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults valid", func(*Config) {}, false},
		{"bad driver", func(c *Config) { c.Database.Driver = "postgres" }, true},
		{"empty dsn", func(c *Config) { c.Database.DSN = "" }, true},
		{"zero tick without cron", func(c *Config) { c.Engine.TickInterval = 0 }, true},
		{"zero tick with cron", func(c *Config) {
			c.Engine.TickInterval = 0
			c.Engine.TickCron = "0 6 * * *"
		}, false},
		{"negative retries", func(c *Config) { c.Engine.MetricRetries = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
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
