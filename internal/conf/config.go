// Package conf loads runtime configuration from YAML files and
// environment variables via Viper.
package conf

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full runtime configuration.
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Engine   EngineConfig   `mapstructure:"engine"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level string `mapstructure:"level"` // debug, info, warn, error
}

// DatabaseConfig selects and configures the GORM backend.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // sqlite or mysql
	DSN    string `mapstructure:"dsn"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Listen string `mapstructure:"listen"`
}

// EngineConfig tunes the evaluation engine and scheduler.
type EngineConfig struct {
	// TickInterval is the scheduler period. Ignored when TickCron is set.
	TickInterval Duration `mapstructure:"tick_interval"`
	// TickCron optionally drives ticks from a cron expression.
	TickCron string `mapstructure:"tick_cron"`
	// LeaseTTL bounds how long a stuck evaluation blocks its rule.
	LeaseTTL Duration `mapstructure:"lease_ttl"`
	// MetricTimeout bounds one metric resolution attempt.
	MetricTimeout Duration `mapstructure:"metric_timeout"`
	// MetricRetries bounds retries after a failed resolution attempt.
	MetricRetries int `mapstructure:"metric_retries"`
	// DispatchBuffer sizes the delivery intent channel.
	DispatchBuffer int `mapstructure:"dispatch_buffer"`
	// SeedDefaults controls whether built-in rules are seeded on start.
	SeedDefaults bool `mapstructure:"seed_defaults"`
}

// Default returns the configuration used when no file or env overrides exist.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "campuspulse.db",
		},
		HTTP: HTTPConfig{Listen: ":8880"},
		Engine: EngineConfig{
			TickInterval:   Duration(1 * time.Minute),
			LeaseTTL:       Duration(2 * time.Minute),
			MetricTimeout:  Duration(5 * time.Second),
			MetricRetries:  2,
			DispatchBuffer: 1000,
			SeedDefaults:   true,
		},
	}
}

// Load reads configuration from the given file path (optional) and
// CAMPUSPULSE_* environment variables, over the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	cfg := Default()
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("database.driver", cfg.Database.Driver)
	v.SetDefault("database.dsn", cfg.Database.DSN)
	v.SetDefault("http.listen", cfg.HTTP.Listen)
	v.SetDefault("engine.tick_interval", cfg.Engine.TickInterval.Std().String())
	v.SetDefault("engine.tick_cron", cfg.Engine.TickCron)
	v.SetDefault("engine.lease_ttl", cfg.Engine.LeaseTTL.Std().String())
	v.SetDefault("engine.metric_timeout", cfg.Engine.MetricTimeout.Std().String())
	v.SetDefault("engine.metric_retries", cfg.Engine.MetricRetries)
	v.SetDefault("engine.dispatch_buffer", cfg.Engine.DispatchBuffer)
	v.SetDefault("engine.seed_defaults", cfg.Engine.SeedDefaults)

	v.SetEnvPrefix("CAMPUSPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	out := &Config{}
	if err := v.Unmarshal(out, viper.DecodeHook(DurationDecodeHook())); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database dsn is required")
	}
	if c.Engine.TickInterval <= 0 && c.Engine.TickCron == "" {
		return fmt.Errorf("engine tick_interval must be positive when tick_cron is unset")
	}
	if c.Engine.MetricRetries < 0 {
		return fmt.Errorf("engine metric_retries cannot be negative")
	}
	return nil
}
