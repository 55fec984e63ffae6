package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"paywatch/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Logging    logging.Config   `mapstructure:"logging"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Poller     PollerConfig     `mapstructure:"poller"`
	QuietHours QuietHoursConfig `mapstructure:"quiet_hours"`
	Inbox      InboxConfig      `mapstructure:"inbox"`
	Slack      SlackConfig      `mapstructure:"slack"`
	Export     ExportConfig     `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// PollerConfig governs the polling cadence.
type PollerConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	StartupDelay time.Duration `mapstructure:"startup_delay"`
	LookbackDays int           `mapstructure:"lookback_days"`
}

// QuietHoursConfig suspends polling during a daily window.
type QuietHoursConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Start           string        `mapstructure:"start"`
	End             string        `mapstructure:"end"`
	RecheckInterval time.Duration `mapstructure:"recheck_interval"`
}

// InboxConfig covers the inbox message source.
type InboxConfig struct {
	BaseURL          string        `mapstructure:"base_url"`
	AuthToken        string        `mapstructure:"auth_token"`
	Query            string        `mapstructure:"query"`
	PageSize         int           `mapstructure:"page_size"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	MaxRetries       int           `mapstructure:"max_retries"`
	RateLimitPerSec  float64       `mapstructure:"rate_limit_per_sec"`
	RateLimitBurst   int           `mapstructure:"rate_limit_burst"`
	BreakerCooldown  time.Duration `mapstructure:"breaker_cooldown"`
	BreakerThreshold uint32        `mapstructure:"breaker_threshold"`
}

// SlackConfig captures the notification sink.
type SlackConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	APIToken       string        `mapstructure:"api_token"`
	ChannelID      string        `mapstructure:"channel_id"`
	APIBase        string        `mapstructure:"api_base"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PAYWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "paywatch")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("poller.interval", "30s")
	v.SetDefault("poller.startup_delay", "0s")
	v.SetDefault("poller.lookback_days", 1)

	v.SetDefault("quiet_hours.enabled", true)
	v.SetDefault("quiet_hours.start", "00:00")
	v.SetDefault("quiet_hours.end", "09:00")
	v.SetDefault("quiet_hours.recheck_interval", "60s")

	v.SetDefault("inbox.query", "category:primary newer_than:1d")
	v.SetDefault("inbox.page_size", 10)
	v.SetDefault("inbox.request_timeout", "10s")
	v.SetDefault("inbox.max_retries", 2)
	v.SetDefault("inbox.rate_limit_per_sec", 5.0)
	v.SetDefault("inbox.rate_limit_burst", 5)
	v.SetDefault("inbox.breaker_cooldown", "60s")
	v.SetDefault("inbox.breaker_threshold", uint32(5))

	v.SetDefault("slack.enabled", false)
	v.SetDefault("slack.api_base", "https://slack.com/api")
	v.SetDefault("slack.request_timeout", "10s")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Poller.Interval <= 0 {
		return fmt.Errorf("poller.interval must be greater than zero")
	}
	if c.Poller.LookbackDays <= 0 {
		return fmt.Errorf("poller.lookback_days must be greater than zero")
	}
	if c.Inbox.PageSize <= 0 {
		return fmt.Errorf("inbox.page_size must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.QuietHours.Enabled {
		if _, err := ParseClock(c.QuietHours.Start); err != nil {
			return fmt.Errorf("quiet_hours.start: %w", err)
		}
		if _, err := ParseClock(c.QuietHours.End); err != nil {
			return fmt.Errorf("quiet_hours.end: %w", err)
		}
		if c.QuietHours.RecheckInterval <= 0 {
			return fmt.Errorf("quiet_hours.recheck_interval must be greater than zero")
		}
	}
	if c.Slack.Enabled {
		if c.Slack.APIToken == "" {
			return fmt.Errorf("slack.api_token is required when slack is enabled")
		}
		if c.Slack.ChannelID == "" {
			return fmt.Errorf("slack.channel_id is required when slack is enabled")
		}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}

// ParseClock parses a HH:MM wall-clock value into minutes since midnight.
func ParseClock(value string) (int, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, fmt.Errorf("invalid clock value %q (want HH:MM)", value)
	}
	return t.Hour()*60 + t.Minute(), nil
}
