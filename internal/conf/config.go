// Package conf loads and validates alertflow settings.
package conf

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment variable overrides,
// e.g. ALERTFLOW_DATABASE_DRIVER.
const EnvPrefix = "ALERTFLOW"

// Settings is the root configuration.
type Settings struct {
	Server   ServerSettings   `mapstructure:"server" yaml:"server"`
	Database DatabaseSettings `mapstructure:"database" yaml:"database"`
	Redis    RedisSettings    `mapstructure:"redis" yaml:"redis"`
	Alerting AlertingSettings `mapstructure:"alerting" yaml:"alerting"`
	EventBus EventBusSettings `mapstructure:"eventbus" yaml:"eventbus"`
	Logging  LoggingSettings  `mapstructure:"logging" yaml:"logging"`
	Sentry   SentrySettings   `mapstructure:"sentry" yaml:"sentry"`
}

type ServerSettings struct {
	Listen       string   `mapstructure:"listen" yaml:"listen"`
	ReadTimeout  Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
}

// DatabaseSettings selects the gorm dialect. Path is used by sqlite, DSN by mysql.
type DatabaseSettings struct {
	Driver       string `mapstructure:"driver" yaml:"driver"`
	Path         string `mapstructure:"path" yaml:"path"`
	DSN          string `mapstructure:"dsn" yaml:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
	Debug        bool   `mapstructure:"debug" yaml:"debug"`
}

// RedisSettings enables the Redis-backed throttle counters.
type RedisSettings struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
}

type AlertingSettings struct {
	DefaultTenant          string   `mapstructure:"default_tenant" yaml:"default_tenant"`
	PolicyCacheTTL         Duration `mapstructure:"policy_cache_ttl" yaml:"policy_cache_ttl"`
	MaxConcurrentPolicies  int      `mapstructure:"max_concurrent_policies" yaml:"max_concurrent_policies"`
	DefaultProviderTimeout Duration `mapstructure:"default_provider_timeout" yaml:"default_provider_timeout"`
	StoreTimeout           Duration `mapstructure:"store_timeout" yaml:"store_timeout"`
	MailWorkers            int      `mapstructure:"mail_workers" yaml:"mail_workers"`
	MailQueueSize          int      `mapstructure:"mail_queue_size" yaml:"mail_queue_size"`
	ProviderRateLimit      float64  `mapstructure:"provider_rate_limit" yaml:"provider_rate_limit"`
	ProviderRateBurst      int      `mapstructure:"provider_rate_burst" yaml:"provider_rate_burst"`
}

type EventBusSettings struct {
	Driver         string   `mapstructure:"driver" yaml:"driver"`
	Brokers        []string `mapstructure:"brokers" yaml:"brokers"`
	ClientID       string   `mapstructure:"client_id" yaml:"client_id"`
	GroupID        string   `mapstructure:"group_id" yaml:"group_id"`
	Username       string   `mapstructure:"username" yaml:"username"`
	Password       string   `mapstructure:"password" yaml:"password"`
	IngestTopic    string   `mapstructure:"ingest_topic" yaml:"ingest_topic"`
	TriggeredTopic string   `mapstructure:"triggered_topic" yaml:"triggered_topic"`
	QoS            int      `mapstructure:"qos" yaml:"qos"`
	BufferSize     int      `mapstructure:"buffer_size" yaml:"buffer_size"`
}

type LoggingSettings struct {
	Level      string `mapstructure:"level" yaml:"level"`
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
	Console    bool   `mapstructure:"console" yaml:"console"`
	Timezone   string `mapstructure:"timezone" yaml:"timezone"`
}

type SentrySettings struct {
	Enabled     bool    `mapstructure:"enabled" yaml:"enabled"`
	DSN         string  `mapstructure:"dsn" yaml:"dsn"`
	Environment string  `mapstructure:"environment" yaml:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate" yaml:"sample_rate"`
}

// Supported drivers.
var (
	DatabaseDrivers = []string{"sqlite", "mysql"}
	EventBusDrivers = []string{"memory", "mqtt", "kafka"}
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "alertflow.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")

	v.SetDefault("alerting.default_tenant", "default")
	v.SetDefault("alerting.policy_cache_ttl", "30s")
	v.SetDefault("alerting.max_concurrent_policies", 16)
	v.SetDefault("alerting.default_provider_timeout", "10s")
	v.SetDefault("alerting.store_timeout", "3s")
	v.SetDefault("alerting.mail_workers", 2)
	v.SetDefault("alerting.mail_queue_size", 100)
	v.SetDefault("alerting.provider_rate_limit", 0)
	v.SetDefault("alerting.provider_rate_burst", 5)

	v.SetDefault("eventbus.driver", "memory")
	v.SetDefault("eventbus.client_id", "alertflow")
	v.SetDefault("eventbus.group_id", "alertflow-engine")
	v.SetDefault("eventbus.ingest_topic", "alertflow.events")
	v.SetDefault("eventbus.triggered_topic", "alertflow.alerts")
	v.SetDefault("eventbus.qos", 1)
	v.SetDefault("eventbus.buffer_size", 1000)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_age_days", 30)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.console", true)

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.sample_rate", 1.0)
}

// Load reads settings from path (optional, YAML) and from ALERTFLOW_*
// environment variables, then validates them.
func Load(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var settings Settings
	if err := v.Unmarshal(&settings, viper.DecodeHook(DurationDecodeHook())); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &settings, nil
}

// Validate rejects settings that cannot produce a working service.
func (s *Settings) Validate() error {
	if !slices.Contains(DatabaseDrivers, s.Database.Driver) {
		return fmt.Errorf("unsupported database driver %q", s.Database.Driver)
	}
	if s.Database.Driver == "mysql" && s.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required for mysql")
	}
	if !slices.Contains(EventBusDrivers, s.EventBus.Driver) {
		return fmt.Errorf("unsupported eventbus driver %q", s.EventBus.Driver)
	}
	if s.EventBus.Driver != "memory" && len(s.EventBus.Brokers) == 0 {
		return fmt.Errorf("eventbus.brokers is required for %s", s.EventBus.Driver)
	}
	if s.Alerting.MaxConcurrentPolicies < 1 {
		return fmt.Errorf("alerting.max_concurrent_policies must be at least 1")
	}
	if s.Alerting.MailWorkers < 1 || s.Alerting.MailQueueSize < 1 {
		return fmt.Errorf("alerting.mail_workers and alerting.mail_queue_size must be positive")
	}
	if s.Alerting.ProviderRateLimit < 0 {
		return fmt.Errorf("alerting.provider_rate_limit must not be negative")
	}
	if s.EventBus.QoS < 0 || s.EventBus.QoS > 2 {
		return fmt.Errorf("eventbus.qos must be 0, 1 or 2")
	}
	if s.Logging.Timezone != "" {
		if _, err := time.LoadLocation(s.Logging.Timezone); err != nil {
			return fmt.Errorf("invalid logging.timezone %q: %w", s.Logging.Timezone, err)
		}
	}
	return nil
}
