package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config represents the runtime configuration for the engagement service.
type Config struct {
	Server        ServerConfig       `mapstructure:"server"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Cache         CacheConfig        `mapstructure:"cache"`
	Relay         RelayConfig        `mapstructure:"relay"`
	Timeouts      TimeoutConfig      `mapstructure:"timeouts"`
	UserService   UserServiceConfig  `mapstructure:"user_service"`
	Auth          AuthConfig         `mapstructure:"auth"`
	Media         MediaConfig        `mapstructure:"media"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Monitoring    MonitoringConfig   `mapstructure:"monitoring"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port            int             `mapstructure:"port"`
	LogLevel        string          `mapstructure:"log_level"`
	LogFormat       string          `mapstructure:"log_format"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string        `mapstructure:"allowed_origins"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig bounds per-caller request rates on the API.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	DSN             string        `mapstructure:"dsn"`
	Postgres        DBAuthConfig  `mapstructure:"postgres"`
	MySQL           DBAuthConfig  `mapstructure:"mysql"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Host     string            `mapstructure:"host"`
	Port     int               `mapstructure:"port"`
	Database string            `mapstructure:"database"`
	Username string            `mapstructure:"username"`
	Password string            `mapstructure:"password"`
	Options  map[string]string `mapstructure:"options"`
}

// CacheConfig describes cache backends.
type CacheConfig struct {
	Redis     RedisCacheConfig `mapstructure:"redis"`
	UnreadTTL time.Duration    `mapstructure:"unread_ttl"`
}

// RedisCacheConfig holds Redis connection options.
type RedisCacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Address  string        `mapstructure:"address"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TLS      bool          `mapstructure:"tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// RelayConfig enables cross-instance fan-out over Redis pub/sub.
type RelayConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Channel string `mapstructure:"channel"`
}

// TimeoutConfig holds the per-call budgets for outbound calls.
type TimeoutConfig struct {
	Store      time.Duration `mapstructure:"store"`
	Broker     time.Duration `mapstructure:"broker"`
	UserLookup time.Duration `mapstructure:"user_lookup"`
}

// UserServiceConfig points at the external user directory.
type UserServiceConfig struct {
	Mode             string        `mapstructure:"mode"`
	BaseURL          string        `mapstructure:"base_url"`
	Retries          int           `mapstructure:"retries"`
	RetryBackoff     time.Duration `mapstructure:"retry_backoff"`
	RatePerSecond    float64       `mapstructure:"rate_per_second"`
	Burst            int           `mapstructure:"burst"`
	BreakerThreshold uint32        `mapstructure:"breaker_threshold"`
	BreakerTimeout   time.Duration `mapstructure:"breaker_timeout"`
}

// AuthConfig captures authentication settings.
type AuthConfig struct {
	JWT JWTSettings `mapstructure:"jwt"`
}

// JWTSettings configures bearer token validation.
type JWTSettings struct {
	Secret       string        `mapstructure:"secret"`
	PublicKeyPEM string        `mapstructure:"public_key"`
	Issuer       string        `mapstructure:"issuer"`
	TTL          time.Duration `mapstructure:"access_token_ttl"`
}

// MediaConfig controls chat attachment storage.
type MediaConfig struct {
	Dir            string `mapstructure:"dir"`
	MaxBytes       int64  `mapstructure:"max_bytes"`
	InlineMaxBytes int64  `mapstructure:"inline_max_bytes"`
}

// NotificationConfig tunes the notification pipeline and its maintenance jobs.
type NotificationConfig struct {
	RetentionDays     int    `mapstructure:"retention_days"`
	PruneSchedule     string `mapstructure:"prune_schedule"`
	ReconcileSchedule string `mapstructure:"reconcile_schedule"`
	DispatchWorkers   int    `mapstructure:"dispatch_workers"`
	QueueSize         int    `mapstructure:"queue_size"`
}

// MonitoringConfig enables health checks and metrics.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Health     HealthConfig     `mapstructure:"health_check"`
}

// PrometheusConfig toggles metrics endpoints.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// HealthConfig toggles health endpoints.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("APPMS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Database.Driver) {
	case "sqlite", "postgres", "postgresql", "mysql":
	default:
		return fmt.Errorf("config: unsupported database driver %q", c.Database.Driver)
	}
	switch strings.ToLower(c.UserService.Mode) {
	case "http":
		if strings.TrimSpace(c.UserService.BaseURL) == "" {
			return errors.New("config: user_service.base_url is required in http mode")
		}
	case "local":
	default:
		return fmt.Errorf("config: unsupported user_service.mode %q", c.UserService.Mode)
	}
	if c.Notifications.RetentionDays < 0 {
		return errors.New("config: notifications.retention_days must not be negative")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.rate_limit.requests_per_second", 20)
	v.SetDefault("server.rate_limit.burst", 40)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/engagement.sqlite")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("cache.redis.enabled", false)
	v.SetDefault("cache.redis.address", "127.0.0.1:6379")
	v.SetDefault("cache.redis.username", "")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.tls", false)
	v.SetDefault("cache.redis.timeout", "5s")
	v.SetDefault("cache.unread_ttl", "10m")

	v.SetDefault("relay.enabled", false)
	v.SetDefault("relay.channel", "appms:notifications")

	v.SetDefault("timeouts.store", "5s")
	v.SetDefault("timeouts.broker", "2s")
	v.SetDefault("timeouts.user_lookup", "3s")

	v.SetDefault("user_service.mode", "local")
	v.SetDefault("user_service.base_url", "")
	v.SetDefault("user_service.retries", 2)
	v.SetDefault("user_service.retry_backoff", "100ms")
	v.SetDefault("user_service.rate_per_second", 50)
	v.SetDefault("user_service.burst", 20)
	v.SetDefault("user_service.breaker_threshold", 5)
	v.SetDefault("user_service.breaker_timeout", "30s")

	v.SetDefault("auth.jwt.access_token_ttl", "15m")

	v.SetDefault("media.dir", "./data/media")
	v.SetDefault("media.max_bytes", 10<<20)
	v.SetDefault("media.inline_max_bytes", 256<<10)

	v.SetDefault("notifications.retention_days", 90)
	v.SetDefault("notifications.prune_schedule", "@daily")
	v.SetDefault("notifications.reconcile_schedule", "@every 6h")
	v.SetDefault("notifications.dispatch_workers", 8)
	v.SetDefault("notifications.queue_size", 1024)

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")
	v.SetDefault("monitoring.health_check.enabled", true)
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
