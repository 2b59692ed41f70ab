package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("testdata"))
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)
	require.Equal(t, "console", cfg.Server.LogFormat)
	require.Equal(t, []string{"https://classroom.example.com", "https://admin.example.com"}, cfg.Server.AllowedOrigins)

	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, "db.example.com", cfg.Database.Postgres.Host)
	require.Equal(t, "require", cfg.Database.Postgres.Options["sslmode"])

	require.True(t, cfg.Cache.Redis.Enabled)
	require.Equal(t, 3*time.Second, cfg.Cache.Redis.Timeout)
	require.Equal(t, 2*time.Minute, cfg.Cache.UnreadTTL)

	require.True(t, cfg.Relay.Enabled)
	require.Equal(t, "classroom:fanout", cfg.Relay.Channel)

	require.Equal(t, 4*time.Second, cfg.Timeouts.Store)
	require.Equal(t, 1500*time.Millisecond, cfg.Timeouts.Broker)
	require.Equal(t, 2*time.Second, cfg.Timeouts.UserLookup)

	require.Equal(t, "http", cfg.UserService.Mode)
	require.Equal(t, 3, cfg.UserService.Retries)

	require.Equal(t, "jwt-secret", cfg.Auth.JWT.Secret)
	require.Equal(t, int64(65536), cfg.Media.InlineMaxBytes)

	require.Equal(t, 30, cfg.Notifications.RetentionDays)
	require.Equal(t, "0 3 * * *", cfg.Notifications.PruneSchedule)
	require.Equal(t, "@every 6h", cfg.Notifications.ReconcileSchedule)
	require.Equal(t, 4, cfg.Notifications.DispatchWorkers)
	require.Equal(t, 1024, cfg.Notifications.QueueSize)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.False(t, cfg.Cache.Redis.Enabled)
	require.Equal(t, 5*time.Second, cfg.Timeouts.Store)
	require.Equal(t, 2*time.Second, cfg.Timeouts.Broker)
	require.Equal(t, 3*time.Second, cfg.Timeouts.UserLookup)
	require.Equal(t, "local", cfg.UserService.Mode)
	require.Equal(t, 90, cfg.Notifications.RetentionDays)
	require.True(t, cfg.Monitoring.Prometheus.Enabled)
	require.Equal(t, float64(20), cfg.Server.RateLimit.RequestsPerSecond)
	require.Equal(t, 40, cfg.Server.RateLimit.Burst)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("APPMS_SERVER_PORT", "7070")
	t.Setenv("APPMS_NOTIFICATIONS_RETENTION_DAYS", "14")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, 7070, cfg.Server.Port)
	require.Equal(t, 14, cfg.Notifications.RetentionDays)
}

func TestConfigValidate(t *testing.T) {
	cfg := &Config{}
	cfg.Database.Driver = "sqlite"
	cfg.UserService.Mode = "local"
	require.NoError(t, cfg.Validate())

	cfg.UserService.Mode = "http"
	require.ErrorContains(t, cfg.Validate(), "base_url")

	cfg.UserService.BaseURL = "http://users"
	cfg.Database.Driver = "oracle"
	require.ErrorContains(t, cfg.Validate(), "unsupported database driver")
}

func TestServiceConfigConversions(t *testing.T) {
	db := DatabaseConfig{
		Driver: "postgres",
		Postgres: DBAuthConfig{
			Host: "pg", Port: 5432, Database: "engagement", Username: "appms", Password: "pw",
		},
	}.ConnectionConfig()
	require.Equal(t, "pg", db.Host)
	require.Equal(t, "engagement", db.Name)
	require.Equal(t, "appms", db.User)

	sqlite := DatabaseConfig{Driver: "sqlite", Path: "x.db"}.ConnectionConfig()
	require.Empty(t, sqlite.Host)
	require.Equal(t, "x.db", sqlite.Path)

	client := UserServiceConfig{BaseURL: " http://users/ ", Retries: 2}.ClientConfig(TimeoutConfig{})
	require.Equal(t, "http://users", client.BaseURL)
	require.Equal(t, 3*time.Second, client.Timeout)

	dispatcher := NotificationConfig{DispatchWorkers: 3}.DispatcherConfig(TimeoutConfig{Broker: time.Second})
	require.Equal(t, 3, dispatcher.Workers)
	require.Equal(t, time.Second, dispatcher.PublishTimeout)
	require.Equal(t, 5*time.Second, dispatcher.StoreTimeout)

	jwtCfg := AuthConfig{JWT: JWTSettings{Secret: "s"}}.JWTServiceConfig()
	require.Equal(t, "s", jwtCfg.Secret)
	require.Positive(t, jwtCfg.AccessTokenTTL)
}
