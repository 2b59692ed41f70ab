package app

import (
	"strings"
	"time"

	"github.com/anaslahboub/app-microservice/internal/auth"
	"github.com/anaslahboub/app-microservice/internal/database"
	"github.com/anaslahboub/app-microservice/internal/services"
	"github.com/anaslahboub/app-microservice/internal/userclient"
)

const (
	defaultStoreTimeout      = 5 * time.Second
	defaultBrokerTimeout     = 2 * time.Second
	defaultUserLookupTimeout = 3 * time.Second
)

// ConnectionConfig converts DatabaseConfig into the database package representation.
func (c DatabaseConfig) ConnectionConfig() database.Config {
	cfg := database.Config{
		Driver:          c.Driver,
		Path:            c.Path,
		DSN:             c.DSN,
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
	}

	var host DBAuthConfig
	switch strings.ToLower(c.Driver) {
	case "postgres", "postgresql":
		host = c.Postgres
	case "mysql":
		host = c.MySQL
	default:
		return cfg
	}

	cfg.Host = host.Host
	cfg.Port = host.Port
	cfg.Name = host.Database
	cfg.User = host.Username
	cfg.Password = host.Password
	cfg.Options = host.Options
	return cfg
}

// JWTServiceConfig converts AuthConfig into the parameters expected by the JWT service.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	ttl := c.JWT.TTL
	if ttl <= 0 {
		ttl = auth.DefaultAccessTokenTTL
	}

	return auth.JWTConfig{
		Secret:         c.JWT.Secret,
		PublicKeyPEM:   c.JWT.PublicKeyPEM,
		Issuer:         c.JWT.Issuer,
		AccessTokenTTL: ttl,
	}
}

// ClientConfig converts UserServiceConfig into the HTTP user client parameters.
func (c UserServiceConfig) ClientConfig(t TimeoutConfig) userclient.Config {
	return userclient.Config{
		BaseURL:          strings.TrimRight(strings.TrimSpace(c.BaseURL), "/"),
		Timeout:          durationOr(t.UserLookup, defaultUserLookupTimeout),
		Retries:          c.Retries,
		RetryBackoff:     c.RetryBackoff,
		RatePerSecond:    c.RatePerSecond,
		Burst:            c.Burst,
		BreakerThreshold: c.BreakerThreshold,
		BreakerTimeout:   c.BreakerTimeout,
	}
}

// DispatcherConfig converts NotificationConfig into dispatcher parameters.
func (c NotificationConfig) DispatcherConfig(t TimeoutConfig) services.DispatcherConfig {
	return services.DispatcherConfig{
		Workers:        c.DispatchWorkers,
		QueueSize:      c.QueueSize,
		PublishTimeout: durationOr(t.Broker, defaultBrokerTimeout),
		StoreTimeout:   durationOr(t.Store, defaultStoreTimeout),
	}
}

func durationOr(value, fallback time.Duration) time.Duration {
	if value <= 0 {
		return fallback
	}
	return value
}
