package cache

import (
	"context"
	"time"
)

// Store represents a shared cache interface used across the application.
// Get reports a miss with found == false and a nil error.
type Store interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, keys ...string) error
}
