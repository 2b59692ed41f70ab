package checks

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/anaslahboub/app-microservice/internal/monitoring"
)

// Redis probes the cache and relay connection. A configured but unreachable
// Redis is degraded rather than down: the unread cache falls back to the
// database and fan-out stays local.
func Redis(client *redis.Client, enabled bool) monitoring.Check {
	return monitoring.NewCheck("redis", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		switch {
		case !enabled:
			return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: "redis disabled"}
		case client == nil:
			return monitoring.ProbeResult{Status: monitoring.StatusDegraded, Details: "redis unavailable"}
		}

		if err := client.Ping(ctx).Err(); err != nil {
			result := monitoring.ResultFromError(err, time.Since(start))
			result.Status = monitoring.StatusDegraded
			return result
		}
		return monitoring.ProbeResult{Status: monitoring.StatusUp, Duration: time.Since(start)}
	})
}
