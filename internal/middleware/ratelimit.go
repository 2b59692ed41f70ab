package middleware

import (
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/anaslahboub/app-microservice/pkg/errors"
	"github.com/anaslahboub/app-microservice/pkg/response"
)

const limiterIdleTTL = 10 * time.Minute

var errTooManyRequests = errors.New("RATE_LIMITED", "Too many requests", 429)

type callerLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimit applies a token bucket per caller. Authenticated callers are keyed
// by user id, anonymous ones by client IP. Idle buckets are evicted lazily.
func RateLimit(perSecond float64, burst int) gin.HandlerFunc {
	if perSecond <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if burst <= 0 {
		burst = int(math.Ceil(perSecond))
	}

	var (
		mu        sync.Mutex
		limiters  = make(map[string]*callerLimiter)
		lastSweep = time.Now()
	)

	acquire := func(key string, now time.Time) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()

		if now.Sub(lastSweep) > limiterIdleTTL {
			for k, entry := range limiters {
				if now.Sub(entry.lastSeen) > limiterIdleTTL {
					delete(limiters, k)
				}
			}
			lastSweep = now
		}

		entry, ok := limiters[key]
		if !ok {
			entry = &callerLimiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
			limiters[key] = entry
		}
		entry.lastSeen = now
		return entry.limiter
	}

	return func(c *gin.Context) {
		key := c.GetString(CtxUserIDKey)
		if key == "" {
			key = "ip:" + c.ClientIP()
		}

		now := time.Now()
		limiter := acquire(key, now)
		allowed := limiter.AllowN(now, 1)

		c.Header("X-RateLimit-Limit", strconv.Itoa(burst))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(max(0, int(limiter.TokensAt(now)))))

		if !allowed {
			c.Header("Retry-After", "1")
			response.Error(c, errTooManyRequests)
			c.Abort()
			return
		}

		c.Next()
	}
}
