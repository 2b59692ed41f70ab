package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/anaslahboub/app-microservice/pkg/metrics"
)

// unmatchedRoute labels requests no route matched so raw URLs never become label values.
const unmatchedRoute = "unmatched"

// Metrics records request latency per route template. WebSocket upgrades are
// long lived and excluded.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.IsWebsocket() {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := routeLabel(c)
		status := strconv.Itoa(c.Writer.Status())
		metrics.APILatency.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
	}
}

// routeLabel returns the matched route template.
func routeLabel(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return unmatchedRoute
}
