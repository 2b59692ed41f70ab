package checks

import (
	"context"
	"fmt"

	"github.com/anaslahboub/app-microservice/internal/monitoring"
)

// ConnectionCounter exposes the live session count of the realtime hub.
type ConnectionCounter interface {
	ConnectionCount() int
}

// Realtime reports the number of live sessions.
func Realtime(hub ConnectionCounter) monitoring.Check {
	return monitoring.NewCheck("realtime", func(context.Context) monitoring.ProbeResult {
		if hub == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusDegraded, Details: "realtime hub unavailable"}
		}
		return monitoring.ProbeResult{
			Status:  monitoring.StatusUp,
			Details: fmt.Sprintf("%d sessions", hub.ConnectionCount()),
		}
	})
}
