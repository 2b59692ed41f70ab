package checks

import (
	"context"
	"fmt"

	"github.com/anaslahboub/app-microservice/internal/monitoring"
)

// saturationThreshold is the queue fill ratio above which fan-out is degraded.
const saturationThreshold = 0.9

// Backlogger exposes the dispatcher queue depth.
type Backlogger interface {
	Backlog() (pending, capacity int)
}

// Dispatcher degrades once the fan-out queues are close to dropping deliveries.
func Dispatcher(dispatcher Backlogger) monitoring.Check {
	return monitoring.NewCheck("dispatcher", func(context.Context) monitoring.ProbeResult {
		if dispatcher == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusDown, Details: "dispatcher not configured"}
		}

		pending, capacity := dispatcher.Backlog()
		details := fmt.Sprintf("%d/%d queued", pending, capacity)
		if capacity > 0 && float64(pending) >= saturationThreshold*float64(capacity) {
			return monitoring.ProbeResult{Status: monitoring.StatusDegraded, Details: details}
		}
		return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: details}
	})
}
