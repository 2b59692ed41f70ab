package checks

import (
	"context"
	"strings"
	"time"

	"github.com/anaslahboub/app-microservice/internal/app/maintenance"
	"github.com/anaslahboub/app-microservice/internal/monitoring"
)

const defaultMaintenanceMaxAge = 26 * time.Hour

// JobReporter exposes maintenance job history.
type JobReporter interface {
	Jobs() []maintenance.JobStatus
}

// Maintenance verifies that background jobs succeed and keep running. A job
// whose last run is older than maxAge is degraded; zero selects 26h, which
// covers a daily schedule.
func Maintenance(reporter JobReporter, maxAge time.Duration, now func() time.Time) monitoring.Check {
	if maxAge <= 0 {
		maxAge = defaultMaintenanceMaxAge
	}
	if now == nil {
		now = time.Now
	}

	return monitoring.NewCheck("maintenance", func(context.Context) monitoring.ProbeResult {
		if reporter == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: "maintenance disabled"}
		}

		jobs := reporter.Jobs()
		if len(jobs) == 0 {
			return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: "no maintenance runs yet"}
		}

		status := monitoring.StatusUp
		var problems []string
		for _, job := range jobs {
			if job.ConsecutiveFailures > 0 {
				status = monitoring.Worst(status, monitoring.StatusDegraded)
				problems = append(problems, job.Job+": "+job.LastError)
			}
			if !job.LastRunAt.IsZero() && now().Sub(job.LastRunAt) > maxAge {
				status = monitoring.Worst(status, monitoring.StatusDegraded)
				problems = append(problems, job.Job+": stale since "+job.LastRunAt.UTC().Format(time.RFC3339))
			}
		}

		return monitoring.ProbeResult{Status: status, Details: strings.Join(problems, "; ")}
	})
}
