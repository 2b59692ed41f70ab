package checks_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/anaslahboub/app-microservice/internal/app/maintenance"
	testutil "github.com/anaslahboub/app-microservice/internal/database/testutil"
	"github.com/anaslahboub/app-microservice/internal/monitoring"
	"github.com/anaslahboub/app-microservice/internal/monitoring/checks"
)

func TestDatabaseCheck(t *testing.T) {
	db := testutil.MustOpenTestDB(t)

	result := checks.Database(db).Run(context.Background())
	require.Equal(t, monitoring.StatusUp, result.Status)

	result = checks.Database(nil).Run(context.Background())
	require.Equal(t, monitoring.StatusDown, result.Status)
}

func TestRedisCheckWhenDisabledOrMissing(t *testing.T) {
	require.Equal(t, monitoring.StatusUp, checks.Redis(nil, false).Run(context.Background()).Status)
	require.Equal(t, monitoring.StatusDegraded, checks.Redis(nil, true).Run(context.Background()).Status)
}

type fakeBacklog struct{ pending, capacity int }

func (f fakeBacklog) Backlog() (int, int) { return f.pending, f.capacity }

func TestDispatcherCheck(t *testing.T) {
	result := checks.Dispatcher(fakeBacklog{pending: 3, capacity: 100}).Run(context.Background())
	require.Equal(t, monitoring.StatusUp, result.Status)
	require.Equal(t, "3/100 queued", result.Details)

	result = checks.Dispatcher(fakeBacklog{pending: 95, capacity: 100}).Run(context.Background())
	require.Equal(t, monitoring.StatusDegraded, result.Status)
}

type fakeHub int

func (f fakeHub) ConnectionCount() int { return int(f) }

func TestRealtimeCheck(t *testing.T) {
	result := checks.Realtime(fakeHub(2)).Run(context.Background())
	require.Equal(t, monitoring.StatusUp, result.Status)
	require.Equal(t, "2 sessions", result.Details)
}

type fakeJobs []maintenance.JobStatus

func (f fakeJobs) Jobs() []maintenance.JobStatus { return f }

func TestMaintenanceCheck(t *testing.T) {
	now := time.Date(2024, 5, 20, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	healthy := fakeJobs{{Job: maintenance.JobPruneNotifications, Runs: 3, LastRunAt: now.Add(-time.Hour)}}
	require.Equal(t, monitoring.StatusUp, checks.Maintenance(healthy, 0, clock).Run(context.Background()).Status)

	failing := fakeJobs{{Job: maintenance.JobReconcileCounters, Runs: 2, ConsecutiveFailures: 2, LastError: "timeout", LastRunAt: now}}
	result := checks.Maintenance(failing, 0, clock).Run(context.Background())
	require.Equal(t, monitoring.StatusDegraded, result.Status)
	require.Contains(t, result.Details, "timeout")

	stale := fakeJobs{{Job: maintenance.JobPurgeCache, Runs: 1, LastRunAt: now.Add(-48 * time.Hour)}}
	result = checks.Maintenance(stale, 0, clock).Run(context.Background())
	require.Equal(t, monitoring.StatusDegraded, result.Status)
	require.Contains(t, result.Details, "stale")
}
