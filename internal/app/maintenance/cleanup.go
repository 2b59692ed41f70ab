package maintenance

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/anaslahboub/app-microservice/pkg/logger"
)

const (
	defaultRetentionDays     = 90
	defaultPruneSpec         = "@daily"
	defaultReconcileSpec     = "@every 6h"
	defaultCachePurgeSpec    = "@hourly"
	defaultReconcileDeadline = 10 * time.Minute
)

// Job names reported by Jobs.
const (
	JobPruneNotifications = "notification_prune"
	JobReconcileCounters  = "counter_reconcile"
	JobPurgeCache         = "cache_purge"
)

// NotificationPruner removes read notifications past retention.
type NotificationPruner interface {
	DeleteReadOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// CounterReconciler recomputes denormalised post counters from their records.
type CounterReconciler interface {
	ReconcileAll(ctx context.Context) (int, error)
}

// CachePurger drops expired cache rows.
type CachePurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Cleaner coordinates background maintenance: pruning read notifications,
// repairing counter drift and purging the database-backed cache.
type Cleaner struct {
	pruner     NotificationPruner
	reconciler CounterReconciler
	cache      CachePurger
	cron       *cron.Cron
	now        func() time.Time
	log        *zap.Logger
	retention  int

	pruneSchedule     string
	reconcileSchedule string
	cacheSchedule     string

	mu   sync.Mutex
	jobs map[string]*JobStatus
}

// JobStatus summarises the runs of one maintenance job.
type JobStatus struct {
	Job                 string
	Runs                uint64
	ConsecutiveFailures int
	LastRunAt           time.Time
	LastError           string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for retention cutoffs.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithRetentionDays adjusts how long read notifications are kept. Zero disables pruning.
func WithRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days >= 0 {
			cleaner.retention = days
		}
	}
}

// WithPruneSchedule overrides the cron specification for notification pruning.
func WithPruneSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.pruneSchedule = spec
		}
	}
}

// WithReconcileSchedule overrides the cron specification for counter reconciliation.
func WithReconcileSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.reconcileSchedule = spec
		}
	}
}

// WithCachePurger enables purging of expired database cache rows.
func WithCachePurger(purger CachePurger) Option {
	return func(cleaner *Cleaner) {
		cleaner.cache = purger
	}
}

// NewCleaner constructs a Cleaner. Any nil dependency skips the matching job.
func NewCleaner(pruner NotificationPruner, reconciler CounterReconciler, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		pruner:            pruner,
		reconciler:        reconciler,
		now:               time.Now,
		retention:         defaultRetentionDays,
		pruneSchedule:     defaultPruneSpec,
		reconcileSchedule: defaultReconcileSpec,
		cacheSchedule:     defaultCachePurgeSpec,
		log:               logger.WithModule("maintenance"),
		jobs:              make(map[string]*JobStatus),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Start registers the enabled jobs and launches the scheduler.
func (c *Cleaner) Start() error {
	if c.pruner != nil && c.retention > 0 {
		if _, err := c.cron.AddFunc(c.pruneSchedule, func() {
			if _, err := c.pruneNotifications(context.Background()); err != nil {
				c.log.Warn("notification prune failed", zap.Error(err))
			}
		}); err != nil {
			return fmt.Errorf("maintenance: schedule prune: %w", err)
		}
	}

	if c.reconciler != nil {
		if _, err := c.cron.AddFunc(c.reconcileSchedule, func() {
			ctx, cancel := context.WithTimeout(context.Background(), defaultReconcileDeadline)
			defer cancel()
			if _, err := c.reconcileCounters(ctx); err != nil {
				c.log.Warn("counter reconciliation failed", zap.Error(err))
			}
		}); err != nil {
			return fmt.Errorf("maintenance: schedule reconcile: %w", err)
		}
	}

	if c.cache != nil {
		if _, err := c.cron.AddFunc(c.cacheSchedule, func() {
			if err := c.purgeCache(context.Background()); err != nil {
				c.log.Warn("cache purge failed", zap.Error(err))
			}
		}); err != nil {
			return fmt.Errorf("maintenance: schedule cache purge: %w", err)
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the scheduler. The returned context is done once running jobs finish.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes every configured job sequentially.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.pruner != nil && c.retention > 0 {
		if _, err := c.pruneNotifications(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.reconciler != nil {
		if _, err := c.reconcileCounters(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.cache != nil {
		if err := c.purgeCache(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}

func (c *Cleaner) pruneNotifications(ctx context.Context) (int64, error) {
	cutoff := c.now().AddDate(0, 0, -c.retention)
	removed, err := c.pruner.DeleteReadOlderThan(ctx, cutoff)
	c.record(JobPruneNotifications, err)
	if err != nil {
		return 0, fmt.Errorf("maintenance: prune notifications: %w", err)
	}
	if removed > 0 {
		c.log.Info("pruned read notifications", zap.Int64("removed", removed), zap.Time("cutoff", cutoff))
	}
	return removed, nil
}

func (c *Cleaner) reconcileCounters(ctx context.Context) (int, error) {
	corrected, err := c.reconciler.ReconcileAll(ctx)
	c.record(JobReconcileCounters, err)
	if err != nil {
		return corrected, fmt.Errorf("maintenance: reconcile counters: %w", err)
	}
	if corrected > 0 {
		c.log.Warn("corrected drifted post counters", zap.Int("posts", corrected))
	}
	return corrected, nil
}

func (c *Cleaner) purgeCache(ctx context.Context) error {
	_, err := c.cache.PurgeExpired(ctx)
	c.record(JobPurgeCache, err)
	if err != nil {
		return fmt.Errorf("maintenance: purge cache: %w", err)
	}
	return nil
}

func (c *Cleaner) record(job string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	status, ok := c.jobs[job]
	if !ok {
		status = &JobStatus{Job: job}
		c.jobs[job] = status
	}
	status.Runs++
	status.LastRunAt = c.now()
	if err != nil {
		status.ConsecutiveFailures++
		status.LastError = err.Error()
		return
	}
	status.ConsecutiveFailures = 0
	status.LastError = ""
}

// Jobs returns the run history of every job that has run at least once.
func (c *Cleaner) Jobs() []JobStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]JobStatus, 0, len(c.jobs))
	for _, status := range c.jobs {
		out = append(out, *status)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Job < out[j].Job })
	return out
}
