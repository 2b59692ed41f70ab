package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/anaslahboub/app-microservice/internal/models"
	"github.com/anaslahboub/app-microservice/internal/realtime"
	apperrors "github.com/anaslahboub/app-microservice/pkg/errors"
	"github.com/anaslahboub/app-microservice/pkg/logger"
	"github.com/anaslahboub/app-microservice/pkg/metrics"
)

const (
	defaultDispatchWorkers = 8
	defaultDispatchQueue   = 1024
	defaultPublishTimeout  = 2 * time.Second
	defaultStoreTimeout    = 5 * time.Second
)

// Delivery pairs a committed notification with the route it is published on.
type Delivery struct {
	Route        realtime.Route
	Notification models.Notification
}

// Outbox collects the side effects of a transaction. They are applied only
// after the transaction commits, in the order they were added.
type Outbox struct {
	deliveries []Delivery
	unread     []string
}

// Add queues a notification for publication on route.
func (o *Outbox) Add(route realtime.Route, notification models.Notification) {
	o.deliveries = append(o.deliveries, Delivery{Route: route, Notification: notification})
}

// InvalidateUnread marks the user's cached unread count as stale.
func (o *Outbox) InvalidateUnread(userID string) {
	if userID == "" {
		return
	}
	for _, existing := range o.unread {
		if existing == userID {
			return
		}
	}
	o.unread = append(o.unread, userID)
}

// Deliveries returns the queued deliveries.
func (o *Outbox) Deliveries() []Delivery {
	return o.deliveries
}

// UnreadInvalidator drops cached unread counts.
type UnreadInvalidator interface {
	InvalidateUnread(ctx context.Context, userID string) error
}

// DispatcherConfig tunes the dispatcher workers and budgets.
type DispatcherConfig struct {
	Workers        int
	QueueSize      int
	PublishTimeout time.Duration
	StoreTimeout   time.Duration
}

// DispatcherOption customises a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithPublishers registers the publishers every delivery is handed to.
func WithPublishers(publishers ...realtime.Publisher) DispatcherOption {
	return func(d *Dispatcher) {
		for _, p := range publishers {
			if p != nil {
				d.publishers = append(d.publishers, p)
			}
		}
	}
}

// WithUnreadInvalidator sets the cache invalidated after commits.
func WithUnreadInvalidator(invalidator UnreadInvalidator) DispatcherOption {
	return func(d *Dispatcher) {
		d.invalidator = invalidator
	}
}

// Dispatcher runs store transactions and publishes their notifications once
// committed. Deliveries are sharded by route key so that messages for one
// receiver leave in commit order.
type Dispatcher struct {
	db          *gorm.DB
	cfg         DispatcherConfig
	publishers  []realtime.Publisher
	invalidator UnreadInvalidator
	log         *zap.Logger

	mu     sync.RWMutex
	closed bool
	queues []chan Delivery
	wg     sync.WaitGroup
}

// NewDispatcher constructs a Dispatcher and starts its workers.
func NewDispatcher(db *gorm.DB, cfg DispatcherConfig, opts ...DispatcherOption) (*Dispatcher, error) {
	if db == nil {
		return nil, errors.New("dispatcher: db is required")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultDispatchWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultDispatchQueue
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = defaultPublishTimeout
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = defaultStoreTimeout
	}

	d := &Dispatcher{
		db:  db,
		cfg: cfg,
		log: logger.WithModule("dispatcher"),
	}
	for _, opt := range opts {
		opt(d)
	}

	d.queues = make([]chan Delivery, cfg.Workers)
	for i := range d.queues {
		d.queues[i] = make(chan Delivery, cfg.QueueSize)
		d.wg.Add(1)
		go d.work(d.queues[i])
	}
	return d, nil
}

// WithTransaction runs fn inside one store transaction bounded by the store
// budget. Outbox entries are applied after a successful commit and discarded
// on rollback.
func (d *Dispatcher) WithTransaction(ctx context.Context, fn func(tx *gorm.DB, out *Outbox) error) error {
	ctx = ensureContext(ctx)
	txCtx, cancel := context.WithTimeout(ctx, d.cfg.StoreTimeout)
	defer cancel()

	out := &Outbox{}
	err := d.db.WithContext(txCtx).Transaction(func(tx *gorm.DB) error {
		return fn(tx, out)
	})
	if err != nil {
		var appErr *apperrors.AppError
		if errors.Is(txCtx.Err(), context.DeadlineExceeded) && !errors.As(err, &appErr) {
			return apperrors.ErrTimeout.WithInternal(err)
		}
		return translateStoreError(err)
	}

	d.afterCommit(context.WithoutCancel(ctx), out)
	return nil
}

func (d *Dispatcher) afterCommit(ctx context.Context, out *Outbox) {
	if d.invalidator != nil {
		for _, userID := range out.unread {
			invalidateCtx, cancel := context.WithTimeout(ctx, d.cfg.StoreTimeout)
			if err := d.invalidator.InvalidateUnread(invalidateCtx, userID); err != nil {
				d.log.Warn("failed to invalidate unread count", zap.String("user_id", userID), zap.Error(err))
			}
			cancel()
		}
	}
	for _, delivery := range out.deliveries {
		d.Enqueue(delivery)
	}
}

// Enqueue hands a delivery to its worker without blocking. Deliveries are
// dropped when the worker queue is full or the dispatcher is closed.
func (d *Dispatcher) Enqueue(delivery Delivery) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		metrics.NotificationDispatches.WithLabelValues("dispatcher", "dropped").Inc()
		return false
	}

	queue := d.queues[xxhash.Sum64String(delivery.Route.Key())%uint64(len(d.queues))]
	select {
	case queue <- delivery:
		return true
	default:
		metrics.NotificationDispatches.WithLabelValues("dispatcher", "dropped").Inc()
		d.log.Warn("dispatch queue full, dropping notification",
			zap.String("route", delivery.Route.Key()),
			zap.Int64("notification_id", delivery.Notification.ID))
		return false
	}
}

// Backlog reports queued deliveries and total queue capacity.
func (d *Dispatcher) Backlog() (pending, capacity int) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, queue := range d.queues {
		pending += len(queue)
		capacity += cap(queue)
	}
	return pending, capacity
}

func (d *Dispatcher) work(queue <-chan Delivery) {
	defer d.wg.Done()
	for delivery := range queue {
		d.publish(delivery)
	}
}

func (d *Dispatcher) publish(delivery Delivery) {
	message := realtime.Message{
		Destination: delivery.Route.Destination,
		Event:       string(delivery.Notification.Kind),
		Data:        MapNotification(delivery.Notification),
	}

	for _, publisher := range d.publishers {
		ctx, cancel := context.WithTimeout(context.Background(), d.cfg.PublishTimeout)
		err := publisher.Publish(ctx, delivery.Route, message)
		cancel()

		if err != nil {
			metrics.NotificationDispatches.WithLabelValues(publisher.Name(), "error").Inc()
			d.log.Warn("failed to publish notification",
				zap.String("publisher", publisher.Name()),
				zap.String("route", delivery.Route.Key()),
				zap.Int64("notification_id", delivery.Notification.ID),
				zap.Error(err))
			continue
		}
		metrics.NotificationDispatches.WithLabelValues(publisher.Name(), "ok").Inc()
	}
}

// Close stops accepting deliveries and waits for queued ones to be published.
func (d *Dispatcher) Close(ctx context.Context) error {
	ctx = ensureContext(ctx)

	d.mu.Lock()
	if !d.closed {
		d.closed = true
		for _, queue := range d.queues {
			close(queue)
		}
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("dispatcher: drain: %w", ctx.Err())
	}
}
