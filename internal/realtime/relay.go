package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/anaslahboub/app-microservice/pkg/logger"
	"github.com/anaslahboub/app-microservice/pkg/metrics"
)

const (
	// DefaultRelayChannel is the pub/sub channel shared by all instances.
	DefaultRelayChannel = "appms:notifications"

	relayBreakerName = "redis-relay"
)

type relayEnvelope struct {
	Origin  string  `json:"origin"`
	Route   Route   `json:"route"`
	Message Message `json:"message"`
}

// RedisRelay forwards published messages to the other service instances over
// Redis pub/sub and hands messages received from them to the local publisher.
type RedisRelay struct {
	client     *redis.Client
	channel    string
	instanceID string
	local      Publisher
	breaker    *gobreaker.CircuitBreaker[struct{}]
	log        *zap.Logger
}

// NewRedisRelay builds a relay on channel delivering remote messages to local.
func NewRedisRelay(client *redis.Client, channel string, local Publisher) *RedisRelay {
	if channel == "" {
		channel = DefaultRelayChannel
	}

	log := logger.WithModule("realtime.relay")
	metrics.BreakerState.WithLabelValues(relayBreakerName).Set(0)

	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        relayBreakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			metrics.BreakerState.WithLabelValues(name).Set(float64(to))
		},
	})

	return &RedisRelay{
		client:     client,
		channel:    channel,
		instanceID: uuid.NewString(),
		local:      local,
		breaker:    breaker,
		log:        log,
	}
}

// Name implements Publisher.
func (r *RedisRelay) Name() string {
	return relayBreakerName
}

// Publish implements Publisher by broadcasting the message on the relay channel.
func (r *RedisRelay) Publish(ctx context.Context, route Route, message Message) error {
	payload, err := json.Marshal(relayEnvelope{Origin: r.instanceID, Route: route, Message: message})
	if err != nil {
		return fmt.Errorf("relay: encode: %w", err)
	}

	_, err = r.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, r.client.Publish(ctx, r.channel, payload).Err()
	})
	if err != nil {
		return fmt.Errorf("relay: publish: %w", err)
	}
	return nil
}

// Run subscribes to the relay channel until ctx is cancelled.
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("relay: subscribe: %w", err)
	}

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return errors.New("relay: subscription closed")
			}
			if err := r.deliver(ctx, msg.Payload); err != nil {
				r.log.Warn("relay delivery failed", zap.Error(err))
			}
		}
	}
}

// deliver hands a remote envelope to the local publisher. Envelopes published
// by this instance were already delivered locally and are skipped.
func (r *RedisRelay) deliver(ctx context.Context, payload string) error {
	var envelope relayEnvelope
	if err := json.Unmarshal([]byte(payload), &envelope); err != nil {
		return fmt.Errorf("relay: decode: %w", err)
	}
	if envelope.Origin == r.instanceID {
		return nil
	}
	if envelope.Route.Destination == "" {
		return errors.New("relay: envelope without destination")
	}
	return r.local.Publish(ctx, envelope.Route, envelope.Message)
}
