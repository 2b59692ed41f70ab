package userclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	apperrors "github.com/anaslahboub/app-microservice/pkg/errors"
	"github.com/anaslahboub/app-microservice/pkg/logger"
	"github.com/anaslahboub/app-microservice/pkg/metrics"
)

const (
	defaultTimeout          = 3 * time.Second
	defaultRetryBackoff     = 100 * time.Millisecond
	defaultRatePerSecond    = 50
	defaultBurst            = 20
	defaultBreakerThreshold = 5
	defaultBreakerTimeout   = 30 * time.Second

	breakerName = "user-service"
)

var errUserNotFound = errors.New("userclient: user not found")

// Config configures the HTTP user directory client.
type Config struct {
	BaseURL          string
	Timeout          time.Duration
	Retries          int
	RetryBackoff     time.Duration
	RatePerSecond    float64
	Burst            int
	BreakerThreshold uint32
	BreakerTimeout   time.Duration
	HTTPClient       *http.Client
}

// Client looks users up over HTTP. Calls are paced by a token bucket,
// deduplicated per id, retried on transient failures, and guarded by a
// circuit breaker.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	timeout time.Duration
	retries int
	backoff time.Duration
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[User]
	group   singleflight.Group
	log     *zap.Logger
}

// New constructs a Client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("userclient: base url is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("userclient: parse base url: %w", err)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = defaultRetryBackoff
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = defaultRatePerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaultBurst
	}
	if cfg.BreakerThreshold == 0 {
		cfg.BreakerThreshold = defaultBreakerThreshold
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = defaultBreakerTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	log := logger.WithModule("userclient")
	metrics.BreakerState.WithLabelValues(breakerName).Set(0)

	threshold := cfg.BreakerThreshold
	breaker := gobreaker.NewCircuitBreaker[User](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errUserNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			metrics.BreakerState.WithLabelValues(name).Set(float64(to))
		},
	})

	return &Client{
		baseURL: base,
		http:    httpClient,
		timeout: cfg.Timeout,
		retries: cfg.Retries,
		backoff: cfg.RetryBackoff,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		breaker: breaker,
		log:     log,
	}, nil
}

// GetUser implements Lookup.
func (c *Client) GetUser(ctx context.Context, id string) (User, error) {
	if id == "" {
		return User{}, apperrors.NewNotFound("user not found")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	result, err, _ := c.group.Do(id, func() (any, error) {
		return c.fetchWithRetry(ctx, id)
	})
	outcome := "ok"
	if err != nil {
		err = c.classify(ctx, err)
		outcome = apperrors.FromError(err).Code
	}
	metrics.UpstreamRequests.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	if err != nil {
		return User{}, err
	}
	return result.(User), nil
}

func (c *Client) fetchWithRetry(ctx context.Context, id string) (User, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(c.backoff * time.Duration(attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return User{}, ctx.Err()
			case <-timer.C:
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return User{}, err
		}

		user, err := c.breaker.Execute(func() (User, error) {
			return c.fetch(ctx, id)
		})
		if err == nil {
			return user, nil
		}
		if !retryable(ctx, err) {
			return User{}, err
		}
		lastErr = err
		c.log.Debug("user lookup failed, retrying",
			zap.String("user_id", id),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	return User{}, lastErr
}

func (c *Client) fetch(ctx context.Context, id string) (User, error) {
	endpoint := c.baseURL.JoinPath("api", "v1", "users", id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return User{}, err
	}
	req.Header.Set("Accept", "application/json")
	if token := BearerTokenFromContext(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return User{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return User{}, errUserNotFound
	case resp.StatusCode >= 300:
		_, _ = io.Copy(io.Discard, resp.Body)
		return User{}, &statusError{code: resp.StatusCode}
	}

	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return User{}, fmt.Errorf("userclient: decode user: %w", err)
	}
	if user.ID == "" {
		user.ID = id
	}
	return user, nil
}

func (c *Client) classify(ctx context.Context, err error) error {
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, errUserNotFound):
		return apperrors.NewNotFound("user not found")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return apperrors.ErrTimeout.WithMessage("user lookup timed out").WithInternal(err)
	default:
		return apperrors.ErrUpstream.WithMessage("user service unavailable").WithInternal(err)
	}
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("userclient: unexpected status %d", e.code)
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, errUserNotFound) ||
		errors.Is(err, gobreaker.ErrOpenState) ||
		errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	var status *statusError
	if errors.As(err, &status) {
		return status.code >= http.StatusInternalServerError || status.code == http.StatusTooManyRequests
	}
	return true
}
