package notify

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// ResilientConfig holds configuration for the resilient notifier wrapper.
type ResilientConfig struct {
	// Inner is the wrapped notifier.
	Inner Notifier

	// Logger for delivery failures.
	Logger zerolog.Logger

	// MaxRetries is the number of retry attempts per send (default: 2).
	MaxRetries uint64

	// InitialInterval is the initial retry backoff interval (default: 200ms).
	InitialInterval time.Duration
}

// Resilient wraps a Notifier with a circuit breaker and retries. A push
// provider outage then degrades dispatch to "no notification" instead of
// stalling every offer on a slow failing call.
type Resilient struct {
	inner           Notifier
	breaker         *gobreaker.CircuitBreaker[struct{}]
	logger          zerolog.Logger
	maxRetries      uint64
	initialInterval time.Duration
}

// NewResilient creates a resilient notifier.
func NewResilient(cfg ResilientConfig) *Resilient {
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 2
	}
	initialInterval := cfg.InitialInterval
	if initialInterval == 0 {
		initialInterval = 200 * time.Millisecond
	}

	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:    "push-notifier",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Resilient{
		inner:           cfg.Inner,
		breaker:         breaker,
		logger:          cfg.Logger,
		maxRetries:      maxRetries,
		initialInterval: initialInterval,
	}
}

// Send delivers the notification through the breaker, retrying transient
// failures with exponential backoff.
func (r *Resilient) Send(ctx context.Context, token string, n Notification) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.initialInterval
	bo.MaxElapsedTime = 0

	operation := func() error {
		_, err := r.breaker.Execute(func() (struct{}, error) {
			return struct{}{}, r.inner.Send(ctx, token, n)
		})
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return backoff.Permanent(err)
		}
		return err
	}

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(bo, r.maxRetries), ctx))
	if err != nil {
		r.logger.Warn().Err(err).Msg("push notification delivery failed")
	}
	return err
}
