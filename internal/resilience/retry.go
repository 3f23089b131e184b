package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Policy controls retry behavior. The total number of calls is
// MaxRetries+1: the first attempt plus up to MaxRetries retries.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt.
	// Default: 3 (four calls total).
	MaxRetries int

	// BaseDelay is the backoff before the first retry; each subsequent
	// retry doubles it (base × 2^attempt). Default: 500ms.
	BaseDelay time.Duration

	// MaxDelay caps the computed backoff. Default: 30s.
	MaxDelay time.Duration

	// JitterFraction randomizes the delay by ±fraction. Default: 0.2.
	JitterFraction float64

	// ShouldRetry overrides the default IsTransient check when set.
	ShouldRetry func(err error) bool

	// OnRetry is invoked before each backoff sleep.
	OnRetry func(retry int, err error)
}

// DefaultPolicy returns the retry policy used for paid external calls.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:     3,
		BaseDelay:      500 * time.Millisecond,
		MaxDelay:       30 * time.Second,
		JitterFraction: 0.2,
	}
}

func (p Policy) withDefaults() Policy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 500 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 30 * time.Second
	}
	if p.JitterFraction < 0 {
		p.JitterFraction = 0
	}
	return p
}

// Retry executes fn until it succeeds, fails with a non-transient
// error, exhausts the policy, or the context is cancelled. The last
// error is surfaced unchanged.
func Retry[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.withDefaults()

	shouldRetry := p.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = IsTransient
	}

	var zero T
	var lastErr error
	for attempt := 0; ; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, lastErr
		}
		if !shouldRetry(lastErr) {
			return zero, lastErr
		}
		if attempt >= p.MaxRetries {
			return zero, lastErr
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt+1, lastErr)
		}

		timer := time.NewTimer(backoff(attempt, p))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}
}

// backoff computes base × 2^attempt, capped at MaxDelay, with jitter.
func backoff(attempt int, p Policy) time.Duration {
	delay := float64(p.BaseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	if p.JitterFraction > 0 {
		spread := delay * p.JitterFraction
		delay += (rand.Float64()*2 - 1) * spread
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// RetryLogger returns an OnRetry callback that logs each retry.
func RetryLogger(service, operation string) func(int, error) {
	return func(retry int, err error) {
		zap.L().Warn("retrying operation",
			zap.String("service", service),
			zap.String("operation", operation),
			zap.Int("retry", retry),
			zap.Error(err),
		)
	}
}
