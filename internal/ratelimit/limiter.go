// Package ratelimit implements a store-backed fixed-window request
// limiter protecting paid external calls. Windows are aligned to the
// epoch so concurrent processes agree on window boundaries.
package ratelimit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/account-intel/internal/metrics"
	"github.com/sells-group/account-intel/internal/model"
)

// WindowStore is the slice of the store the limiter needs.
type WindowStore interface {
	GetRateWindow(ctx context.Context, key string, windowStart int64) (*model.RateLimitWindow, error)
	InsertRateWindow(ctx context.Context, w model.RateLimitWindow) error
	IncrementRateWindow(ctx context.Context, key string, windowStart int64) error
}

// Decision is the outcome of a limiter check. Denial is a value, not
// an error; the caller decides the user-facing response.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter counts requests per (key, window). The limiter caps cost and
// abuse rather than providing hard guarantees: by default any store
// error fails open, and concurrent callers racing on one key can
// transiently over-admit by at most the concurrency degree.
type Limiter struct {
	store WindowStore

	// failClosed denies on store errors instead of allowing. Explicit
	// strict mode for deployments that prefer correctness over
	// availability.
	failClosed bool

	now func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// FailClosed switches the limiter to deny requests when the store is
// unreachable.
func FailClosed() Option {
	return func(l *Limiter) { l.failClosed = true }
}

// WithClock overrides the time source (for tests).
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates a Limiter backed by the given store.
func New(store WindowStore, opts ...Option) *Limiter {
	l := &Limiter{store: store, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check records one request against key and reports whether it is
// allowed. The key is an arbitrary composite string such as
// "route:clientAddr" or "genai:accountSlug".
func (l *Limiter) Check(ctx context.Context, key string, limit int, window time.Duration) Decision {
	windowMs := window.Milliseconds()
	nowMs := l.now().UnixMilli()
	windowStart := (nowMs / windowMs) * windowMs
	resetAt := time.UnixMilli(windowStart + windowMs).UTC()

	w, err := l.store.GetRateWindow(ctx, key, windowStart)
	if err != nil {
		return l.storeFailure(key, "get", err, limit, resetAt)
	}

	if w == nil {
		err := l.store.InsertRateWindow(ctx, model.RateLimitWindow{
			Key:         key,
			WindowStart: windowStart,
			Count:       1,
			WindowMs:    windowMs,
		})
		if err != nil {
			return l.storeFailure(key, "insert", err, limit, resetAt)
		}
		return Decision{Allowed: true, Remaining: remaining(limit, 0), ResetAt: resetAt}
	}

	if w.Count >= limit {
		metrics.RateLimitDenials.Inc()
		return Decision{Allowed: false, Remaining: 0, ResetAt: resetAt}
	}

	if err := l.store.IncrementRateWindow(ctx, key, windowStart); err != nil {
		return l.storeFailure(key, "increment", err, limit, resetAt)
	}
	return Decision{Allowed: true, Remaining: remaining(limit, w.Count), ResetAt: resetAt}
}

// storeFailure applies the availability policy when the store errors.
func (l *Limiter) storeFailure(key, op string, err error, limit int, resetAt time.Time) Decision {
	zap.L().Error("rate limiter store failure",
		zap.String("key", key),
		zap.String("op", op),
		zap.Bool("fail_closed", l.failClosed),
		zap.Error(err),
	)
	if l.failClosed {
		metrics.RateLimitDenials.Inc()
		return Decision{Allowed: false, Remaining: 0, ResetAt: resetAt}
	}
	metrics.RateLimitFailOpen.Inc()
	return Decision{Allowed: true, Remaining: limit - 1, ResetAt: resetAt}
}

// remaining computes calls left after admitting one, where count is the
// window's count before this call: max(0, limit-count-1). The last
// admitted call in a window reports 0.
func remaining(limit, count int) int {
	r := limit - count - 1
	if r < 0 {
		return 0
	}
	return r
}
