package ratelimit

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/account-intel/internal/model"
	"github.com/sells-group/account-intel/internal/store"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "limiter.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestLimiter_ExactlyLimitCallsAllowedPerWindow(t *testing.T) {
	st := newTestStore(t)
	now := time.UnixMilli(1_700_000_030_000)
	l := New(st, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	const limit = 5
	for i := 0; i < limit; i++ {
		d := l.Check(ctx, "route:1.2.3.4", limit, time.Minute)
		assert.True(t, d.Allowed, "call %d should be allowed", i+1)
	}

	d := l.Check(ctx, "route:1.2.3.4", limit, time.Minute)
	assert.False(t, d.Allowed, "call limit+1 must be denied")
	assert.Equal(t, 0, d.Remaining)
}

func TestLimiter_RemainingCountsDown(t *testing.T) {
	st := newTestStore(t)
	now := time.UnixMilli(1_700_000_030_000)
	l := New(st, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	d := l.Check(ctx, "k", 3, time.Minute)
	require.True(t, d.Allowed)
	assert.Equal(t, 2, d.Remaining) // max(0, 3-0-1), count before the call

	d = l.Check(ctx, "k", 3, time.Minute)
	require.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)

	// The last admitted call in the window reports 0.
	d = l.Check(ctx, "k", 3, time.Minute)
	require.True(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
}

func TestLimiter_NewWindowResetsCount(t *testing.T) {
	st := newTestStore(t)
	now := time.UnixMilli(1_700_000_030_000)
	l := New(st, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.True(t, l.Check(ctx, "k", 2, time.Minute).Allowed)
	}
	require.False(t, l.Check(ctx, "k", 2, time.Minute).Allowed)

	// Advance past the window boundary: counter starts over.
	now = now.Add(time.Minute)
	d := l.Check(ctx, "k", 2, time.Minute)
	assert.True(t, d.Allowed)
}

func TestLimiter_WindowStartEpochAligned(t *testing.T) {
	st := newTestStore(t)
	// 90s past the epoch minute boundary: window start must be 60000.
	now := time.UnixMilli(90_000)
	l := New(st, WithClock(func() time.Time { return now }))

	d := l.Check(context.Background(), "k", 10, time.Minute)
	require.True(t, d.Allowed)
	assert.Equal(t, time.UnixMilli(120_000).UTC(), d.ResetAt)

	w, err := st.GetRateWindow(context.Background(), "k", 60_000)
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.Equal(t, 1, w.Count)
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	st := newTestStore(t)
	now := time.UnixMilli(1_700_000_030_000)
	l := New(st, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	require.True(t, l.Check(ctx, "route:a", 1, time.Minute).Allowed)
	require.False(t, l.Check(ctx, "route:a", 1, time.Minute).Allowed)
	assert.True(t, l.Check(ctx, "route:b", 1, time.Minute).Allowed)
}

// brokenStore fails every operation, simulating an unreachable store.
type brokenStore struct{}

func (brokenStore) GetRateWindow(context.Context, string, int64) (*model.RateLimitWindow, error) {
	return nil, errors.New("connection refused")
}

func (brokenStore) InsertRateWindow(context.Context, model.RateLimitWindow) error {
	return errors.New("connection refused")
}

func (brokenStore) IncrementRateWindow(context.Context, string, int64) error {
	return errors.New("connection refused")
}

func TestLimiter_FailOpenOnStoreError(t *testing.T) {
	l := New(brokenStore{})

	d := l.Check(context.Background(), "k", 1, time.Minute)
	assert.True(t, d.Allowed, "store failure must fail open by default")
}

func TestLimiter_FailClosedVariant(t *testing.T) {
	l := New(brokenStore{}, FailClosed())

	d := l.Check(context.Background(), "k", 1, time.Minute)
	assert.False(t, d.Allowed, "strict mode must deny on store failure")
}
