package lock

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storesync-api/internal/logging"
)

func lockers(t *testing.T) (map[string]Locker, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	return map[string]Locker{
		"local": NewLocalLocker(),
		"redis": NewRedisLocker(rdb, "test", logging.Discard()),
	}, mr
}

func TestSyncKey(t *testing.T) {
	assert.Equal(t, "sync:u1:ebay", SyncKey("u1", "ebay"))
}

func TestObtainExclusive(t *testing.T) {
	all, _ := lockers(t)
	for name, l := range all {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := SyncKey("u1", "ebay")

			lease, err := l.Obtain(ctx, key, time.Minute)
			require.NoError(t, err)

			_, err = l.Obtain(ctx, key, time.Minute)
			assert.ErrorIs(t, err, ErrLocked)

			other, err := l.Obtain(ctx, SyncKey("u1", "depop"), time.Minute)
			require.NoError(t, err)
			other.Release()

			lease.Release()
			lease.Release()

			again, err := l.Obtain(ctx, key, time.Minute)
			require.NoError(t, err)
			again.Release()
		})
	}
}

func TestRefreshAfterRelease(t *testing.T) {
	all, _ := lockers(t)
	for name, l := range all {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			lease, err := l.Obtain(ctx, "k", time.Minute)
			require.NoError(t, err)
			require.NoError(t, lease.Refresh(ctx, time.Minute))

			lease.Release()
			assert.ErrorIs(t, lease.Refresh(ctx, time.Minute), ErrNotHeld)
		})
	}
}

func TestRedisRefreshExtendsTTL(t *testing.T) {
	all, mr := lockers(t)
	l := all["redis"]
	ctx := context.Background()

	lease, err := l.Obtain(ctx, "k", time.Second)
	require.NoError(t, err)
	defer lease.Release()

	mr.FastForward(800 * time.Millisecond)
	require.NoError(t, lease.Refresh(ctx, time.Second))
	mr.FastForward(800 * time.Millisecond)

	_, err = l.Obtain(ctx, "k", time.Second)
	assert.ErrorIs(t, err, ErrLocked)

	mr.FastForward(time.Second)
	assert.ErrorIs(t, lease.Refresh(ctx, time.Second), ErrNotHeld)
}

func TestLocalLockerExpiry(t *testing.T) {
	l := NewLocalLocker()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.SetClock(func() time.Time { return now })
	ctx := context.Background()

	stale, err := l.Obtain(ctx, "k", time.Second)
	require.NoError(t, err)

	now = now.Add(2 * time.Second)
	assert.ErrorIs(t, stale.Refresh(ctx, time.Minute), ErrNotHeld)

	fresh, err := l.Obtain(ctx, "k", time.Minute)
	require.NoError(t, err)

	stale.Release()
	assert.ErrorIs(t, stale.Refresh(ctx, time.Minute), ErrNotHeld)
	_, err = l.Obtain(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, ErrLocked)
	fresh.Release()
}

func TestKeepHoldsPastTTL(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()
	ttl := 60 * time.Millisecond

	lease, err := l.Obtain(ctx, "k", ttl)
	require.NoError(t, err)

	var lost atomic.Bool
	stop := Keep(lease, ttl, func(error) { lost.Store(true) })

	time.Sleep(4 * ttl)
	_, err = l.Obtain(ctx, "k", ttl)
	assert.ErrorIs(t, err, ErrLocked)
	assert.False(t, lost.Load())

	stop()
	stop()
	lease.Release()

	next, err := l.Obtain(ctx, "k", ttl)
	require.NoError(t, err)
	next.Release()
}

func TestKeepReportsLostLease(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()
	ttl := 30 * time.Millisecond

	lease, err := l.Obtain(ctx, "k", ttl)
	require.NoError(t, err)
	lease.Release()

	lostCh := make(chan error, 1)
	stop := Keep(lease, ttl, func(err error) { lostCh <- err })
	defer stop()

	select {
	case err := <-lostCh:
		assert.ErrorIs(t, err, ErrNotHeld)
	case <-time.After(time.Second):
		t.Fatal("lost lease was not reported")
	}
}
