// Package lock serializes sync runs per user and marketplace.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var (
	// ErrLocked is returned when another holder owns the key.
	ErrLocked = errors.New("lock already held")

	// ErrNotHeld is returned by Refresh once the lease expired or moved to another holder.
	ErrNotHeld = errors.New("lock no longer held")
)

// Locker obtains exclusive, expiring locks.
type Locker interface {
	// Obtain acquires key for ttl.
	Obtain(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

// Lease is one held lock.
type Lease interface {
	// Refresh extends the lease to ttl from now.
	Refresh(ctx context.Context, ttl time.Duration) error

	// Release gives the key up. Calling it more than once is a no-op.
	Release()
}

// SyncKey returns the lock key for one user's marketplace sync.
func SyncKey(userID, store string) string {
	return fmt.Sprintf("sync:%s:%s", userID, store)
}

// Keep refreshes lease every ttl/3 until the returned stop func is called.
// lost is called once, from the refresh goroutine, when the lease is gone.
// Other refresh errors are retried on the next tick.
func Keep(lease Lease, ttl time.Duration, lost func(error)) (stop func()) {
	every := ttl / 3
	if every <= 0 {
		every = time.Millisecond
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), every)
				err := lease.Refresh(ctx, ttl)
				cancel()
				if errors.Is(err, ErrNotHeld) {
					lost(err)
					return
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			wg.Wait()
		})
	}
}

// RedisLocker is a Locker shared across instances via Redis.
type RedisLocker struct {
	client    *redislock.Client
	keyPrefix string
	log       *logrus.Entry
}

// NewRedisLocker builds a locker on an existing client.
func NewRedisLocker(rdb *redis.Client, keyPrefix string, log *logrus.Entry) *RedisLocker {
	if keyPrefix != "" {
		keyPrefix += ":lock:"
	}
	return &RedisLocker{client: redislock.New(rdb), keyPrefix: keyPrefix, log: log}
}

func (l *RedisLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (Lease, error) {
	lk, err := l.client.Obtain(ctx, l.keyPrefix+key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrLocked
	}
	if err != nil {
		return nil, fmt.Errorf("failed to obtain lock %s: %w", key, err)
	}
	return &redisLease{lock: lk, key: key, log: l.log}, nil
}

type redisLease struct {
	lock *redislock.Lock
	key  string
	log  *logrus.Entry
	once sync.Once
}

func (r *redisLease) Refresh(ctx context.Context, ttl time.Duration) error {
	err := r.lock.Refresh(ctx, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return ErrNotHeld
	}
	if err != nil {
		return fmt.Errorf("failed to refresh lock %s: %w", r.key, err)
	}
	return nil
}

func (r *redisLease) Release() {
	r.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.lock.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			r.log.WithError(err).WithField("key", r.key).Warn("failed to release lock")
		}
	})
}

// LocalLocker is an in-process Locker for single-instance deployments.
type LocalLocker struct {
	mu    sync.Mutex
	held  map[string]*localLease
	nowFn func() time.Time
}

// NewLocalLocker returns an empty local locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]*localLease), nowFn: time.Now}
}

// SetClock replaces the time source used for expiry.
func (l *LocalLocker) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nowFn = now
}

func (l *LocalLocker) Obtain(_ context.Context, key string, ttl time.Duration) (Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFn()
	if cur, ok := l.held[key]; ok && now.Before(cur.expires) {
		return nil, ErrLocked
	}
	lease := &localLease{owner: l, key: key, expires: now.Add(ttl)}
	l.held[key] = lease
	return lease, nil
}

// localLease fields other than owner and key are guarded by owner.mu.
type localLease struct {
	owner   *LocalLocker
	key     string
	expires time.Time
}

func (ll *localLease) Refresh(_ context.Context, ttl time.Duration) error {
	l := ll.owner
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFn()
	if l.held[ll.key] != ll || !now.Before(ll.expires) {
		return ErrNotHeld
	}
	ll.expires = now.Add(ttl)
	return nil
}

func (ll *localLease) Release() {
	l := ll.owner
	l.mu.Lock()
	defer l.mu.Unlock()
	// A newer holder may own the key after expiry.
	if l.held[ll.key] == ll {
		delete(l.held, ll.key)
	}
}

var (
	_ Locker = (*RedisLocker)(nil)
	_ Locker = (*LocalLocker)(nil)
)
