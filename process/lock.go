package process

import (
	"context"
	"sync"
	"time"
)

// Locker guards the per-process-id critical section in which the Controller
// re-reads the latest state, re-checks the guard and appends the
// "processing" event, so two concurrent requests against the same process
// id never both pass the guard against the same starting state. Handler
// execution runs after the lock is released. Implementations must be safe
// for concurrent use.
type Locker interface {
	// Lock blocks until the named key is held or ctx is done.
	Lock(ctx context.Context, key string) (func(), error)
}

// LocalLocker is a single-instance Locker backed by one *sync.Mutex per key.
// It is the fallback used when no Redis address is configured, and is
// sufficient correctness-wise for a single controller process; it provides
// no cross-process exclusion.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLocalLocker creates an empty LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for key, blocking until it is free or ctx is
// cancelled. The returned func releases it; callers must call it exactly
// once.
func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	m := l.mutexFor(key)

	acquired := make(chan struct{})
	go func() {
		m.Lock()
		close(acquired)
	}()

	select {
	case <-acquired:
		return m.Unlock, nil
	case <-ctx.Done():
		// The goroutine above still owns the lock attempt; once it
		// succeeds it will acquire and immediately release it so the
		// mutex isn't left stuck in a half-locked state.
		go func() {
			<-acquired
			m.Unlock()
		}()
		return nil, ctx.Err()
	}
}

func (l *LocalLocker) mutexFor(key string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	return m
}

// CacheLocker adapts a distributed SETNX-style lock (internal/cache.Manager)
// to the Locker interface, polling until acquired, ctx is done, or the
// backend returns an error. ttl bounds how long an acquired lock is held in
// the backend; it does not limit the polling.
type CacheLocker struct {
	backend      DistributedLockBackend
	ttl          time.Duration
	pollInterval time.Duration
}

// DistributedLockBackend is the subset of internal/cache.Manager's API the
// process package depends on, kept narrow so tests can fake it without
// a real Redis connection.
type DistributedLockBackend interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Unlock(ctx context.Context, key, token string) error
}

// NewCacheLocker wraps backend as a Locker, holding each lock for ttl and
// retrying acquisition every pollInterval.
func NewCacheLocker(backend DistributedLockBackend, ttl, pollInterval time.Duration) *CacheLocker {
	return &CacheLocker{backend: backend, ttl: ttl, pollInterval: pollInterval}
}

// Lock polls the distributed backend until it grants key, ctx is done, or an
// unexpected backend error occurs.
func (l *CacheLocker) Lock(ctx context.Context, key string) (func(), error) {
	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		token, ok, err := l.backend.Lock(ctx, key, l.ttl)
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				_ = l.backend.Unlock(context.Background(), key, token)
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
