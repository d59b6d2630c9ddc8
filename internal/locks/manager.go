// Package locks provides per-tenant mutual exclusion around token refresh.
// A local in-process manager serves single-node deployments; when Redis is
// configured, a redsync-backed manager coordinates across instances.
package locks

import (
	"context"
	"sync"
	"time"
)

// Lock is a held mutual-exclusion lock.
type Lock interface {
	// Key returns the unique identifier for this lock.
	Key() string

	// Release releases the lock. Safe to call more than once.
	Release(ctx context.Context) error

	// IsHeld reports whether this instance still holds the lock.
	IsHeld() bool
}

// Manager hands out locks keyed by tenant. Acquire blocks until the lock is
// available or the context is done.
type Manager interface {
	AcquireLock(ctx context.Context, key string, expiration time.Duration) (Lock, error)
	Close() error
}

// RefreshKey is the lock key serializing every credential writer for one
// tenant. The refresh engine and the webhook reconciler share it.
func RefreshKey(locationID string) string {
	return "refresh:" + locationID
}

// LocalManager implements Manager with in-process keyed semaphores. The key
// space is bounded by the tenant count, so entries are kept for reuse.
type LocalManager struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func NewLocalManager() *LocalManager {
	return &LocalManager{
		slots: make(map[string]chan struct{}),
	}
}

func (m *LocalManager) slot(key string) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch, ok := m.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		m.slots[key] = ch
	}
	return ch
}

// AcquireLock blocks until the keyed slot is free or ctx is done. The
// expiration parameter is ignored locally; process exit releases everything.
func (m *LocalManager) AcquireLock(ctx context.Context, key string, expiration time.Duration) (Lock, error) {
	ch := m.slot(key)

	select {
	case ch <- struct{}{}:
		return &localLock{key: key, ch: ch}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *LocalManager) Close() error {
	return nil
}

type localLock struct {
	key  string
	ch   chan struct{}
	once sync.Once
	done bool
	mu   sync.Mutex
}

func (l *localLock) Key() string {
	return l.key
}

func (l *localLock) Release(ctx context.Context) error {
	l.once.Do(func() {
		<-l.ch
		l.mu.Lock()
		l.done = true
		l.mu.Unlock()
	})
	return nil
}

func (l *localLock) IsHeld() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.done
}
