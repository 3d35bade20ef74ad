package cache

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"
)

// Manager fronts a Backend with an in-process singleflight group, so that
// concurrent callers in the same process asking for the same key share one
// computation before any of them touches the backend. The distributed
// single-flight lock (RedisBackend.Deduplicate) additionally coaligns
// across separate processes/instances.
type Manager struct {
	backend Backend
	group   singleflight.Group
	ttl     time.Duration

	// waitTimeout bounds how long a caller polls a distributed lock held by
	// another worker before giving up and computing locally.
	waitTimeout time.Duration
}

// NewManager wraps backend with singleflight coalescing. ttl is applied to
// every Set; waitTimeout bounds distributed-lock polling.
func NewManager(backend Backend, ttl, waitTimeout time.Duration) *Manager {
	return &Manager{backend: backend, ttl: ttl, waitTimeout: waitTimeout}
}

// Get looks up key directly, bypassing compute-and-store. Used by callers
// that want to check the cache without being able to populate it
// themselves (e.g. a read-only diagnostic).
func (m *Manager) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return m.backend.Get(ctx, key)
}

// GetOrCompute returns the cached value for key, computing and storing it
// via compute if absent. Concurrent callers for the same key in this
// process share one compute call; if the backend is distributed, workers
// in other processes are coalesced too via its Deduplicate lock.
func (m *Manager) GetOrCompute(ctx context.Context, key string, compute func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	v, err, _ := m.group.Do(key, func() (any, error) {
		if cached, ok, err := m.backend.Get(ctx, key); err == nil && ok {
			return cached, nil
		}

		if distributed, ok := m.backend.(*RedisBackend); ok {
			return m.computeWithDistributedLock(ctx, distributed, key, compute)
		}

		value, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		_ = m.backend.Set(ctx, key, value, m.ttl)
		return value, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (m *Manager) computeWithDistributedLock(ctx context.Context, backend *RedisBackend, key string, compute func(ctx context.Context) ([]byte, error)) (any, error) {
	cached, found, token, err := backend.Deduplicate(ctx, key, m.waitTimeout)
	if err != nil {
		return nil, err
	}
	if found {
		return cached, nil
	}

	// Deduplicate returned found=false either because we took the lock
	// (token is our acquisition token) or because the poll window expired
	// with no value appearing and no lock taken (token is empty). We
	// compute either way; ReleaseLock only acts on a non-empty token, so a
	// caller that never held the lock can't release someone else's.
	value, err := compute(ctx)
	if err != nil {
		_ = backend.ReleaseLock(ctx, key, token)
		return nil, err
	}
	_ = backend.Set(ctx, key, value, m.ttl)
	_ = backend.ReleaseLock(ctx, key, token)
	return value, nil
}

// Close releases backend resources.
func (m *Manager) Close() error {
	return m.backend.Close()
}
