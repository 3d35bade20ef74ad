package cache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type lruEntry struct {
	value   []byte
	expires time.Time
}

// LocalLRU is a bounded-count, TTL-aware cache backend. On insertion past
// the bound, the least-recently-used entry is evicted. A get against an
// expired entry removes it and counts as a miss.
type LocalLRU struct {
	mu    sync.Mutex
	cache *lru.Cache[string, lruEntry]
}

// NewLocalLRU builds a LocalLRU bounded to maxSize entries.
func NewLocalLRU(maxSize int) (*LocalLRU, error) {
	if maxSize <= 0 {
		maxSize = 1
	}
	c, err := lru.New[string, lruEntry](maxSize)
	if err != nil {
		return nil, err
	}
	return &LocalLRU{cache: c}, nil
}

func (l *LocalLRU) Get(_ context.Context, key string) ([]byte, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	if time.Now().After(entry.expires) {
		l.cache.Remove(key)
		return nil, false, nil
	}
	return entry.value, true, nil
}

func (l *LocalLRU) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache.Add(key, lruEntry{value: value, expires: time.Now().Add(ttl)})
	return nil
}

func (l *LocalLRU) Close() error { return nil }
