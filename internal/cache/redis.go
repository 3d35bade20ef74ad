package cache

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisBackend is the distributed KV cache backend. Keys are namespaced by
// Key(scanKind, text); a connection pool is managed by the underlying
// go-redis client.
type RedisBackend struct {
	client    *redis.Client
	namespace string
}

// NewRedisBackend builds a RedisBackend over a fresh go-redis client.
func NewRedisBackend(addr, password string, db int, namespace string) *RedisBackend {
	return &RedisBackend{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		namespace: namespace,
	}
}

func (r *RedisBackend) nsKey(key string) string {
	return r.namespace + ":" + key
}

func (r *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, r.nsKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (r *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, r.nsKey(key), value, ttl).Err()
}

func (r *RedisBackend) Close() error {
	return r.client.Close()
}

const (
	lockTTL     = 30 * time.Second
	pollInitial = 20 * time.Millisecond
	pollMax     = 500 * time.Millisecond
)

// releaseLockScript deletes the lock key only if it still holds the token
// that ReleaseLock's caller acquired it with, so a worker whose lock
// already expired and was re-taken by someone else can't delete the new
// holder's lock out from under it.
var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`)

// Deduplicate is the single-flight lock primitive from spec.md §4.3: if no
// one holds the lock for key, it is taken and (nil, false, token, nil) is
// returned so the caller proceeds to compute the value, using token to
// release the lock afterwards via ReleaseLock. If another worker holds the
// lock, Deduplicate polls (capped exponential backoff) for the cached
// value to appear, for up to waitTimeout; if the value never appears
// within that budget, it gives up and returns (nil, false, "", nil) so the
// caller computes it itself rather than blocking forever — with an empty
// token, since it never acquired the lock and must not release it.
func (r *RedisBackend) Deduplicate(ctx context.Context, key string, waitTimeout time.Duration) (value []byte, found bool, lockToken string, err error) {
	lockKey := r.namespace + ":lock:" + key
	token := uuid.NewString()

	acquired, err := r.client.SetNX(ctx, lockKey, token, lockTTL).Result()
	if err != nil {
		return nil, false, "", err
	}
	if acquired {
		return nil, false, token, nil
	}

	deadline := time.Now().Add(waitTimeout)
	backoff := pollInitial
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return nil, false, "", ctx.Err()
		case <-time.After(backoff):
		}

		v, ok, err := r.Get(ctx, key)
		if err != nil {
			return nil, false, "", err
		}
		if ok {
			return v, true, "", nil
		}

		backoff *= 2
		if backoff > pollMax {
			backoff = pollMax
		}
	}
	return nil, false, "", nil
}

// ReleaseLock drops the single-flight lock for key, but only if it still
// holds token — the token Deduplicate returned when this caller acquired
// it. An empty token (the caller never held the lock) or a token that no
// longer matches (the lock expired and another worker already took it) is
// a no-op, so ReleaseLock can never delete a lock this caller doesn't own.
func (r *RedisBackend) ReleaseLock(ctx context.Context, key, token string) error {
	if token == "" {
		return nil
	}
	return releaseLockScript.Run(ctx, r.client, []string{r.namespace + ":lock:" + key}, token).Err()
}
