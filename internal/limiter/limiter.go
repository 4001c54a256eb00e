package limiter

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// CounterStore tracks attempt counts in fixed decay windows. Keys are
// namespaced per purpose so the per-token rate limiter and the password
// throttle never share counters.
type CounterStore interface {
	// Hit records an attempt and returns the count inside the current
	// window. The first hit starts the window.
	Hit(ctx context.Context, key string, decay time.Duration) (int, error)
	// TooMany reports whether the window already holds max or more hits.
	TooMany(ctx context.Context, key string, max int) (bool, error)
	// AvailableIn returns how long until the window resets.
	AvailableIn(ctx context.Context, key string) (time.Duration, error)
	// Clear drops the counter immediately.
	Clear(ctx context.Context, key string) error
}

// Key builds the counter key for a purpose, token and client address.
func Key(purpose, token, addr string) string {
	if addr == "" {
		addr = "unknown"
	}
	return "sharelink:" + purpose + ":" + token + ":" + addr
}

// RedisCounterStore implements CounterStore on Redis, shared across
// instances. INCR carries the atomicity; EXPIRE NX pins the window to the
// first hit.
type RedisCounterStore struct {
	client *redis.Client
}

// NewRedisCounterStore builds a Redis-backed counter store.
func NewRedisCounterStore(client *redis.Client) *RedisCounterStore {
	return &RedisCounterStore{client: client}
}

func (s *RedisCounterStore) Hit(ctx context.Context, key string, decay time.Duration) (int, error) {
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if err := s.client.ExpireNX(ctx, key, decay).Err(); err != nil {
		return int(count), err
	}
	return int(count), nil
}

func (s *RedisCounterStore) TooMany(ctx context.Context, key string, max int) (bool, error) {
	count, err := s.client.Get(ctx, key).Int()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	return count >= max, nil
}

func (s *RedisCounterStore) AvailableIn(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

func (s *RedisCounterStore) Clear(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}
