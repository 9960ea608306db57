// Package counter exposes the shared atomic counter store backing invoice
// numbering. All mutation goes through Redis primitives that are linearizable
// on a single key; the package never performs a read-modify-write cycle in
// application code.
package counter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store wraps a Redis client with the counter operations the numbering
// allocator relies on.
type Store struct {
	client *redis.Client
}

// New constructs a Store.
func New(client *redis.Client) *Store {
	return &Store{client: client}
}

// Increment atomically increments the counter at key and returns the new value.
func (s *Store) Increment(ctx context.Context, key string) (int64, error) {
	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("counter: increment %s: %w", key, err)
	}
	return n, nil
}

// SetIfAbsent stores value under key only when the key does not exist yet.
// It reports whether this call performed the write.
func (s *Store) SetIfAbsent(ctx context.Context, key, value string) (bool, error) {
	ok, err := s.client.SetNX(ctx, key, value, 0).Result()
	if err != nil {
		return false, fmt.Errorf("counter: setnx %s: %w", key, err)
	}
	return ok, nil
}

// Get returns the value stored under key, or "" when the key is absent.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("counter: get %s: %w", key, err)
	}
	return val, nil
}

// Expire sets a time-to-live on key so stale counters self-clean.
func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("counter: expire %s: %w", key, err)
	}
	return nil
}
