package invoice

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const cacheVersionKey = "invoices:cache:version"

// Cache is the per-account invoice read cache. Evict drops one account's
// entry after a user-driven mutation; Clear bumps a version counter so every
// entry goes stale at once, which is how the sweeps invalidate without
// enumerating affected accounts. A nil Cache is a no-op.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a Cache.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) version(ctx context.Context) (int64, error) {
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if err == redis.Nil {
		if err := c.client.Set(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

func (c *Cache) key(ctx context.Context, accountID uuid.UUID) (string, error) {
	ver, err := c.version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("invoices:%d:%s", ver, accountID), nil
}

// GetList returns the cached default listing for the account, if present.
func (c *Cache) GetList(ctx context.Context, accountID uuid.UUID) ([]Invoice, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	key, err := c.key(ctx, accountID)
	if err != nil {
		return nil, false
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var invoices []Invoice
	if err := json.Unmarshal(data, &invoices); err != nil {
		return nil, false
	}
	return invoices, true
}

// SetList stores the default listing for the account.
func (c *Cache) SetList(ctx context.Context, accountID uuid.UUID, invoices []Invoice) error {
	if c == nil || c.client == nil {
		return nil
	}
	key, err := c.key(ctx, accountID)
	if err != nil {
		return err
	}
	data, err := json.Marshal(invoices)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// Evict drops the cached listing for one account.
func (c *Cache) Evict(ctx context.Context, accountID uuid.UUID) error {
	if c == nil || c.client == nil {
		return nil
	}
	key, err := c.key(ctx, accountID)
	if err != nil {
		return err
	}
	return c.client.Del(ctx, key).Err()
}

// Clear invalidates every account's cached listing.
func (c *Cache) Clear(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, cacheVersionKey).Err()
}
