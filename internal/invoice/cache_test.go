package invoice

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute)
}

func TestCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	cache := newTestCache(t)
	accountID := uuid.New()

	_, ok := cache.GetList(ctx, accountID)
	require.False(t, ok)

	invoices := []Invoice{{ID: uuid.New(), Number: "U0001-2026-0001", Status: StatusSent}}
	require.NoError(t, cache.SetList(ctx, accountID, invoices))

	cached, ok := cache.GetList(ctx, accountID)
	require.True(t, ok)
	require.Len(t, cached, 1)
	require.Equal(t, invoices[0].Number, cached[0].Number)
}

func TestCacheEvictIsPerAccount(t *testing.T) {
	ctx := context.Background()
	cache := newTestCache(t)
	accountA := uuid.New()
	accountB := uuid.New()

	require.NoError(t, cache.SetList(ctx, accountA, []Invoice{{Number: "A"}}))
	require.NoError(t, cache.SetList(ctx, accountB, []Invoice{{Number: "B"}}))

	require.NoError(t, cache.Evict(ctx, accountA))

	_, ok := cache.GetList(ctx, accountA)
	require.False(t, ok)
	_, ok = cache.GetList(ctx, accountB)
	require.True(t, ok)
}

func TestCacheClearInvalidatesAllAccounts(t *testing.T) {
	ctx := context.Background()
	cache := newTestCache(t)
	accountA := uuid.New()
	accountB := uuid.New()

	require.NoError(t, cache.SetList(ctx, accountA, []Invoice{{Number: "A"}}))
	require.NoError(t, cache.SetList(ctx, accountB, []Invoice{{Number: "B"}}))

	require.NoError(t, cache.Clear(ctx))

	_, ok := cache.GetList(ctx, accountA)
	require.False(t, ok)
	_, ok = cache.GetList(ctx, accountB)
	require.False(t, ok)
}

func TestCacheNilSafe(t *testing.T) {
	ctx := context.Background()
	var cache *Cache

	_, ok := cache.GetList(ctx, uuid.New())
	require.False(t, ok)
	require.NoError(t, cache.SetList(ctx, uuid.New(), nil))
	require.NoError(t, cache.Evict(ctx, uuid.New()))
	require.NoError(t, cache.Clear(ctx))
}
