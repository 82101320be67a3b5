package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// 🧪 RedisStore 测试
// =============================================================================

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	store, err := NewRedisStore(RedisConfig{
		Addr:       mr.Addr(),
		DefaultTTL: time.Minute,
		KeyPrefix:  "test:cache:",
	}, zap.NewNop())
	require.NoError(t, err)

	return mr, store
}

func TestRedisStore_SetAndGet(t *testing.T) {
	mr, store := setupTestRedis(t)
	defer mr.Close()
	defer store.Close()

	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k1", []byte("value"), time.Minute))

	got, ok := store.Get(ctx, "k1")
	require.True(t, ok)
	assert.Equal(t, []byte("value"), got)

	_, ok = store.Get(ctx, "missing")
	assert.False(t, ok)
}

func TestRedisStore_TTL(t *testing.T) {
	mr, store := setupTestRedis(t)
	defer mr.Close()
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "k1", []byte("v"), time.Minute))

	// miniredis 通过 FastForward 模拟时间流逝
	mr.FastForward(2 * time.Minute)

	_, ok := store.Get(ctx, "k1")
	assert.False(t, ok)
}

func TestRedisStore_Delete(t *testing.T) {
	mr, store := setupTestRedis(t)
	defer mr.Close()
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "k1", []byte("v"), time.Minute))
	require.NoError(t, store.Delete(ctx, "k1"))

	_, ok := store.Get(ctx, "k1")
	assert.False(t, ok)
}

func TestRedisStore_Stats(t *testing.T) {
	mr, store := setupTestRedis(t)
	defer mr.Close()
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "k1", []byte("v"), time.Minute))
	require.NoError(t, store.Set(ctx, "k2", []byte("v"), time.Minute))

	store.Get(ctx, "k1")
	store.Get(ctx, "missing")

	stats := store.Stats(ctx)
	assert.Equal(t, 2, stats.EntryCount)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestRedisStore_DegradesAfterBackendLoss(t *testing.T) {
	mr, store := setupTestRedis(t)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "k1", []byte("v"), time.Minute))

	// 后端不可用时 Get 降级为未命中，Set 返回错误但不 panic
	mr.Close()

	_, ok := store.Get(ctx, "k1")
	assert.False(t, ok)
	assert.Error(t, store.Set(ctx, "k2", []byte("v"), time.Minute))
}
