package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestDiskStore(t *testing.T, capacity int64) *DiskStore {
	t.Helper()
	s, err := NewDiskStore(DiskConfig{
		Dir:           t.TempDir(),
		CapacityBytes: capacity,
		DefaultTTL:    time.Minute,
		TargetRatio:   0.8,
	}, zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestDiskStore_SetGet(t *testing.T) {
	s := newTestDiskStore(t, 1024)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k1", []byte("payload"), time.Minute))

	got, ok := s.Get(ctx, "k1")
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), got)

	_, ok = s.Get(ctx, "missing")
	assert.False(t, ok)
}

func TestDiskStore_TTLExpiry(t *testing.T) {
	s := newTestDiskStore(t, 1024)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k1", []byte("v"), 20*time.Millisecond))

	_, ok := s.Get(ctx, "k1")
	require.True(t, ok)

	time.Sleep(40 * time.Millisecond)

	// 过期条目按未命中处理并被惰性清除
	_, ok = s.Get(ctx, "k1")
	assert.False(t, ok)

	stats := s.Stats(ctx)
	assert.Equal(t, 0, stats.EntryCount)
	assert.Equal(t, int64(1), stats.Expirations)
}

func TestDiskStore_LRUEviction(t *testing.T) {
	s := newTestDiskStore(t, 100)
	ctx := context.Background()

	payload := make([]byte, 40)
	require.NoError(t, s.Set(ctx, "a", payload, time.Minute))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, s.Set(ctx, "b", payload, time.Minute))
	time.Sleep(2 * time.Millisecond)

	// 访问 a，使 b 成为最久未使用的条目
	_, ok := s.Get(ctx, "a")
	require.True(t, ok)
	time.Sleep(2 * time.Millisecond)

	require.NoError(t, s.Set(ctx, "c", payload, time.Minute))

	// b 被淘汰；最近访问过的 a 保留
	_, ok = s.Get(ctx, "b")
	assert.False(t, ok)
	_, ok = s.Get(ctx, "a")
	assert.True(t, ok)
	_, ok = s.Get(ctx, "c")
	assert.True(t, ok)

	stats := s.Stats(ctx)
	assert.Equal(t, int64(1), stats.Evictions)
	assert.LessOrEqual(t, stats.TotalBytes, stats.Capacity)
}

func TestDiskStore_EvictsToTargetBuffer(t *testing.T) {
	s := newTestDiskStore(t, 100)
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, s.Set(ctx, key, make([]byte, 20), time.Minute))
		time.Sleep(2 * time.Millisecond)
	}

	require.NoError(t, s.Set(ctx, "f", make([]byte, 20), time.Minute))

	stats := s.Stats(ctx)
	// 淘汰把用量压回目标水位（容量的 80%）以下后再写入
	assert.LessOrEqual(t, stats.TotalBytes, int64(80))
}

func TestDiskStore_OversizedPayloadSkipped(t *testing.T) {
	s := newTestDiskStore(t, 64)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "big", make([]byte, 128), time.Minute))

	_, ok := s.Get(ctx, "big")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Stats(ctx).EntryCount)
}

func TestDiskStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	config := DiskConfig{Dir: dir, CapacityBytes: 1024, DefaultTTL: time.Minute, TargetRatio: 0.8}

	s1, err := NewDiskStore(config, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s1.Set(ctx, "k1", []byte("survives"), time.Hour))
	require.NoError(t, s1.Close())

	s2, err := NewDiskStore(config, zap.NewNop())
	require.NoError(t, err)
	got, ok := s2.Get(ctx, "k1")
	require.True(t, ok)
	assert.Equal(t, []byte("survives"), got)
}

func TestDiskStore_CorruptIndexTreatedAsEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, indexFileName), []byte("{broken"), 0o644))

	s, err := NewDiskStore(DiskConfig{Dir: dir, CapacityBytes: 1024}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 0, s.Stats(context.Background()).EntryCount)
}

func TestDiskStore_ReconcileDropsMissingFiles(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	config := DiskConfig{Dir: dir, CapacityBytes: 1024, DefaultTTL: time.Minute, TargetRatio: 0.8}

	s1, err := NewDiskStore(config, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s1.Set(ctx, "gone", []byte("x"), time.Hour))
	require.NoError(t, s1.Close())

	// 条目文件丢失时，重新打开后索引与目录保持一致
	require.NoError(t, os.Remove(filepath.Join(dir, "gone.bin")))

	s2, err := NewDiskStore(config, zap.NewNop())
	require.NoError(t, err)
	_, ok := s2.Get(ctx, "gone")
	assert.False(t, ok)
	assert.Equal(t, int64(0), s2.Stats(ctx).TotalBytes)
}

func TestDiskStore_ClearExpired(t *testing.T) {
	s := newTestDiskStore(t, 1024)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "short", []byte("v"), 10*time.Millisecond))
	require.NoError(t, s.Set(ctx, "long", []byte("v"), time.Hour))
	time.Sleep(30 * time.Millisecond)

	removed := s.ClearExpired(ctx)
	assert.Equal(t, 1, removed)

	_, ok := s.Get(ctx, "long")
	assert.True(t, ok)
}

func TestDiskStore_ReplaceAccounting(t *testing.T) {
	s := newTestDiskStore(t, 1024)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", make([]byte, 100), time.Minute))
	require.NoError(t, s.Set(ctx, "k", make([]byte, 10), time.Minute))

	stats := s.Stats(ctx)
	assert.Equal(t, 1, stats.EntryCount)
	assert.Equal(t, int64(10), stats.TotalBytes)
}
