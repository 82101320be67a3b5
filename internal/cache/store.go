package cache

import (
	"context"
	"time"
)

// =============================================================================
// 💾 缓存后端接口
// =============================================================================

// Store 缓存后端接口
// 实现必须串行化自身的元数据变更；Get/Set 失败按未命中/空操作降级。
type Store interface {
	// Get retrieves a payload. Returns ok=false on miss, expiry, or I/O
	// failure. An expired entry is evicted lazily.
	Get(ctx context.Context, key string) (payload []byte, ok bool)

	// Set stores a payload with the given TTL (ttl <= 0 uses the store
	// default). Evicts least-recently-accessed entries first when the
	// byte budget would be exceeded. The returned error is informational;
	// callers may ignore it.
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error

	// Delete removes an entry if present.
	Delete(ctx context.Context, key string) error

	// ClearExpired removes all entries past their TTL and returns how
	// many were removed.
	ClearExpired(ctx context.Context) int

	// Stats returns a snapshot of store health.
	Stats(ctx context.Context) Stats

	// Close releases backend resources.
	Close() error
}

// Stats 缓存统计快照
type Stats struct {
	EntryCount  int     `json:"entry_count"`
	TotalBytes  int64   `json:"total_bytes"`
	Capacity    int64   `json:"capacity"`
	Utilization float64 `json:"utilization"`
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	Evictions   int64   `json:"evictions"`
	Expirations int64   `json:"expirations"`
}
