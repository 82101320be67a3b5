package cache

import (
	"context"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Memoizer 记忆化辅助
// 将昂贵调用的结果以 msgpack 编码写入 Store；并发的相同请求通过
// singleflight 合并为一次真实调用。缓存失败永远不会让调用失败。
type Memoizer struct {
	store  Store
	group  singleflight.Group
	logger *zap.Logger
}

// NewMemoizer wraps a store for call memoization.
func NewMemoizer(store Store, logger *zap.Logger) *Memoizer {
	return &Memoizer{
		store:  store,
		logger: logger.With(zap.String("component", "memoizer")),
	}
}

// Memoize runs fn, caching its result under the content-addressed key of
// operation+args. A cached value that fails to decode counts as a miss.
func Memoize[T any](ctx context.Context, m *Memoizer, operation string, args map[string]any, ttl time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	key := Key(operation, args)

	if payload, ok := m.store.Get(ctx, key); ok {
		var cached T
		if err := msgpack.Unmarshal(payload, &cached); err == nil {
			return cached, nil
		}
		m.logger.Warn("undecodable cache entry, treating as miss",
			zap.String("operation", operation), zap.String("key", shortKey(key)))
		m.store.Delete(ctx, key)
	}

	result, err, _ := m.group.Do(key, func() (any, error) {
		value, err := fn(ctx)
		if err != nil {
			return value, err
		}
		payload, encErr := msgpack.Marshal(value)
		if encErr != nil {
			m.logger.Warn("failed to encode result for cache",
				zap.String("operation", operation), zap.Error(encErr))
			return value, nil
		}
		m.store.Set(ctx, key, payload, ttl)
		return value, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), nil
}
