package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// =============================================================================
// 💾 Redis 缓存实现
// =============================================================================

// RedisConfig Redis 缓存配置
type RedisConfig struct {
	// Redis 地址
	Addr string `yaml:"addr" json:"addr"`
	// 密码
	Password string `yaml:"password" json:"password"`
	// 数据库编号
	DB int `yaml:"db" json:"db"`
	// 默认过期时间
	DefaultTTL time.Duration `yaml:"default_ttl" json:"default_ttl"`
	// 最大重试次数
	MaxRetries int `yaml:"max_retries" json:"max_retries"`
	// 连接池大小
	PoolSize int `yaml:"pool_size" json:"pool_size"`
	// 键前缀
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix"`
}

// DefaultRedisConfig 返回默认 Redis 缓存配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:       "localhost:6379",
		DB:         0,
		DefaultTTL: 24 * time.Hour,
		MaxRetries: 3,
		PoolSize:   10,
		KeyPrefix:  "researchflow:cache:",
	}
}

// RedisStore Redis 缓存
// 进程外共享的缓存后端：TTL 由 Redis 原生管理，容量淘汰交给服务端
// 的 maxmemory 策略。命中计数在本地维护。
type RedisStore struct {
	client *redis.Client
	config RedisConfig
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool

	hits   atomic.Int64
	misses atomic.Int64
}

// NewRedisStore connects to redis and verifies the connection.
func NewRedisStore(config RedisConfig, logger *zap.Logger) (*RedisStore, error) {
	if config.DefaultTTL <= 0 {
		config.DefaultTTL = DefaultRedisConfig().DefaultTTL
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = DefaultRedisConfig().KeyPrefix
	}

	client := redis.NewClient(&redis.Options{
		Addr:       config.Addr,
		Password:   config.Password,
		DB:         config.DB,
		MaxRetries: config.MaxRetries,
		PoolSize:   config.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	s := &RedisStore{
		client: client,
		config: config,
		logger: logger.With(zap.String("component", "redis_cache")),
	}
	s.logger.Info("redis cache initialized", zap.String("addr", config.Addr))
	return s, nil
}

func (s *RedisStore) prefixed(key string) string {
	return s.config.KeyPrefix + key
}

// Get implements Store. Backend failures degrade to misses.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, false
	}

	val, err := s.client.Get(ctx, s.prefixed(key)).Bytes()
	if err == redis.Nil {
		s.misses.Add(1)
		return nil, false
	}
	if err != nil {
		s.logger.Warn("cache get failed, treating as miss",
			zap.String("key", shortKey(key)), zap.Error(err))
		s.misses.Add(1)
		return nil, false
	}

	s.hits.Add(1)
	return val, true
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("redis cache is closed")
	}

	if ttl <= 0 {
		ttl = s.config.DefaultTTL
	}
	if err := s.client.Set(ctx, s.prefixed(key), payload, ttl).Err(); err != nil {
		s.logger.Warn("cache set failed, skipping",
			zap.String("key", shortKey(key)), zap.Error(err))
		return err
	}
	return nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("redis cache is closed")
	}
	return s.client.Del(ctx, s.prefixed(key)).Err()
}

// ClearExpired implements Store. Redis expires keys natively, so the
// sweep is a recorded no-op.
func (s *RedisStore) ClearExpired(_ context.Context) int {
	return 0
}

// Stats implements Store. Byte-level accounting lives server-side; the
// snapshot reports entry count and local hit counters.
func (s *RedisStore) Stats(ctx context.Context) Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries int
	if !s.closed {
		keys, err := s.client.Keys(ctx, s.config.KeyPrefix+"*").Result()
		if err != nil {
			s.logger.Warn("cache stats scan failed", zap.Error(err))
		} else {
			entries = len(keys)
		}
	}

	return Stats{
		EntryCount: entries,
		Hits:       s.hits.Load(),
		Misses:     s.misses.Load(),
	}
}

// Close implements Store.
func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}
