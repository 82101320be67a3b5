package config

import "time"

// =============================================================================
// ⚙️ 默认配置
// =============================================================================

// DefaultConfig 返回带合理默认值的完整配置
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			RunTimeout:       30 * time.Minute,
			ErrorCeiling:     5,
			StageSoftTimeout: 5 * time.Minute,
			MaxReentries:     5,
			MinQueryLength:   3,
		},
		Retry: RetryConfig{
			MaxAttempts:    3,
			BaseDelay:      time.Second,
			BackoffFactor:  2.0,
			MaxDelay:       10 * time.Second,
			JitterFraction: 0.2,
		},
		Gather: GatherConfig{
			BaseLimit:   5,
			CacheTTL:    time.Hour,
			SearchRPS:   2,
			SearchBurst: 4,
		},
		Cache: CacheConfig{
			Backend: "disk",
			Disk: DiskCacheConfig{
				Dir:           "data/cache",
				CapacityBytes: 100 * 1024 * 1024,
				DefaultTTL:    24 * time.Hour,
			},
			Redis: RedisCacheConfig{
				Addr:       "localhost:6379",
				Prefix:     "researchflow:cache:",
				DefaultTTL: 24 * time.Hour,
			},
		},
		RunStore: RunStoreConfig{
			Enabled: true,
			Path:    "data/runs.db",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "researchflow",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
