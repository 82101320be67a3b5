package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 30*time.Minute, cfg.Engine.RunTimeout)
	assert.Equal(t, 5, cfg.Engine.ErrorCeiling)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, "disk", cfg.Cache.Backend)
	assert.Equal(t, "researchflow", cfg.Metrics.Namespace)
}

func TestLoadFromYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
engine:
  run_timeout: 10m
  error_ceiling: 8
retry:
  max_attempts: 5
cache:
  backend: redis
  redis:
    addr: redis.internal:6379
log:
  level: debug
`), 0o644))

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 10*time.Minute, cfg.Engine.RunTimeout)
	assert.Equal(t, 8, cfg.Engine.ErrorCeiling)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, "redis.internal:6379", cfg.Cache.Redis.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)

	// 未覆盖的字段保持默认
	assert.Equal(t, 5, cfg.Gather.BaseLimit)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/nonexistent/config.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Engine.ErrorCeiling)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine:\n  error_ceiling: 8\n"), 0o644))

	t.Setenv("RESEARCHFLOW_ENGINE_ERROR_CEILING", "12")
	t.Setenv("RESEARCHFLOW_ENGINE_RUN_TIMEOUT", "90s")
	t.Setenv("RESEARCHFLOW_CACHE_BACKEND", "none")
	t.Setenv("RESEARCHFLOW_RETRY_JITTER_FRACTION", "0.5")
	t.Setenv("RESEARCHFLOW_RUN_STORE_ENABLED", "false")

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.Engine.ErrorCeiling)
	assert.Equal(t, 90*time.Second, cfg.Engine.RunTimeout)
	assert.Equal(t, "none", cfg.Cache.Backend)
	assert.InDelta(t, 0.5, cfg.Retry.JitterFraction, 1e-9)
	assert.False(t, cfg.RunStore.Enabled)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"非正错误上限", func(c *Config) { c.Engine.ErrorCeiling = 0 }},
		{"非正运行超时", func(c *Config) { c.Engine.RunTimeout = 0 }},
		{"非正尝试次数", func(c *Config) { c.Retry.MaxAttempts = 0 }},
		{"抖动比例越界", func(c *Config) { c.Retry.JitterFraction = 1.5 }},
		{"未知缓存后端", func(c *Config) { c.Cache.Backend = "tape" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoaderWithValidator(t *testing.T) {
	_, err := NewLoader().
		WithValidator(func(c *Config) error { return c.Validate() }).
		Load()
	require.NoError(t, err)
}

func TestComponentConfigConversion(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cache.Redis.Prefix = "custom:"

	engineCfg := cfg.EngineConfig()
	assert.Equal(t, cfg.Engine.ErrorCeiling, engineCfg.ErrorCeiling)

	retryCfg := cfg.RetryConfig()
	assert.Equal(t, cfg.Retry.BackoffFactor, retryCfg.BackoffFactor)

	diskCfg := cfg.DiskCacheConfig()
	assert.Equal(t, cfg.Cache.Disk.Dir, diskCfg.Dir)
	assert.Positive(t, diskCfg.TargetRatio, "unspecified knobs fall back to package defaults")

	redisCfg := cfg.RedisCacheConfig()
	assert.Equal(t, "custom:", redisCfg.KeyPrefix)

	runCfg := cfg.RunStoreConfig()
	assert.Equal(t, cfg.RunStore.Path, runCfg.Path)
}
