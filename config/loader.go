// =============================================================================
// 📦 ResearchFlow 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("RESEARCHFLOW").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/BaSui01/researchflow/internal/cache"
	"github.com/BaSui01/researchflow/internal/runstore"
	"github.com/BaSui01/researchflow/research"
	"github.com/BaSui01/researchflow/workflow"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 researchflow 的完整配置结构
type Config struct {
	// Engine 引擎配置
	Engine EngineConfig `yaml:"engine" env:"ENGINE"`

	// Retry 重试配置
	Retry RetryConfig `yaml:"retry" env:"RETRY"`

	// Gather 文献收集配置
	Gather GatherConfig `yaml:"gather" env:"GATHER"`

	// Cache 缓存配置
	Cache CacheConfig `yaml:"cache" env:"CACHE"`

	// RunStore 运行历史配置
	RunStore RunStoreConfig `yaml:"run_store" env:"RUN_STORE"`

	// Metrics 指标配置
	Metrics MetricsConfig `yaml:"metrics" env:"METRICS"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`
}

// EngineConfig 引擎配置
type EngineConfig struct {
	// 整次运行超时
	RunTimeout time.Duration `yaml:"run_timeout" env:"RUN_TIMEOUT"`
	// 全局错误上限
	ErrorCeiling int `yaml:"error_ceiling" env:"ERROR_CEILING"`
	// 单阶段软超时
	StageSoftTimeout time.Duration `yaml:"stage_soft_timeout" env:"STAGE_SOFT_TIMEOUT"`
	// 重入预算
	MaxReentries int `yaml:"max_reentries" env:"MAX_REENTRIES"`
	// 查询最小长度
	MinQueryLength int `yaml:"min_query_length" env:"MIN_QUERY_LENGTH"`
}

// RetryConfig 重试配置
type RetryConfig struct {
	// 最大尝试次数
	MaxAttempts int `yaml:"max_attempts" env:"MAX_ATTEMPTS"`
	// 基础延迟
	BaseDelay time.Duration `yaml:"base_delay" env:"BASE_DELAY"`
	// 退避因子
	BackoffFactor float64 `yaml:"backoff_factor" env:"BACKOFF_FACTOR"`
	// 最大延迟
	MaxDelay time.Duration `yaml:"max_delay" env:"MAX_DELAY"`
	// 抖动比例
	JitterFraction float64 `yaml:"jitter_fraction" env:"JITTER_FRACTION"`
}

// GatherConfig 文献收集配置
type GatherConfig struct {
	// 默认检索规模
	BaseLimit int `yaml:"base_limit" env:"BASE_LIMIT"`
	// 检索结果缓存 TTL
	CacheTTL time.Duration `yaml:"cache_ttl" env:"CACHE_TTL"`
	// 检索限速（每秒请求数）
	SearchRPS float64 `yaml:"search_rps" env:"SEARCH_RPS"`
	// 限速突发额度
	SearchBurst int `yaml:"search_burst" env:"SEARCH_BURST"`
}

// CacheConfig 缓存配置
type CacheConfig struct {
	// 后端类型: disk, redis, none
	Backend string `yaml:"backend" env:"BACKEND"`
	// 磁盘后端
	Disk DiskCacheConfig `yaml:"disk" env:"DISK"`
	// Redis 后端
	Redis RedisCacheConfig `yaml:"redis" env:"REDIS"`
}

// DiskCacheConfig 磁盘缓存配置
type DiskCacheConfig struct {
	// 缓存目录
	Dir string `yaml:"dir" env:"DIR"`
	// 容量字节数
	CapacityBytes int64 `yaml:"capacity_bytes" env:"CAPACITY_BYTES"`
	// 默认 TTL
	DefaultTTL time.Duration `yaml:"default_ttl" env:"DEFAULT_TTL"`
}

// RedisCacheConfig Redis 缓存配置
type RedisCacheConfig struct {
	// 地址
	Addr string `yaml:"addr" env:"ADDR"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库编号
	DB int `yaml:"db" env:"DB"`
	// 键前缀
	Prefix string `yaml:"prefix" env:"PREFIX"`
	// 默认 TTL
	DefaultTTL time.Duration `yaml:"default_ttl" env:"DEFAULT_TTL"`
}

// RunStoreConfig 运行历史配置
type RunStoreConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// SQLite 文件路径
	Path string `yaml:"path" env:"PATH"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 指标命名空间
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "RESEARCHFLOW",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// 特殊处理 time.Duration
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	}

	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	if c.Engine.ErrorCeiling <= 0 {
		errs = append(errs, "error_ceiling must be positive")
	}
	if c.Engine.RunTimeout <= 0 {
		errs = append(errs, "run_timeout must be positive")
	}
	if c.Retry.MaxAttempts <= 0 {
		errs = append(errs, "max_attempts must be positive")
	}
	if c.Retry.JitterFraction < 0 || c.Retry.JitterFraction > 1 {
		errs = append(errs, "jitter_fraction must be between 0 and 1")
	}
	switch c.Cache.Backend {
	case "disk", "redis", "none":
	default:
		errs = append(errs, fmt.Sprintf("unknown cache backend: %s", c.Cache.Backend))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// =============================================================================
// 🔄 组件配置转换
// =============================================================================

// EngineConfig 转换为引擎运行时配置
func (c *Config) EngineConfig() workflow.EngineConfig {
	return workflow.EngineConfig{
		RunTimeout:       c.Engine.RunTimeout,
		ErrorCeiling:     c.Engine.ErrorCeiling,
		StageSoftTimeout: c.Engine.StageSoftTimeout,
		MaxReentries:     c.Engine.MaxReentries,
		MinQueryLength:   c.Engine.MinQueryLength,
	}
}

// RetryConfig 转换为重试运行时配置
func (c *Config) RetryConfig() workflow.RetryConfig {
	return workflow.RetryConfig{
		MaxAttempts:    c.Retry.MaxAttempts,
		BaseDelay:      c.Retry.BaseDelay,
		BackoffFactor:  c.Retry.BackoffFactor,
		MaxDelay:       c.Retry.MaxDelay,
		JitterFraction: c.Retry.JitterFraction,
	}
}

// GatherConfig 转换为收集阶段运行时配置
func (c *Config) GatherConfig() research.GatherConfig {
	return research.GatherConfig{
		BaseLimit: c.Gather.BaseLimit,
		CacheTTL:  c.Gather.CacheTTL,
	}
}

// DiskCacheConfig 转换为磁盘缓存运行时配置
func (c *Config) DiskCacheConfig() cache.DiskConfig {
	dc := cache.DefaultDiskConfig()
	if c.Cache.Disk.Dir != "" {
		dc.Dir = c.Cache.Disk.Dir
	}
	if c.Cache.Disk.CapacityBytes > 0 {
		dc.CapacityBytes = c.Cache.Disk.CapacityBytes
	}
	if c.Cache.Disk.DefaultTTL > 0 {
		dc.DefaultTTL = c.Cache.Disk.DefaultTTL
	}
	return dc
}

// RedisCacheConfig 转换为 Redis 缓存运行时配置
func (c *Config) RedisCacheConfig() cache.RedisConfig {
	rc := cache.DefaultRedisConfig()
	if c.Cache.Redis.Addr != "" {
		rc.Addr = c.Cache.Redis.Addr
	}
	rc.Password = c.Cache.Redis.Password
	rc.DB = c.Cache.Redis.DB
	if c.Cache.Redis.Prefix != "" {
		rc.KeyPrefix = c.Cache.Redis.Prefix
	}
	if c.Cache.Redis.DefaultTTL > 0 {
		rc.DefaultTTL = c.Cache.Redis.DefaultTTL
	}
	return rc
}

// RunStoreConfig 转换为运行历史运行时配置
func (c *Config) RunStoreConfig() runstore.Config {
	rc := runstore.DefaultConfig()
	if c.RunStore.Path != "" {
		rc.Path = c.RunStore.Path
	}
	return rc
}
