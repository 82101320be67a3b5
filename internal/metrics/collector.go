// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/BaSui01/researchflow/internal/cache"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// 阶段指标
	stageExecutionsTotal   *prometheus.CounterVec
	stageExecutionDuration *prometheus.HistogramVec

	// 重试与恢复指标
	stageRetriesTotal   *prometheus.CounterVec
	stageFallbacksTotal *prometheus.CounterVec

	// 运行指标
	runsTotal   *prometheus.CounterVec
	runDuration *prometheus.HistogramVec

	// 缓存指标（来自缓存层的统计快照）
	cacheEntries     prometheus.Gauge
	cacheBytes       prometheus.Gauge
	cacheUtilization prometheus.Gauge
	cacheHits        prometheus.Gauge
	cacheMisses      prometheus.Gauge
	cacheEvictions   prometheus.Gauge
	cacheExpirations prometheus.Gauge

	logger *zap.Logger
}

// NewCollector 创建指标收集器
// reg 为 nil 时注册到全局 DefaultRegisterer。
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// 阶段指标
	c.stageExecutionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_executions_total",
			Help:      "Total number of stage executions",
		},
		[]string{"stage", "status"}, // status: ok, fallback
	)

	c.stageExecutionDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_execution_duration_seconds",
			Help:      "Stage execution duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"stage"},
	)

	// 重试与恢复指标
	c.stageRetriesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_retries_total",
			Help:      "Total number of failed stage attempts that were retried",
		},
		[]string{"stage"},
	)

	c.stageFallbacksTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_fallbacks_total",
			Help:      "Total number of fallback substitutions after retry exhaustion",
		},
		[]string{"stage", "recovery_type"},
	)

	// 运行指标
	c.runsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total number of workflow runs",
		},
		[]string{"status"}, // status: completed, partial
	)

	c.runDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Workflow run duration in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"status"},
	)

	// 缓存指标
	c.cacheEntries = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "cache_entries",
		Help:      "Number of live cache entries",
	})
	c.cacheBytes = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "cache_bytes",
		Help:      "Total bytes of cached payloads",
	})
	c.cacheUtilization = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "cache_utilization_ratio",
		Help:      "Cache size relative to capacity",
	})
	c.cacheHits = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "cache_hits_total",
		Help:      "Cumulative cache hits reported by the store",
	})
	c.cacheMisses = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "cache_misses_total",
		Help:      "Cumulative cache misses reported by the store",
	})
	c.cacheEvictions = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "cache_evictions_total",
		Help:      "Cumulative cache evictions reported by the store",
	})
	c.cacheExpirations = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "cache_expirations_total",
		Help:      "Cumulative cache expirations reported by the store",
	})

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 阶段指标记录
// =============================================================================

// RecordStageExecution 记录阶段执行
func (c *Collector) RecordStageExecution(stage, status string, duration time.Duration) {
	c.stageExecutionsTotal.WithLabelValues(stage, status).Inc()
	c.stageExecutionDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordRetry 记录一次失败后的重试
func (c *Collector) RecordRetry(stage string) {
	c.stageRetriesTotal.WithLabelValues(stage).Inc()
}

// RecordFallback 记录一次兜底替代
func (c *Collector) RecordFallback(stage, recoveryType string) {
	c.stageFallbacksTotal.WithLabelValues(stage, recoveryType).Inc()
}

// =============================================================================
// 🏁 运行指标记录
// =============================================================================

// RecordRun 记录一次完整运行
func (c *Collector) RecordRun(status string, duration time.Duration) {
	c.runsTotal.WithLabelValues(status).Inc()
	c.runDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// =============================================================================
// 💾 缓存指标记录
// =============================================================================

// ObserveCacheStats 用缓存层的统计快照整体刷新缓存指标
func (c *Collector) ObserveCacheStats(stats cache.Stats) {
	c.cacheEntries.Set(float64(stats.EntryCount))
	c.cacheBytes.Set(float64(stats.TotalBytes))
	c.cacheUtilization.Set(stats.Utilization)
	c.cacheHits.Set(float64(stats.Hits))
	c.cacheMisses.Set(float64(stats.Misses))
	c.cacheEvictions.Set(float64(stats.Evictions))
	c.cacheExpirations.Set(float64(stats.Expirations))
}
