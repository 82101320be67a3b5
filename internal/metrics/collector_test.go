package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/researchflow/internal/cache"
)

func newTestCollector(t *testing.T) (*Collector, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewCollector("researchflow", reg, zap.NewNop()), reg
}

func TestRecordStageExecution(t *testing.T) {
	c, _ := newTestCollector(t)

	c.RecordStageExecution("gather", "ok", 120*time.Millisecond)
	c.RecordStageExecution("gather", "ok", 80*time.Millisecond)
	c.RecordStageExecution("analyze", "fallback", 2*time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.stageExecutionsTotal.WithLabelValues("gather", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.stageExecutionsTotal.WithLabelValues("analyze", "fallback")))
}

func TestRecordRetryAndFallback(t *testing.T) {
	c, _ := newTestCollector(t)

	c.RecordRetry("analyze")
	c.RecordRetry("analyze")
	c.RecordFallback("gather", "gather_fallback")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.stageRetriesTotal.WithLabelValues("analyze")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.stageFallbacksTotal.WithLabelValues("gather", "gather_fallback")))
}

func TestRecordRun(t *testing.T) {
	c, _ := newTestCollector(t)

	c.RecordRun("completed", 3*time.Second)
	c.RecordRun("partial", time.Second)
	c.RecordRun("partial", 2*time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.runsTotal.WithLabelValues("completed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.runsTotal.WithLabelValues("partial")))
}

func TestObserveCacheStats(t *testing.T) {
	c, _ := newTestCollector(t)

	c.ObserveCacheStats(cache.Stats{
		EntryCount:  7,
		TotalBytes:  2048,
		Utilization: 0.25,
		Hits:        10,
		Misses:      3,
		Evictions:   2,
		Expirations: 1,
	})

	assert.Equal(t, 7.0, testutil.ToFloat64(c.cacheEntries))
	assert.Equal(t, 2048.0, testutil.ToFloat64(c.cacheBytes))
	assert.Equal(t, 0.25, testutil.ToFloat64(c.cacheUtilization))
	assert.Equal(t, 10.0, testutil.ToFloat64(c.cacheHits))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.cacheMisses))

	// 快照刷新而非累加
	c.ObserveCacheStats(cache.Stats{EntryCount: 2})
	assert.Equal(t, 2.0, testutil.ToFloat64(c.cacheEntries))
}

func TestNilRegistererUsesDefault(t *testing.T) {
	// 只验证不会 panic；指标落在全局 Registerer 上，用独立
	// namespace 避免与其他测试冲突。
	require.NotPanics(t, func() {
		NewCollector("researchflow_default_test", nil, zap.NewNop())
	})
}
