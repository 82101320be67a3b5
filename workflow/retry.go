package workflow

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/researchflow/internal/metrics"
	"github.com/BaSui01/researchflow/types"
)

// RetryConfig 重试配置
type RetryConfig struct {
	// 最大尝试次数
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts"`
	// 基础延迟
	BaseDelay time.Duration `yaml:"base_delay" json:"base_delay"`
	// 退避因子
	BackoffFactor float64 `yaml:"backoff_factor" json:"backoff_factor"`
	// 最大延迟
	MaxDelay time.Duration `yaml:"max_delay" json:"max_delay"`
	// 抖动比例（延迟的固定小数部分）
	JitterFraction float64 `yaml:"jitter_fraction" json:"jitter_fraction"`
}

// DefaultRetryConfig 返回默认重试配置
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		BaseDelay:      time.Second,
		BackoffFactor:  2.0,
		MaxDelay:       10 * time.Second,
		JitterFraction: 0.2,
	}
}

// fallbackEntry pairs a producer with its recorded recovery type.
type fallbackEntry struct {
	recoveryType string
	producer     FallbackProducer
}

// RetryManager 重试与恢复管理器
// 包裹单个阶段的执行：有界重试（指数退避 + 抖动），重试耗尽后用
// 确定性的兜底产物替代，流水线降级继续。阶段抛出的任何失败都被
// 捕获计数，从不越过本组件向外传播。
type RetryManager struct {
	config    RetryConfig
	fallbacks map[types.StageID]fallbackEntry
	logger    *zap.Logger
	metrics   *metrics.Collector // optional

	// sleep is swapped in tests to avoid real backoff waits.
	sleep func(ctx context.Context, d time.Duration)
}

// NewRetryManager creates a retry manager.
func NewRetryManager(config RetryConfig, logger *zap.Logger) *RetryManager {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultRetryConfig().MaxAttempts
	}
	if config.BackoffFactor <= 1 {
		config.BackoffFactor = DefaultRetryConfig().BackoffFactor
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = DefaultRetryConfig().BaseDelay
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = DefaultRetryConfig().MaxDelay
	}
	if config.JitterFraction < 0 {
		config.JitterFraction = 0
	}
	return &RetryManager{
		config:    config,
		fallbacks: make(map[types.StageID]fallbackEntry),
		logger:    logger.With(zap.String("component", "retry_manager")),
		sleep:     sleepContext,
	}
}

// SetMetrics injects the metrics collector.
func (m *RetryManager) SetMetrics(c *metrics.Collector) {
	m.metrics = c
}

// RegisterFallback installs the deterministic fallback producer for a
// stage. recoveryType is recorded on the state when the fallback fires.
func (m *RetryManager) RegisterFallback(id types.StageID, recoveryType string, producer FallbackProducer) {
	m.fallbacks[id] = fallbackEntry{recoveryType: recoveryType, producer: producer}
}

// ExecuteWithRetry runs the stage up to MaxAttempts times, then falls
// back. Whatever happens, the returned state contains the stage id in
// CompletedStages exactly once, so callers never special-case "did it
// really succeed".
func (m *RetryManager) ExecuteWithRetry(ctx context.Context, stage Stage, state *types.PipelineState) *types.PipelineState {
	id := stage.ID()
	var lastErr error

	for attempt := 1; attempt <= m.config.MaxAttempts; attempt++ {
		m.logger.Info("executing stage",
			zap.String("stage", string(id)),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", m.config.MaxAttempts))

		result, err := m.safeExecute(ctx, stage, state)
		if err == nil {
			delete(state.RetryCounts, id)
			result.MarkCompleted(id)
			if attempt > 1 {
				m.logger.Info("stage recovered after retry",
					zap.String("stage", string(id)), zap.Int("attempt", attempt))
			}
			return result
		}

		lastErr = err
		state.RetryCounts[id] = attempt
		state.AppendError("stage %s attempt %d/%d failed: %v", id, attempt, m.config.MaxAttempts, err)
		m.logger.Warn("stage attempt failed",
			zap.String("stage", string(id)),
			zap.Int("attempt", attempt),
			zap.Error(err))

		if attempt < m.config.MaxAttempts {
			if m.metrics != nil {
				m.metrics.RecordRetry(string(id))
			}
			m.sleep(ctx, m.backoffDelay(attempt))
		}
	}

	return m.applyFallback(id, state, lastErr)
}

// safeExecute invokes the stage and converts panics into errors so a
// misbehaving collaborator counts as a failed attempt, not a crash.
func (m *RetryManager) safeExecute(ctx context.Context, stage Stage, state *types.PipelineState) (result *types.PipelineState, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = types.NewError(types.ErrStageTransient,
				fmt.Sprintf("stage %s panicked: %v", stage.ID(), rec)).
				WithStage(stage.ID()).WithRetryable(true)
		}
	}()

	result, err = stage.Execute(ctx, state)
	if err == nil && result == nil {
		result = state
	}
	return result, err
}

// backoffDelay computes base * factor^(attempt-1) capped at MaxDelay,
// plus jitter inside a fixed fraction of the delay.
func (m *RetryManager) backoffDelay(attempt int) time.Duration {
	delay := time.Duration(float64(m.config.BaseDelay) * math.Pow(m.config.BackoffFactor, float64(attempt-1)))
	if delay > m.config.MaxDelay {
		delay = m.config.MaxDelay
	}
	jitter := time.Duration(rand.Float64() * m.config.JitterFraction * float64(delay))
	return delay + jitter
}

// applyFallback substitutes the stage's deterministic fallback artifact
// so downstream stages receive well-typed input instead of absence.
func (m *RetryManager) applyFallback(id types.StageID, state *types.PipelineState, lastErr error) *types.PipelineState {
	entry, ok := m.fallbacks[id]
	if !ok {
		entry = fallbackEntry{recoveryType: "generic", producer: genericFallback}
	}

	m.logger.Warn("retries exhausted, applying fallback",
		zap.String("stage", string(id)),
		zap.String("recovery_type", entry.recoveryType),
		zap.Error(lastErr))

	if m.metrics != nil {
		m.metrics.RecordFallback(string(id), entry.recoveryType)
	}

	state = entry.producer(state, lastErr)
	if state.Flags.RecoveryTypes == nil {
		state.Flags.RecoveryTypes = make(map[types.StageID]string)
	}
	state.Flags.RecoveryApplied = true
	state.Flags.RecoveryTypes[id] = entry.recoveryType
	state.MarkCompleted(id)
	return state
}

// genericFallback records the recovery without fabricating artifacts.
func genericFallback(state *types.PipelineState, lastErr error) *types.PipelineState {
	state.AppendError("generic recovery applied: %v", lastErr)
	return state
}

// sleepContext waits for the duration or until the context is done.
func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
