package workflow

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/researchflow/types"
)

func newTestRetryManager() *RetryManager {
	m := NewRetryManager(DefaultRetryConfig(), zap.NewNop())
	m.sleep = func(ctx context.Context, d time.Duration) {} // no real backoff in tests
	return m
}

// countingStage fails until the configured number of calls, then succeeds.
type countingStage struct {
	id        types.StageID
	calls     atomic.Int32
	failUntil int32
}

func (s *countingStage) ID() types.StageID { return s.id }

func (s *countingStage) Execute(ctx context.Context, state *types.PipelineState) (*types.PipelineState, error) {
	n := s.calls.Add(1)
	if n <= s.failUntil {
		return nil, errors.New("transient collaborator failure")
	}
	return state, nil
}

func TestExecuteWithRetrySuccessFirstTry(t *testing.T) {
	m := newTestRetryManager()
	stage := &countingStage{id: types.StageGather}
	state := types.NewPipelineState("q")

	result := m.ExecuteWithRetry(context.Background(), stage, state)

	assert.Equal(t, int32(1), stage.calls.Load())
	assert.True(t, result.HasCompleted(types.StageGather))
	assert.Empty(t, result.RetryCounts)
	assert.Empty(t, result.Errors)
	assert.False(t, result.Flags.RecoveryApplied)
}

func TestExecuteWithRetryRecoversAfterFailures(t *testing.T) {
	m := newTestRetryManager()
	stage := &countingStage{id: types.StageAnalyze, failUntil: 2}
	state := types.NewPipelineState("q")

	result := m.ExecuteWithRetry(context.Background(), stage, state)

	assert.Equal(t, int32(3), stage.calls.Load())
	assert.True(t, result.HasCompleted(types.StageAnalyze))
	// 成功后重试计数清零，错误记录保留
	assert.NotContains(t, result.RetryCounts, types.StageAnalyze)
	assert.Len(t, result.Errors, 2)
	assert.False(t, result.Flags.RecoveryApplied)
	assert.NotContains(t, result.Flags.RecoveryTypes, types.StageAnalyze)
}

func TestExecuteWithRetryExhaustionAppliesFallback(t *testing.T) {
	m := newTestRetryManager()
	m.RegisterFallback(types.StageGather, "gather_fallback",
		func(state *types.PipelineState, lastErr error) *types.PipelineState {
			state.SetArtifact(types.ArtifactSources, []any{map[string]any{"title": "placeholder"}})
			return state
		})

	stage := &countingStage{id: types.StageGather, failUntil: 99}
	state := types.NewPipelineState("q")

	result := m.ExecuteWithRetry(context.Background(), stage, state)

	// 尝试次数严格等于上限
	assert.Equal(t, int32(3), stage.calls.Load())
	assert.Equal(t, 3, result.RetryCounts[types.StageGather])
	assert.Len(t, result.Errors, 3)

	// 兜底替代后阶段照常视为完成，且只出现一次
	assert.Equal(t, []types.StageID{types.StageGather}, result.CompletedStages)
	assert.True(t, result.Flags.RecoveryApplied)
	assert.Equal(t, "gather_fallback", result.Flags.RecoveryTypes[types.StageGather])
	assert.Equal(t, 1, result.SourceCount())
}

func TestExecuteWithRetryGenericFallback(t *testing.T) {
	m := newTestRetryManager()
	stage := &countingStage{id: types.StageProcess, failUntil: 99}
	state := types.NewPipelineState("q")

	result := m.ExecuteWithRetry(context.Background(), stage, state)

	assert.True(t, result.HasCompleted(types.StageProcess))
	assert.Equal(t, "generic", result.Flags.RecoveryTypes[types.StageProcess])
	// 3 次尝试失败 + 1 条通用恢复记录
	assert.Len(t, result.Errors, 4)
}

func TestExecuteWithRetryPanicCountsAsFailedAttempt(t *testing.T) {
	m := newTestRetryManager()
	calls := 0
	stage := NewFuncStage(types.StageSynthesize, func(ctx context.Context, state *types.PipelineState) (*types.PipelineState, error) {
		calls++
		if calls == 1 {
			panic("collaborator bug")
		}
		return state, nil
	})
	state := types.NewPipelineState("q")

	var result *types.PipelineState
	require.NotPanics(t, func() {
		result = m.ExecuteWithRetry(context.Background(), stage, state)
	})

	assert.Equal(t, 2, calls)
	assert.True(t, result.HasCompleted(types.StageSynthesize))
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "panicked")
}

func TestExecuteWithRetryNilResultKeepsState(t *testing.T) {
	m := newTestRetryManager()
	stage := NewFuncStage(types.StageReport, func(ctx context.Context, state *types.PipelineState) (*types.PipelineState, error) {
		return nil, nil // stage mutated in place and returned nothing
	})
	state := types.NewPipelineState("q")

	result := m.ExecuteWithRetry(context.Background(), stage, state)
	assert.Same(t, state, result)
	assert.True(t, result.HasCompleted(types.StageReport))
}

func TestBackoffDelayBounds(t *testing.T) {
	config := RetryConfig{
		MaxAttempts:    5,
		BaseDelay:      100 * time.Millisecond,
		BackoffFactor:  2.0,
		MaxDelay:       400 * time.Millisecond,
		JitterFraction: 0.2,
	}
	m := NewRetryManager(config, zap.NewNop())

	// attempt 1: 100ms, attempt 2: 200ms, attempt 3+: capped at 400ms,
	// each plus at most 20% jitter
	for attempt, base := range map[int]time.Duration{
		1: 100 * time.Millisecond,
		2: 200 * time.Millisecond,
		3: 400 * time.Millisecond,
		4: 400 * time.Millisecond,
	} {
		for i := 0; i < 20; i++ {
			d := m.backoffDelay(attempt)
			assert.GreaterOrEqual(t, d, base, "attempt %d", attempt)
			assert.LessOrEqual(t, d, base+base/5, "attempt %d", attempt)
		}
	}
}

func TestSleepContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	sleepContext(ctx, time.Minute)
	assert.Less(t, time.Since(start), time.Second, "cancelled context must not block")
}
