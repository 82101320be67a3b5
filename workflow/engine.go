package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/researchflow/internal/cache"
	"github.com/BaSui01/researchflow/internal/metrics"
	"github.com/BaSui01/researchflow/types"
)

// EngineConfig 引擎配置
type EngineConfig struct {
	// 整次运行的墙钟硬超时
	RunTimeout time.Duration `yaml:"run_timeout" json:"run_timeout"`
	// 全局错误上限，超过即强制终止
	ErrorCeiling int `yaml:"error_ceiling" json:"error_ceiling"`
	// 单阶段软超时：超出仅记录日志，不抢占
	StageSoftTimeout time.Duration `yaml:"stage_soft_timeout" json:"stage_soft_timeout"`
	// 重入预算：迭代护栏 = 阶段数 + 该值
	MaxReentries int `yaml:"max_reentries" json:"max_reentries"`
	// 查询最小长度
	MinQueryLength int `yaml:"min_query_length" json:"min_query_length"`
}

// DefaultEngineConfig 返回默认引擎配置
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		RunTimeout:       30 * time.Minute,
		ErrorCeiling:     5,
		StageSoftTimeout: 5 * time.Minute,
		MaxReentries:     5,
		MinQueryLength:   3,
	}
}

// Engine 工作流引擎
// 持有不可变的阶段图并驱动执行：反复调用 Router 决策、经
// RetryManager 调度被选中的阶段、合并返回状态，直到终止路由或
// 全局限制（错误上限、墙钟超时）触发。引擎边界以下不允许任何
// 失败抛给调用方。
type Engine struct {
	graph   *Graph
	router  *Router
	retry   *RetryManager
	config  EngineConfig
	logger  *zap.Logger
	cache   cache.Store        // optional, for the performance report
	metrics *metrics.Collector // optional
}

// NewEngine creates an engine over the given graph with a default router
// and retry manager derived from the config.
func NewEngine(graph *Graph, config EngineConfig, retryConfig RetryConfig, logger *zap.Logger) *Engine {
	defaults := DefaultEngineConfig()
	if config.RunTimeout <= 0 {
		config.RunTimeout = defaults.RunTimeout
	}
	if config.ErrorCeiling <= 0 {
		config.ErrorCeiling = defaults.ErrorCeiling
	}
	if config.MaxReentries <= 0 {
		config.MaxReentries = defaults.MaxReentries
	}
	if config.MinQueryLength <= 0 {
		config.MinQueryLength = defaults.MinQueryLength
	}

	return &Engine{
		graph:  graph,
		router: NewRouter(config.ErrorCeiling, logger),
		retry:  NewRetryManager(retryConfig, logger),
		config: config,
		logger: logger.With(zap.String("component", "engine")),
	}
}

// SetCacheStore injects the shared cache store. Used only to read stats
// into the performance report; stages receive the store separately.
func (e *Engine) SetCacheStore(store cache.Store) {
	e.cache = store
}

// SetMetrics injects the metrics collector into the engine and its
// retry manager.
func (e *Engine) SetMetrics(c *metrics.Collector) {
	e.metrics = c
	e.retry.SetMetrics(c)
}

// RetryManager exposes the retry manager for fallback registration.
func (e *Engine) RetryManager() *RetryManager {
	return e.retry
}

// Run executes the pipeline for one query and returns the final state.
//
// The only error return is inability to construct an initial state
// (invalid query or graph). Every failure after that point is folded
// into the returned state: the caller branches on WorkflowCompleted and
// Incomplete, not on errors.
func (e *Engine) Run(ctx context.Context, query string) (state *types.PipelineState, err error) {
	if len(strings.TrimSpace(query)) < e.config.MinQueryLength {
		return nil, types.NewError(types.ErrInvalidQuery,
			fmt.Sprintf("query must be at least %d characters", e.config.MinQueryLength))
	}
	if verr := e.graph.Validate(); verr != nil {
		return nil, verr
	}

	state = types.NewPipelineState(query)
	start := state.StartTime

	// Nothing escapes the engine boundary: a panic in the router or in
	// bookkeeping still yields a best-effort state.
	defer func() {
		if rec := recover(); rec != nil {
			e.logger.Error("run aborted by panic", zap.Any("panic", rec))
			state.AppendError("workflow failure: %v", rec)
			state.Incomplete = true
			state.WorkflowCompleted = false
			state.TotalExecutionTime = time.Since(start)
			e.synthesizeFallbackSummary(state, rec)
			err = nil
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, e.config.RunTimeout)
	defer cancel()

	e.logger.Info("starting run",
		zap.String("query", query),
		zap.Duration("timeout", e.config.RunTimeout),
		zap.Int("error_ceiling", e.config.ErrorCeiling))

	maxIterations := e.graph.StageCount() + e.config.MaxReentries

	for iteration := 0; ; iteration++ {
		if runCtx.Err() != nil || time.Since(start) > e.config.RunTimeout {
			state.AppendError("run timed out after %s", time.Since(start).Round(time.Millisecond))
			state.Incomplete = true
			break
		}
		if state.ErrorCount() > e.config.ErrorCeiling {
			e.logger.Warn("error ceiling exceeded, forcing terminal route",
				zap.Int("errors", state.ErrorCount()),
				zap.Int("ceiling", e.config.ErrorCeiling))
			state.Incomplete = true
			break
		}
		if iteration >= maxIterations {
			// The router's per-reason bound should make this unreachable.
			state.AppendError("iteration guard tripped after %d iterations", iteration)
			state.Incomplete = true
			break
		}

		decision := e.router.Decide(state)
		if decision.Terminal {
			e.logger.Info("terminal route", zap.String("reason", decision.Reason))
			if decision.Reason == ReasonErrorCeiling || decision.Reason == ReasonReentryRefused {
				state.Incomplete = true
			}
			break
		}

		stage, ok := e.graph.Stage(decision.Next)
		if !ok {
			state.AppendError("router chose unknown stage: %s", decision.Next)
			state.Incomplete = true
			break
		}

		stageStart := time.Now()
		state = e.retry.ExecuteWithRetry(runCtx, stage, state)
		elapsed := time.Since(stageStart)

		if e.config.StageSoftTimeout > 0 && elapsed > e.config.StageSoftTimeout {
			// Soft only: stage internals are opaque, no preemption.
			e.logger.Warn("stage exceeded soft timeout",
				zap.String("stage", string(decision.Next)),
				zap.Duration("elapsed", elapsed),
				zap.Duration("soft_timeout", e.config.StageSoftTimeout))
		}

		if e.metrics != nil {
			status := "ok"
			if _, recovered := state.Flags.RecoveryTypes[decision.Next]; recovered {
				status = "fallback"
			}
			e.metrics.RecordStageExecution(string(decision.Next), status, elapsed)
		}
	}

	state.TotalExecutionTime = time.Since(start)
	state.WorkflowCompleted = !state.Incomplete && allCanonicalComplete(state)
	state.SetArtifact(types.ArtifactPerformanceReport, e.performanceReport(runCtx, state))

	if e.metrics != nil {
		status := "completed"
		if !state.WorkflowCompleted {
			status = "partial"
		}
		e.metrics.RecordRun(status, state.TotalExecutionTime)
		if e.cache != nil {
			e.metrics.ObserveCacheStats(e.cache.Stats(runCtx))
		}
	}

	e.logger.Info("run finished",
		zap.Bool("completed", state.WorkflowCompleted),
		zap.Bool("incomplete", state.Incomplete),
		zap.Int("errors", state.ErrorCount()),
		zap.Duration("duration", state.TotalExecutionTime))

	return state, nil
}

func allCanonicalComplete(state *types.PipelineState) bool {
	for _, id := range types.CanonicalStages() {
		if !state.HasCompleted(id) {
			return false
		}
	}
	return true
}

// performanceReport reads state and cache stats into a report artifact.
// No business logic: pure summarization.
func (e *Engine) performanceReport(ctx context.Context, state *types.PipelineState) string {
	total := len(types.CanonicalStages())
	rate := float64(len(state.CompletedStages)) / float64(total) * 100

	var b strings.Builder
	b.WriteString("# Workflow Performance Report\n")
	fmt.Fprintf(&b, "**Query**: %s\n", state.Query)
	fmt.Fprintf(&b, "**Execution Time**: %s\n", state.TotalExecutionTime.Round(time.Millisecond))
	fmt.Fprintf(&b, "**Completion Rate**: %.1f%% (%d/%d stages)\n", rate, len(state.CompletedStages), total)
	fmt.Fprintf(&b, "**Errors**: %d\n", state.ErrorCount())

	if e.cache != nil {
		stats := e.cache.Stats(ctx)
		b.WriteString("\n## Cache\n")
		fmt.Fprintf(&b, "- Entries: %d\n", stats.EntryCount)
		fmt.Fprintf(&b, "- Size: %.2f MB\n", float64(stats.TotalBytes)/(1024*1024))
		fmt.Fprintf(&b, "- Hits/Misses: %d/%d\n", stats.Hits, stats.Misses)
	}

	b.WriteString("\n## Completed Stages\n")
	for _, id := range state.CompletedStages {
		fmt.Fprintf(&b, "- %s\n", id)
	}

	if state.ErrorCount() > 0 {
		b.WriteString("\n## Issues\n")
		limit := 3
		if len(state.Errors) < limit {
			limit = len(state.Errors)
		}
		for _, msg := range state.Errors[:limit] {
			fmt.Fprintf(&b, "- %s\n", msg)
		}
	}
	return b.String()
}

// synthesizeFallbackSummary leaves a minimal readable summary when a run
// is cut short by an unexpected failure.
func (e *Engine) synthesizeFallbackSummary(state *types.PipelineState, cause any) {
	if _, ok := state.Artifact(types.ArtifactExecutiveSummary); ok {
		return
	}
	state.SetArtifact(types.ArtifactExecutiveSummary, fmt.Sprintf(
		"# Incomplete Run: %s\n\nThe workflow could not complete due to an internal failure: %v\n\nCompleted stages: %d. Recorded errors: %d.\n",
		state.Query, cause, len(state.CompletedStages), state.ErrorCount()))
}
