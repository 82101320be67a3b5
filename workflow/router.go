package workflow

import (
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/researchflow/types"
)

// RouteDecision 路由决策
// 每次引擎迭代新鲜产出，仅被当次迭代消费，从不缓存、
// 从不存放在 PipelineState 上。
type RouteDecision struct {
	// Next is the stage to dispatch. Meaningless when Terminal is set.
	Next types.StageID
	// Terminal signals the run should stop.
	Terminal bool
	// Reason documents why this route was chosen.
	Reason string
}

// Terminal route reasons.
const (
	ReasonAllComplete      = "all canonical stages complete"
	ReasonDataInsufficient = "no source material gathered"
	ReasonErrorCeiling     = "global error ceiling exceeded"
	ReasonReentryRefused   = "repeated re-entry for same reason refused"
)

// RouteTo builds a dispatch decision.
func RouteTo(next types.StageID, reason string) RouteDecision {
	return RouteDecision{Next: next, Reason: reason}
}

// TerminalRoute builds a stop decision.
func TerminalRoute(reason string) RouteDecision {
	return RouteDecision{Terminal: true, Reason: reason}
}

// Router 路由器
// 对 PipelineState 的决策函数：不做 I/O、不触碰外部资源，只允许
// 在状态上写路由控制记录（请求消费标记、升级处理标记、重入计数）。
type Router struct {
	errorCeiling int
	logger       *zap.Logger
}

// NewRouter creates a router with the given global error ceiling.
func NewRouter(errorCeiling int, logger *zap.Logger) *Router {
	if errorCeiling <= 0 {
		errorCeiling = 5
	}
	return &Router{
		errorCeiling: errorCeiling,
		logger:       logger.With(zap.String("component", "router")),
	}
}

// requestTarget maps an assistance-request kind to the stage that can
// satisfy it.
func requestTarget(kind string) (types.StageID, bool) {
	switch kind {
	case types.RequestMoreSources:
		return types.StageGather, true
	case types.RequestDeeperAnalysis:
		return types.StageAnalyze, true
	case types.RequestStatisticalSummary:
		return types.StageProcess, true
	default:
		return "", false
	}
}

// escalationTarget maps an escalation reason to a recovery-capable stage.
func escalationTarget(reason string) (types.StageID, bool) {
	lower := strings.ToLower(reason)
	switch {
	case strings.Contains(lower, "source") || strings.Contains(lower, "data") || strings.Contains(lower, "paper"):
		return types.StageGather, true
	case strings.Contains(lower, "analy"):
		return types.StageAnalyze, true
	case strings.Contains(lower, "hypothes") || strings.Contains(lower, "synthes"):
		return types.StageSynthesize, true
	default:
		return "", false
	}
}

// Decide evaluates the routing policy in strict priority order:
//
//  1. unprocessed assistance request → stage that can satisfy it
//  2. unhandled high-severity escalation → recovery-capable stage
//  3. error ceiling exceeded → terminal
//  4. canonical order walk, gated on data sufficiency
//  5. everything complete → terminal
//
// Re-entry into a completed stage is granted at most once per unique
// reason; a second occurrence of the same reason terminates the run with
// the error logged, guaranteeing loop-free routing.
func (r *Router) Decide(state *types.PipelineState) RouteDecision {
	// 1. 未消费的协助请求
	if req, ok := state.UnprocessedRequest(); ok {
		req.Processed = true // consumed exactly once, as part of the decision

		target, known := requestTarget(req.Kind)
		if !known {
			if req.To != "" {
				target, known = req.To, true
			} else {
				r.logger.Warn("assistance request with no routable target, recorded no-op",
					zap.String("kind", req.Kind), zap.String("from", string(req.From)))
			}
		}
		if known {
			if decision, refused := r.grantReentry(state, target, "request:"+req.Kind); refused {
				return decision
			}
			r.logger.Info("routing to assistance target",
				zap.String("kind", req.Kind), zap.String("target", string(target)))
			return RouteTo(target, "assistance request: "+req.Kind)
		}
	}

	// 2. 未处理的高严重度升级
	if esc, ok := state.UnhandledEscalation(types.SeverityHigh); ok {
		esc.Handled = true
		if target, known := escalationTarget(esc.Reason); known {
			if decision, refused := r.grantReentry(state, target, "escalation:"+esc.Reason); refused {
				return decision
			}
			r.logger.Info("routing to escalation recovery stage",
				zap.String("reason", esc.Reason), zap.String("target", string(target)))
			return RouteTo(target, "escalation: "+esc.Reason)
		}
		r.logger.Warn("escalation implies no recovery stage, recorded no-op",
			zap.String("reason", esc.Reason))
	}

	// 3. 全局错误上限
	if state.ErrorCount() > r.errorCeiling {
		return TerminalRoute(ReasonErrorCeiling)
	}

	// 4. 按规范顺序推进，受数据充分性门限约束
	for _, id := range types.CanonicalStages() {
		if state.HasCompleted(id) {
			continue
		}
		if id != types.StageGather && state.HasCompleted(types.StageGather) && state.SourceCount() == 0 {
			// 下游阶段无法基于空材料产出有意义的结果
			state.AppendError("data insufficiency: gather produced no sources, stopping before %s", id)
			return TerminalRoute(ReasonDataInsufficient)
		}
		return RouteTo(id, "next canonical stage")
	}

	// 5. 全部完成
	return TerminalRoute(ReasonAllComplete)
}

// grantReentry applies the bounded re-entry rule. When the target stage
// has already completed, the first occurrence of a reason resets the
// stage for re-execution; the second occurrence terminates the run.
func (r *Router) grantReentry(state *types.PipelineState, target types.StageID, reason string) (RouteDecision, bool) {
	if !state.HasCompleted(target) {
		// Not a re-entry: the stage will run in due course anyway.
		return RouteDecision{}, false
	}

	if state.Control.ReentryCounts == nil {
		state.Control.ReentryCounts = make(map[string]int)
	}
	if state.Control.ReentryCounts[reason] >= 1 {
		state.AppendError("routing loop refused: stage %s already re-entered for %q", target, reason)
		r.logger.Warn("refusing repeated re-entry",
			zap.String("stage", string(target)), zap.String("reason", reason))
		return TerminalRoute(ReasonReentryRefused), true
	}

	state.Control.ReentryCounts[reason]++
	state.ResetCompleted(target)
	return RouteDecision{}, false
}
