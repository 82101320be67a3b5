package workflow

import (
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/researchflow/types"
)

// =============================================================================
// 📨 阶段间通信总线
// =============================================================================

// QualityPassThreshold is the minimum heuristic score for a pass verdict.
const QualityPassThreshold = 0.7

// qualityLengthNorm normalizes the length score; content around this many
// characters earns the full length component.
const qualityLengthNorm = 500

// qualityKeywords lists the required keyword categories per content type.
var qualityKeywords = map[string][]string{
	"hypothesis": {"measure", "compare", "evaluate", "test", "validate"},
	"analysis":   {"gap", "trend", "pattern", "relationship", "finding"},
}

// Bus 通信总线
// 按消息类型分发到确定性的状态变更处理器。总线只在 PipelineState
// 上记录意图，从不直接调用阶段——把记录的意图变为再调度是 Router
// 的唯一职责，这样路由策略保持集中且可独立测试。
//
// 消息从不被静默丢弃：每次 Send 要么产生对后续路由可见的状态变更，
// 要么留下一条显式的空操作日志。
type Bus struct {
	logger *zap.Logger
}

// NewBus creates a communication bus.
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{logger: logger.With(zap.String("component", "bus"))}
}

// Send dispatches one message into the state.
func (b *Bus) Send(msg types.Message, state *types.PipelineState) *types.PipelineState {
	b.logger.Info("message",
		zap.String("from", string(msg.Sender)),
		zap.String("to", string(msg.Recipient)),
		zap.String("type", string(msg.Type)))

	switch msg.Type {
	case types.MessageRequestAssistance:
		return b.handleAssistanceRequest(msg, state)
	case types.MessageEscalateTask:
		return b.handleEscalation(msg, state)
	case types.MessageQualityCheck:
		return b.handleQualityCheck(msg, state)
	case types.MessageShareResource:
		return b.handleShareResource(msg, state)
	default:
		b.logger.Warn("unknown message type, recorded no-op",
			zap.String("type", string(msg.Type)), zap.String("id", msg.ID))
		return state
	}
}

// handleAssistanceRequest appends an unprocessed request for the router's
// priority-1 rule to consume.
func (b *Bus) handleAssistanceRequest(msg types.Message, state *types.PipelineState) *types.PipelineState {
	kind, _ := msg.Payload[types.PayloadRequestKind].(string)

	req := types.AssistRequest{
		ID:        msg.ID,
		From:      msg.Sender,
		To:        msg.Recipient,
		Kind:      kind,
		Payload:   msg.Payload,
		CreatedAt: msg.Timestamp,
	}
	state.PendingRequests = append(state.PendingRequests, req)

	if kind == types.RequestMoreSources {
		state.Flags.NeedsMoreSources = true
		if count, ok := asInt(msg.Payload[types.PayloadAdditionalCount]); ok && count > 0 {
			state.Flags.AdditionalSources = count
		}
	}
	return state
}

// handleEscalation appends an escalation record; high severity flags the
// run for manual review.
func (b *Bus) handleEscalation(msg types.Message, state *types.PipelineState) *types.PipelineState {
	reason, _ := msg.Payload[types.PayloadReason].(string)
	severity := parseSeverity(msg.Payload[types.PayloadSeverity])

	state.Escalations = append(state.Escalations, types.Escalation{
		ID:        msg.ID,
		From:      msg.Sender,
		Reason:    reason,
		Severity:  severity,
		CreatedAt: msg.Timestamp,
	})

	if severity == types.SeverityHigh {
		state.Flags.ManualReviewRequired = true
		b.logger.Warn("high-severity escalation",
			zap.String("from", string(msg.Sender)), zap.String("reason", reason))
	}
	return state
}

// handleQualityCheck scores the content with declared heuristics and
// appends a pass/fail assessment.
func (b *Bus) handleQualityCheck(msg types.Message, state *types.PipelineState) *types.PipelineState {
	checkType, _ := msg.Payload[types.PayloadCheckType].(string)
	content, _ := msg.Payload[types.PayloadContent].(string)

	score := QualityScore(content, checkType)
	passed := score >= QualityPassThreshold

	state.QualityChecks = append(state.QualityChecks, types.QualityAssessment{
		Checker:     msg.Recipient,
		ContentType: checkType,
		Score:       score,
		Passed:      passed,
	})
	if !passed {
		state.Flags.QualityBelowThreshold = true
	}
	return state
}

// handleShareResource publishes the payload as a named artifact.
func (b *Bus) handleShareResource(msg types.Message, state *types.PipelineState) *types.PipelineState {
	name, _ := msg.Payload[types.PayloadResourceName].(string)
	if name == "" {
		b.logger.Warn("share-resource without a name, recorded no-op",
			zap.String("from", string(msg.Sender)), zap.String("id", msg.ID))
		return state
	}
	state.SetArtifact(name, msg.Payload[types.PayloadResourceValue])
	return state
}

// QualityScore computes the heuristic content score: a length component
// normalized at qualityLengthNorm characters, averaged with the fraction
// of required keyword categories present (when the content type declares
// any).
func QualityScore(content, checkType string) float64 {
	if content == "" {
		return 0
	}

	lengthScore := float64(len(content)) / qualityLengthNorm
	if lengthScore > 1 {
		lengthScore = 1
	}

	keywords, ok := qualityKeywords[checkType]
	if !ok {
		return lengthScore
	}

	lower := strings.ToLower(content)
	found := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			found++
		}
	}
	keywordScore := float64(found) / float64(len(keywords))
	return (lengthScore + keywordScore) / 2
}

func parseSeverity(raw any) types.Severity {
	s, _ := raw.(string)
	switch types.Severity(strings.ToLower(s)) {
	case types.SeverityHigh:
		return types.SeverityHigh
	case types.SeverityMedium:
		return types.SeverityMedium
	case types.SeverityLow:
		return types.SeverityLow
	default:
		return types.SeverityMedium
	}
}

func asInt(raw any) (int, bool) {
	switch v := raw.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
