package research

import (
	"context"

	"go.uber.org/zap"

	"github.com/BaSui01/researchflow/types"
	"github.com/BaSui01/researchflow/workflow"
)

// =============================================================================
// 💡 synthesize 阶段
// =============================================================================

// SynthesizeStage 假设合成阶段
// 基于分析产物生成可检验假设并送质量检查；缺少分析产物时升级
// 而不是凭空编造。
type SynthesizeStage struct {
	synthesizer Synthesizer
	bus         *workflow.Bus
	logger      *zap.Logger
}

// NewSynthesizeStage 创建 synthesize 阶段
func NewSynthesizeStage(synthesizer Synthesizer, bus *workflow.Bus, logger *zap.Logger) *SynthesizeStage {
	return &SynthesizeStage{
		synthesizer: synthesizer,
		bus:         bus,
		logger:      logger.With(zap.String("component", "stage_synthesize")),
	}
}

func (s *SynthesizeStage) ID() types.StageID {
	return types.StageSynthesize
}

func (s *SynthesizeStage) Execute(ctx context.Context, state *types.PipelineState) (*types.PipelineState, error) {
	analysis := analysisFromState(state)
	if len(analysis.Themes) == 0 {
		// 升级原因关键词指向 analyze，让路由器决定是否重入
		state = s.bus.Send(types.NewMessage(types.StageSynthesize, types.StageAnalyze,
			types.MessageEscalateTask, map[string]any{
				types.PayloadReason:   "analysis themes missing, synthesis has no foundation",
				types.PayloadSeverity: string(types.SeverityHigh),
			}), state)
	}

	hypotheses, err := s.synthesizer.Synthesize(ctx, state.Query, analysis)
	if err != nil {
		return nil, types.NewError(types.ErrStageTransient, "hypothesis synthesis failed").
			WithStage(types.StageSynthesize).WithRetryable(true).WithCause(err)
	}

	state.SetArtifact(types.ArtifactHypotheses, hypotheses)

	if len(hypotheses) > 0 {
		state = s.bus.Send(types.NewMessage(types.StageSynthesize, types.StageReport,
			types.MessageQualityCheck, map[string]any{
				types.PayloadCheckType: "hypothesis",
				types.PayloadContent:   hypothesesText(hypotheses),
			}), state)
	}

	s.logger.Info("synthesis completed", zap.Int("hypotheses", len(hypotheses)))
	return state, nil
}

func analysisFromState(state *types.PipelineState) *Analysis {
	analysis := &Analysis{}
	if themes, ok := state.Artifact(types.ArtifactThemes); ok {
		if list, ok := themes.([]string); ok {
			analysis.Themes = list
		}
	}
	if gaps, ok := state.Artifact(types.ArtifactGaps); ok {
		if list, ok := gaps.([]Gap); ok {
			analysis.Gaps = list
		}
	}
	if summary, ok := state.Artifact("analysis_summary"); ok {
		if text, ok := summary.(string); ok {
			analysis.Summary = text
		}
	}
	return analysis
}

func hypothesesText(hypotheses []Hypothesis) string {
	text := ""
	for _, h := range hypotheses {
		text += h.Statement + " " + h.Rationale + "\n"
	}
	return text
}
