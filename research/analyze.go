package research

import (
	"context"

	"go.uber.org/zap"

	"github.com/BaSui01/researchflow/types"
	"github.com/BaSui01/researchflow/workflow"
)

// =============================================================================
// 🔬 analyze 阶段
// =============================================================================

// minSourcesForAnalysis 低于该数量时向 gather 请求补充来源
const minSourcesForAnalysis = 3

// AnalyzeStage 分析阶段
// 提炼主题与研究空白；材料过少时通过总线登记补充请求，并把
// 分析摘要送质量检查。
type AnalyzeStage struct {
	analyzer Analyzer
	bus      *workflow.Bus
	logger   *zap.Logger
}

// NewAnalyzeStage 创建 analyze 阶段
func NewAnalyzeStage(analyzer Analyzer, bus *workflow.Bus, logger *zap.Logger) *AnalyzeStage {
	return &AnalyzeStage{
		analyzer: analyzer,
		bus:      bus,
		logger:   logger.With(zap.String("component", "stage_analyze")),
	}
}

func (s *AnalyzeStage) ID() types.StageID {
	return types.StageAnalyze
}

func (s *AnalyzeStage) Execute(ctx context.Context, state *types.PipelineState) (*types.PipelineState, error) {
	sources := sourcesFromState(state)

	analysis, err := s.analyzer.Analyze(ctx, state.Query, sources)
	if err != nil {
		return nil, types.NewError(types.ErrStageTransient, "analysis failed").
			WithStage(types.StageAnalyze).WithRetryable(true).WithCause(err)
	}

	state.SetArtifact(types.ArtifactThemes, analysis.Themes)
	state.SetArtifact(types.ArtifactGaps, analysis.Gaps)
	state.SetArtifact("analysis_summary", analysis.Summary)

	if len(sources) > 0 && len(sources) < minSourcesForAnalysis {
		s.logger.Info("source coverage thin, requesting more",
			zap.Int("sources", len(sources)), zap.Int("min", minSourcesForAnalysis))
		state = s.bus.Send(types.NewMessage(types.StageAnalyze, types.StageGather,
			types.MessageRequestAssistance, map[string]any{
				types.PayloadRequestKind:     types.RequestMoreSources,
				types.PayloadAdditionalCount: minSourcesForAnalysis - len(sources) + 2,
			}), state)
	}

	state = s.bus.Send(types.NewMessage(types.StageAnalyze, types.StageSynthesize,
		types.MessageQualityCheck, map[string]any{
			types.PayloadCheckType: "analysis",
			types.PayloadContent:   analysis.Summary,
		}), state)

	s.logger.Info("analysis completed",
		zap.Int("themes", len(analysis.Themes)),
		zap.Int("gaps", len(analysis.Gaps)))
	return state, nil
}

// sourcesFromState normalizes the sources artifact regardless of whether a
// stage, a fallback, or a deserialized snapshot produced it.
func sourcesFromState(state *types.PipelineState) []types.Source {
	payload, ok := state.Artifact(types.ArtifactSources)
	if !ok {
		return nil
	}
	switch v := payload.(type) {
	case []types.Source:
		return v
	case []any:
		sources := make([]types.Source, 0, len(v))
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			src := types.Source{}
			if title, ok := m["title"].(string); ok {
				src.Title = title
			}
			if abstract, ok := m["abstract"].(string); ok {
				src.Abstract = abstract
			}
			if url, ok := m["url"].(string); ok {
				src.URL = url
			}
			if origin, ok := m["origin"].(string); ok {
				src.Origin = origin
			}
			sources = append(sources, src)
		}
		return sources
	default:
		return nil
	}
}
