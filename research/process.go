package research

import (
	"context"

	"go.uber.org/zap"

	"github.com/BaSui01/researchflow/types"
	"github.com/BaSui01/researchflow/workflow"
)

// =============================================================================
// 📊 process 阶段
// =============================================================================

// Insights 定量汇总
type Insights struct {
	SourceCount       int     `json:"source_count"`
	EstimatedAuthors  int     `json:"estimated_authors"`
	AvgAbstractLength float64 `json:"avg_abstract_length"`
	Mode              string  `json:"mode"`
}

// ProcessStage 数据处理阶段
// 对收集到的材料做确定性的定量汇总，并把结果作为共享资源
// 广播给下游阶段。
type ProcessStage struct {
	bus    *workflow.Bus
	logger *zap.Logger
}

// NewProcessStage 创建 process 阶段
func NewProcessStage(bus *workflow.Bus, logger *zap.Logger) *ProcessStage {
	return &ProcessStage{
		bus:    bus,
		logger: logger.With(zap.String("component", "stage_process")),
	}
}

func (s *ProcessStage) ID() types.StageID {
	return types.StageProcess
}

func (s *ProcessStage) Execute(ctx context.Context, state *types.PipelineState) (*types.PipelineState, error) {
	sources := sourcesFromState(state)

	insights := Insights{
		SourceCount:      len(sources),
		EstimatedAuthors: estimateAuthors(sources),
		Mode:             "standard",
	}
	if len(sources) > 0 {
		total := 0
		for _, src := range sources {
			total += len(src.Abstract)
		}
		insights.AvgAbstractLength = float64(total) / float64(len(sources))
	}

	state = s.bus.Send(types.NewMessage(types.StageProcess, types.StageSynthesize,
		types.MessageShareResource, map[string]any{
			types.PayloadResourceName:  types.ArtifactInsights,
			types.PayloadResourceValue: insights,
		}), state)

	s.logger.Info("quantitative processing completed",
		zap.Int("sources", insights.SourceCount),
		zap.Int("estimated_authors", insights.EstimatedAuthors))
	return state, nil
}

// estimateAuthors counts declared authors, assuming three per source when
// the metadata carries none.
func estimateAuthors(sources []types.Source) int {
	total := 0
	for _, src := range sources {
		if len(src.Authors) > 0 {
			total += len(src.Authors)
		} else {
			total += 3
		}
	}
	return total
}
