package research

import (
	"context"

	"go.uber.org/zap"

	"github.com/BaSui01/researchflow/types"
)

// =============================================================================
// 📝 report 阶段
// =============================================================================

// ReportStage 报告阶段
type ReportStage struct {
	reporter Reporter
	logger   *zap.Logger
}

// NewReportStage 创建 report 阶段
func NewReportStage(reporter Reporter, logger *zap.Logger) *ReportStage {
	return &ReportStage{
		reporter: reporter,
		logger:   logger.With(zap.String("component", "stage_report")),
	}
}

func (s *ReportStage) ID() types.StageID {
	return types.StageReport
}

func (s *ReportStage) Execute(ctx context.Context, state *types.PipelineState) (*types.PipelineState, error) {
	summary, err := s.reporter.ExecutiveSummary(ctx, state)
	if err != nil {
		return nil, types.NewError(types.ErrStageTransient, "report generation failed").
			WithStage(types.StageReport).WithRetryable(true).WithCause(err)
	}

	state.SetArtifact(types.ArtifactExecutiveSummary, summary)
	s.logger.Info("executive summary generated", zap.Int("length", len(summary)))
	return state, nil
}
