package research

import (
	"context"
	"fmt"

	"github.com/BaSui01/researchflow/types"
	"github.com/BaSui01/researchflow/workflow"
)

// =============================================================================
// 🛠️ 阶段兜底产物
// =============================================================================
//
// 每个兜底都是确定性的：不做 I/O，只从已有状态合成最小有效
// 产物，保证下游拿到类型正确的输入而不是缺失。

// GatherFallback 收集兜底：单条占位来源
func GatherFallback(state *types.PipelineState, lastErr error) *types.PipelineState {
	state.SetArtifact(types.ArtifactSources, []types.Source{{
		Title:    "Fallback Research Paper on Topic",
		Authors:  []string{"Recovery Author"},
		Abstract: fmt.Sprintf("This is a fallback paper for the query: %s", state.Query),
		URL:      "http://example.com/fallback",
		Origin:   "recovery_system",
	}})
	return state
}

// AnalyzeFallback 分析兜底：规则主题与固定空白
func AnalyzeFallback(state *types.PipelineState, lastErr error) *types.PipelineState {
	analysis, _ := OfflineAnalyzer{}.Analyze(context.Background(), state.Query, sourcesFromState(state))
	state.SetArtifact(types.ArtifactThemes, analysis.Themes)
	state.SetArtifact(types.ArtifactGaps, analysis.Gaps)
	state.SetArtifact("analysis_summary",
		fmt.Sprintf("Recovery analysis completed for %d sources", state.SourceCount()))
	return state
}

// ProcessFallback 处理兜底：基础计数汇总
func ProcessFallback(state *types.PipelineState, lastErr error) *types.PipelineState {
	sources := sourcesFromState(state)
	state.SetArtifact(types.ArtifactInsights, Insights{
		SourceCount:      len(sources),
		EstimatedAuthors: len(sources) * 3,
		Mode:             "recovery",
	})
	return state
}

// SynthesizeFallback 合成兜底：模板假设
func SynthesizeFallback(state *types.PipelineState, lastErr error) *types.PipelineState {
	lead := "the field"
	if themes, ok := state.Artifact(types.ArtifactThemes); ok {
		if list, ok := themes.([]string); ok && len(list) > 0 {
			lead = list[0]
		}
	}
	state.SetArtifact(types.ArtifactHypotheses, []Hypothesis{
		{
			Statement: fmt.Sprintf("Advances in %s will improve %s", lead, state.Query),
			Rationale: "Based on current research trends",
			Priority:  "High",
			Origin:    "recovery_system",
		},
		{
			Statement: fmt.Sprintf("Integration of multiple approaches in %s shows promising results", state.Query),
			Rationale: "Cross-disciplinary potential identified",
			Priority:  "Medium",
			Origin:    "recovery_system",
		},
	})
	return state
}

// ReportFallback 报告兜底：应急摘要
func ReportFallback(state *types.PipelineState, lastErr error) *types.PipelineState {
	_, hasThemes := state.Artifact(types.ArtifactThemes)
	_, hasHypotheses := state.Artifact(types.ArtifactHypotheses)

	summary := fmt.Sprintf(`# Recovery Research Summary: %s

## Overview
Emergency analysis completed for %d sources.

## Status
- Literature collection: %s
- Analysis: %s
- Hypothesis generation: %s

## Next Steps
- Manual review recommended
- Consider re-running with adjusted parameters
`,
		state.Query,
		state.SourceCount(),
		statusMark(state.SourceCount() > 0),
		statusMark(hasThemes),
		statusMark(hasHypotheses))

	state.SetArtifact(types.ArtifactExecutiveSummary, summary)
	return state
}

func statusMark(ok bool) string {
	if ok {
		return "✅"
	}
	return "❌"
}

// RegisterFallbacks installs every stage fallback on the retry manager.
func RegisterFallbacks(rm *workflow.RetryManager) {
	rm.RegisterFallback(types.StageGather, "gather_fallback", GatherFallback)
	rm.RegisterFallback(types.StageAnalyze, "analysis_fallback", AnalyzeFallback)
	rm.RegisterFallback(types.StageProcess, "data_analysis_fallback", ProcessFallback)
	rm.RegisterFallback(types.StageSynthesize, "hypothesis_fallback", SynthesizeFallback)
	rm.RegisterFallback(types.StageReport, "publication_fallback", ReportFallback)
}
