package research

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BaSui01/researchflow/types"
)

// =============================================================================
// 📴 离线协作者实现
// =============================================================================
//
// 确定性、无网络依赖：相同输入永远产出相同结果，既是 CLI 的
// 默认后端，也是端到端测试的固定基准。

// OfflineSearcher 离线文献检索
type OfflineSearcher struct{}

func (OfflineSearcher) Search(ctx context.Context, query string, limit int) ([]types.Source, error) {
	if limit <= 0 {
		limit = 5
	}
	sources := make([]types.Source, 0, limit)
	for i := 0; i < limit; i++ {
		sources = append(sources, types.Source{
			Title:    fmt.Sprintf("Study %d on %s", i+1, query),
			Authors:  []string{fmt.Sprintf("Author %d", i+1)},
			Abstract: fmt.Sprintf("An offline reference abstract covering aspect %d of %s.", i+1, query),
			URL:      fmt.Sprintf("offline://papers/%d", i+1),
			Origin:   "offline_catalog",
		})
	}
	return sources, nil
}

// OfflineAnalyzer 离线规则分析
// 主题取查询中长度超过 4 的词（recovery 模式的同款启发式）。
type OfflineAnalyzer struct{}

func (OfflineAnalyzer) Analyze(ctx context.Context, query string, sources []types.Source) (*Analysis, error) {
	var themes []string
	for _, word := range strings.Fields(query) {
		if len(word) > 4 {
			themes = append(themes, titleWord(word))
		}
	}
	if len(themes) == 0 {
		themes = []string{"Data Analysis", "Research Methods"}
	}

	gaps := []Gap{
		{Description: fmt.Sprintf("Limited research on practical applications of %s", query), Impact: "High"},
		{Description: "Need for more comprehensive evaluation methods", Impact: "Medium"},
	}

	summary := fmt.Sprintf(
		"Analysis of %d sources found %d key themes and a clear gap pattern; the dominant trend is a growing relationship between %s and applied work, the main finding being that evaluation coverage is thin.",
		len(sources), len(themes), strings.Join(themes[:1], ""))

	return &Analysis{Themes: themes, Gaps: gaps, Summary: summary}, nil
}

func titleWord(w string) string {
	if w == "" {
		return w
	}
	return strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
}

// OfflineSynthesizer 离线模板假设合成
type OfflineSynthesizer struct{}

func (OfflineSynthesizer) Synthesize(ctx context.Context, query string, analysis *Analysis) ([]Hypothesis, error) {
	lead := "the field"
	if len(analysis.Themes) > 0 {
		lead = analysis.Themes[0]
	}
	return []Hypothesis{
		{
			Statement: fmt.Sprintf("We can measure and compare how advances in %s improve %s, then evaluate and validate the effect with a controlled test.", lead, query),
			Rationale: "Based on current research trends",
			Priority:  "High",
			Origin:    "offline_synthesizer",
		},
		{
			Statement: fmt.Sprintf("Integration of multiple approaches in %s shows promising results.", query),
			Rationale: "Cross-disciplinary potential identified",
			Priority:  "Medium",
			Origin:    "offline_synthesizer",
		},
	}, nil
}

// OfflineReporter 离线执行摘要
type OfflineReporter struct{}

func (OfflineReporter) ExecutiveSummary(ctx context.Context, state *types.PipelineState) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "# Research Summary: %s\n\n", state.Query)
	fmt.Fprintf(&b, "Generated: %s\n\n", time.Now().Format("2006-01-02"))

	fmt.Fprintf(&b, "## Coverage\n- Sources collected: %d\n", state.SourceCount())
	if themes, ok := state.Artifact(types.ArtifactThemes); ok {
		if list, ok := themes.([]string); ok {
			fmt.Fprintf(&b, "- Key themes: %s\n", strings.Join(list, ", "))
		}
	}
	if hyps, ok := state.Artifact(types.ArtifactHypotheses); ok {
		if list, ok := hyps.([]Hypothesis); ok {
			b.WriteString("\n## Hypotheses\n")
			for _, h := range list {
				fmt.Fprintf(&b, "- (%s) %s\n", h.Priority, h.Statement)
			}
		}
	}

	if state.Flags.RecoveryApplied {
		b.WriteString("\n## Caveats\nOne or more stages completed through fallback recovery; manual review recommended.\n")
	}
	return b.String(), nil
}
