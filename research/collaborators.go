package research

import (
	"context"

	"github.com/BaSui01/researchflow/types"
)

// =============================================================================
// 🤝 协作者接口
// =============================================================================

// LiteratureSearcher 文献检索协作者
type LiteratureSearcher interface {
	// Search 按查询返回至多 limit 条源材料
	Search(ctx context.Context, query string, limit int) ([]types.Source, error)
}

// Gap 研究空白
type Gap struct {
	Description string `json:"description"`
	Impact      string `json:"impact"`
}

// Analysis 分析结果
type Analysis struct {
	Themes  []string `json:"themes"`
	Gaps    []Gap    `json:"gaps"`
	Summary string   `json:"summary"`
}

// Analyzer 文本分析协作者
type Analyzer interface {
	// Analyze 从源材料中提炼主题与研究空白
	Analyze(ctx context.Context, query string, sources []types.Source) (*Analysis, error)
}

// Hypothesis 研究假设
type Hypothesis struct {
	Statement string `json:"statement"`
	Rationale string `json:"rationale"`
	Priority  string `json:"priority"`
	Origin    string `json:"origin"`
}

// Synthesizer 假设合成协作者
type Synthesizer interface {
	// Synthesize 基于主题与空白生成可检验的研究假设
	Synthesize(ctx context.Context, query string, analysis *Analysis) ([]Hypothesis, error)
}

// Reporter 报告生成协作者
type Reporter interface {
	// ExecutiveSummary 汇总整次运行为执行摘要
	ExecutiveSummary(ctx context.Context, state *types.PipelineState) (string, error)
}
