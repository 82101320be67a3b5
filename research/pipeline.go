package research

import (
	"go.uber.org/zap"

	"github.com/BaSui01/researchflow/internal/cache"
	"github.com/BaSui01/researchflow/workflow"
)

// =============================================================================
// 🔗 流水线装配
// =============================================================================

// Collaborators 五个阶段依赖的外部协作者集合
type Collaborators struct {
	Searcher    LiteratureSearcher
	Analyzer    Analyzer
	Synthesizer Synthesizer
	Reporter    Reporter
}

// OfflineCollaborators 返回确定性的离线协作者集合
func OfflineCollaborators() Collaborators {
	return Collaborators{
		Searcher:    OfflineSearcher{},
		Analyzer:    OfflineAnalyzer{},
		Synthesizer: OfflineSynthesizer{},
		Reporter:    OfflineReporter{},
	}
}

// Stages builds the five canonical stage implementations over the given
// collaborators. memoizer may be nil when caching is disabled.
func Stages(c Collaborators, bus *workflow.Bus, memoizer *cache.Memoizer, gatherConfig GatherConfig, logger *zap.Logger) []workflow.Stage {
	return []workflow.Stage{
		NewGatherStage(c.Searcher, memoizer, gatherConfig, logger),
		NewAnalyzeStage(c.Analyzer, bus, logger),
		NewProcessStage(bus, logger),
		NewSynthesizeStage(c.Synthesizer, bus, logger),
		NewReportStage(c.Reporter, logger),
	}
}

// NewPipeline assembles a ready-to-run engine: canonical graph over the
// collaborators, stage fallbacks registered.
func NewPipeline(c Collaborators, engineConfig workflow.EngineConfig, retryConfig workflow.RetryConfig, gatherConfig GatherConfig, memoizer *cache.Memoizer, logger *zap.Logger) (*workflow.Engine, error) {
	bus := workflow.NewBus(logger)

	graph, err := workflow.CanonicalGraph(Stages(c, bus, memoizer, gatherConfig, logger)...)
	if err != nil {
		return nil, err
	}

	engine := workflow.NewEngine(graph, engineConfig, retryConfig, logger)
	RegisterFallbacks(engine.RetryManager())
	return engine, nil
}
