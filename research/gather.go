package research

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/researchflow/internal/cache"
	"github.com/BaSui01/researchflow/types"
)

// =============================================================================
// 📚 gather 阶段
// =============================================================================

// GatherConfig gather 阶段配置
type GatherConfig struct {
	// 默认检索规模
	BaseLimit int `yaml:"base_limit" json:"base_limit"`
	// 检索结果缓存 TTL
	CacheTTL time.Duration `yaml:"cache_ttl" json:"cache_ttl"`
}

// DefaultGatherConfig 返回默认 gather 配置
func DefaultGatherConfig() GatherConfig {
	return GatherConfig{
		BaseLimit: 5,
		CacheTTL:  time.Hour,
	}
}

// GatherStage 文献收集阶段
// 经 Memoizer 缓存检索结果；当状态携带"需要更多来源"信号时
// 放宽检索规模并绕过既有缓存键（规模参与键计算）。
type GatherStage struct {
	searcher LiteratureSearcher
	memoizer *cache.Memoizer // optional
	config   GatherConfig
	logger   *zap.Logger
}

// NewGatherStage 创建 gather 阶段
func NewGatherStage(searcher LiteratureSearcher, memoizer *cache.Memoizer, config GatherConfig, logger *zap.Logger) *GatherStage {
	if config.BaseLimit <= 0 {
		config.BaseLimit = DefaultGatherConfig().BaseLimit
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = DefaultGatherConfig().CacheTTL
	}
	return &GatherStage{
		searcher: searcher,
		memoizer: memoizer,
		config:   config,
		logger:   logger.With(zap.String("component", "stage_gather")),
	}
}

func (s *GatherStage) ID() types.StageID {
	return types.StageGather
}

func (s *GatherStage) Execute(ctx context.Context, state *types.PipelineState) (*types.PipelineState, error) {
	limit := s.config.BaseLimit
	if state.Flags.NeedsMoreSources {
		extra := state.Flags.AdditionalSources
		if extra <= 0 {
			extra = s.config.BaseLimit
		}
		limit += extra
		// gather 拥有这组标志：消费后即清除
		state.Flags.NeedsMoreSources = false
		state.Flags.AdditionalSources = 0
		s.logger.Info("widening search per assistance request", zap.Int("limit", limit))
	}

	sources, err := s.search(ctx, state.Query, limit)
	if err != nil {
		return nil, types.NewError(types.ErrStageTransient, "literature search failed").
			WithStage(types.StageGather).WithRetryable(true).WithCause(err)
	}

	state.SetArtifact(types.ArtifactSources, sources)
	s.logger.Info("sources gathered", zap.Int("count", len(sources)))
	return state, nil
}

func (s *GatherStage) search(ctx context.Context, query string, limit int) ([]types.Source, error) {
	if s.memoizer == nil {
		return s.searcher.Search(ctx, query, limit)
	}
	return cache.Memoize(ctx, s.memoizer, "literature_search",
		map[string]any{"query": query, "limit": limit},
		s.config.CacheTTL,
		func(ctx context.Context) ([]types.Source, error) {
			return s.searcher.Search(ctx, query, limit)
		})
}
