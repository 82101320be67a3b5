package research

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/BaSui01/researchflow/types"
)

// RateLimitedSearcher 限速的文献检索装饰器
// 外部检索后端通常有严格的调用频率约束；超限请求在这里排队
// 而不是被后端拒绝后进入重试。
type RateLimitedSearcher struct {
	inner   LiteratureSearcher
	limiter *rate.Limiter
}

// NewRateLimitedSearcher wraps a searcher with the given requests-per-second
// budget and burst size.
func NewRateLimitedSearcher(inner LiteratureSearcher, rps float64, burst int) *RateLimitedSearcher {
	if rps <= 0 {
		rps = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimitedSearcher{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (s *RateLimitedSearcher) Search(ctx context.Context, query string, limit int) ([]types.Source, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return s.inner.Search(ctx, query, limit)
}
