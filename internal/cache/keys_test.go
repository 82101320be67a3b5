package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey_Deterministic(t *testing.T) {
	a := Key("literature_search", map[string]any{"query": "llm agents", "max_results": 8})
	b := Key("literature_search", map[string]any{"max_results": 8, "query": "llm agents"})

	// 参数顺序无关：相同的逻辑请求必须落到同一个键
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestKey_Distinct(t *testing.T) {
	base := Key("literature_search", map[string]any{"query": "llm agents"})

	assert.NotEqual(t, base, Key("pdf_extract", map[string]any{"query": "llm agents"}))
	assert.NotEqual(t, base, Key("literature_search", map[string]any{"query": "llm agents", "max_results": 8}))
	assert.NotEqual(t, base, Key("literature_search", nil))
}

func TestKey_NestedArgsCanonical(t *testing.T) {
	a := Key("op", map[string]any{"filter": map[string]any{"year": 2024, "source": "arxiv"}})
	b := Key("op", map[string]any{"filter": map[string]any{"source": "arxiv", "year": 2024}})
	assert.Equal(t, a, b)
}
