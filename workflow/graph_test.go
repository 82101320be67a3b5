package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/researchflow/types"
)

// passStage returns a stage that marks nothing and always succeeds.
func passStage(id types.StageID) Stage {
	return NewFuncStage(id, func(ctx context.Context, state *types.PipelineState) (*types.PipelineState, error) {
		return state, nil
	})
}

func allCanonicalStages() []Stage {
	stages := make([]Stage, 0, 5)
	for _, id := range types.CanonicalStages() {
		stages = append(stages, passStage(id))
	}
	return stages
}

func TestGraphValidate(t *testing.T) {
	t.Run("无入口阶段", func(t *testing.T) {
		g := NewGraph()
		g.AddStage(passStage(types.StageGather))

		err := g.Validate()
		require.Error(t, err)
		assert.Equal(t, types.ErrUnknownStage, types.GetErrorCode(err))
	})

	t.Run("入口未注册", func(t *testing.T) {
		g := NewGraph()
		g.AddStage(passStage(types.StageGather))
		g.SetEntry(types.StageAnalyze)

		require.Error(t, g.Validate())
	})

	t.Run("边指向未知阶段", func(t *testing.T) {
		g := NewGraph()
		g.AddStage(passStage(types.StageGather))
		g.SetEntry(types.StageGather)
		g.AddEdge(types.StageGather, types.StageAnalyze)

		require.Error(t, g.Validate())
	})

	t.Run("合法图", func(t *testing.T) {
		g := NewGraph()
		g.AddStage(passStage(types.StageGather))
		g.AddStage(passStage(types.StageAnalyze))
		g.SetEntry(types.StageGather)
		g.AddEdge(types.StageGather, types.StageAnalyze)

		require.NoError(t, g.Validate())
		assert.Equal(t, 2, g.StageCount())
	})
}

func TestCanonicalGraph(t *testing.T) {
	g, err := CanonicalGraph(allCanonicalStages()...)
	require.NoError(t, err)

	assert.Equal(t, types.StageGather, g.Entry())
	assert.Equal(t, 5, g.StageCount())

	for _, id := range types.CanonicalStages() {
		_, ok := g.Stage(id)
		assert.True(t, ok, "stage %s should be registered", id)
	}
}

func TestCanonicalGraphMissingStage(t *testing.T) {
	// 缺少 report 阶段
	stages := []Stage{
		passStage(types.StageGather),
		passStage(types.StageAnalyze),
		passStage(types.StageProcess),
		passStage(types.StageSynthesize),
	}

	_, err := CanonicalGraph(stages...)
	require.Error(t, err)
	assert.Equal(t, types.ErrUnknownStage, types.GetErrorCode(err))
}

func TestFuncStage(t *testing.T) {
	called := false
	stage := NewFuncStage(types.StageProcess, func(ctx context.Context, state *types.PipelineState) (*types.PipelineState, error) {
		called = true
		return state, nil
	})

	assert.Equal(t, types.StageProcess, stage.ID())

	state := types.NewPipelineState("test query")
	result, err := stage.Execute(context.Background(), state)
	require.NoError(t, err)
	assert.True(t, called)
	assert.Same(t, state, result)
}
