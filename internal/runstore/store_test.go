package runstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/researchflow/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(Config{Path: filepath.Join(t.TempDir(), "runs.db")}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func completedState(query string) *types.PipelineState {
	state := types.NewPipelineState(query)
	for _, id := range types.CanonicalStages() {
		state.MarkCompleted(id)
	}
	state.WorkflowCompleted = true
	state.TotalExecutionTime = 3 * time.Second
	return state
}

func TestSaveAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	state := completedState("graphene battery anodes")
	state.Flags.RecoveryApplied = true

	id, err := store.Save(ctx, state)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	record, err := store.Get(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, "graphene battery anodes", record.Query)
	assert.True(t, record.WorkflowCompleted)
	assert.True(t, record.RecoveryApplied)
	assert.Equal(t, 3*time.Second, record.Duration)
	assert.Equal(t, types.CanonicalStages(), record.Stages())
}

func TestRecentOrdering(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, query := range []string{"first topic", "second topic", "third topic"} {
		_, err := store.Save(ctx, completedState(query))
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond) // distinct created_at timestamps
	}

	records, err := store.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "third topic", records[0].Query)
	assert.Equal(t, "second topic", records[1].Query)
}

func TestCompletionRate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rate, err := store.CompletionRate(ctx)
	require.NoError(t, err)
	assert.Zero(t, rate, "empty store has no completions")

	_, err = store.Save(ctx, completedState("finished run"))
	require.NoError(t, err)

	partial := types.NewPipelineState("abandoned run")
	partial.MarkCompleted(types.StageGather)
	partial.Incomplete = true
	_, err = store.Save(ctx, partial)
	require.NoError(t, err)

	rate, err = store.CompletionRate(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, rate, 1e-9)
}

func TestSaveAfterClose(t *testing.T) {
	store, err := New(Config{Path: filepath.Join(t.TempDir(), "runs.db")}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = store.Save(context.Background(), completedState("late arrival"))
	assert.Error(t, err)
}

func TestStagesDecodeCorrupt(t *testing.T) {
	record := RunRecord{CompletedStages: "not json"}
	assert.Nil(t, record.Stages())
}
