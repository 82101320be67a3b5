// Package researchflow provides a top-level convenience entry point for
// running the research pipeline with minimal boilerplate.
//
// Usage:
//
//	import "github.com/BaSui01/researchflow"
//
//	state, err := researchflow.Run(ctx, "perovskite solar cell stability", logger)
//
// This wires the offline collaborators into a canonical five-stage engine;
// use [research.NewPipeline] directly when you need custom collaborators,
// caching, or metrics.
package researchflow

import (
	"context"

	"go.uber.org/zap"

	"github.com/BaSui01/researchflow/research"
	"github.com/BaSui01/researchflow/types"
	"github.com/BaSui01/researchflow/workflow"
)

// New creates an engine over the offline collaborators with default
// engine, retry and gather settings.
func New(logger *zap.Logger) (*workflow.Engine, error) {
	return research.NewPipeline(research.OfflineCollaborators(),
		workflow.DefaultEngineConfig(), workflow.DefaultRetryConfig(),
		research.DefaultGatherConfig(), nil, logger)
}

// Run executes one pipeline run with default settings and returns the
// final state.
func Run(ctx context.Context, query string, logger *zap.Logger) (*types.PipelineState, error) {
	engine, err := New(logger)
	if err != nil {
		return nil, err
	}
	return engine.Run(ctx, query)
}
