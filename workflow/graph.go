package workflow

import (
	"context"
	"fmt"

	"github.com/BaSui01/researchflow/types"
)

// Stage 流水线阶段接口
// 由外部协作者实现：读取并修改共享状态，可安全地被路由器重入，
// 不得删除不属于自己的产物，只能设置自己文档化拥有的标志。
type Stage interface {
	// ID 返回阶段标识
	ID() types.StageID
	// Execute 执行阶段工作。返回的状态可以是入参本身（原地修改）。
	Execute(ctx context.Context, state *types.PipelineState) (*types.PipelineState, error)
}

// StageFunc 阶段函数类型
type StageFunc func(ctx context.Context, state *types.PipelineState) (*types.PipelineState, error)

// FuncStage 函数阶段实现
type FuncStage struct {
	id types.StageID
	fn StageFunc
}

// NewFuncStage 创建函数阶段
func NewFuncStage(id types.StageID, fn StageFunc) *FuncStage {
	return &FuncStage{id: id, fn: fn}
}

func (s *FuncStage) ID() types.StageID {
	return s.id
}

func (s *FuncStage) Execute(ctx context.Context, state *types.PipelineState) (*types.PipelineState, error) {
	return s.fn(ctx, state)
}

// FallbackProducer 兜底产物生成器
// 重试耗尽后为对应阶段合成最小有效产物。必须总是成功。
type FallbackProducer func(state *types.PipelineState, lastErr error) *types.PipelineState

// Graph 阶段图
// 命名阶段的集合及各阶段的可达边。边只用于构建期校验——
// 调度完全委托给 Router。
type Graph struct {
	stages map[types.StageID]Stage
	edges  map[types.StageID][]types.StageID
	entry  types.StageID
}

// NewGraph 创建空阶段图
func NewGraph() *Graph {
	return &Graph{
		stages: make(map[types.StageID]Stage),
		edges:  make(map[types.StageID][]types.StageID),
	}
}

// AddStage 注册阶段
func (g *Graph) AddStage(stage Stage) {
	g.stages[stage.ID()] = stage
}

// AddEdge 声明从 from 可达 to
func (g *Graph) AddEdge(from, to types.StageID) {
	g.edges[from] = append(g.edges[from], to)
}

// SetEntry 设置入口阶段
func (g *Graph) SetEntry(id types.StageID) {
	g.entry = id
}

// Stage 按标识查找阶段
func (g *Graph) Stage(id types.StageID) (Stage, bool) {
	stage, ok := g.stages[id]
	return stage, ok
}

// Entry 返回入口阶段标识
func (g *Graph) Entry() types.StageID {
	return g.entry
}

// StageCount 返回阶段数量
func (g *Graph) StageCount() int {
	return len(g.stages)
}

// Validate 校验图结构：入口存在、边引用已知阶段。
func (g *Graph) Validate() error {
	if g.entry == "" {
		return types.NewError(types.ErrUnknownStage, "graph has no entry stage")
	}
	if _, ok := g.stages[g.entry]; !ok {
		return types.NewError(types.ErrUnknownStage,
			fmt.Sprintf("entry stage not registered: %s", g.entry))
	}
	for from, targets := range g.edges {
		if _, ok := g.stages[from]; !ok {
			return types.NewError(types.ErrUnknownStage,
				fmt.Sprintf("edge source not registered: %s", from))
		}
		for _, to := range targets {
			if _, ok := g.stages[to]; !ok {
				return types.NewError(types.ErrUnknownStage,
					fmt.Sprintf("edge target not registered: %s → %s", from, to))
			}
		}
	}
	return nil
}

// CanonicalGraph builds the standard five-stage research graph from the
// given stage implementations, with edges in canonical order plus the
// re-entry edges the router may take.
func CanonicalGraph(stages ...Stage) (*Graph, error) {
	g := NewGraph()
	for _, stage := range stages {
		g.AddStage(stage)
	}

	order := types.CanonicalStages()
	for _, id := range order {
		if _, ok := g.stages[id]; !ok {
			return nil, types.NewError(types.ErrUnknownStage,
				fmt.Sprintf("canonical stage missing: %s", id))
		}
	}
	for i := 0; i < len(order)-1; i++ {
		g.AddEdge(order[i], order[i+1])
	}
	// Assistance requests can route backwards.
	g.AddEdge(types.StageAnalyze, types.StageGather)
	g.AddEdge(types.StageSynthesize, types.StageAnalyze)
	g.AddEdge(types.StageReport, types.StageProcess)
	g.SetEntry(types.StageGather)

	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}
