package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// StageID identifies a single pipeline stage.
type StageID string

// Canonical pipeline stages, in execution order.
const (
	StageGather     StageID = "gather"
	StageAnalyze    StageID = "analyze"
	StageProcess    StageID = "process"
	StageSynthesize StageID = "synthesize"
	StageReport     StageID = "report"
)

// CanonicalStages returns the canonical stage order
// (gather → analyze → process → synthesize → report).
func CanonicalStages() []StageID {
	return []StageID{StageGather, StageAnalyze, StageProcess, StageSynthesize, StageReport}
}

// Well-known artifact keys produced by the core. Stage-specific artifact
// keys are owned by the stage that writes them and are opaque here.
const (
	ArtifactSources           = "sources"
	ArtifactThemes            = "themes"
	ArtifactGaps              = "research_gaps"
	ArtifactInsights          = "quantitative_insights"
	ArtifactHypotheses        = "hypotheses"
	ArtifactExecutiveSummary  = "executive_summary"
	ArtifactPerformanceReport = "performance_report"
)

// AssistRequest 跨阶段协助请求
// 由通信总线记录，由路由器消费；一条请求最多被消费一次。
type AssistRequest struct {
	ID        string         `json:"id"`
	From      StageID        `json:"from"`
	To        StageID        `json:"to"`
	Kind      string         `json:"kind"`
	Payload   map[string]any `json:"payload,omitempty"`
	Processed bool           `json:"processed"`
	CreatedAt time.Time      `json:"created_at"`
}

// Escalation 阶段上报的升级记录
type Escalation struct {
	ID        string    `json:"id"`
	From      StageID   `json:"from"`
	Reason    string    `json:"reason"`
	Severity  Severity  `json:"severity"`
	Handled   bool      `json:"handled"`
	CreatedAt time.Time `json:"created_at"`
}

// Severity classifies an escalation.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// QualityAssessment records the outcome of a quality-check message.
type QualityAssessment struct {
	Checker     StageID `json:"checker"`
	ContentType string  `json:"content_type"`
	Score       float64 `json:"score"`
	Passed      bool    `json:"passed"`
}

// Flags carries the routing signals a run accumulates. Each field has a
// single documented owner; stages must not write fields they do not own.
type Flags struct {
	// NeedsMoreSources is set by the bus when an assistance request for
	// additional source material is recorded. Cleared by the gather stage.
	NeedsMoreSources bool `json:"needs_more_sources,omitempty"`
	// AdditionalSources is the number of extra items requested.
	AdditionalSources int `json:"additional_sources,omitempty"`
	// RecoveryApplied is set by the retry manager when a fallback
	// producer substituted a stage result.
	RecoveryApplied bool `json:"recovery_applied,omitempty"`
	// RecoveryTypes records which fallback was applied per stage.
	RecoveryTypes map[StageID]string `json:"recovery_types,omitempty"`
	// ManualReviewRequired is set by the bus on a high-severity escalation.
	ManualReviewRequired bool `json:"manual_review_required,omitempty"`
	// QualityBelowThreshold is set by the bus when a quality check fails.
	QualityBelowThreshold bool `json:"quality_below_threshold,omitempty"`
}

// Control holds router-owned bookkeeping. Stages never touch this section;
// it exists so re-entry accounting lives in exactly one place.
type Control struct {
	// ReentryCounts counts re-entries per unique reason. A second re-entry
	// for the same reason is refused by the router.
	ReentryCounts map[string]int `json:"reentry_counts,omitempty"`
}

// PipelineState 流水线运行状态
// 每次运行创建一份，单线程地在引擎与阶段函数之间传递。
// Errors 只追加、从不清空；CompletedStages 保持插入顺序。
type PipelineState struct {
	// Query is the immutable input the run was started with.
	Query string `json:"query"`

	CompletedStages []StageID       `json:"completed_stages"`
	Errors          []string        `json:"errors"`
	PendingRequests []AssistRequest `json:"pending_requests,omitempty"`
	Escalations     []Escalation    `json:"escalations,omitempty"`
	RetryCounts     map[StageID]int `json:"retry_counts,omitempty"`

	// Artifacts holds named stage outputs. Payloads are opaque to the core.
	Artifacts map[string]any `json:"artifacts,omitempty"`

	Flags   Flags   `json:"flags"`
	Control Control `json:"control"`

	QualityChecks []QualityAssessment `json:"quality_checks,omitempty"`

	StartTime          time.Time     `json:"start_time"`
	TotalExecutionTime time.Duration `json:"total_execution_time"`

	// WorkflowCompleted reports whether every canonical stage finished.
	// A run can end with WorkflowCompleted=false and still return a
	// best-effort state (error ceiling, timeout, data insufficiency).
	WorkflowCompleted bool `json:"workflow_completed"`
	// Incomplete marks a run cut short by global exhaustion
	// (error ceiling or run timeout).
	Incomplete bool `json:"incomplete,omitempty"`
}

// NewPipelineState creates the initial state for a run.
func NewPipelineState(query string) *PipelineState {
	return &PipelineState{
		Query:           query,
		CompletedStages: []StageID{},
		Errors:          []string{},
		RetryCounts:     make(map[StageID]int),
		Artifacts:       make(map[string]any),
		Flags:           Flags{RecoveryTypes: make(map[StageID]string)},
		Control:         Control{ReentryCounts: make(map[string]int)},
		StartTime:       time.Now(),
	}
}

// HasCompleted reports whether the stage is present in CompletedStages.
func (s *PipelineState) HasCompleted(stage StageID) bool {
	for _, done := range s.CompletedStages {
		if done == stage {
			return true
		}
	}
	return false
}

// MarkCompleted appends the stage to CompletedStages if not already
// present. Idempotent so fallback paths and genuine success converge.
func (s *PipelineState) MarkCompleted(stage StageID) {
	if !s.HasCompleted(stage) {
		s.CompletedStages = append(s.CompletedStages, stage)
	}
}

// ResetCompleted removes the stage from CompletedStages so the router can
// re-enter it. Only the router calls this.
func (s *PipelineState) ResetCompleted(stage StageID) {
	kept := s.CompletedStages[:0]
	for _, done := range s.CompletedStages {
		if done != stage {
			kept = append(kept, done)
		}
	}
	s.CompletedStages = kept
}

// AppendError records an error description. The log is append-only.
func (s *PipelineState) AppendError(format string, args ...any) {
	s.Errors = append(s.Errors, fmt.Sprintf(format, args...))
}

// ErrorCount returns the number of recorded errors.
func (s *PipelineState) ErrorCount() int {
	return len(s.Errors)
}

// SetArtifact stores a named stage output.
func (s *PipelineState) SetArtifact(name string, payload any) {
	if s.Artifacts == nil {
		s.Artifacts = make(map[string]any)
	}
	s.Artifacts[name] = payload
}

// Artifact retrieves a named stage output.
func (s *PipelineState) Artifact(name string) (any, bool) {
	payload, ok := s.Artifacts[name]
	return payload, ok
}

// SourceCount returns the number of gathered source items, or zero when
// the gather stage produced nothing usable. Used by the router's
// data-sufficiency gate.
func (s *PipelineState) SourceCount() int {
	payload, ok := s.Artifacts[ArtifactSources]
	if !ok {
		return 0
	}
	switch v := payload.(type) {
	case []any:
		return len(v)
	case []map[string]any:
		return len(v)
	case []Source:
		return len(v)
	default:
		return 0
	}
}

// Source 单条已收集的源材料（论文、文档等）
type Source struct {
	Title    string   `json:"title"`
	Authors  []string `json:"authors,omitempty"`
	Abstract string   `json:"abstract,omitempty"`
	URL      string   `json:"url,omitempty"`
	Origin   string   `json:"origin,omitempty"`
}

// UnprocessedRequest returns the first pending request that has not been
// consumed, if any.
func (s *PipelineState) UnprocessedRequest() (*AssistRequest, bool) {
	for i := range s.PendingRequests {
		if !s.PendingRequests[i].Processed {
			return &s.PendingRequests[i], true
		}
	}
	return nil, false
}

// UnhandledEscalation returns the first escalation of at least the given
// severity that has not been handled.
func (s *PipelineState) UnhandledEscalation(min Severity) (*Escalation, bool) {
	for i := range s.Escalations {
		esc := &s.Escalations[i]
		if !esc.Handled && severityRank(esc.Severity) >= severityRank(min) {
			return esc, true
		}
	}
	return nil, false
}

func severityRank(sev Severity) int {
	switch sev {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// MarshalState serializes the state for storage or CLI output.
func MarshalState(s *PipelineState) ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// UnmarshalState deserializes a stored state. Corrupt input yields a fresh
// initial state rather than an error; a run snapshot is never load-bearing.
func UnmarshalState(data []byte) *PipelineState {
	var s PipelineState
	if err := json.Unmarshal(data, &s); err != nil {
		return NewPipelineState("")
	}
	if s.RetryCounts == nil {
		s.RetryCounts = make(map[StageID]int)
	}
	if s.Artifacts == nil {
		s.Artifacts = make(map[string]any)
	}
	if s.Control.ReentryCounts == nil {
		s.Control.ReentryCounts = make(map[string]int)
	}
	if s.Flags.RecoveryTypes == nil {
		s.Flags.RecoveryTypes = make(map[StageID]string)
	}
	return &s
}
