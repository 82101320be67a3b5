package types

import (
	"time"

	"github.com/google/uuid"
)

// MessageType 消息类型
type MessageType string

const (
	// MessageRequestAssistance asks another stage for help (e.g. more
	// source material). Consumed by the router's priority-1 rule.
	MessageRequestAssistance MessageType = "request_assistance"
	// MessageEscalateTask reports a condition the sender cannot resolve.
	MessageEscalateTask MessageType = "escalate_task"
	// MessageQualityCheck asks for a heuristic quality assessment of
	// produced content.
	MessageQualityCheck MessageType = "quality_check"
	// MessageShareResource publishes an artifact for other stages.
	MessageShareResource MessageType = "share_resource"
)

// Message 阶段间消息
// 在单次引擎迭代内创建并消费，不会在迭代之间持久化；
// 其效果通过通信总线折叠进 PipelineState。
type Message struct {
	ID        string         `json:"id"`
	Sender    StageID        `json:"sender"`
	Recipient StageID        `json:"recipient"`
	Type      MessageType    `json:"type"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewMessage creates a message with a fresh ID and timestamp.
func NewMessage(sender, recipient StageID, msgType MessageType, payload map[string]any) Message {
	return Message{
		ID:        uuid.NewString(),
		Sender:    sender,
		Recipient: recipient,
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// Payload keys understood by the communication bus.
const (
	PayloadRequestKind      = "request_kind"
	PayloadAdditionalCount  = "additional_count"
	PayloadReason           = "reason"
	PayloadSeverity         = "severity"
	PayloadCheckType        = "check_type"
	PayloadContent          = "content"
	PayloadResourceName     = "resource_name"
	PayloadResourceValue    = "resource_value"
)

// Assistance request kinds with a known routing target.
const (
	RequestMoreSources        = "more_sources"
	RequestDeeperAnalysis     = "deeper_analysis"
	RequestStatisticalSummary = "statistical_summary"
)
