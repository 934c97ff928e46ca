package model

import "time"

type EventType string

const WORKFLOW_START EventType = "workflow_start"
const WORKFLOW_END EventType = "workflow_end"
const STEP_START EventType = "step_start"
const STEP_END EventType = "step_end"
const AGENT_RESPONSE EventType = "agent_response"
const TOOL_CALL EventType = "tool_call"
const TOOL_RESULT EventType = "tool_result"
const APPROVAL_REQUESTED EventType = "approval_requested"
const APPROVAL_RECEIVED EventType = "approval_received"
const ERROR EventType = "error"

// TraceEvent is the unit of the ordered execution trace. Seq is assigned
// by the recorder at the single serialization point, strictly increasing
// even across concurrent parallel steps.
type TraceEvent struct {
	Seq        uint64         `json:"seq"`
	EventType  EventType      `json:"event_type"`
	Timestamp  time.Time      `json:"timestamp"`
	StepId     string         `json:"step_id,omitempty"`
	AgentName  string         `json:"agent_name,omitempty"`
	Tokens     *TokenUsage    `json:"tokens,omitempty"`
	Cost       float64        `json:"cost,omitempty"`
	DurationMs float64        `json:"duration_ms,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}
