package model

import "time"

type TokenUsage struct {
	Input  int `json:"input"`
	Output int `json:"output"`
}

func (t TokenUsage) Total() int {
	return t.Input + t.Output
}

func (t *TokenUsage) Add(other TokenUsage) {
	t.Input += other.Input
	t.Output += other.Output
}

type ToolCallRecord struct {
	ToolName   string         `json:"tool_name"`
	Arguments  map[string]any `json:"arguments"`
	Result     string         `json:"result"`
	Success    bool           `json:"success"`
	DurationMs float64        `json:"duration_ms"`
}

// StepResult is produced once per step attempt; only the final accepted
// attempt is persisted to the execution context.
type StepResult struct {
	StepId    string           `json:"step_id"`
	AgentName string           `json:"agent_name"`
	Output    string           `json:"output"`
	Success   bool             `json:"success"`
	Tokens    TokenUsage       `json:"tokens"`
	Cost      float64          `json:"cost"`
	ToolCalls []ToolCallRecord `json:"tool_calls,omitempty"`
	Iterations int             `json:"iterations"`
	Duration  time.Duration    `json:"duration"`
	ModelUsed string           `json:"model_used"`
	ErrorKind ErrorKind        `json:"error_kind,omitempty"`
	Error     string           `json:"error,omitempty"`
	Approved  *bool            `json:"approved,omitempty"`
	Skipped   bool             `json:"skipped,omitempty"`
}

type AgentResult struct {
	Output     string
	Success    bool
	Tokens     TokenUsage
	Cost       float64
	ToolCalls  []ToolCallRecord
	Iterations int
	ModelUsed  string
	ErrorKind  ErrorKind
	Error      string
}

type CostBucket struct {
	Cost   float64    `json:"cost"`
	Tokens TokenUsage `json:"tokens"`
	Calls  int        `json:"calls"`
}

type CostSummary struct {
	TotalCost   float64                `json:"total_cost"`
	TotalTokens TokenUsage             `json:"total_tokens"`
	ByAgent     map[string]*CostBucket `json:"by_agent"`
	ByModel     map[string]*CostBucket `json:"by_model"`
	ByStep      map[string]*CostBucket `json:"by_step"`
}

type WorkflowResult struct {
	RunId        string        `json:"run_id"`
	Output       string        `json:"output"`
	Success      bool          `json:"success"`
	Steps        []StepResult  `json:"steps"`
	Cost         CostSummary   `json:"cost"`
	Duration     time.Duration `json:"duration"`
	FailedStepId string        `json:"failed_step_id,omitempty"`
	ErrorKind    ErrorKind     `json:"error_kind,omitempty"`
	Error        string        `json:"error,omitempty"`
}

type ApprovalDecision struct {
	StepId       string `json:"step_id"`
	Approved     bool   `json:"approved"`
	EditedOutput string `json:"edited_output,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

type RunState string

const RUN_RUNNING RunState = "RUNNING"
const RUN_COMPLETED RunState = "COMPLETED"
const RUN_FAILED RunState = "FAILED"
const RUN_WAITING_APPROVAL RunState = "WAITING_APPROVAL"
