package model

import (
	"github.com/mohitkumar/forge/expr"
)

type OutputFormat string

const OUTPUT_FORMAT_TEXT OutputFormat = "text"
const OUTPUT_FORMAT_JSON OutputFormat = "json"
const OUTPUT_FORMAT_MARKDOWN OutputFormat = "markdown"

type JoinPolicy string

const JOIN_ALL JoinPolicy = "all"
const JOIN_ANY JoinPolicy = "any"

// StepNode binds an agent to a task template. Immutable once built.
type StepNode struct {
	Id             string
	Agent          string
	Task           string
	OutputFormat   OutputFormat
	TimeoutSeconds int
	RetryOnFail    int
	ApprovalGate   bool
	DryRun         bool
	Condition      *expr.Condition
	RawCondition   string
	SaveAs         string
	OnSuccess      string
	OnFail         string
	Next           string
}

// ParallelGroup occupies one slot in the outer sequence; members run
// concurrently and the group has a single successor.
type ParallelGroup struct {
	Steps []*StepNode
	Join  JoinPolicy
}

// GraphNode is either a single step or a parallel group.
type GraphNode struct {
	Step  *StepNode
	Group *ParallelGroup
}

func (n GraphNode) IsGroup() bool {
	return n.Group != nil
}

type ControlConfig struct {
	MaxSteps           int
	TimeoutSeconds     int
	StepTimeoutSeconds int
	DryRun             bool
}

// WorkflowGraph is built once per run by the metadata builder and never
// mutated afterwards. NodeIndex maps every step id (including ids nested
// inside groups) to the position of its owning node in Nodes.
type WorkflowGraph struct {
	Name      string
	Nodes     []GraphNode
	NodeIndex map[string]int
	Steps     map[string]*StepNode
	Entry     string
	Control   ControlConfig
}

type MemoryConfig struct {
	Enabled bool
	Type    string
}

// AgentSpec is shared by reference across all steps that use the agent.
type AgentSpec struct {
	Name                string
	Role                string
	Goal                string
	Backstory           string
	Instructions        string
	Llm                 string
	Fallback            []string
	Temperature         float64
	MaxTokens           int
	AllowedActions      []string
	BlockedActions      []string
	ConfidenceThreshold float64
	MaxIterations       int
	Memory              MemoryConfig
}
