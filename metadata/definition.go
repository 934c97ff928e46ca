package metadata

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TeamDefinition is the yaml shape users author. It is validated and compiled
// into the immutable graph and agent specs before a run starts.
type TeamDefinition struct {
	Name    string            `yaml:"name" json:"name"`
	Agents  []AgentDefinition `yaml:"agents" json:"agents"`
	Steps   []StepDefinition  `yaml:"steps" json:"steps"`
	Control ControlDefinition `yaml:"control" json:"control"`
}

type AgentDefinition struct {
	Name                string   `yaml:"name" json:"name"`
	Role                string   `yaml:"role" json:"role"`
	Goal                string   `yaml:"goal" json:"goal"`
	Backstory           string   `yaml:"backstory" json:"backstory"`
	Instructions        string   `yaml:"instructions" json:"instructions"`
	Llm                 string   `yaml:"llm" json:"llm"`
	Fallback            []string `yaml:"fallback" json:"fallback"`
	Temperature         float64  `yaml:"temperature" json:"temperature"`
	MaxTokens           int      `yaml:"max_tokens" json:"max_tokens"`
	AllowedActions      []string `yaml:"allowed_actions" json:"allowed_actions"`
	BlockedActions      []string `yaml:"blocked_actions" json:"blocked_actions"`
	ConfidenceThreshold float64  `yaml:"confidence_threshold" json:"confidence_threshold"`
	MaxIterations       int      `yaml:"max_iterations" json:"max_iterations"`
	Memory              bool     `yaml:"memory" json:"memory"`
}

// StepDefinition describes either a single step or, when Parallel is set, a
// group of steps run concurrently.
type StepDefinition struct {
	Id             string           `yaml:"id" json:"id"`
	Agent          string           `yaml:"agent" json:"agent"`
	Task           string           `yaml:"task" json:"task"`
	OutputFormat   string           `yaml:"output_format" json:"output_format"`
	TimeoutSeconds int              `yaml:"timeout" json:"timeout"`
	RetryOnFail    int              `yaml:"retry_on_fail" json:"retry_on_fail"`
	ApprovalGate   bool             `yaml:"approval_gate" json:"approval_gate"`
	DryRun         bool             `yaml:"dry_run" json:"dry_run"`
	Condition      string           `yaml:"condition" json:"condition"`
	SaveAs         string           `yaml:"save_as" json:"save_as"`
	OnSuccess      string           `yaml:"on_success" json:"on_success"`
	OnFail         string           `yaml:"on_fail" json:"on_fail"`
	Next           string           `yaml:"next" json:"next"`
	Parallel       []StepDefinition `yaml:"parallel" json:"parallel"`
	Join           string           `yaml:"join" json:"join"`
}

func (s *StepDefinition) IsGroup() bool {
	return len(s.Parallel) > 0
}

type ControlDefinition struct {
	MaxSteps           int  `yaml:"max_steps" json:"max_steps"`
	TimeoutSeconds     int  `yaml:"timeout" json:"timeout"`
	StepTimeoutSeconds int  `yaml:"step_timeout" json:"step_timeout"`
	DryRun             bool `yaml:"dry_run" json:"dry_run"`
}

func ParseTeam(data []byte) (*TeamDefinition, error) {
	var def TeamDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("error parsing team definition: %w", err)
	}
	return &def, nil
}

func ParseTeamFile(path string) (*TeamDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading team file %s: %w", path, err)
	}
	return ParseTeam(data)
}
