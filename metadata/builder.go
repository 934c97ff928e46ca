package metadata

import (
	"github.com/mohitkumar/forge/expr"
	"github.com/mohitkumar/forge/model"
)

var outputFormats = map[string]model.OutputFormat{
	"":         model.OUTPUT_FORMAT_TEXT,
	"text":     model.OUTPUT_FORMAT_TEXT,
	"json":     model.OUTPUT_FORMAT_JSON,
	"markdown": model.OUTPUT_FORMAT_MARKDOWN,
}

// Build validates a team definition and compiles it into the immutable
// workflow graph plus the agent spec set. Every violation is a
// CONFIGURATION_ERROR; the run never starts on a bad definition.
func Build(def *TeamDefinition) (*model.WorkflowGraph, map[string]*model.AgentSpec, error) {
	if len(def.Steps) == 0 {
		return nil, nil, model.NewEngineError(model.CONFIGURATION_ERROR, "", "workflow '%s' has no steps", def.Name)
	}
	agents, err := buildAgents(def)
	if err != nil {
		return nil, nil, err
	}

	graph := &model.WorkflowGraph{
		Name:      def.Name,
		NodeIndex: make(map[string]int),
		Steps:     make(map[string]*model.StepNode),
		Control: model.ControlConfig{
			MaxSteps:           def.Control.MaxSteps,
			TimeoutSeconds:     def.Control.TimeoutSeconds,
			StepTimeoutSeconds: def.Control.StepTimeoutSeconds,
			DryRun:             def.Control.DryRun,
		},
	}

	for _, stepDef := range def.Steps {
		if stepDef.IsGroup() {
			group, err := buildGroup(&stepDef, agents, graph)
			if err != nil {
				return nil, nil, err
			}
			graph.Nodes = append(graph.Nodes, model.GraphNode{Group: group})
			continue
		}
		step, err := buildStep(&stepDef, agents)
		if err != nil {
			return nil, nil, err
		}
		if err := register(graph, step, len(graph.Nodes)); err != nil {
			return nil, nil, err
		}
		graph.Nodes = append(graph.Nodes, model.GraphNode{Step: step})
	}

	if err := checkReferences(graph); err != nil {
		return nil, nil, err
	}

	if first := def.Steps[0]; first.IsGroup() {
		graph.Entry = first.Parallel[0].Id
	} else {
		graph.Entry = first.Id
	}
	return graph, agents, nil
}

func buildAgents(def *TeamDefinition) (map[string]*model.AgentSpec, error) {
	agents := make(map[string]*model.AgentSpec, len(def.Agents))
	for _, agentDef := range def.Agents {
		if agentDef.Name == "" {
			return nil, model.NewEngineError(model.CONFIGURATION_ERROR, "", "agent without a name")
		}
		if _, ok := agents[agentDef.Name]; ok {
			return nil, model.NewEngineError(model.CONFIGURATION_ERROR, "", "agent '%s' is defined twice", agentDef.Name)
		}
		if agentDef.ConfidenceThreshold < 0 || agentDef.ConfidenceThreshold > 1 {
			return nil, model.NewEngineError(model.CONFIGURATION_ERROR, "", "agent '%s' confidence threshold must be in [0,1]", agentDef.Name)
		}
		agents[agentDef.Name] = &model.AgentSpec{
			Name:                agentDef.Name,
			Role:                agentDef.Role,
			Goal:                agentDef.Goal,
			Backstory:           agentDef.Backstory,
			Instructions:        agentDef.Instructions,
			Llm:                 agentDef.Llm,
			Fallback:            agentDef.Fallback,
			Temperature:         agentDef.Temperature,
			MaxTokens:           agentDef.MaxTokens,
			AllowedActions:      agentDef.AllowedActions,
			BlockedActions:      agentDef.BlockedActions,
			ConfidenceThreshold: agentDef.ConfidenceThreshold,
			MaxIterations:       agentDef.MaxIterations,
			Memory:              model.MemoryConfig{Enabled: agentDef.Memory},
		}
	}
	return agents, nil
}

func buildStep(stepDef *StepDefinition, agents map[string]*model.AgentSpec) (*model.StepNode, error) {
	if stepDef.Id == "" {
		return nil, model.NewEngineError(model.CONFIGURATION_ERROR, "", "step without an id")
	}
	if _, ok := agents[stepDef.Agent]; !ok {
		return nil, model.NewEngineError(model.CONFIGURATION_ERROR, stepDef.Id, "step '%s' references unknown agent '%s'", stepDef.Id, stepDef.Agent)
	}
	if stepDef.Task == "" {
		return nil, model.NewEngineError(model.CONFIGURATION_ERROR, stepDef.Id, "step '%s' has no task", stepDef.Id)
	}
	format, ok := outputFormats[stepDef.OutputFormat]
	if !ok {
		return nil, model.NewEngineError(model.CONFIGURATION_ERROR, stepDef.Id, "step '%s' has invalid output_format '%s'", stepDef.Id, stepDef.OutputFormat)
	}
	if stepDef.RetryOnFail < 0 {
		return nil, model.NewEngineError(model.CONFIGURATION_ERROR, stepDef.Id, "step '%s' has negative retry_on_fail", stepDef.Id)
	}
	if stepDef.TimeoutSeconds < 0 {
		return nil, model.NewEngineError(model.CONFIGURATION_ERROR, stepDef.Id, "step '%s' has negative timeout", stepDef.Id)
	}
	step := &model.StepNode{
		Id:             stepDef.Id,
		Agent:          stepDef.Agent,
		Task:           stepDef.Task,
		OutputFormat:   format,
		TimeoutSeconds: stepDef.TimeoutSeconds,
		RetryOnFail:    stepDef.RetryOnFail,
		ApprovalGate:   stepDef.ApprovalGate,
		DryRun:         stepDef.DryRun,
		RawCondition:   stepDef.Condition,
		SaveAs:         stepDef.SaveAs,
		OnSuccess:      stepDef.OnSuccess,
		OnFail:         stepDef.OnFail,
		Next:           stepDef.Next,
	}
	if stepDef.Condition != "" {
		cond, err := expr.ParseCondition(stepDef.Condition)
		if err != nil {
			return nil, model.NewEngineError(model.CONFIGURATION_ERROR, stepDef.Id, "step '%s': %v", stepDef.Id, err)
		}
		step.Condition = cond
	}
	return step, nil
}

func buildGroup(groupDef *StepDefinition, agents map[string]*model.AgentSpec, graph *model.WorkflowGraph) (*model.ParallelGroup, error) {
	join := model.JOIN_ALL
	switch groupDef.Join {
	case "", "all":
	case "any":
		join = model.JOIN_ANY
	default:
		return nil, model.NewEngineError(model.CONFIGURATION_ERROR, "", "parallel group has invalid join policy '%s'", groupDef.Join)
	}
	group := &model.ParallelGroup{Join: join}
	saveAs := make(map[string]string)
	for _, memberDef := range groupDef.Parallel {
		if memberDef.IsGroup() {
			return nil, model.NewEngineError(model.CONFIGURATION_ERROR, memberDef.Id, "parallel groups cannot nest")
		}
		if memberDef.OnSuccess != "" || memberDef.OnFail != "" || memberDef.Next != "" {
			return nil, model.NewEngineError(model.CONFIGURATION_ERROR, memberDef.Id, "step '%s': parallel members cannot have jump edges, the group has a single successor", memberDef.Id)
		}
		member, err := buildStep(&memberDef, agents)
		if err != nil {
			return nil, err
		}
		// two members writing the same key would race, last writer wins
		if member.SaveAs != "" {
			if other, ok := saveAs[member.SaveAs]; ok {
				return nil, model.NewEngineError(model.CONFIGURATION_ERROR, member.Id, "steps '%s' and '%s' both save_as '%s'", other, member.Id, member.SaveAs)
			}
			saveAs[member.SaveAs] = member.Id
		}
		if err := register(graph, member, len(graph.Nodes)); err != nil {
			return nil, err
		}
		group.Steps = append(group.Steps, member)
	}
	if len(group.Steps) == 0 {
		return nil, model.NewEngineError(model.CONFIGURATION_ERROR, "", "parallel group has no steps")
	}
	return group, nil
}

func register(graph *model.WorkflowGraph, step *model.StepNode, nodeIdx int) error {
	if _, ok := graph.Steps[step.Id]; ok {
		return model.NewEngineError(model.CONFIGURATION_ERROR, step.Id, "step id '%s' is duplicate", step.Id)
	}
	graph.Steps[step.Id] = step
	graph.NodeIndex[step.Id] = nodeIdx
	return nil
}

func checkReferences(graph *model.WorkflowGraph) error {
	for _, step := range graph.Steps {
		for _, target := range []string{step.OnSuccess, step.OnFail, step.Next} {
			if target == "" {
				continue
			}
			if _, ok := graph.Steps[target]; !ok {
				return model.NewEngineError(model.CONFIGURATION_ERROR, step.Id, "step '%s' references unknown step '%s'", step.Id, target)
			}
		}
	}
	return nil
}
