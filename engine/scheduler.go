package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/mohitkumar/forge/logger"
	"github.com/mohitkumar/forge/model"
	"github.com/mohitkumar/forge/trace"
	"go.uber.org/zap"
)

const DEFAULT_MAX_STEPS = 100

// Scheduler walks the workflow graph with a single cursor. It is the only
// writer of the execution context; parallel group members each get a snapshot
// and their results are merged back in declared order after the join.
type Scheduler struct {
	supervisor *Supervisor
	recorder   *trace.Recorder
}

func NewScheduler(supervisor *Supervisor, recorder *trace.Recorder) *Scheduler {
	return &Scheduler{
		supervisor: supervisor,
		recorder:   recorder,
	}
}

type memberResult struct {
	index  int
	result *model.StepResult
}

func (s *Scheduler) Run(ctx context.Context, runId string, graph *model.WorkflowGraph, agents map[string]*model.AgentSpec, input map[string]any) *model.WorkflowResult {
	start := time.Now()
	if graph.Control.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(graph.Control.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	vars := make(map[string]any, len(input))
	for k, v := range input {
		vars[k] = v
	}
	skipped := make(map[string]bool)

	result := &model.WorkflowResult{RunId: runId}
	s.recorder.Emit(model.TraceEvent{
		EventType: model.WORKFLOW_START,
		Data:      map[string]any{"workflow": graph.Name, "run_id": runId},
	})
	defer func() {
		result.Duration = time.Since(start)
		// all cost-bearing events must be through the sink before the
		// ledger snapshot
		s.recorder.Flush()
		result.Cost = *s.recorder.Ledger().Summary()
		s.recorder.Emit(model.TraceEvent{
			EventType:  model.WORKFLOW_END,
			DurationMs: float64(result.Duration.Milliseconds()),
			Data:       map[string]any{"workflow": graph.Name, "run_id": runId, "success": result.Success},
		})
	}()

	maxSteps := graph.Control.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DEFAULT_MAX_STEPS
	}

	cursor, ok := graph.NodeIndex[graph.Entry]
	if !ok {
		return s.fail(result, graph.Entry, model.CONFIGURATION_ERROR, fmt.Sprintf("entry step '%s' not found in graph", graph.Entry))
	}
	executions := 0

	for cursor >= 0 && cursor < len(graph.Nodes) {
		if ctx.Err() != nil {
			return s.fail(result, "", model.TIMEOUT, fmt.Sprintf("run cancelled: %v", ctx.Err()))
		}
		node := graph.Nodes[cursor]

		if node.IsGroup() {
			executions += len(node.Group.Steps)
			if executions > maxSteps {
				return s.fail(result, "", model.GRAPH_LOOP_LIMIT_EXCEEDED, fmt.Sprintf("run exceeded %d step executions", maxSteps))
			}
			groupOk, failed := s.runGroup(ctx, runId, node.Group, graph, agents, vars, skipped, result)
			if !groupOk {
				return s.fail(result, failed.StepId, failed.ErrorKind, failed.Error)
			}
			cursor++
			continue
		}

		step := node.Step
		executions++
		if executions > maxSteps {
			return s.fail(result, step.Id, model.GRAPH_LOOP_LIMIT_EXCEEDED, fmt.Sprintf("run exceeded %d step executions", maxSteps))
		}

		if step.Condition != nil && !step.Condition.Eval(vars) {
			logger.Debug("step skipped by condition", zap.String("stepId", step.Id), zap.String("condition", step.RawCondition))
			s.markSkipped(step, skipped, result)
			next, ok := s.route(graph, cursor, step, true, true)
			if !ok {
				return s.fail(result, step.Id, model.CONFIGURATION_ERROR, fmt.Sprintf("step '%s' routes to an unknown step", step.Id))
			}
			cursor = next
			continue
		}

		spec, ok := agents[step.Agent]
		if !ok {
			return s.fail(result, step.Id, model.CONFIGURATION_ERROR, fmt.Sprintf("step '%s' references unknown agent '%s'", step.Id, step.Agent))
		}

		stepResult := s.supervisor.Execute(ctx, runId, step, spec, vars, skipped, graph.Control)
		result.Steps = append(result.Steps, *stepResult)
		s.writeContext(vars, step, stepResult)
		if stepResult.Success {
			result.Output = stepResult.Output
		}

		if !stepResult.Success && step.OnFail == "" {
			return s.fail(result, step.Id, stepResult.ErrorKind, stepResult.Error)
		}
		next, ok := s.route(graph, cursor, step, stepResult.Success, false)
		if !ok {
			return s.fail(result, step.Id, model.CONFIGURATION_ERROR, fmt.Sprintf("step '%s' routes to an unknown step", step.Id))
		}
		cursor = next
	}

	result.Success = true
	return result
}

// route resolves the next cursor position. A skipped step ignores its jump
// edges, loop edges included, and advances in declared order.
func (s *Scheduler) route(graph *model.WorkflowGraph, cursor int, step *model.StepNode, success bool, skippedStep bool) (int, bool) {
	if skippedStep {
		return cursor + 1, true
	}
	target := ""
	switch {
	case !success && step.OnFail != "":
		target = step.OnFail
	case success && step.OnSuccess != "":
		target = step.OnSuccess
	case step.Next != "":
		target = step.Next
	}
	if target == "" {
		return cursor + 1, true
	}
	next, ok := graph.NodeIndex[target]
	return next, ok
}

// runGroup fans the members out, joins, then merges results into the context
// in declared order. A member failure never aborts siblings in flight.
func (s *Scheduler) runGroup(ctx context.Context, runId string, group *model.ParallelGroup, graph *model.WorkflowGraph, agents map[string]*model.AgentSpec, vars map[string]any, skipped map[string]bool, result *model.WorkflowResult) (bool, *model.StepResult) {
	results := make(chan memberResult, len(group.Steps))
	memberResults := make([]*model.StepResult, len(group.Steps))

	// resolve every member's condition before launching any of them, so the
	// skipped set is frozen while members render concurrently
	launch := make([]int, 0, len(group.Steps))
	for i, step := range group.Steps {
		if step.Condition != nil && !step.Condition.Eval(vars) {
			s.markSkipped(step, skipped, result)
			memberResults[i] = &model.StepResult{StepId: step.Id, Success: true, Skipped: true}
			continue
		}
		if _, ok := agents[step.Agent]; !ok {
			memberResults[i] = &model.StepResult{
				StepId:    step.Id,
				Success:   false,
				ErrorKind: model.CONFIGURATION_ERROR,
				Error:     fmt.Sprintf("step '%s' references unknown agent '%s'", step.Id, step.Agent),
			}
			continue
		}
		launch = append(launch, i)
	}

	skippedSnapshot := make(map[string]bool, len(skipped))
	for k, v := range skipped {
		skippedSnapshot[k] = v
	}
	for _, i := range launch {
		step := group.Steps[i]
		spec := agents[step.Agent]
		snapshot := make(map[string]any, len(vars))
		for k, v := range vars {
			snapshot[k] = v
		}
		go func(i int, step *model.StepNode, spec *model.AgentSpec, snapshot map[string]any) {
			results <- memberResult{
				index:  i,
				result: s.supervisor.Execute(ctx, runId, step, spec, snapshot, skippedSnapshot, graph.Control),
			}
		}(i, step, spec, snapshot)
	}
	for launched := len(launch); launched > 0; launched-- {
		r := <-results
		memberResults[r.index] = r.result
	}

	var firstFailure *model.StepResult
	succeeded := 0
	for i, stepResult := range memberResults {
		if stepResult.Skipped {
			continue
		}
		result.Steps = append(result.Steps, *stepResult)
		s.writeContext(vars, group.Steps[i], stepResult)
		if stepResult.Success {
			succeeded++
			result.Output = stepResult.Output
		} else if firstFailure == nil {
			firstFailure = stepResult
		}
	}

	switch group.Join {
	case model.JOIN_ANY:
		if succeeded == 0 && firstFailure != nil {
			return false, firstFailure
		}
	default:
		if firstFailure != nil {
			return false, firstFailure
		}
	}
	return true, nil
}

// writeContext persists the final step result. Failed steps never un-write
// prior variables; their result map is still stored for observability.
func (s *Scheduler) writeContext(vars map[string]any, step *model.StepNode, stepResult *model.StepResult) {
	vars[step.Id] = map[string]any{
		"output":  stepResult.Output,
		"success": stepResult.Success,
		"cost":    stepResult.Cost,
		"tokens":  stepResult.Tokens.Total(),
	}
	if step.SaveAs != "" && stepResult.Success {
		vars[step.SaveAs] = stepResult.Output
	}
}

func (s *Scheduler) markSkipped(step *model.StepNode, skipped map[string]bool, result *model.WorkflowResult) {
	skipped[step.Id] = true
	if step.SaveAs != "" {
		skipped[step.SaveAs] = true
	}
	result.Steps = append(result.Steps, model.StepResult{StepId: step.Id, AgentName: step.Agent, Success: true, Skipped: true})
}

func (s *Scheduler) fail(result *model.WorkflowResult, stepId string, kind model.ErrorKind, message string) *model.WorkflowResult {
	result.Success = false
	result.FailedStepId = stepId
	result.ErrorKind = kind
	result.Error = message
	logger.Error("workflow failed", zap.String("runId", result.RunId), zap.String("stepId", stepId), zap.String("kind", string(kind)), zap.String("error", message))
	s.recorder.Emit(model.TraceEvent{
		EventType: model.ERROR,
		StepId:    stepId,
		Data:      map[string]any{"kind": string(kind), "message": message},
	})
	return result
}
