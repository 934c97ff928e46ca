package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mohitkumar/forge/agent"
	"github.com/mohitkumar/forge/approval"
	"github.com/mohitkumar/forge/expr"
	"github.com/mohitkumar/forge/logger"
	"github.com/mohitkumar/forge/model"
	"github.com/mohitkumar/forge/trace"
	"go.uber.org/zap"
)

// Supervisor wraps one runtime invocation with timeout enforcement, the
// retry budget, dry run short-circuit and approval gate suspension. It emits
// step_start and step_end exactly once per step regardless of attempts.
type Supervisor struct {
	runtime   *agent.Runtime
	approvals *approval.Manager
	recorder  *trace.Recorder
}

func NewSupervisor(runtime *agent.Runtime, approvals *approval.Manager, recorder *trace.Recorder) *Supervisor {
	return &Supervisor{
		runtime:   runtime,
		approvals: approvals,
		recorder:  recorder,
	}
}

// Execute runs the step to its final outcome. vars and skipped are a
// read-only snapshot; writing results back into the context is the
// scheduler's job.
func (s *Supervisor) Execute(ctx context.Context, runId string, step *model.StepNode, spec *model.AgentSpec, vars map[string]any, skipped map[string]bool, control model.ControlConfig) *model.StepResult {
	start := time.Now()
	s.recorder.Emit(model.TraceEvent{
		EventType: model.STEP_START,
		StepId:    step.Id,
		AgentName: step.Agent,
	})
	result := s.execute(ctx, runId, step, spec, vars, skipped, control)
	result.Duration = time.Since(start)
	if step.ApprovalGate {
		s.awaitApproval(ctx, runId, step, result)
	}
	s.recorder.Emit(model.TraceEvent{
		EventType:  model.STEP_END,
		StepId:     step.Id,
		AgentName:  step.Agent,
		DurationMs: float64(result.Duration.Milliseconds()),
		Data:       stepEndData(result),
	})
	return result
}

func (s *Supervisor) execute(ctx context.Context, runId string, step *model.StepNode, spec *model.AgentSpec, vars map[string]any, skipped map[string]bool, control model.ControlConfig) *model.StepResult {
	result := &model.StepResult{StepId: step.Id, AgentName: step.Agent}

	if step.DryRun || control.DryRun {
		result.Success = true
		result.Output = fmt.Sprintf("[dry run] step '%s' would run agent '%s'", step.Id, step.Agent)
		return result
	}

	attempts := 1 + step.RetryOnFail
	timeout := step.TimeoutSeconds
	if timeout <= 0 {
		timeout = control.StepTimeoutSeconds
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		// context values may have changed between attempts in other designs,
		// so the template is rendered at every attempt start
		task, err := expr.Render(step.Task, vars, skipped)
		if err != nil {
			var missing *expr.MissingVariableError
			result.Success = false
			if errors.As(err, &missing) {
				result.ErrorKind = model.MISSING_VARIABLE
			} else {
				result.ErrorKind = model.CONFIGURATION_ERROR
			}
			result.Error = err.Error()
			s.emitError(step, result.ErrorKind, result.Error)
			// the snapshot cannot change within this step, retrying cannot help
			return result
		}

		attemptCtx := ctx
		cancel := func() {}
		if timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
		}
		agentResult := s.runtime.Execute(attemptCtx, spec, step.Id, task, step.OutputFormat)
		timedOut := attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil
		cancel()

		result.Tokens.Add(agentResult.Tokens)
		result.Cost += agentResult.Cost
		result.ToolCalls = append(result.ToolCalls, agentResult.ToolCalls...)
		result.Iterations = agentResult.Iterations
		if agentResult.ModelUsed != "" {
			result.ModelUsed = agentResult.ModelUsed
		}

		if agentResult.Success {
			result.Success = true
			result.Output = agentResult.Output
			result.ErrorKind = ""
			result.Error = ""
			return result
		}

		result.Success = false
		result.ErrorKind = agentResult.ErrorKind
		result.Error = agentResult.Error
		if timedOut {
			result.ErrorKind = model.TIMEOUT
			result.Error = fmt.Sprintf("step '%s' attempt %d timed out after %ds", step.Id, attempt, timeout)
		}
		s.emitError(step, result.ErrorKind, result.Error)
		logger.Warn("step attempt failed",
			zap.String("stepId", step.Id), zap.Int("attempt", attempt), zap.String("kind", string(result.ErrorKind)))

		if ctx.Err() != nil {
			// run cancelled or globally timed out, stop burning attempts
			return result
		}
	}
	return result
}

// awaitApproval suspends until a decision arrives. Suspension is unbounded;
// only run cancellation ends it early.
func (s *Supervisor) awaitApproval(ctx context.Context, runId string, step *model.StepNode, result *model.StepResult) {
	s.recorder.Emit(model.TraceEvent{
		EventType: model.APPROVAL_REQUESTED,
		StepId:    step.Id,
		AgentName: step.Agent,
		Data:      map[string]any{"output": result.Output, "success": result.Success},
	})
	decision, err := s.approvals.Await(ctx, runId, step.Id)
	if err != nil {
		result.Success = false
		result.ErrorKind = model.TIMEOUT
		result.Error = fmt.Sprintf("run ended while waiting for approval of step '%s': %v", step.Id, err)
		return
	}
	approved := decision.Approved
	result.Approved = &approved
	s.recorder.Emit(model.TraceEvent{
		EventType: model.APPROVAL_RECEIVED,
		StepId:    step.Id,
		AgentName: step.Agent,
		Data:      map[string]any{"approved": decision.Approved, "reason": decision.Reason},
	})
	if !decision.Approved {
		// a rejection converts success into failure; an already failed
		// result keeps its original error kind
		if result.Success {
			result.Success = false
			result.ErrorKind = model.APPROVAL_REJECTED
			result.Error = fmt.Sprintf("step '%s' rejected: %s", step.Id, decision.Reason)
		}
		return
	}
	if result.Success && decision.EditedOutput != "" {
		result.Output = decision.EditedOutput
	}
}

func (s *Supervisor) emitError(step *model.StepNode, kind model.ErrorKind, message string) {
	s.recorder.Emit(model.TraceEvent{
		EventType: model.ERROR,
		StepId:    step.Id,
		AgentName: step.Agent,
		Data:      map[string]any{"kind": string(kind), "message": message},
	})
}

func stepEndData(result *model.StepResult) map[string]any {
	data := map[string]any{"success": result.Success}
	if result.ErrorKind != "" {
		data["error_kind"] = string(result.ErrorKind)
	}
	if result.Skipped {
		data["skipped"] = true
	}
	return data
}
