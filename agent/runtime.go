package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mohitkumar/forge/llm"
	"github.com/mohitkumar/forge/logger"
	"github.com/mohitkumar/forge/memory"
	"github.com/mohitkumar/forge/model"
	"github.com/mohitkumar/forge/tool"
	"github.com/mohitkumar/forge/trace"
	"go.uber.org/zap"
)

const DEFAULT_MAX_ITERATIONS = 5
const MEMORY_RECALL_LIMIT = 10

// Runtime drives one agent through a think, act, observe loop: ask the model,
// execute any tool calls it requests, feed the observations back, and repeat
// until the model answers in text or the iteration budget runs out.
type Runtime struct {
	router   *llm.Router
	gateway  *tool.Gateway
	memory   memory.Store
	recorder *trace.Recorder
	scorer   Scorer
}

func NewRuntime(router *llm.Router, gateway *tool.Gateway, memStore memory.Store, recorder *trace.Recorder) *Runtime {
	return &Runtime{
		router:   router,
		gateway:  gateway,
		memory:   memStore,
		recorder: recorder,
		scorer:   &HeuristicScorer{},
	}
}

// WithScorer replaces the confidence scorer.
func (r *Runtime) WithScorer(scorer Scorer) *Runtime {
	r.scorer = scorer
	return r
}

func (r *Runtime) Execute(ctx context.Context, spec *model.AgentSpec, stepId string, task string, format model.OutputFormat) *model.AgentResult {
	result := &model.AgentResult{}

	var memories []string
	if spec.Memory.Enabled && r.memory != nil {
		recalled, err := r.memory.Recall(ctx, spec.Name, MEMORY_RECALL_LIMIT)
		if err != nil {
			logger.Warn("memory recall failed", zap.String("agent", spec.Name), zap.Error(err))
		} else {
			memories = recalled
		}
	}

	messages := []llm.Message{
		{Role: llm.ROLE_SYSTEM, Content: buildSystemPrompt(spec, format, memories)},
		{Role: llm.ROLE_USER, Content: task},
	}
	req := llm.Request{
		Tools:       r.gateway.SchemasFor(spec),
		Temperature: spec.Temperature,
		MaxTokens:   spec.MaxTokens,
	}

	maxIterations := spec.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DEFAULT_MAX_ITERATIONS
	}

	for iteration := 1; iteration <= maxIterations; iteration++ {
		result.Iterations = iteration
		req.Messages = messages

		resp, err := r.router.Complete(ctx, spec.Llm, spec.Fallback, req)
		if err != nil {
			result.Success = false
			result.ErrorKind = classify(err)
			result.Error = err.Error()
			return result
		}
		result.Tokens.Add(model.TokenUsage{Input: resp.InputTokens, Output: resp.OutputTokens})
		result.Cost += resp.Cost
		result.ModelUsed = resp.Model

		r.recorder.Emit(model.TraceEvent{
			EventType: model.AGENT_RESPONSE,
			StepId:    stepId,
			AgentName: spec.Name,
			Tokens:    &model.TokenUsage{Input: resp.InputTokens, Output: resp.OutputTokens},
			Cost:      resp.Cost,
			Data: map[string]any{
				"model":      resp.Model,
				"iteration":  iteration,
				"tool_calls": len(resp.ToolCalls),
			},
		})

		if len(resp.ToolCalls) > 0 {
			messages = append(messages, llm.Message{Role: llm.ROLE_ASSISTANT, Content: describeToolCalls(resp)})
			for _, call := range resp.ToolCalls {
				messages = append(messages, llm.Message{
					Role:    llm.ROLE_TOOL,
					Content: r.act(ctx, spec, stepId, call, result),
				})
			}
			continue
		}

		// re-prompt while the answer scores below the threshold; when the
		// iteration budget runs out the last answer is accepted as is
		if spec.ConfidenceThreshold > 0 && iteration < maxIterations {
			score := r.scorer.Score(resp.Text, format)
			if score < spec.ConfidenceThreshold {
				logger.Debug("re-prompting low confidence answer",
					zap.String("agent", spec.Name), zap.Float64("score", score), zap.Float64("threshold", spec.ConfidenceThreshold))
				messages = append(messages,
					llm.Message{Role: llm.ROLE_ASSISTANT, Content: resp.Text},
					llm.Message{Role: llm.ROLE_USER, Content: repromptMessage},
				)
				continue
			}
		}

		result.Output = resp.Text
		result.Success = true
		r.remember(ctx, spec, task, resp.Text)
		return result
	}

	result.Success = false
	result.ErrorKind = model.PROVIDER_FAILURE
	result.Error = fmt.Sprintf("agent '%s' exceeded %d iterations without a final answer", spec.Name, maxIterations)
	return result
}

// act invokes one tool through the gateway and returns the observation text
// fed back to the model. Denied and failed calls become observations, not
// step failures.
func (r *Runtime) act(ctx context.Context, spec *model.AgentSpec, stepId string, call llm.ToolCall, result *model.AgentResult) string {
	r.recorder.Emit(model.TraceEvent{
		EventType: model.TOOL_CALL,
		StepId:    stepId,
		AgentName: spec.Name,
		Data:      map[string]any{"tool": call.Name, "arguments": call.Arguments},
	})
	start := time.Now()
	res := r.gateway.Invoke(ctx, spec, call.Name, call.Arguments)
	took := time.Since(start)
	observation := res.Observation()
	result.ToolCalls = append(result.ToolCalls, model.ToolCallRecord{
		ToolName:   call.Name,
		Arguments:  call.Arguments,
		Result:     observation,
		Success:    res.Success,
		DurationMs: float64(took.Milliseconds()),
	})
	data := map[string]any{"tool": call.Name, "success": res.Success, "result": observation}
	if res.ErrorKind != "" {
		data["error_kind"] = string(res.ErrorKind)
	}
	r.recorder.Emit(model.TraceEvent{
		EventType:  model.TOOL_RESULT,
		StepId:     stepId,
		AgentName:  spec.Name,
		DurationMs: float64(took.Milliseconds()),
		Data:       data,
	})
	return fmt.Sprintf("Result of %s: %s", call.Name, observation)
}

func (r *Runtime) remember(ctx context.Context, spec *model.AgentSpec, task string, output string) {
	if !spec.Memory.Enabled || r.memory == nil {
		return
	}
	entry := fmt.Sprintf("task: %s | answer: %s", truncateForMemory(task), truncateForMemory(output))
	if err := r.memory.Store(ctx, spec.Name, entry); err != nil {
		logger.Warn("memory store failed", zap.String("agent", spec.Name), zap.Error(err))
	}
}

func describeToolCalls(resp *llm.Response) string {
	if resp.Text != "" {
		return resp.Text
	}
	names := make([]string, len(resp.ToolCalls))
	for i, call := range resp.ToolCalls {
		names[i] = call.Name
	}
	return fmt.Sprintf("Calling tools: %v", names)
}

func classify(err error) model.ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return model.TIMEOUT
	}
	var failure *llm.Failure
	if errors.As(err, &failure) && failure.Kind == llm.FAILURE_TIMEOUT {
		return model.TIMEOUT
	}
	return model.PROVIDER_FAILURE
}

func truncateForMemory(s string) string {
	const max = 500
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
