package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/mohitkumar/forge/llm"
	"github.com/mohitkumar/forge/memory"
	"github.com/mohitkumar/forge/model"
	"github.com/mohitkumar/forge/tool"
	"github.com/mohitkumar/forge/trace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRuntime(t *testing.T, client llm.Client) (*Runtime, *trace.Recorder) {
	t.Helper()
	recorder := trace.NewRecorder(128)
	t.Cleanup(recorder.Close)
	router := llm.NewRouter(client, "test-model")
	gateway := tool.NewGateway(tool.NewDefaultRegistry(t.TempDir()))
	return NewRuntime(router, gateway, memory.NewShortTermStore(), recorder), recorder
}

// scripted returns each response in order, one per Complete call.
func scripted(responses ...*llm.Response) llm.ClientFunc {
	i := 0
	return func(ctx context.Context, req llm.Request) (*llm.Response, error) {
		resp := responses[i]
		if i < len(responses)-1 {
			i++
		}
		resp.Model = req.Model
		return resp, nil
	}
}

func TestExecuteDirectAnswer(t *testing.T) {
	runtime, _ := newRuntime(t, scripted(
		&llm.Response{Text: "The capital of France is Paris, which has been the seat of government for centuries and remains the political and cultural center of the country today.", InputTokens: 10, OutputTokens: 20, Cost: 0.01},
	))
	spec := &model.AgentSpec{Name: "researcher"}

	result := runtime.Execute(context.Background(), spec, "s1", "capital of France?", model.OUTPUT_FORMAT_TEXT)
	require.True(t, result.Success)
	assert.Contains(t, result.Output, "Paris")
	assert.Equal(t, 1, result.Iterations)
	assert.Equal(t, 30, result.Tokens.Total())
	assert.InDelta(t, 0.01, result.Cost, 1e-9)
	assert.Equal(t, "test-model", result.ModelUsed)
}

func TestExecuteToolLoop(t *testing.T) {
	var sawObservation bool
	client := llm.ClientFunc(func(ctx context.Context, req llm.Request) (*llm.Response, error) {
		last := req.Messages[len(req.Messages)-1]
		if last.Role == llm.ROLE_TOOL {
			sawObservation = true
			assert.Contains(t, last.Content, "42")
			return &llm.Response{Text: "The answer is 42.", Model: req.Model, Cost: 0.01}, nil
		}
		return &llm.Response{
			ToolCalls: []llm.ToolCall{{Id: "1", Name: "calculator", Arguments: map[string]any{"expression": "6 * 7"}}},
			Model:     req.Model,
			Cost:      0.01,
		}, nil
	})
	runtime, recorder := newRuntime(t, client)
	spec := &model.AgentSpec{Name: "mathematician"}

	result := runtime.Execute(context.Background(), spec, "s1", "what is 6 * 7?", model.OUTPUT_FORMAT_TEXT)
	require.True(t, result.Success)
	assert.True(t, sawObservation)
	assert.Equal(t, 2, result.Iterations)
	require.Len(t, result.ToolCalls, 1)
	assert.Equal(t, "calculator", result.ToolCalls[0].ToolName)
	assert.True(t, result.ToolCalls[0].Success)

	recorder.Close()
	var types []model.EventType
	for _, event := range recorder.History() {
		types = append(types, event.EventType)
	}
	assert.Equal(t, []model.EventType{
		model.AGENT_RESPONSE, model.TOOL_CALL, model.TOOL_RESULT, model.AGENT_RESPONSE,
	}, types)
}

func TestExecuteDeniedToolBecomesObservation(t *testing.T) {
	client := llm.ClientFunc(func(ctx context.Context, req llm.Request) (*llm.Response, error) {
		last := req.Messages[len(req.Messages)-1]
		if last.Role == llm.ROLE_TOOL {
			assert.Contains(t, last.Content, "not allowed")
			return &llm.Response{Text: "I could not use that tool, so here is my direct answer instead.", Model: req.Model}, nil
		}
		return &llm.Response{
			ToolCalls: []llm.ToolCall{{Id: "1", Name: "write_file", Arguments: map[string]any{"path": "x", "content": "y"}}},
			Model:     req.Model,
		}, nil
	})
	runtime, recorder := newRuntime(t, client)
	spec := &model.AgentSpec{Name: "writer", BlockedActions: []string{"write_file"}}

	result := runtime.Execute(context.Background(), spec, "s1", "save the report", model.OUTPUT_FORMAT_TEXT)
	require.True(t, result.Success)
	require.Len(t, result.ToolCalls, 1)
	assert.False(t, result.ToolCalls[0].Success)

	recorder.Close()
	var toolResult model.TraceEvent
	for _, event := range recorder.History() {
		if event.EventType == model.TOOL_RESULT {
			toolResult = event
			break
		}
	}
	require.Equal(t, model.TOOL_RESULT, toolResult.EventType)
	assert.Equal(t, false, toolResult.Data["success"])
	assert.Equal(t, string(model.TOOL_NOT_ALLOWED), toolResult.Data["error_kind"])
}

func TestExecuteIterationBudget(t *testing.T) {
	client := llm.ClientFunc(func(ctx context.Context, req llm.Request) (*llm.Response, error) {
		return &llm.Response{
			ToolCalls: []llm.ToolCall{{Id: "1", Name: "calculator", Arguments: map[string]any{"expression": "1+1"}}},
			Model:     req.Model,
		}, nil
	})
	runtime, _ := newRuntime(t, client)
	spec := &model.AgentSpec{Name: "looper", MaxIterations: 3}

	result := runtime.Execute(context.Background(), spec, "s1", "loop forever", model.OUTPUT_FORMAT_TEXT)
	assert.False(t, result.Success)
	assert.Equal(t, model.PROVIDER_FAILURE, result.ErrorKind)
	assert.Len(t, result.ToolCalls, 3)
}

func TestExecuteConfidenceReprompt(t *testing.T) {
	calls := 0
	client := llm.ClientFunc(func(ctx context.Context, req llm.Request) (*llm.Response, error) {
		calls++
		if calls == 1 {
			return &llm.Response{Text: "I'm not sure.", Model: req.Model}, nil
		}
		last := req.Messages[len(req.Messages)-1]
		assert.Equal(t, llm.ROLE_USER, last.Role)
		return &llm.Response{Text: "After reviewing the material carefully, the conclusion is clear and well supported by the evidence gathered in the previous steps of this analysis, so this answer stands on firm ground.", Model: req.Model}, nil
	})
	runtime, _ := newRuntime(t, client)
	spec := &model.AgentSpec{Name: "analyst", ConfidenceThreshold: 0.7}

	result := runtime.Execute(context.Background(), spec, "s1", "analyze", model.OUTPUT_FORMAT_TEXT)
	require.True(t, result.Success)
	assert.Equal(t, 2, calls)
	assert.Contains(t, result.Output, "conclusion")
}

func TestExecuteRepromptAcceptsLastAnswer(t *testing.T) {
	calls := 0
	client := llm.ClientFunc(func(ctx context.Context, req llm.Request) (*llm.Response, error) {
		calls++
		return &llm.Response{Text: "I'm not sure.", Model: req.Model}, nil
	})
	runtime, _ := newRuntime(t, client)
	spec := &model.AgentSpec{Name: "analyst", ConfidenceThreshold: 0.9, MaxIterations: 3}

	result := runtime.Execute(context.Background(), spec, "s1", "analyze", model.OUTPUT_FORMAT_TEXT)
	require.True(t, result.Success)
	assert.Equal(t, 3, calls)
	assert.Equal(t, "I'm not sure.", result.Output)
	assert.Equal(t, 3, result.Iterations)
}

func TestExecuteProviderError(t *testing.T) {
	client := llm.ClientFunc(func(ctx context.Context, req llm.Request) (*llm.Response, error) {
		return nil, llm.NewFailure(llm.FAILURE_INVALID_REQUEST, req.Model, "bad request")
	})
	runtime, _ := newRuntime(t, client)
	spec := &model.AgentSpec{Name: "researcher"}

	result := runtime.Execute(context.Background(), spec, "s1", "task", model.OUTPUT_FORMAT_TEXT)
	assert.False(t, result.Success)
	assert.Equal(t, model.PROVIDER_FAILURE, result.ErrorKind)
}

func TestExecuteMemoryRoundTrip(t *testing.T) {
	store := memory.NewShortTermStore()
	recorder := trace.NewRecorder(64)
	t.Cleanup(recorder.Close)
	var sawMemory bool
	client := llm.ClientFunc(func(ctx context.Context, req llm.Request) (*llm.Response, error) {
		if len(req.Messages) > 0 && req.Messages[0].Role == llm.ROLE_SYSTEM {
			if strings.Contains(req.Messages[0].Content, "previous interactions") {
				sawMemory = true
			}
		}
		return &llm.Response{Text: "A sufficiently long and confident answer that passes the default scoring heuristics without any trouble at all.", Model: req.Model}, nil
	})
	router := llm.NewRouter(client, "test-model")
	gateway := tool.NewGateway(tool.NewDefaultRegistry(t.TempDir()))
	runtime := NewRuntime(router, gateway, store, recorder)
	spec := &model.AgentSpec{Name: "researcher", Memory: model.MemoryConfig{Enabled: true}}

	result := runtime.Execute(context.Background(), spec, "s1", "first task", model.OUTPUT_FORMAT_TEXT)
	require.True(t, result.Success)
	assert.False(t, sawMemory)

	result = runtime.Execute(context.Background(), spec, "s2", "second task", model.OUTPUT_FORMAT_TEXT)
	require.True(t, result.Success)
	assert.True(t, sawMemory)
}

func TestHeuristicScorer(t *testing.T) {
	scorer := &HeuristicScorer{}
	scenarios := map[string]struct {
		text   string
		format model.OutputFormat
		below  float64
		above  float64
	}{
		"hedged short answer scores low": {
			text:   "I'm not sure, it depends.",
			format: model.OUTPUT_FORMAT_TEXT,
			below:  0.5,
		},
		"long structured answer scores high": {
			text:   "The analysis shows three findings:\n- revenue grew steadily across every region measured\n- costs stayed flat through the period\n- margin expanded as a direct result of the two trends above, which supports the original hypothesis.",
			format: model.OUTPUT_FORMAT_TEXT,
			above:  0.8,
		},
		"plain answer stays near base": {
			text:   "The capital of France is Paris and it has held that role since the medieval period.",
			format: model.OUTPUT_FORMAT_TEXT,
			below:  0.8,
			above:  0.6,
		},
		"json object counts for json format": {
			text:   `{"city": "Paris", "country": "France", "population": 2102650, "note": "figures from the latest census"}`,
			format: model.OUTPUT_FORMAT_JSON,
			above:  0.75,
		},
		"prose does not count for json format": {
			text:   "The capital of France is Paris and it has held that role since the medieval period.",
			format: model.OUTPUT_FORMAT_JSON,
			below:  0.75,
		},
		"headings count for markdown format": {
			text:   "# Findings\nRevenue grew steadily across every region measured during the period under review.",
			format: model.OUTPUT_FORMAT_MARKDOWN,
			above:  0.75,
		},
		"plain prose does not count for markdown format": {
			text:   "Revenue grew steadily across every region measured during the period under review.",
			format: model.OUTPUT_FORMAT_MARKDOWN,
			below:  0.75,
		},
	}
	for name, scenario := range scenarios {
		t.Run(name, func(t *testing.T) {
			score := scorer.Score(scenario.text, scenario.format)
			if scenario.below > 0 {
				assert.Less(t, score, scenario.below)
			}
			if scenario.above > 0 {
				assert.Greater(t, score, scenario.above)
			}
			assert.GreaterOrEqual(t, score, 0.0)
			assert.LessOrEqual(t, score, 1.0)
		})
	}
}
