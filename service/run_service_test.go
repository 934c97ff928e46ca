package service

import (
	"context"
	"testing"
	"time"

	"github.com/mohitkumar/forge/approval"
	"github.com/mohitkumar/forge/config"
	"github.com/mohitkumar/forge/llm"
	"github.com/mohitkumar/forge/memory"
	"github.com/mohitkumar/forge/metadata"
	"github.com/mohitkumar/forge/model"
	"github.com/mohitkumar/forge/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTeam(approvalGate bool) *metadata.TeamDefinition {
	return &metadata.TeamDefinition{
		Name: "demo",
		Agents: []metadata.AgentDefinition{
			{Name: "researcher", Llm: "test-model"},
		},
		Steps: []metadata.StepDefinition{
			{Id: "one", Agent: "researcher", Task: "do the thing", SaveAs: "thing", ApprovalGate: approvalGate},
			{Id: "two", Agent: "researcher", Task: "refine {{thing}}"},
		},
	}
}

func newService(t *testing.T, client llm.Client, def *metadata.TeamDefinition) *RunService {
	t.Helper()
	metadataService := metadata.NewMetadataService(metadata.NewInMemoryStorage())
	require.NoError(t, metadataService.RegisterTeam(def))
	svc := NewRunService(
		metadataService,
		client,
		memory.NewShortTermStore(),
		tool.NewDefaultRegistry(t.TempDir()),
		approval.NewManager(),
		config.Default(),
	)
	t.Cleanup(svc.Stop)
	return svc
}

func echoClient() llm.ClientFunc {
	return func(ctx context.Context, req llm.Request) (*llm.Response, error) {
		task := req.Messages[len(req.Messages)-1].Content
		return &llm.Response{Text: "done: " + task, Model: req.Model, InputTokens: 5, OutputTokens: 5, Cost: 0.01}, nil
	}
}

func waitForState(t *testing.T, svc *RunService, runId string, want model.RunState) *RunStatus {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		status, err := svc.Status(runId)
		require.NoError(t, err)
		if status.State == want {
			return status
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("run %s never reached state %s", runId, want)
	return nil
}

func TestStartRunToCompletion(t *testing.T) {
	svc := newService(t, echoClient(), testTeam(false))

	runId, err := svc.StartRun("demo", map[string]any{"input": "topic"})
	require.NoError(t, err)
	require.NotEmpty(t, runId)

	status := waitForState(t, svc, runId, model.RUN_COMPLETED)
	require.NotNil(t, status.Result)
	assert.True(t, status.Result.Success)
	assert.Contains(t, status.Result.Output, "refine")

	events, err := svc.Trace(runId)
	require.NoError(t, err)
	assert.Equal(t, model.WORKFLOW_START, events[0].EventType)
	assert.Equal(t, model.WORKFLOW_END, events[len(events)-1].EventType)

	cost, err := svc.Cost(runId)
	require.NoError(t, err)
	assert.InDelta(t, 0.02, cost.TotalCost, 1e-9)
}

func TestStartRunUnknownTeam(t *testing.T) {
	svc := newService(t, echoClient(), testTeam(false))
	_, err := svc.StartRun("nope", nil)
	assert.Error(t, err)
}

func TestApprovalLifecycle(t *testing.T) {
	svc := newService(t, echoClient(), testTeam(true))

	runId, err := svc.StartRun("demo", nil)
	require.NoError(t, err)

	status := waitForState(t, svc, runId, model.RUN_WAITING_APPROVAL)
	assert.Contains(t, status.PendingApprovals, "one")

	require.NoError(t, svc.SubmitApproval(runId, model.ApprovalDecision{StepId: "one", Approved: true}))
	status = waitForState(t, svc, runId, model.RUN_COMPLETED)
	assert.True(t, status.Result.Success)
}

// A run must be visible to Status at every instant of its handoff from the
// active table to the completed cache.
func TestStatusVisibleAcrossCompletion(t *testing.T) {
	svc := newService(t, echoClient(), testTeam(false))

	runId, err := svc.StartRun("demo", nil)
	require.NoError(t, err)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		status, err := svc.Status(runId)
		require.NoError(t, err)
		if status.State == model.RUN_COMPLETED {
			return
		}
	}
	t.Fatalf("run %s never completed", runId)
}

func TestStatusUnknownRun(t *testing.T) {
	svc := newService(t, echoClient(), testTeam(false))
	_, err := svc.Status("no-such-run")
	assert.Error(t, err)
	err = svc.SubmitApproval("no-such-run", model.ApprovalDecision{StepId: "one", Approved: true})
	assert.Error(t, err)
}

func TestExecuteSynchronous(t *testing.T) {
	svc := newService(t, echoClient(), testTeam(false))

	result, events, err := svc.Execute(context.Background(), testTeam(false), map[string]any{"input": "x"}, nil)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.NotEmpty(t, result.RunId)
	assert.NotEmpty(t, events)
}

func TestExecuteRejectsBadDefinition(t *testing.T) {
	svc := newService(t, echoClient(), testTeam(false))
	bad := testTeam(false)
	bad.Steps[1].Agent = "ghost"

	_, _, err := svc.Execute(context.Background(), bad, nil, nil)
	require.Error(t, err)
	assert.Equal(t, model.CONFIGURATION_ERROR, model.KindOf(err))
}
