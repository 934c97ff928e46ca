package approval

import (
	"context"
	"testing"
	"time"

	"github.com/mohitkumar/forge/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAwaitReceivesSubmittedDecision(t *testing.T) {
	mgr := NewManager()

	go func() {
		for len(mgr.PendingSteps("run-1")) == 0 {
			time.Sleep(time.Millisecond)
		}
		mgr.Submit("run-1", model.ApprovalDecision{StepId: "publish", Approved: true})
	}()

	decision, err := mgr.Await(context.Background(), "run-1", "publish")
	require.NoError(t, err)
	assert.True(t, decision.Approved)
	assert.Empty(t, mgr.PendingSteps("run-1"))
}

func TestEarlyDecisionIsKept(t *testing.T) {
	mgr := NewManager()
	require.NoError(t, mgr.Submit("run-1", model.ApprovalDecision{StepId: "publish", Approved: false, Reason: "not yet"}))

	decision, err := mgr.Await(context.Background(), "run-1", "publish")
	require.NoError(t, err)
	assert.False(t, decision.Approved)
	assert.Equal(t, "not yet", decision.Reason)
}

func TestAwaitEndsOnCancel(t *testing.T) {
	mgr := NewManager()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := mgr.Await(ctx, "run-1", "publish")
		done <- err
	}()
	for len(mgr.PendingSteps("run-1")) == 0 {
		time.Sleep(time.Millisecond)
	}
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestSubmitRequiresStepId(t *testing.T) {
	mgr := NewManager()
	assert.Error(t, mgr.Submit("run-1", model.ApprovalDecision{Approved: true}))
}

func TestPendingStepsScopedToRun(t *testing.T) {
	mgr := NewManager()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go mgr.Await(ctx, "run-1", "publish")
	go mgr.Await(ctx, "run-2", "review")
	for len(mgr.PendingSteps("run-1")) == 0 || len(mgr.PendingSteps("run-2")) == 0 {
		time.Sleep(time.Millisecond)
	}
	assert.Equal(t, []string{"publish"}, mgr.PendingSteps("run-1"))
	assert.Equal(t, []string{"review"}, mgr.PendingSteps("run-2"))
}
