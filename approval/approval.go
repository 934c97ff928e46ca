package approval

import (
	"context"
	"fmt"
	"sync"

	"github.com/mohitkumar/forge/logger"
	"github.com/mohitkumar/forge/model"
	"go.uber.org/zap"
)

// Manager is a keyed rendezvous between a suspended step and an external
// decision. Await parks the caller on a channel for (runId, stepId);
// Submit resolves it. A decision that arrives before the step starts
// waiting is kept and handed over on the next Await.
type Manager struct {
	mu      sync.Mutex
	pending map[string]chan model.ApprovalDecision
	early   map[string]model.ApprovalDecision
}

func NewManager() *Manager {
	return &Manager{
		pending: make(map[string]chan model.ApprovalDecision),
		early:   make(map[string]model.ApprovalDecision),
	}
}

func key(runId string, stepId string) string {
	return runId + "/" + stepId
}

// Await blocks until a decision for the step arrives or ctx is cancelled.
// There is no suspension deadline; only run cancellation ends the wait early.
func (m *Manager) Await(ctx context.Context, runId string, stepId string) (model.ApprovalDecision, error) {
	k := key(runId, stepId)
	m.mu.Lock()
	if d, ok := m.early[k]; ok {
		delete(m.early, k)
		m.mu.Unlock()
		return d, nil
	}
	ch := make(chan model.ApprovalDecision, 1)
	m.pending[k] = ch
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.pending, k)
		m.mu.Unlock()
	}()

	select {
	case d := <-ch:
		return d, nil
	case <-ctx.Done():
		return model.ApprovalDecision{}, ctx.Err()
	}
}

func (m *Manager) Submit(runId string, decision model.ApprovalDecision) error {
	if decision.StepId == "" {
		return fmt.Errorf("approval decision without step id")
	}
	k := key(runId, decision.StepId)
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch, ok := m.pending[k]; ok {
		ch <- decision
		logger.Info("approval decision delivered", zap.String("runId", runId), zap.String("stepId", decision.StepId), zap.Bool("approved", decision.Approved))
		return nil
	}
	m.early[k] = decision
	logger.Debug("approval decision stored before await", zap.String("runId", runId), zap.String("stepId", decision.StepId))
	return nil
}

// PendingSteps lists step ids currently suspended for a run.
func (m *Manager) PendingSteps(runId string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := runId + "/"
	var steps []string
	for k := range m.pending {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			steps = append(steps, k[len(prefix):])
		}
	}
	return steps
}
