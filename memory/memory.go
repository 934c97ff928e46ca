package memory

import "context"

// Store keeps per-agent conversation memory across steps of a run. Memory is
// best effort; a store failure degrades recall but never fails the step.
type Store interface {
	Recall(ctx context.Context, agentName string, limit int) ([]string, error)
	Store(ctx context.Context, agentName string, entry string) error
}
