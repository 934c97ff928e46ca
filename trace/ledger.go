package trace

import (
	"sync"

	"github.com/mohitkumar/forge/model"
)

// CostLedger accumulates token and dollar cost from agent_response events,
// broken down by agent, model and step.
type CostLedger struct {
	mu      sync.RWMutex
	total   float64
	tokens  model.TokenUsage
	byAgent map[string]*model.CostBucket
	byModel map[string]*model.CostBucket
	byStep  map[string]*model.CostBucket
}

func NewCostLedger() *CostLedger {
	return &CostLedger{
		byAgent: make(map[string]*model.CostBucket),
		byModel: make(map[string]*model.CostBucket),
		byStep:  make(map[string]*model.CostBucket),
	}
}

func (l *CostLedger) Record(event *model.TraceEvent) {
	if event.EventType != model.AGENT_RESPONSE {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.total += event.Cost
	if event.Tokens != nil {
		l.tokens.Add(*event.Tokens)
	}
	bump(l.byAgent, event.AgentName, event)
	if event.Data != nil {
		if m, ok := event.Data["model"].(string); ok {
			bump(l.byModel, m, event)
		}
	}
	bump(l.byStep, event.StepId, event)
}

func bump(buckets map[string]*model.CostBucket, key string, event *model.TraceEvent) {
	if key == "" {
		return
	}
	bucket, ok := buckets[key]
	if !ok {
		bucket = &model.CostBucket{}
		buckets[key] = bucket
	}
	bucket.Cost += event.Cost
	bucket.Calls++
	if event.Tokens != nil {
		bucket.Tokens.Add(*event.Tokens)
	}
}

// Summary snapshots the ledger into a serializable breakdown.
func (l *CostLedger) Summary() *model.CostSummary {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return &model.CostSummary{
		TotalCost:   l.total,
		TotalTokens: l.tokens,
		ByAgent:     copyBuckets(l.byAgent),
		ByModel:     copyBuckets(l.byModel),
		ByStep:      copyBuckets(l.byStep),
	}
}

func copyBuckets(buckets map[string]*model.CostBucket) map[string]*model.CostBucket {
	out := make(map[string]*model.CostBucket, len(buckets))
	for key, bucket := range buckets {
		b := *bucket
		out[key] = &b
	}
	return out
}
