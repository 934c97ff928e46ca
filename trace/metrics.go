package trace

import (
	"context"

	"github.com/mohitkumar/forge/logger"
	"github.com/mohitkumar/forge/model"
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
	"go.uber.org/zap"
)

var (
	eventCount = stats.Int64("forge/trace/events", "number of trace events recorded", stats.UnitDimensionless)
	tokenCount = stats.Int64("forge/trace/tokens", "llm tokens consumed", stats.UnitDimensionless)
	costTotal  = stats.Float64("forge/trace/cost", "llm cost in dollars", stats.UnitDimensionless)

	keyEventType = tag.MustNewKey("event_type")
	keyAgent     = tag.MustNewKey("agent")
)

// RegisterViews registers the opencensus views for the recorder metrics.
// Call once at startup when an exporter is configured.
func RegisterViews() error {
	return view.Register(
		&view.View{
			Name:        "forge/trace/events",
			Measure:     eventCount,
			TagKeys:     []tag.Key{keyEventType},
			Aggregation: view.Count(),
		},
		&view.View{
			Name:        "forge/trace/tokens",
			Measure:     tokenCount,
			TagKeys:     []tag.Key{keyAgent},
			Aggregation: view.Sum(),
		},
		&view.View{
			Name:        "forge/trace/cost",
			Measure:     costTotal,
			TagKeys:     []tag.Key{keyAgent},
			Aggregation: view.Sum(),
		},
	)
}

func recordMetrics(event *model.TraceEvent) {
	mutators := []tag.Mutator{tag.Upsert(keyEventType, string(event.EventType))}
	if event.AgentName != "" {
		mutators = append(mutators, tag.Upsert(keyAgent, event.AgentName))
	}
	measurements := []stats.Measurement{eventCount.M(1)}
	if event.Tokens != nil {
		measurements = append(measurements, tokenCount.M(int64(event.Tokens.Total())))
	}
	if event.Cost > 0 {
		measurements = append(measurements, costTotal.M(event.Cost))
	}
	if err := stats.RecordWithTags(context.Background(), mutators, measurements...); err != nil {
		logger.Debug("error recording trace metrics", zap.Error(err))
	}
}
