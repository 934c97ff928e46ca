package tool

import (
	"context"
	"fmt"
	"time"

	"github.com/mohitkumar/forge/llm"
	"github.com/mohitkumar/forge/logger"
	"github.com/mohitkumar/forge/model"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"
)

// Gateway enforces per-agent allow/block lists in front of the registry and
// normalizes every outcome into a Result. A denied or failed call is an
// observation for the model, never a fatal error.
type Gateway struct {
	registry *Registry
}

func NewGateway(registry *Registry) *Gateway {
	return &Gateway{registry: registry}
}

func (g *Gateway) Allowed(spec *model.AgentSpec, toolName string) bool {
	if slices.Contains(spec.BlockedActions, toolName) {
		return false
	}
	if len(spec.AllowedActions) > 0 && !slices.Contains(spec.AllowedActions, toolName) {
		return false
	}
	return true
}

func (g *Gateway) Invoke(ctx context.Context, spec *model.AgentSpec, toolName string, args map[string]any) *Result {
	if !g.Allowed(spec, toolName) {
		logger.Warn("tool denied", zap.String("agent", spec.Name), zap.String("tool", toolName))
		return &Result{
			Success:   false,
			ErrorKind: model.TOOL_NOT_ALLOWED,
			Error:     fmt.Sprintf("tool '%s' is not allowed for agent '%s'", toolName, spec.Name),
		}
	}
	t, ok := g.registry.Get(toolName)
	if !ok {
		return &Result{
			Success: false,
			Error:   fmt.Sprintf("tool '%s' not found", toolName),
		}
	}
	start := time.Now()
	res, err := t.Execute(ctx, args)
	if err != nil {
		logger.Error("tool execution failed", zap.String("tool", toolName), zap.Error(err))
		return &Result{Success: false, Error: err.Error()}
	}
	if res == nil {
		return &Result{Success: false, Error: fmt.Sprintf("tool '%s' returned no result", toolName)}
	}
	res.Output = truncate(res.Output, MAX_PREVIEW_LENGTH)
	logger.Debug("tool executed", zap.String("tool", toolName), zap.Bool("success", res.Success), zap.Duration("took", time.Since(start)))
	return res
}

// SchemasFor returns the llm tool schemas the agent is permitted to see.
func (g *Gateway) SchemasFor(spec *model.AgentSpec) []llm.ToolSchema {
	var schemas []llm.ToolSchema
	for _, name := range g.registry.List() {
		if !g.Allowed(spec, name) {
			continue
		}
		t, _ := g.registry.Get(name)
		schemas = append(schemas, llm.ToolSchema{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return schemas
}
