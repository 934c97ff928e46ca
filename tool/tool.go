package tool

import (
	"context"
	"fmt"
	"sync"

	"github.com/mohitkumar/forge/model"
)

const MAX_PREVIEW_LENGTH = 2000

// Result is the uniform shape every tool outcome is normalized into.
// Failures are values; nothing crosses the gateway boundary as a panic
// or a raw error.
type Result struct {
	Output    string
	Raw       any
	Success   bool
	Error     string
	ErrorKind model.ErrorKind
}

func (r *Result) Observation() string {
	if r.Success {
		return r.Output
	}
	return fmt.Sprintf("Error: %s", r.Error)
}

type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any
	Execute(ctx context.Context, args map[string]any) (*Result, error)
}

type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// NewDefaultRegistry returns a registry with the builtin tools registered.
func NewDefaultRegistry(baseDir string) *Registry {
	r := NewRegistry()
	r.Register(NewCalculatorTool())
	r.Register(NewHttpRequestTool())
	r.Register(NewReadFileTool(baseDir))
	r.Register(NewWriteFileTool(baseDir))
	return r
}

func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
