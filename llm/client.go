package llm

import (
	"context"
	"fmt"
)

type Role string

const ROLE_SYSTEM Role = "system"
const ROLE_USER Role = "user"
const ROLE_ASSISTANT Role = "assistant"
const ROLE_TOOL Role = "tool"

type Message struct {
	Role    Role
	Content string
}

type ToolSchema struct {
	Name        string
	Description string
	Parameters  map[string]any
}

type ToolCall struct {
	Id        string
	Name      string
	Arguments map[string]any
}

type Request struct {
	Model       string
	Messages    []Message
	Tools       []ToolSchema
	Temperature float64
	MaxTokens   int
}

type Response struct {
	Text         string
	ToolCalls    []ToolCall
	Model        string
	InputTokens  int
	OutputTokens int
	Cost         float64
}

// Client is the provider seam. Concrete provider wire protocols live outside
// this module; anything that can answer a completion request plugs in here.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

type ClientFunc func(ctx context.Context, req Request) (*Response, error)

func (f ClientFunc) Complete(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}

// Unconfigured is the client used when no provider has been wired in. Every
// call fails fast and non-transiently, which keeps validation, dry runs and
// the rest surface usable without a provider.
func Unconfigured() Client {
	return ClientFunc(func(ctx context.Context, req Request) (*Response, error) {
		return nil, NewFailure(FAILURE_INVALID_REQUEST, req.Model, "no llm provider configured")
	})
}

type FailureKind string

const FAILURE_RATE_LIMITED FailureKind = "rate_limited"
const FAILURE_TIMEOUT FailureKind = "timeout"
const FAILURE_UNAVAILABLE FailureKind = "provider_unavailable"
const FAILURE_INVALID_REQUEST FailureKind = "invalid_request"

type Failure struct {
	Kind    FailureKind
	Model   string
	Message string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("llm failure [%s] model=%s: %s", f.Kind, f.Model, f.Message)
}

func NewFailure(kind FailureKind, model string, format string, args ...any) *Failure {
	return &Failure{Kind: kind, Model: model, Message: fmt.Sprintf(format, args...)}
}

// Transient reports whether a failure should advance the fallback chain.
// Invalid requests fail the same way on every model, so they do not.
func (f *Failure) Transient() bool {
	switch f.Kind {
	case FAILURE_RATE_LIMITED, FAILURE_TIMEOUT, FAILURE_UNAVAILABLE:
		return true
	}
	return false
}
