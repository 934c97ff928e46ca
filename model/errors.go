package model

import (
	"errors"
	"fmt"
)

type ErrorKind string

const CONFIGURATION_ERROR ErrorKind = "ConfigurationError"
const MISSING_VARIABLE ErrorKind = "MissingVariable"
const TIMEOUT ErrorKind = "Timeout"
const TOOL_NOT_ALLOWED ErrorKind = "ToolNotAllowed"
const PROVIDER_FAILURE ErrorKind = "ProviderFailure"
const APPROVAL_REJECTED ErrorKind = "ApprovalRejected"
const GRAPH_LOOP_LIMIT_EXCEEDED ErrorKind = "GraphLoopLimitExceeded"

type EngineError struct {
	Kind    ErrorKind
	StepId  string
	Message string
}

func (e *EngineError) Error() string {
	if e.StepId != "" {
		return fmt.Sprintf("%s: step %s: %s", e.Kind, e.StepId, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func NewEngineError(kind ErrorKind, stepId string, format string, args ...any) *EngineError {
	return &EngineError{
		Kind:    kind,
		StepId:  stepId,
		Message: fmt.Sprintf(format, args...),
	}
}

// KindOf extracts the error kind, defaulting to PROVIDER_FAILURE for
// errors that did not originate inside the engine.
func KindOf(err error) ErrorKind {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return PROVIDER_FAILURE
}
