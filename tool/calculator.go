package tool

import (
	"context"
	"fmt"
	"regexp"

	"github.com/dop251/goja"
)

var _ Tool = new(CalculatorTool)

// arithmetic only; identifiers are rejected before the expression reaches
// the js vm
var safeExpression = regexp.MustCompile(`^[0-9+\-*/%().,\s]+$`)

type CalculatorTool struct{}

func NewCalculatorTool() *CalculatorTool {
	return &CalculatorTool{}
}

func (t *CalculatorTool) Name() string {
	return "calculator"
}

func (t *CalculatorTool) Description() string {
	return "Evaluate an arithmetic expression, e.g. (2 + 3) * 4 / 1.5"
}

func (t *CalculatorTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"expression": map[string]any{
				"type":        "string",
				"description": "arithmetic expression to evaluate",
			},
		},
		"required": []string{"expression"},
	}
}

func (t *CalculatorTool) Execute(ctx context.Context, args map[string]any) (*Result, error) {
	expression, _ := args["expression"].(string)
	if expression == "" {
		return &Result{Success: false, Error: "missing 'expression' argument"}, nil
	}
	if !safeExpression.MatchString(expression) {
		return &Result{Success: false, Error: fmt.Sprintf("expression %q is not a plain arithmetic expression", expression)}, nil
	}
	vm := goja.New()
	val, err := vm.RunString(expression)
	if err != nil {
		return &Result{Success: false, Error: fmt.Sprintf("error evaluating expression: %v", err)}, nil
	}
	result := val.Export()
	return &Result{
		Success: true,
		Output:  fmt.Sprintf("%v", result),
		Raw:     result,
	}, nil
}
