package tool

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/mohitkumar/forge/model"
	"github.com/stretchr/testify/assert"
)

func TestCalculator(t *testing.T) {
	calc := NewCalculatorTool()
	scenarios := map[string]struct {
		expression string
		success    bool
		output     string
	}{
		"simple":       {expression: "2 + 3", success: true, output: "5"},
		"precedence":   {expression: "(2 + 3) * 4", success: true, output: "20"},
		"division":     {expression: "10 / 4", success: true, output: "2.5"},
		"modulo":       {expression: "10 % 3", success: true, output: "1"},
		"empty":        {expression: "", success: false},
		"identifiers":  {expression: "process.exit(1)", success: false},
		"letters":      {expression: "2 + x", success: false},
		"syntax error": {expression: "2 + * 3", success: false},
	}
	for name, scenario := range scenarios {
		t.Run(name, func(t *testing.T) {
			res, err := calc.Execute(context.Background(), map[string]any{"expression": scenario.expression})
			assert.NoError(t, err)
			assert.Equal(t, scenario.success, res.Success)
			if scenario.success {
				assert.Equal(t, scenario.output, res.Output)
			}
		})
	}
}

func TestFileTools(t *testing.T) {
	dir := t.TempDir()
	write := NewWriteFileTool(dir)
	read := NewReadFileTool(dir)

	res, err := write.Execute(context.Background(), map[string]any{"path": "notes/out.txt", "content": "hello"})
	assert.NoError(t, err)
	assert.True(t, res.Success)

	data, err := os.ReadFile(filepath.Join(dir, "notes", "out.txt"))
	assert.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	res, err = read.Execute(context.Background(), map[string]any{"path": "notes/out.txt"})
	assert.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "hello", res.Output)

	res, err = read.Execute(context.Background(), map[string]any{"path": "../escape.txt"})
	assert.NoError(t, err)
	assert.False(t, res.Success)

	res, err = write.Execute(context.Background(), map[string]any{"path": "../../etc/passwd", "content": "x"})
	assert.NoError(t, err)
	assert.False(t, res.Success)
}

func TestGatewayAllowDeny(t *testing.T) {
	registry := NewDefaultRegistry(t.TempDir())
	gateway := NewGateway(registry)

	scenarios := map[string]struct {
		spec    *model.AgentSpec
		tool    string
		allowed bool
	}{
		"no lists allows everything": {
			spec:    &model.AgentSpec{Name: "a"},
			tool:    "calculator",
			allowed: true,
		},
		"allow list admits listed": {
			spec:    &model.AgentSpec{Name: "a", AllowedActions: []string{"calculator"}},
			tool:    "calculator",
			allowed: true,
		},
		"allow list rejects unlisted": {
			spec:    &model.AgentSpec{Name: "a", AllowedActions: []string{"calculator"}},
			tool:    "read_file",
			allowed: false,
		},
		"block list wins over allow list": {
			spec:    &model.AgentSpec{Name: "a", AllowedActions: []string{"calculator"}, BlockedActions: []string{"calculator"}},
			tool:    "calculator",
			allowed: false,
		},
	}
	for name, scenario := range scenarios {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, scenario.allowed, gateway.Allowed(scenario.spec, scenario.tool))
		})
	}
}

func TestGatewayInvoke(t *testing.T) {
	registry := NewDefaultRegistry(t.TempDir())
	gateway := NewGateway(registry)

	res := gateway.Invoke(context.Background(), &model.AgentSpec{Name: "a", BlockedActions: []string{"calculator"}}, "calculator", map[string]any{"expression": "1+1"})
	assert.False(t, res.Success)
	assert.Equal(t, model.TOOL_NOT_ALLOWED, res.ErrorKind)

	res = gateway.Invoke(context.Background(), &model.AgentSpec{Name: "a"}, "no_such_tool", nil)
	assert.False(t, res.Success)
	assert.Empty(t, res.ErrorKind)

	res = gateway.Invoke(context.Background(), &model.AgentSpec{Name: "a"}, "calculator", map[string]any{"expression": "6 * 7"})
	assert.True(t, res.Success)
	assert.Equal(t, "42", res.Output)
	assert.Equal(t, "42", res.Observation())
}

func TestGatewaySchemasFiltered(t *testing.T) {
	registry := NewDefaultRegistry(t.TempDir())
	gateway := NewGateway(registry)

	schemas := gateway.SchemasFor(&model.AgentSpec{Name: "a", AllowedActions: []string{"calculator", "http_request"}})
	assert.Len(t, schemas, 2)
	names := []string{schemas[0].Name, schemas[1].Name}
	assert.Contains(t, names, "calculator")
	assert.Contains(t, names, "http_request")
}
