package tool

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var _ Tool = new(ReadFileTool)
var _ Tool = new(WriteFileTool)

// file tools are confined to a base directory; paths escaping it are
// rejected before touching the filesystem
func resolvePath(baseDir string, path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("missing 'path' argument")
	}
	abs, err := filepath.Abs(filepath.Join(baseDir, filepath.Clean(path)))
	if err != nil {
		return "", err
	}
	base, err := filepath.Abs(baseDir)
	if err != nil {
		return "", err
	}
	if abs != base && !strings.HasPrefix(abs, base+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the working directory", path)
	}
	return abs, nil
}

type ReadFileTool struct {
	baseDir string
}

func NewReadFileTool(baseDir string) *ReadFileTool {
	return &ReadFileTool{baseDir: baseDir}
}

func (t *ReadFileTool) Name() string {
	return "read_file"
}

func (t *ReadFileTool) Description() string {
	return "Read a text file from the working directory"
}

func (t *ReadFileTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{"type": "string", "description": "file path relative to the working directory"},
		},
		"required": []string{"path"},
	}
}

func (t *ReadFileTool) Execute(ctx context.Context, args map[string]any) (*Result, error) {
	path, _ := args["path"].(string)
	abs, err := resolvePath(t.baseDir, path)
	if err != nil {
		return &Result{Success: false, Error: err.Error()}, nil
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return &Result{Success: false, Error: err.Error()}, nil
	}
	return &Result{Success: true, Output: string(data), Raw: string(data)}, nil
}

type WriteFileTool struct {
	baseDir string
}

func NewWriteFileTool(baseDir string) *WriteFileTool {
	return &WriteFileTool{baseDir: baseDir}
}

func (t *WriteFileTool) Name() string {
	return "write_file"
}

func (t *WriteFileTool) Description() string {
	return "Write text content to a file in the working directory"
}

func (t *WriteFileTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":    map[string]any{"type": "string", "description": "file path relative to the working directory"},
			"content": map[string]any{"type": "string", "description": "content to write"},
		},
		"required": []string{"path", "content"},
	}
}

func (t *WriteFileTool) Execute(ctx context.Context, args map[string]any) (*Result, error) {
	path, _ := args["path"].(string)
	content, _ := args["content"].(string)
	abs, err := resolvePath(t.baseDir, path)
	if err != nil {
		return &Result{Success: false, Error: err.Error()}, nil
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return &Result{Success: false, Error: err.Error()}, nil
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		return &Result{Success: false, Error: err.Error()}, nil
	}
	return &Result{Success: true, Output: fmt.Sprintf("wrote %d bytes to %s", len(content), path)}, nil
}
