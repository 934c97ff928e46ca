package tool

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var _ Tool = new(HttpRequestTool)

type HttpRequestTool struct {
	client *http.Client
}

func NewHttpRequestTool() *HttpRequestTool {
	return &HttpRequestTool{
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (t *HttpRequestTool) Name() string {
	return "http_request"
}

func (t *HttpRequestTool) Description() string {
	return "Make an HTTP request and return the response body"
}

func (t *HttpRequestTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url":    map[string]any{"type": "string", "description": "request url, http or https"},
			"method": map[string]any{"type": "string", "description": "GET, POST, PUT or DELETE, default GET"},
			"body":   map[string]any{"type": "string", "description": "request body for POST/PUT"},
		},
		"required": []string{"url"},
	}
}

func (t *HttpRequestTool) Execute(ctx context.Context, args map[string]any) (*Result, error) {
	url, _ := args["url"].(string)
	if url == "" {
		return &Result{Success: false, Error: "missing 'url' argument"}, nil
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return &Result{Success: false, Error: fmt.Sprintf("unsupported url scheme in %q", url)}, nil
	}
	method, _ := args["method"].(string)
	if method == "" {
		method = http.MethodGet
	}
	method = strings.ToUpper(method)
	var bodyReader io.Reader
	if body, ok := args["body"].(string); ok && body != "" {
		bodyReader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return &Result{Success: false, Error: err.Error()}, nil
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return &Result{Success: false, Error: err.Error()}, nil
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &Result{Success: false, Error: err.Error()}, nil
	}
	return &Result{
		Success: resp.StatusCode < 400,
		Output:  fmt.Sprintf("HTTP %d\n%s", resp.StatusCode, string(data)),
		Raw:     string(data),
		Error:   errorForStatus(resp.StatusCode),
	}, nil
}

func errorForStatus(code int) string {
	if code < 400 {
		return ""
	}
	return fmt.Sprintf("request failed with status %d", code)
}
