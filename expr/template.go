package expr

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/oliveagle/jsonpath"
)

var placeholderRegex = regexp.MustCompile(`\{\{([^}]+)\}\}`)

type MissingVariableError struct {
	Name string
}

func (e *MissingVariableError) Error() string {
	return fmt.Sprintf("variable '%s' not found in context", e.Name)
}

// Render substitutes every {{name}} occurrence with the stringified context
// value. Dotted names resolve as paths into nested step results. A name that
// cannot be resolved is a hard error unless it belongs to a step skipped by
// its condition, in which case it renders as the empty string.
func Render(template string, ctx map[string]any, skipped map[string]bool) (string, error) {
	var missing *MissingVariableError
	out := placeholderRegex.ReplaceAllStringFunc(template, func(token string) string {
		name := strings.TrimSpace(token[2 : len(token)-2])
		value, found := lookup(ctx, name)
		if found {
			return stringify(value)
		}
		if skipped[name] || skipped[rootOf(name)] {
			return ""
		}
		if missing == nil {
			missing = &MissingVariableError{Name: name}
		}
		return token
	})
	if missing != nil {
		return "", missing
	}
	return out, nil
}

// Vars returns the placeholder names referenced by a template, used by
// validation to check references at build time.
func Vars(template string) []string {
	matches := placeholderRegex.FindAllStringSubmatch(template, -1)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, strings.TrimSpace(m[1]))
	}
	return names
}

func lookup(ctx map[string]any, name string) (any, bool) {
	if v, ok := ctx[name]; ok {
		return unwrap(v), true
	}
	if strings.Contains(name, ".") {
		if _, ok := ctx[rootOf(name)]; !ok {
			return nil, false
		}
		v, err := jsonpath.JsonPathLookup(ctx, "$."+name)
		if err != nil {
			return nil, false
		}
		return unwrap(v), true
	}
	return nil, false
}

// unwrap reduces a stored step-result map to its output text so that
// {{step_id}} and conditions over step ids read naturally.
func unwrap(v any) any {
	if m, ok := v.(map[string]any); ok {
		if out, ok := m["output"]; ok {
			return out
		}
	}
	return v
}

func stringify(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func rootOf(name string) string {
	if idx := strings.Index(name, "."); idx > 0 {
		return name[:idx]
	}
	return name
}
