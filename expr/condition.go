package expr

import (
	"fmt"
	"strings"
)

type CondOp string

const COND_EMPTY CondOp = "empty"
const COND_NOT_EMPTY CondOp = "not empty"
const COND_EQ CondOp = "=="
const COND_NE CondOp = "!="
const COND_CONTAINS CondOp = "contains"

// Condition is the parsed form of a step gating expression. The grammar is
// deliberately closed: a variable, one operator, at most one literal.
type Condition struct {
	Var     string
	Op      CondOp
	Literal string
}

// ParseCondition parses one of:
//
//	<var> not empty | <var> empty | <var> == <lit> | <var> != <lit> | <var> contains <lit>
//
// Anything else is a configuration error surfaced at graph build time.
func ParseCondition(s string) (*Condition, error) {
	cond := strings.TrimSpace(s)
	if cond == "" {
		return nil, fmt.Errorf("empty condition")
	}
	if strings.HasSuffix(cond, " not empty") {
		name := strings.TrimSpace(strings.TrimSuffix(cond, " not empty"))
		if name == "" || strings.ContainsAny(name, " \t") {
			return nil, fmt.Errorf("bad variable in condition %q", s)
		}
		return &Condition{Var: name, Op: COND_NOT_EMPTY}, nil
	}
	if strings.HasSuffix(cond, " empty") {
		name := strings.TrimSpace(strings.TrimSuffix(cond, " empty"))
		if name == "" || strings.ContainsAny(name, " \t") {
			return nil, fmt.Errorf("bad variable in condition %q", s)
		}
		return &Condition{Var: name, Op: COND_EMPTY}, nil
	}
	for _, op := range []CondOp{COND_EQ, COND_NE, COND_CONTAINS} {
		sep := fmt.Sprintf(" %s ", op)
		if strings.Contains(cond, sep) {
			parts := strings.SplitN(cond, sep, 2)
			name := strings.TrimSpace(parts[0])
			lit := unquote(strings.TrimSpace(parts[1]))
			if name == "" || strings.ContainsAny(name, " \t") {
				return nil, fmt.Errorf("bad variable in condition %q", s)
			}
			return &Condition{Var: name, Op: op, Literal: lit}, nil
		}
	}
	return nil, fmt.Errorf("unknown operator in condition %q", s)
}

// Eval never fails at run time: an unknown variable evaluates as the
// empty string.
func (c *Condition) Eval(ctx map[string]any) bool {
	value, found := lookup(ctx, c.Var)
	str := ""
	if found {
		str = stringify(value)
	}
	switch c.Op {
	case COND_EMPTY:
		return str == ""
	case COND_NOT_EMPTY:
		return str != ""
	case COND_EQ:
		return strings.EqualFold(str, c.Literal)
	case COND_NE:
		return !strings.EqualFold(str, c.Literal)
	case COND_CONTAINS:
		return strings.Contains(str, c.Literal)
	}
	return false
}

func (c *Condition) String() string {
	switch c.Op {
	case COND_EMPTY, COND_NOT_EMPTY:
		return fmt.Sprintf("%s %s", c.Var, c.Op)
	}
	return fmt.Sprintf("%s %s %s", c.Var, c.Op, c.Literal)
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
