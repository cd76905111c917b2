package runtime

import (
	"context"
	"fmt"
	"strings"
)

// ConditionEvaluator decides a condition node's expression against session variables.
type ConditionEvaluator func(ctx context.Context, expression string, vars map[string]string) (bool, error)

// DefaultEvaluator understands a small expression language over remembered answers:
//
//	key                 answer present and non-empty
//	!key                answer missing or empty
//	key == 'value'      exact match
//	key != 'value'      mismatch
//	key contains 'x'    substring match
//	key in 'a,b,c'      membership in a comma separated list
//	true / false
//
// Terms combine with && and || (&& binds tighter). There are no parentheses.
func DefaultEvaluator(_ context.Context, expression string, vars map[string]string) (bool, error) {
	expr := strings.TrimSpace(expression)
	if expr == "" {
		return false, fmt.Errorf("empty condition")
	}

	for _, alt := range strings.Split(expr, "||") {
		all := true
		for _, term := range strings.Split(alt, "&&") {
			ok, err := evalTerm(strings.TrimSpace(term), vars)
			if err != nil {
				return false, err
			}
			if !ok {
				all = false
				break
			}
		}
		if all {
			return true, nil
		}
	}
	return false, nil
}

func evalTerm(term string, vars map[string]string) (bool, error) {
	switch term {
	case "":
		return false, fmt.Errorf("empty term")
	case "true":
		return true, nil
	case "false":
		return false, nil
	}

	for _, op := range []string{"==", "!=", " contains ", " in "} {
		idx := strings.Index(term, op)
		if idx < 0 {
			continue
		}
		key := strings.TrimSpace(term[:idx])
		if key == "" {
			return false, fmt.Errorf("missing variable in %q", term)
		}
		value := unquote(strings.TrimSpace(term[idx+len(op):]))
		actual := vars[key]

		switch op {
		case "==":
			return actual == value, nil
		case "!=":
			return actual != value, nil
		case " contains ":
			return strings.Contains(actual, value), nil
		default:
			for _, v := range strings.Split(value, ",") {
				if strings.TrimSpace(v) == actual {
					return true, nil
				}
			}
			return false, nil
		}
	}

	if strings.ContainsAny(term, " '\"=<>") {
		return false, fmt.Errorf("unsupported condition term %q", term)
	}
	if strings.HasPrefix(term, "!") {
		return vars[strings.TrimPrefix(term, "!")] == "", nil
	}
	return vars[term] != "", nil
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
