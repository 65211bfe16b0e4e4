package runner

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// varPattern matches {{ variable }} syntax.
var varPattern = regexp.MustCompile(`\{\{\s*([^}]+?)\s*\}\}`)

// interpolateParams recursively interpolates variables in step parameters.
func (r *Runner) interpolateParams(params map[string]any, pctx *PlanContext) (map[string]any, error) {
	result := make(map[string]any)

	for k, v := range params {
		interpolated, err := r.interpolateValue(v, pctx)
		if err != nil {
			return nil, fmt.Errorf("parameter '%s': %w", k, err)
		}
		result[k] = interpolated
	}

	return result, nil
}

// interpolateValue interpolates variables in a single value.
func (r *Runner) interpolateValue(v any, pctx *PlanContext) (any, error) {
	switch val := v.(type) {
	case string:
		return r.interpolateString(val, pctx)

	case []any:
		result := make([]any, len(val))
		for i, item := range val {
			interpolated, err := r.interpolateValue(item, pctx)
			if err != nil {
				return nil, err
			}
			result[i] = interpolated
		}
		return result, nil

	case map[string]any:
		result := make(map[string]any)
		for k, item := range val {
			interpolated, err := r.interpolateValue(item, pctx)
			if err != nil {
				return nil, err
			}
			result[k] = interpolated
		}
		return result, nil

	default:
		return v, nil
	}
}

// interpolateString replaces {{ var }} patterns with their values. A string
// that is exactly one reference keeps the referenced value's type, so a
// list variable can feed a multi-file put.
func (r *Runner) interpolateString(s string, pctx *PlanContext) (any, error) {
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "{{") && strings.HasSuffix(trimmed, "}}") {
		inner := strings.TrimSpace(trimmed[2 : len(trimmed)-2])
		if !strings.Contains(inner, "{{") {
			return r.resolveVariable(inner, pctx)
		}
	}

	var firstErr error
	result := varPattern.ReplaceAllStringFunc(s, func(match string) string {
		inner := varPattern.FindStringSubmatch(match)
		if len(inner) < 2 {
			return match
		}

		val, err := r.resolveVariable(inner[1], pctx)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return match
		}
		if val == nil {
			return ""
		}
		return fmt.Sprintf("%v", val)
	})

	if firstErr != nil {
		return nil, firstErr
	}
	return result, nil
}

// resolveVariable resolves a variable expression with optional filters,
// e.g. "files | join(' ')" or "name | default('x') | upper".
func (r *Runner) resolveVariable(expr string, pctx *PlanContext) (any, error) {
	parts := strings.Split(expr, "|")
	val := r.lookupVariable(strings.TrimSpace(parts[0]), pctx)

	for _, filter := range parts[1:] {
		var err error
		val, err = applyFilter(val, strings.TrimSpace(filter))
		if err != nil {
			return nil, err
		}
	}

	return val, nil
}

// lookupVariable looks up a variable by name or dotted path.
func (r *Runner) lookupVariable(name string, pctx *PlanContext) any {
	if val, ok := pctx.Registered[name]; ok {
		return val
	}

	if val, ok := pctx.Vars[name]; ok {
		return val
	}

	// Dotted paths, e.g. facts.remote_cwd, env.HOME, listing.data.lines
	if strings.Contains(name, ".") {
		parts := strings.Split(name, ".")
		current := r.lookupVariable(parts[0], pctx)

		for _, part := range parts[1:] {
			switch c := current.(type) {
			case map[string]any:
				current = c[part]
			case map[string]string:
				current = c[part]
			default:
				return nil
			}

			if current == nil {
				return nil
			}
		}

		return current
	}

	return nil
}

// applyFilter applies a filter to a value.
func applyFilter(val any, filter string) (any, error) {
	filterName := filter
	var filterArg string

	if idx := strings.Index(filter, "("); idx > 0 {
		filterName = strings.TrimSpace(filter[:idx])
		argPart := filter[idx+1:]
		if endIdx := strings.LastIndex(argPart, ")"); endIdx >= 0 {
			filterArg = strings.TrimSpace(argPart[:endIdx])
			filterArg = strings.Trim(filterArg, "'\"")
		}
	}

	switch filterName {
	case "default":
		if val == nil || val == "" {
			return filterArg, nil
		}
		return val, nil

	case "lower":
		if s, ok := val.(string); ok {
			return strings.ToLower(s), nil
		}
		return val, nil

	case "upper":
		if s, ok := val.(string); ok {
			return strings.ToUpper(s), nil
		}
		return val, nil

	case "trim":
		if s, ok := val.(string); ok {
			return strings.TrimSpace(s), nil
		}
		return val, nil

	case "basename":
		if s, ok := val.(string); ok {
			return path.Base(s), nil
		}
		return val, nil

	case "dirname":
		if s, ok := val.(string); ok {
			return path.Dir(s), nil
		}
		return val, nil

	case "bool":
		return isTruthy(val), nil

	case "string":
		return fmt.Sprintf("%v", val), nil

	case "int":
		switch v := val.(type) {
		case int:
			return v, nil
		case int64:
			return int(v), nil
		case float64:
			return int(v), nil
		case string:
			var i int
			_, _ = fmt.Sscanf(v, "%d", &i)
			return i, nil
		}
		return 0, nil

	case "first":
		if items := toList(val); len(items) > 0 {
			return items[0], nil
		}
		return nil, nil

	case "last":
		if items := toList(val); len(items) > 0 {
			return items[len(items)-1], nil
		}
		return nil, nil

	case "length", "count":
		switch v := val.(type) {
		case string:
			return len(v), nil
		case map[string]any:
			return len(v), nil
		}
		return len(toList(val)), nil

	case "join":
		items := toList(val)
		if items == nil {
			return val, nil
		}
		sep := filterArg
		if sep == "" {
			sep = ","
		}
		parts := make([]string, 0, len(items))
		for _, item := range items {
			parts = append(parts, fmt.Sprintf("%v", item))
		}
		return strings.Join(parts, sep), nil

	default:
		return nil, fmt.Errorf("unknown filter: %s", filterName)
	}
}

// toList returns val as a list when it is one. Captured sftp output is
// []string, yaml lists are []any.
func toList(val any) []any {
	switch v := val.(type) {
	case []any:
		return v
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	default:
		return nil
	}
}
