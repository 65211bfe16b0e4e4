package action

import "fmt"

// RequireString returns a non-empty string parameter.
func RequireString(params map[string]any, key string) (string, error) {
	v, ok := params[key]
	if !ok {
		return "", fmt.Errorf("required parameter '%s' is missing", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("parameter '%s' must be a string", key)
	}
	if s == "" {
		return "", fmt.Errorf("parameter '%s' cannot be empty", key)
	}
	return s, nil
}

// GetString returns a string parameter or defaultValue.
func GetString(params map[string]any, key, defaultValue string) string {
	v, ok := params[key]
	if !ok {
		return defaultValue
	}
	s, ok := v.(string)
	if !ok {
		return defaultValue
	}
	return s
}

// RequireStrings returns a parameter given either as one string or as a
// list of strings.
func RequireStrings(params map[string]any, key string) ([]string, error) {
	v, ok := params[key]
	if !ok {
		return nil, fmt.Errorf("required parameter '%s' is missing", key)
	}

	var out []string
	switch val := v.(type) {
	case string:
		out = []string{val}
	case []string:
		out = val
	case []any:
		for i, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("parameter '%s' item %d must be a string", key, i+1)
			}
			out = append(out, s)
		}
	default:
		return nil, fmt.Errorf("parameter '%s' must be a string or a list of strings", key)
	}

	for i, s := range out {
		if s == "" {
			return nil, fmt.Errorf("parameter '%s' item %d cannot be empty", key, i+1)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("parameter '%s' cannot be empty", key)
	}
	return out, nil
}

// GetBool returns a bool parameter or defaultValue.
func GetBool(params map[string]any, key string, defaultValue bool) bool {
	v, ok := params[key]
	if !ok {
		return defaultValue
	}
	b, ok := v.(bool)
	if !ok {
		return defaultValue
	}
	return b
}

// GetMap returns a map parameter or nil.
func GetMap(params map[string]any, key string) map[string]any {
	m, _ := params[key].(map[string]any)
	return m
}
