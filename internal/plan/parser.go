package plan

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/codemonument/sftpc/internal/action"
)

// knownStepFields are step directives, not action names.
var knownStepFields = map[string]bool{
	"name":          true,
	"when":          true,
	"register":      true,
	"ignore_errors": true,
	"retries":       true,
	"delay":         true,
	"loop":          true,
	"loop_var":      true,
}

// shorthandParam is the parameter a bare shorthand value fills per action.
var shorthandParam = map[string]string{
	"cd":      "dir",
	"put":     "src",
	"get":     "src",
	"ls":      "path",
	"lls":     "path",
	"command": "cmd",
	"file":    "path",
}

// ParseFile parses plans from a YAML file.
func ParseFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan: %w", err)
	}

	return Parse(data, path)
}

// Parse parses plans from YAML data. The document is either a single plan
// or a list of plans.
func Parse(data []byte, path string) (*File, error) {
	var rawPlans []map[string]any
	if err := yaml.Unmarshal(data, &rawPlans); err != nil {
		var rawPlan map[string]any
		if err := yaml.Unmarshal(data, &rawPlan); err != nil {
			return nil, fmt.Errorf("invalid plan format: %w", err)
		}
		rawPlans = []map[string]any{rawPlan}
	}

	if len(rawPlans) == 0 {
		return nil, fmt.Errorf("plan file %s contains no plans", path)
	}

	file := &File{Path: path}

	for i, rawPlan := range rawPlans {
		p, err := parseRawPlan(rawPlan)
		if err != nil {
			return nil, fmt.Errorf("plan %d: %w", i+1, err)
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("plan %d: %w", i+1, err)
		}
		file.Plans = append(file.Plans, p)
	}

	return file, nil
}

// parseRawPlan parses a single plan from a raw map.
func parseRawPlan(raw map[string]any) (*Plan, error) {
	p := &Plan{
		Vars: make(map[string]any),
	}

	if v, ok := raw["name"].(string); ok {
		p.Name = v
	}
	if v, ok := raw["host"].(string); ok {
		p.Host = v
	}
	if v, ok := raw["cwd"].(string); ok {
		p.Cwd = v
	}
	if v, ok := raw["label"].(string); ok {
		p.Label = v
	}
	if v, ok := raw["verbosity"].(string); ok {
		p.Verbosity = v
	}
	if v, ok := raw["pty"].(bool); ok {
		p.PTY = v
	}
	if v, ok := raw["container"].(string); ok {
		p.Container = v
	}
	if v, ok := raw["gather_facts"].(bool); ok {
		p.GatherFacts = &v
	}

	if vars, ok := raw["vars"].(map[string]any); ok {
		p.Vars = vars
	}

	if args, ok := raw["args"]; ok {
		list, ok := args.([]any)
		if !ok {
			return nil, fmt.Errorf("'args' must be a list")
		}
		for _, a := range list {
			p.Args = append(p.Args, fmt.Sprint(a))
		}
	}

	if steps, ok := raw["steps"].([]any); ok {
		for i, rawStep := range steps {
			stepMap, ok := rawStep.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("step %d: invalid step format", i+1)
			}
			step, err := parseRawStep(stepMap)
			if err != nil {
				return nil, fmt.Errorf("step %d: %w", i+1, err)
			}
			p.Steps = append(p.Steps, step)
		}
	}

	return p, nil
}

// parseRawStep parses a single step from a raw map.
func parseRawStep(raw map[string]any) (*Step, error) {
	step := &Step{
		Params: make(map[string]any),
	}

	if v, ok := raw["name"].(string); ok {
		step.Name = v
	}
	if v, ok := raw["when"].(string); ok {
		step.When = v
	}
	if v, ok := raw["register"].(string); ok {
		step.Register = v
	}
	if v, ok := raw["ignore_errors"].(bool); ok {
		step.IgnoreErrors = v
	}
	if v, ok := raw["retries"].(int); ok {
		step.Retries = v
	}
	if v, ok := raw["delay"].(int); ok {
		step.Delay = v
	}
	if v, ok := raw["loop_var"].(string); ok {
		step.LoopVar = v
	}
	if loop, ok := raw["loop"]; ok {
		items, ok := loop.([]any)
		if !ok {
			return nil, fmt.Errorf("'loop' must be a list")
		}
		step.Loop = items
	}

	// The action is the one key that is not a step directive.
	for _, key := range sortedKeys(raw) {
		if knownStepFields[key] {
			continue
		}

		if step.Action != "" {
			return nil, fmt.Errorf("multiple actions specified: %s and %s", step.Action, key)
		}

		step.Action = key

		switch params := raw[key].(type) {
		case map[string]any:
			step.Params = params
		case nil:
			step.Params = make(map[string]any)
		default:
			// Short form: action: "arg"
			step.Params = map[string]any{"_raw": params}
		}
	}

	return step, nil
}

// ExpandShorthand expands shorthand action syntax.
// For example, "put: a.txt" becomes src=a.txt and
// "get: src=/r/a.txt dest=out/" becomes two parameters.
func ExpandShorthand(step *Step) {
	raw, ok := step.Params["_raw"]
	if !ok {
		return
	}

	s, isString := raw.(string)
	if !isString || !strings.Contains(s, "=") || step.Action == "command" {
		key, known := shorthandParam[step.Action]
		if !known {
			key = "name"
		}
		step.Params = map[string]any{key: raw}
		return
	}

	newParams := make(map[string]any)
	for _, part := range strings.Fields(s) {
		if idx := strings.Index(part, "="); idx > 0 {
			newParams[part[:idx]] = strings.Trim(part[idx+1:], "\"'")
		}
	}

	step.Params = newParams
}

// ResolveAction checks if the step's action exists in the registry.
func ResolveAction(step *Step) error {
	if step.Action == "" {
		return fmt.Errorf("no action specified")
	}

	if action.Get(step.Action) == nil {
		return fmt.Errorf("unknown action '%s' (available: %s)",
			step.Action, strings.Join(action.List(), ", "))
	}

	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
