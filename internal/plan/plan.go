// Package plan defines the structure and parsing of sftpc plan files.
package plan

import (
	"fmt"
	"strings"

	"github.com/codemonument/sftpc/pkg/logging"
)

// File is a parsed plan file with one or more plans.
type File struct {
	// Path is the file path the plans were loaded from.
	Path string

	// Plans is the list of plans in the file.
	Plans []*Plan
}

// Plan is a sequence of steps run in one sftp session.
type Plan struct {
	// Name is an optional description of the plan.
	Name string

	// Host is the sftp destination, e.g. user@example.com.
	Host string

	// Cwd is the local working directory of the sftp process.
	Cwd string

	// Label prefixes the session's diagnostic lines.
	Label string

	// Verbosity is one of the logging mode names (default: normal).
	Verbosity string

	// PTY runs sftp on a pseudo-terminal.
	PTY bool

	// Container runs sftp inside this docker container.
	Container string

	// Args are extra arguments passed to sftp before the host.
	Args []string

	// Vars defines variables available to all steps.
	Vars map[string]any

	// Steps is the list of steps to run.
	Steps []*Step

	// GatherFacts controls whether session facts are gathered (default: true).
	GatherFacts *bool
}

// Step is one action with its parameters.
type Step struct {
	// Name is a description of the step.
	Name string

	// Action is the name of the action to run.
	Action string

	// Params are the parameters passed to the action.
	Params map[string]any

	// When is a condition; the step runs only if it is true.
	When string

	// Register stores the step result in a variable with this name.
	Register string

	// IgnoreErrors continues the plan even if the step fails.
	IgnoreErrors bool

	// Retries is the number of times to retry on failure.
	Retries int

	// Delay is seconds to wait between retries.
	Delay int

	// Loop runs the step once per item.
	Loop []any

	// LoopVar is the variable name for the current item (default: "item").
	LoopVar string
}

// GetLoopVar returns the loop variable name, defaulting to "item".
func (s *Step) GetLoopVar() string {
	if s.LoopVar == "" {
		return "item"
	}
	return s.LoopVar
}

// ShouldGatherFacts returns whether facts should be gathered for this plan.
func (p *Plan) ShouldGatherFacts() bool {
	if p.GatherFacts == nil {
		return true
	}
	return *p.GatherFacts
}

// Mode returns the plan's verbosity, defaulting to normal.
func (p *Plan) Mode() (logging.Mode, error) {
	if p.Verbosity == "" {
		return logging.ModeNormal, nil
	}
	return logging.ParseMode(p.Verbosity)
}

// Title returns the plan name, or its host when it has none.
func (p *Plan) Title() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Host
}

// Validate checks the plan for common errors.
func (p *Plan) Validate() error {
	if p.Host == "" {
		return fmt.Errorf("plan is missing required 'host' field")
	}

	if _, err := p.Mode(); err != nil {
		return err
	}

	if p.PTY && p.Container != "" {
		return fmt.Errorf("'pty' and 'container' cannot be combined")
	}

	for i, step := range p.Steps {
		if err := step.Validate(); err != nil {
			stepName := step.Name
			if stepName == "" {
				stepName = fmt.Sprintf("step %d", i+1)
			}
			return fmt.Errorf("%s: %w", stepName, err)
		}
	}

	return nil
}

// Validate checks the step for common errors.
func (s *Step) Validate() error {
	if s.Action == "" {
		return fmt.Errorf("step has no action specified")
	}

	if s.Retries < 0 {
		return fmt.Errorf("retries cannot be negative")
	}

	if s.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}

	return nil
}

// String returns a human-readable description of the step.
func (s *Step) String() string {
	if s.Name != "" {
		return s.Name
	}
	return fmt.Sprintf("%s: %v", s.Action, summarizeParams(s.Params))
}

// summarizeParams creates a brief summary of step parameters.
func summarizeParams(params map[string]any) string {
	if len(params) == 0 {
		return "{}"
	}

	var parts []string
	for _, k := range sortedKeys(params) {
		switch val := params[k].(type) {
		case string:
			if len(val) > 30 {
				val = val[:27] + "..."
			}
			parts = append(parts, fmt.Sprintf("%s=%q", k, val))
		default:
			parts = append(parts, fmt.Sprintf("%s=%v", k, val))
		}
		if len(parts) >= 3 {
			parts = append(parts, "...")
			break
		}
	}

	return "{" + strings.Join(parts, ", ") + "}"
}
