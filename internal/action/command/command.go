// Package command provides an action for sending raw sftp commands.
package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/codemonument/sftpc/internal/action"
)

func init() {
	action.Register(&Action{})
}

// Action sends a raw command line to sftp.
type Action struct{}

// Name returns the action identifier.
func (a *Action) Name() string {
	return "command"
}

// Run executes the command action. The output is matched against
// failed_when-style markers so commands like mkdir or rm can fail a step.
//
// Parameters:
//   - cmd (string, required): The sftp command line
//   - fail_on (string or list): Substrings that mark the output as a failure
func (a *Action) Run(ctx context.Context, sess action.Session, params map[string]any) (*action.Result, error) {
	cmd, err := action.RequireString(params, "cmd")
	if err != nil {
		return nil, err
	}

	var failOn []string
	if _, ok := params["fail_on"]; ok {
		failOn, err = action.RequireStrings(params, "fail_on")
		if err != nil {
			return nil, err
		}
	}

	f, err := sess.SendCommand(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to send command: %w", err)
	}
	lines, err := f.Await(ctx)
	if err != nil {
		return nil, err
	}

	for _, line := range lines {
		for _, marker := range failOn {
			if strings.Contains(line, marker) {
				return nil, &CommandError{Cmd: cmd, Output: lines}
			}
		}
	}

	return action.ChangedWithData("command executed successfully", map[string]any{
		"cmd":    cmd,
		"lines":  lines,
		"stdout": strings.Join(lines, "\n"),
	}), nil
}

// CommandError represents a command whose output matched a failure marker.
type CommandError struct {
	Cmd    string
	Output []string
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("command failed: %s", e.Cmd)
	if len(e.Output) > 0 {
		msg += fmt.Sprintf("\noutput: %s", strings.Join(e.Output, "\n"))
	}
	return msg
}

// Ensure Action implements the action.Action interface.
var _ action.Action = (*Action)(nil)
