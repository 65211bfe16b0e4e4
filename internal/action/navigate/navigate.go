// Package navigate provides the cd and pwd actions.
package navigate

import (
	"context"
	"fmt"

	"github.com/codemonument/sftpc/internal/action"
)

func init() {
	action.Register(&Cd{})
	action.Register(&Pwd{})
}

// Cd changes the remote working directory.
type Cd struct{}

// Name returns the action identifier.
func (a *Cd) Name() string {
	return "cd"
}

// Run executes the cd action.
//
// Parameters:
//   - dir (string, required): The remote directory to change into
func (a *Cd) Run(ctx context.Context, sess action.Session, params map[string]any) (*action.Result, error) {
	dir, err := action.RequireString(params, "dir")
	if err != nil {
		return nil, err
	}

	f, err := sess.Cd(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to send cd: %w", err)
	}
	if _, err := f.Await(ctx); err != nil {
		return nil, err
	}

	return action.ChangedWithData(fmt.Sprintf("remote directory is now %s", dir), map[string]any{
		"dir": dir,
	}), nil
}

// Pwd reads the remote working directory.
type Pwd struct{}

// Name returns the action identifier.
func (a *Pwd) Name() string {
	return "pwd"
}

// Run executes the pwd action. It takes no parameters.
func (a *Pwd) Run(ctx context.Context, sess action.Session, params map[string]any) (*action.Result, error) {
	f, err := sess.Pwd()
	if err != nil {
		return nil, fmt.Errorf("failed to send pwd: %w", err)
	}
	dir, err := f.Await(ctx)
	if err != nil {
		return nil, err
	}

	return action.UnchangedWithData(dir, map[string]any{
		"dir": dir,
	}), nil
}

// Ensure the actions implement the action.Action interface.
var (
	_ action.Action = (*Cd)(nil)
	_ action.Action = (*Pwd)(nil)
)
