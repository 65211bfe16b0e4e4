// Package listing provides the ls and lls actions.
package listing

import (
	"context"
	"fmt"
	"strings"

	"github.com/codemonument/sftpc/internal/action"
	"github.com/codemonument/sftpc/pkg/future"
)

func init() {
	action.Register(&Listing{name: "ls", remote: true})
	action.Register(&Listing{name: "lls"})
}

// Listing lists a remote (ls) or local (lls) directory.
type Listing struct {
	name   string
	remote bool
}

// Name returns the action identifier.
func (a *Listing) Name() string {
	return a.name
}

// Run executes the listing.
//
// Parameters:
//   - path (string): Directory or glob to list (default: working directory)
func (a *Listing) Run(ctx context.Context, sess action.Session, params map[string]any) (*action.Result, error) {
	path := action.GetString(params, "path", "")

	var (
		f   *future.Future[[]string]
		err error
	)
	if a.remote {
		f, err = sess.Ls(path)
	} else {
		f, err = sess.Lls(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to send %s: %w", a.name, err)
	}

	lines, err := f.Await(ctx)
	if err != nil {
		return nil, err
	}

	return action.UnchangedWithData(fmt.Sprintf("%d entries", len(lines)), map[string]any{
		"path":   path,
		"lines":  lines,
		"stdout": strings.Join(lines, "\n"),
	}), nil
}

// Ensure Listing implements the action.Action interface.
var _ action.Action = (*Listing)(nil)
