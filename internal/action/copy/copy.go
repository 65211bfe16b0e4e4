// Package copy provides an action for placing file content on the remote side.
package copy

import (
	"context"
	"fmt"
	"os"

	"github.com/codemonument/sftpc/internal/action"
)

func init() {
	action.Register(&Action{})
}

// Action writes a local file or inline content to a remote path.
type Action struct{}

// Name returns the action identifier.
func (a *Action) Name() string {
	return "copy"
}

// Run executes the copy action.
//
// Parameters:
//   - dest (string, required): Remote destination path
//   - src (string): Local source file (mutually exclusive with content)
//   - content (string): Inline content to write (mutually exclusive with src)
//   - mode (string): Permissions in octal (e.g., "0644")
//   - backup (bool): Rename an existing destination before overwriting (default: false)
//   - force (bool): Overwrite even if destination exists (default: true)
//   - create_dirs (bool): Create parent directories if needed (default: false)
func (a *Action) Run(ctx context.Context, sess action.Session, params map[string]any) (*action.Result, error) {
	dest, err := action.RequireString(params, "dest")
	if err != nil {
		return nil, err
	}

	src := action.GetString(params, "src", "")
	content, hasContent := params["content"].(string)
	mode := action.GetString(params, "mode", "")

	if src == "" && !hasContent {
		return nil, fmt.Errorf("either 'src' or 'content' parameter is required")
	}
	if src != "" && hasContent {
		return nil, fmt.Errorf("'src' and 'content' are mutually exclusive")
	}
	if err := action.ParseMode(mode); err != nil {
		return nil, err
	}

	data := []byte(content)
	if src != "" {
		data, err = os.ReadFile(src)
		if err != nil {
			return nil, fmt.Errorf("failed to read source file: %w", err)
		}
	}

	return action.UploadContent(ctx, sess, data, dest, action.ContentOptions{
		Mode:       mode,
		Force:      action.GetBool(params, "force", true),
		Backup:     action.GetBool(params, "backup", false),
		CreateDirs: action.GetBool(params, "create_dirs", false),
	})
}

// Ensure Action implements the action.Action interface.
var _ action.Action = (*Action)(nil)
