// Package file provides an action for managing remote files and directories.
package file

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/codemonument/sftpc/internal/action"
	"github.com/codemonument/sftpc/pkg/session"
)

func init() {
	action.Register(&Action{})
}

// State represents the desired state of a remote path.
type State string

const (
	StateFile      State = "file"      // Ensure file exists (error if doesn't exist)
	StateDirectory State = "directory" // Ensure directory exists
	StateLink      State = "link"      // Ensure symlink exists
	StateAbsent    State = "absent"    // Ensure path does not exist
)

// Action manages remote paths with the sftp mkdir, rm, rmdir, ln, chmod,
// chown, and chgrp commands.
type Action struct{}

// Name returns the action identifier.
func (a *Action) Name() string {
	return "file"
}

// Run executes the file action.
//
// Parameters:
//   - path (string, required): Remote path
//   - state (string): Desired state - file, directory, link, absent (default: file)
//   - mode (string): Permissions in octal (e.g., "0755", "0644")
//   - owner (string): Numeric owner id
//   - group (string): Numeric group id
//   - src (string): Link target (required when state=link)
//   - force (bool): Replace an existing path when creating a link (default: false)
func (a *Action) Run(ctx context.Context, sess action.Session, params map[string]any) (*action.Result, error) {
	path, err := action.RequireString(params, "path")
	if err != nil {
		return nil, err
	}

	state := State(action.GetString(params, "state", string(StateFile)))
	mode := action.GetString(params, "mode", "")
	owner := action.GetString(params, "owner", "")
	group := action.GetString(params, "group", "")
	src := action.GetString(params, "src", "")
	force := action.GetBool(params, "force", false)

	switch state {
	case StateFile, StateDirectory, StateLink, StateAbsent:
	default:
		return nil, fmt.Errorf("invalid state '%s': must be file, directory, link, or absent", state)
	}

	if state == StateLink && src == "" {
		return nil, fmt.Errorf("'src' parameter is required when state=link")
	}
	if err := action.ParseMode(mode); err != nil {
		return nil, err
	}
	for key, id := range map[string]string{"owner": owner, "group": group} {
		if id == "" {
			continue
		}
		if _, err := strconv.Atoi(id); err != nil {
			return nil, fmt.Errorf("'%s' must be a numeric id, got '%s'", key, id)
		}
	}

	info, err := action.Stat(ctx, sess, path)
	if err != nil {
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}

	var messages []string

	switch state {
	case StateAbsent:
		if !info.Exists {
			return action.Unchanged("path already absent"), nil
		}
		if err := removePath(ctx, sess, path, info.IsDir); err != nil {
			return nil, err
		}
		return action.ChangedWithData("path removed", map[string]any{"path": path}), nil

	case StateDirectory:
		if !info.Exists {
			if err := run(ctx, sess, "failed to create directory", "mkdir", path); err != nil {
				return nil, err
			}
			messages = append(messages, "directory created")
		} else if !info.IsDir {
			return nil, fmt.Errorf("path exists but is not a directory")
		}

	case StateFile:
		if !info.Exists {
			return nil, fmt.Errorf("path does not exist; use put to create it")
		}
		if info.IsDir {
			return nil, fmt.Errorf("path is a directory, not a file")
		}

	case StateLink:
		created, err := ensureSymlink(ctx, sess, src, path, force, info)
		if err != nil {
			return nil, err
		}
		if created {
			messages = append(messages, "symlink created")
		}
	}

	if mode != "" {
		if err := run(ctx, sess, "failed to set mode", "chmod", mode, path); err != nil {
			return nil, err
		}
		messages = append(messages, "mode set")
	}
	if owner != "" {
		if err := run(ctx, sess, "failed to set owner", "chown", owner, path); err != nil {
			return nil, err
		}
		messages = append(messages, "owner set")
	}
	if group != "" {
		if err := run(ctx, sess, "failed to set group", "chgrp", group, path); err != nil {
			return nil, err
		}
		messages = append(messages, "group set")
	}

	if len(messages) == 0 {
		return action.UnchangedWithData("no changes needed", map[string]any{"path": path}), nil
	}

	return action.ChangedWithData(strings.Join(messages, ", "), map[string]any{"path": path}), nil
}

// removePath removes a file or an empty directory.
func removePath(ctx context.Context, sess action.Session, path string, isDir bool) error {
	if isDir {
		return run(ctx, sess, "failed to remove directory", "rmdir", path)
	}
	return run(ctx, sess, "failed to remove path", "rm", path)
}

// ensureSymlink creates path as a link to src.
func ensureSymlink(ctx context.Context, sess action.Session, src, path string, force bool, info *action.RemoteInfo) (bool, error) {
	if info.IsLink && !force {
		return false, nil
	}

	if info.Exists && !force {
		return false, fmt.Errorf("destination exists and force=false")
	}

	if info.Exists {
		if err := removePath(ctx, sess, path, info.IsDir); err != nil {
			return false, err
		}
	}

	if err := run(ctx, sess, "failed to create symlink", "ln", "-s", src, path); err != nil {
		return false, err
	}
	return true, nil
}

// run sends one sftp command and wraps a refusal with msg.
func run(ctx context.Context, sess action.Session, msg, cmd string, args ...string) error {
	if _, err := action.Exec(ctx, sess, session.JoinCommand(cmd, args...)); err != nil {
		return fmt.Errorf("%s: %w", msg, err)
	}
	return nil
}

// Ensure Action implements the action.Action interface.
var _ action.Action = (*Action)(nil)
