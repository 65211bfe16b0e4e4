// Package transfer provides the put and get actions.
package transfer

import (
	"context"
	"fmt"

	"github.com/codemonument/sftpc/internal/action"
)

func init() {
	action.Register(&Put{})
	action.Register(&Get{})
}

// Put uploads one or more local files.
type Put struct{}

// Name returns the action identifier.
func (a *Put) Name() string {
	return "put"
}

// Run executes the put action. Several files are uploaded one after
// another; the first failure stops the rest.
//
// Parameters:
//   - src (string or list, required): Local file(s), relative to the session cwd
//   - dest (string): Remote file or directory (default: remote working directory)
func (a *Put) Run(ctx context.Context, sess action.Session, params map[string]any) (*action.Result, error) {
	srcs, err := action.RequireStrings(params, "src")
	if err != nil {
		return nil, err
	}
	dest := action.GetString(params, "dest", "")

	if len(srcs) == 1 {
		f, err := sess.UploadFile(srcs[0], dest)
		if err != nil {
			return nil, fmt.Errorf("failed to send put: %w", err)
		}
		if _, err := f.Await(ctx); err != nil {
			return nil, err
		}
		return action.ChangedWithData(fmt.Sprintf("uploaded %s", srcs[0]), map[string]any{
			"src":      srcs[0],
			"dest":     dest,
			"uploaded": 1,
		}), nil
	}

	results, err := sess.UploadFiles(ctx, srcs, dest)
	if err != nil {
		return nil, &TransferError{Done: len(results), Total: len(srcs), Err: err}
	}

	return action.ChangedWithData(fmt.Sprintf("uploaded %d files", len(results)), map[string]any{
		"src":      srcs,
		"dest":     dest,
		"uploaded": len(results),
	}), nil
}

// Get downloads a remote file.
type Get struct{}

// Name returns the action identifier.
func (a *Get) Name() string {
	return "get"
}

// Run executes the get action.
//
// Parameters:
//   - src (string, required): Remote file
//   - dest (string): Local file or directory (default: session cwd)
func (a *Get) Run(ctx context.Context, sess action.Session, params map[string]any) (*action.Result, error) {
	src, err := action.RequireString(params, "src")
	if err != nil {
		return nil, err
	}
	dest := action.GetString(params, "dest", "")

	f, err := sess.DownloadFile(src, dest)
	if err != nil {
		return nil, fmt.Errorf("failed to send get: %w", err)
	}
	if _, err := f.Await(ctx); err != nil {
		return nil, err
	}

	return action.ChangedWithData(fmt.Sprintf("downloaded %s", src), map[string]any{
		"src":  src,
		"dest": dest,
	}), nil
}

// TransferError reports a multi-file upload that stopped early.
type TransferError struct {
	Done  int
	Total int
	Err   error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("upload stopped after %d of %d files: %v", e.Done, e.Total, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// Ensure the actions implement the action.Action interface.
var (
	_ action.Action = (*Put)(nil)
	_ action.Action = (*Get)(nil)
)
