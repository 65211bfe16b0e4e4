package action

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/codemonument/sftpc/pkg/session"
)

// failureMarkers are fragments of the messages sftp prints when the server
// refuses a remote operation.
var failureMarkers = []string{
	"Couldn't ",
	"Can't ",
	": Failure",
	"not found",
	"No such file",
	"Permission denied",
}

// RemoteError is an sftp command whose output reports a failure.
type RemoteError struct {
	Cmd     string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %s", e.Cmd, e.Message)
}

// NotFound reports whether the failure is a missing path.
func (e *RemoteError) NotFound() bool {
	return strings.Contains(e.Message, "not found") || strings.Contains(e.Message, "No such file")
}

// Exec sends cmd and waits for its output. Output carrying an sftp error
// message is returned as a *RemoteError.
func Exec(ctx context.Context, sess Session, cmd string) ([]string, error) {
	f, err := sess.SendCommand(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to send %q: %w", cmd, err)
	}
	lines, err := f.Await(ctx)
	if err != nil {
		return nil, err
	}

	for _, line := range lines {
		for _, marker := range failureMarkers {
			if strings.Contains(line, marker) {
				return lines, &RemoteError{Cmd: cmd, Message: line}
			}
		}
	}
	return lines, nil
}

// RemoteInfo holds what a long listing tells about a remote path.
type RemoteInfo struct {
	Exists bool
	IsDir  bool
	IsLink bool
	Mode   string
}

// Stat lists path with "ls -la". A directory lists itself first as ".",
// anything else lists a single entry.
func Stat(ctx context.Context, sess Session, path string) (*RemoteInfo, error) {
	lines, err := Exec(ctx, sess, session.JoinCommand("ls", "-la", path))
	if err != nil {
		var remoteErr *RemoteError
		if errors.As(err, &remoteErr) && remoteErr.NotFound() {
			return &RemoteInfo{}, nil
		}
		return nil, err
	}

	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 || len(fields[0]) != 10 {
			continue
		}
		perms := fields[0]
		return &RemoteInfo{
			Exists: true,
			IsDir:  perms[0] == 'd',
			IsLink: perms[0] == 'l',
			Mode:   perms,
		}, nil
	}

	// An empty listing is a path sftp could stat but not list.
	return &RemoteInfo{Exists: true}, nil
}
