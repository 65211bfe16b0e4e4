// Package facts gathers information about a session's local and remote side.
package facts

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"runtime"

	"github.com/codemonument/sftpc/pkg/future"
)

// Session is the part of a session facts are read from.
type Session interface {
	Pwd() (*future.Future[string], error)
}

// Gather collects facts for a session whose sftp process runs in cwd.
// An empty cwd means the current directory. Only the remote working
// directory requires the session; local facts that cannot be read are
// left out.
func Gather(ctx context.Context, sess Session, cwd string) (map[string]any, error) {
	facts := make(map[string]any)

	facts["go_os"] = runtime.GOOS
	facts["go_arch"] = runtime.GOARCH

	f, err := sess.Pwd()
	if err != nil {
		return nil, fmt.Errorf("failed to request remote cwd: %w", err)
	}
	remote, err := f.Await(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read remote cwd: %w", err)
	}
	facts["remote_cwd"] = remote

	if local, err := gatherLocalCwd(cwd); err == nil {
		facts["local_cwd"] = local
	}

	if hostname, err := os.Hostname(); err == nil {
		facts["hostname"] = hostname
	}

	if u, err := user.Current(); err == nil {
		facts["local_user"] = u.Username
	}

	return facts, nil
}

func gatherLocalCwd(cwd string) (string, error) {
	if cwd != "" {
		return cwd, nil
	}
	return os.Getwd()
}
