// Package container runs the sftp client inside a Docker container, for
// hosts that do not have an sftp binary of their own.
package container

import (
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strings"

	"github.com/codemonument/sftpc/internal/transport"
	"github.com/codemonument/sftpc/internal/transport/process"
)

// Transport runs the sftp client through `docker exec -i`.
type Transport struct {
	*process.Transport

	container string
	user      string
	workdir   string
	env       map[string]string
}

// Option configures the container transport.
type Option func(*Transport)

// WithUser sets the user the client runs as inside the container.
func WithUser(user string) Option {
	return func(t *Transport) {
		t.user = user
	}
}

// WithWorkdir sets the working directory inside the container.
func WithWorkdir(dir string) Option {
	return func(t *Transport) {
		t.workdir = dir
	}
}

// WithEnv adds an environment variable inside the container.
func WithEnv(key, value string) Option {
	return func(t *Transport) {
		if t.env == nil {
			t.env = make(map[string]string)
		}
		t.env[key] = value
	}
}

// New creates a transport that runs binary with args inside container.
func New(container, binary string, args []string, opts ...Option) *Transport {
	t := &Transport{
		container: container,
		env:       make(map[string]string),
	}

	for _, opt := range opts {
		opt(t)
	}

	t.Transport = process.New("docker", t.buildExecArgs(binary, args))
	return t
}

// Start verifies docker is available and the container is running, then
// launches the client.
func (t *Transport) Start(ctx context.Context) error {
	if _, err := exec.LookPath("docker"); err != nil {
		return fmt.Errorf("%w: docker command not found: %v", transport.ErrTransportUnavailable, err)
	}

	cmd := exec.CommandContext(ctx, "docker", "inspect", "-f", "{{.State.Running}}", t.container)
	output, err := cmd.Output()
	if err != nil {
		return fmt.Errorf("%w: container '%s' not found or not accessible: %v", transport.ErrTransportUnavailable, t.container, err)
	}
	if strings.TrimSpace(string(output)) != "true" {
		return fmt.Errorf("%w: container '%s' is not running", transport.ErrTransportUnavailable, t.container)
	}

	return t.Transport.Start(ctx)
}

// buildExecArgs builds the docker exec command arguments.
func (t *Transport) buildExecArgs(binary string, args []string) []string {
	// -i keeps stdin attached; no -t, output must stay line oriented
	execArgs := []string{"exec", "-i"}

	if t.user != "" {
		execArgs = append(execArgs, "-u", t.user)
	}

	if t.workdir != "" {
		execArgs = append(execArgs, "-w", t.workdir)
	}

	keys := make([]string, 0, len(t.env))
	for k := range t.env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		execArgs = append(execArgs, "-e", fmt.Sprintf("%s=%s", k, t.env[k]))
	}

	execArgs = append(execArgs, t.container, binary)
	return append(execArgs, args...)
}

// String returns a description of the transport.
func (t *Transport) String() string {
	desc := fmt.Sprintf("docker://%s", t.container)
	if t.user != "" {
		desc = fmt.Sprintf("docker://%s@%s", t.user, t.container)
	}
	return desc + " " + strings.TrimPrefix(t.Transport.String(), "exec://docker ")
}

// Ensure Transport implements the transport.Transport interface.
var _ transport.Transport = (*Transport)(nil)
