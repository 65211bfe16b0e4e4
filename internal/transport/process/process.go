// Package process runs the sftp client as a local child process with piped
// stdin and a shared stdout/stderr pipe.
package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/codemonument/sftpc/internal/transport"
)

// Transport drives a local child process.
type Transport struct {
	binary string
	args   []string
	dir    string
	env    []string

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	output *os.File
	scan   *transport.Scanner
	lines  chan string
}

// Option configures the process transport.
type Option func(*Transport)

// WithDir sets the child's working directory.
func WithDir(dir string) Option {
	return func(t *Transport) {
		t.dir = dir
	}
}

// WithEnv adds an environment variable for the child.
func WithEnv(key, value string) Option {
	return func(t *Transport) {
		t.env = append(t.env, key+"="+value)
	}
}

// New creates a transport that will run binary with args.
func New(binary string, args []string, opts ...Option) *Transport {
	t := &Transport{
		binary: binary,
		args:   args,
		lines:  make(chan string, 64),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Start launches the child. Cancelling ctx kills it.
func (t *Transport) Start(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, t.binary, t.args...)
	cmd.Dir = t.dir
	if len(t.env) > 0 {
		cmd.Env = append(os.Environ(), t.env...)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("%w: stdin: %v", transport.ErrTransportUnavailable, err)
	}

	// One pipe for both streams keeps stdout and stderr lines in the order
	// the child wrote them.
	pr, pw, err := os.Pipe()
	if err != nil {
		stdin.Close()
		return fmt.Errorf("%w: output: %v", transport.ErrTransportUnavailable, err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		stdin.Close()
		pr.Close()
		pw.Close()
		return fmt.Errorf("failed to start %s: %w", t.binary, err)
	}
	pw.Close()

	t.mu.Lock()
	t.cmd = cmd
	t.stdin = stdin
	t.output = pr
	t.scan = transport.Scan(pr, t.lines)
	t.mu.Unlock()

	return nil
}

// Lines returns the child's output lines.
func (t *Transport) Lines() <-chan string {
	return t.lines
}

// WriteLine writes a command line to the child's stdin.
func (t *Transport) WriteLine(cmd string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stdin == nil {
		return fmt.Errorf("%w: not started", transport.ErrTransportUnavailable)
	}
	if _, err := io.WriteString(t.stdin, cmd+"\n"); err != nil {
		return fmt.Errorf("failed to write command: %w", err)
	}
	return nil
}

// CloseInput closes the child's stdin.
func (t *Transport) CloseInput() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stdin == nil {
		return nil
	}
	err := t.stdin.Close()
	if err != nil && !errors.Is(err, os.ErrClosed) {
		return fmt.Errorf("failed to close stdin: %w", err)
	}
	return nil
}

// Wait blocks until the child exits and its output has been read. An
// output read failure is joined with the exit error.
func (t *Transport) Wait() error {
	t.mu.Lock()
	cmd, output, scan := t.cmd, t.output, t.scan
	t.mu.Unlock()

	if cmd == nil {
		return fmt.Errorf("%w: not started", transport.ErrTransportUnavailable)
	}

	err := t.exitError(cmd.Wait())
	scanErr := scan.Err()
	output.Close()

	return errors.Join(err, scanErr)
}

func (t *Transport) exitError(err error) error {
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &transport.ExitError{Code: exitErr.ExitCode(), State: exitErr.ProcessState.String()}
	}
	return fmt.Errorf("failed to wait for %s: %w", t.binary, err)
}

// Kill terminates the child.
func (t *Transport) Kill() error {
	t.mu.Lock()
	cmd := t.cmd
	t.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to kill %s: %w", t.binary, err)
	}
	return nil
}

// String returns a description of the transport.
func (t *Transport) String() string {
	desc := "exec://" + strings.Join(append([]string{t.binary}, t.args...), " ")
	if t.dir != "" {
		desc += " (in " + t.dir + ")"
	}
	return desc
}

// Ensure Transport implements the transport.Transport interface.
var _ transport.Transport = (*Transport)(nil)
