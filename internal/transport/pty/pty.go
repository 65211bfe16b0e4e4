// Package pty runs the sftp client under a pseudo-terminal, so it behaves
// exactly as it does for an interactive user.
package pty

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"

	"github.com/creack/pty"

	"github.com/codemonument/sftpc/internal/transport"
)

// endOfTransmission is what a terminal sends for Ctrl-D.
const endOfTransmission = "\x04"

// Transport drives a child process attached to a PTY.
type Transport struct {
	binary string
	args   []string
	dir    string
	rows   uint16
	cols   uint16

	mu    sync.Mutex
	cmd   *exec.Cmd
	ptmx  *os.File
	scan  *transport.Scanner
	lines chan string
}

// Option configures the PTY transport.
type Option func(*Transport)

// WithDir sets the child's working directory.
func WithDir(dir string) Option {
	return func(t *Transport) {
		t.dir = dir
	}
}

// WithSize sets the terminal size.
func WithSize(rows, cols uint16) Option {
	return func(t *Transport) {
		t.rows = rows
		t.cols = cols
	}
}

// New creates a PTY transport that will run binary with args.
func New(binary string, args []string, opts ...Option) *Transport {
	t := &Transport{
		binary: binary,
		args:   args,
		rows:   40,
		cols:   500,
		lines:  make(chan string, 64),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Start launches the child on a new PTY.
func (t *Transport) Start(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, t.binary, t.args...)
	cmd.Dir = t.dir
	cmd.Env = os.Environ()

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: t.rows, Cols: t.cols})
	if err != nil {
		return fmt.Errorf("%w: start pty: %v", transport.ErrTransportUnavailable, err)
	}

	t.mu.Lock()
	t.cmd = cmd
	t.ptmx = ptmx
	t.scan = transport.Scan(ptmx, t.lines, transport.StripANSI)
	t.mu.Unlock()

	return nil
}

// Lines returns the terminal's output lines.
func (t *Transport) Lines() <-chan string {
	return t.lines
}

// WriteLine types cmd followed by Enter.
func (t *Transport) WriteLine(cmd string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.ptmx == nil {
		return fmt.Errorf("%w: not started", transport.ErrTransportUnavailable)
	}
	if _, err := io.WriteString(t.ptmx, cmd+"\n"); err != nil {
		return fmt.Errorf("failed to write command: %w", err)
	}
	return nil
}

// CloseInput sends end-of-transmission; the terminal itself stays open
// until the child exits.
func (t *Transport) CloseInput() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.ptmx == nil {
		return nil
	}
	if _, err := io.WriteString(t.ptmx, endOfTransmission); err != nil && !errors.Is(err, os.ErrClosed) {
		return fmt.Errorf("failed to send EOT: %w", err)
	}
	return nil
}

// Wait blocks until the child exits, then releases the PTY. An output
// read failure is joined with the exit error.
func (t *Transport) Wait() error {
	t.mu.Lock()
	cmd, ptmx, scan := t.cmd, t.ptmx, t.scan
	t.mu.Unlock()

	if cmd == nil {
		return fmt.Errorf("%w: not started", transport.ErrTransportUnavailable)
	}

	err := t.exitError(cmd.Wait())
	ptmx.Close()

	return errors.Join(err, outputError(scan.Err()))
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

// outputError drops the errors that mark the normal end of a terminal:
// reading a PTY whose child exited fails with EIO, and Wait closes it.
func outputError(err error) error {
	if errors.Is(err, syscall.EIO) || errors.Is(err, os.ErrClosed) {
		return nil
	}
	return err
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
	return "pty://" + strings.Join(append([]string{t.binary}, t.args...), " ")
}

// Ensure Transport implements the transport.Transport interface.
var _ transport.Transport = (*Transport)(nil)
