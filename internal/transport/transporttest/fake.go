// Package transporttest provides a scripted in-memory transport for tests.
package transporttest

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/codemonument/sftpc/internal/transport"
)

// Fake is a transport whose output is fed by the test.
type Fake struct {
	// OnWrite, if set, is called with every written command. It may Emit.
	OnWrite func(f *Fake, cmd string)

	// StartErr is returned from Start.
	StartErr error

	// ExitErr is returned from Wait once the fake exits.
	ExitErr error

	mu       sync.Mutex
	written  []string
	writeErr error
	closed   bool
	exited   bool
	killed   bool
	lines    chan string
	exit     chan struct{}
	writes   chan string
}

// New creates a fake transport.
func New() *Fake {
	return &Fake{
		lines:  make(chan string, 256),
		exit:   make(chan struct{}),
		writes: make(chan string, 256),
	}
}

// Start implements transport.Transport.
func (f *Fake) Start(ctx context.Context) error {
	return f.StartErr
}

// Lines implements transport.Transport.
func (f *Fake) Lines() <-chan string {
	return f.lines
}

// WriteLine records cmd and runs the OnWrite hook.
func (f *Fake) WriteLine(cmd string) error {
	f.mu.Lock()
	if f.writeErr != nil {
		err := f.writeErr
		f.mu.Unlock()
		return err
	}
	if f.closed {
		f.mu.Unlock()
		return errors.New("write to closed input")
	}
	f.written = append(f.written, cmd)
	hook := f.OnWrite
	f.mu.Unlock()

	select {
	case f.writes <- cmd:
	default:
	}

	if hook != nil {
		hook(f, cmd)
	}
	return nil
}

// FailWrites makes every later WriteLine return err.
func (f *Fake) FailWrites(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeErr = err
}

// Writes delivers every written command as it happens.
func (f *Fake) Writes() <-chan string {
	return f.writes
}

// Written returns every command written so far.
func (f *Fake) Written() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.written...)
}

// Emit queues output lines for the engine.
func (f *Fake) Emit(lines ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.exited {
		return
	}
	for _, l := range lines {
		f.lines <- l
	}
}

// Exit ends the output stream and lets Wait return.
func (f *Fake) Exit() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.exited {
		return
	}
	f.exited = true
	close(f.lines)
	close(f.exit)
}

// CloseInput implements transport.Transport. Like sftp reaching EOF on
// stdin, it makes the fake exit.
func (f *Fake) CloseInput() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	f.Exit()
	return nil
}

// Wait implements transport.Transport.
func (f *Fake) Wait() error {
	<-f.exit
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.killed {
		return &transport.ExitError{Code: -1, State: "signal: killed"}
	}
	return f.ExitErr
}

// Kill implements transport.Transport.
func (f *Fake) Kill() error {
	f.mu.Lock()
	f.killed = true
	f.mu.Unlock()
	f.Exit()
	return nil
}

// Killed reports whether Kill was called.
func (f *Fake) Killed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.killed
}

// String implements transport.Transport.
func (f *Fake) String() string {
	return "fake://sftp"
}

// Echo returns an OnWrite hook that answers like sftp reading commands from
// a pipe: each command is echoed after the prompt and followed by its
// scripted lines. The empty probe line yields a bare prompt; bye is ignored.
func Echo(script map[string][]string) func(f *Fake, cmd string) {
	return func(f *Fake, cmd string) {
		if cmd == "bye" {
			return
		}
		lines := []string{strings.TrimSpace("sftp> " + cmd)}
		lines = append(lines, script[cmd]...)
		f.Emit(lines...)
	}
}

// Ensure Fake implements the transport.Transport interface.
var _ transport.Transport = (*Fake)(nil)
