// Package session drives an interactive sftp process and turns its output
// into per-operation results.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/codemonument/sftpc/internal/diag"
	"github.com/codemonument/sftpc/internal/engine"
	"github.com/codemonument/sftpc/internal/registry"
	"github.com/codemonument/sftpc/internal/transport"
	"github.com/codemonument/sftpc/internal/transport/container"
	"github.com/codemonument/sftpc/internal/transport/process"
	"github.com/codemonument/sftpc/internal/transport/pty"
	"github.com/codemonument/sftpc/pkg/future"
	"github.com/codemonument/sftpc/pkg/logging"
)

// Session is one running sftp process. Its methods are safe for concurrent
// use; results settle in the order sftp reports them.
type Session struct {
	id    string
	host  string
	label string
	cwd   string

	log  logging.Logger
	mode logging.Mode

	binary    string
	args      []string
	pty       bool
	container string

	tr     transport.Transport
	reg    *registry.Registry
	eng    *engine.Engine
	router *diag.Router

	connected *future.Future[bool]

	// mu orders registration and writes so the registry matches what sftp sees.
	mu       sync.Mutex
	closed   bool
	quitting bool // bye was sent
	generic  uint64

	done    chan struct{}
	exitErr error
}

// New starts sftp against host and returns once the process is running.
// The connection itself is confirmed later through Connected.
func New(ctx context.Context, host string, opts ...Option) (*Session, error) {
	id := uuid.NewString()
	s := &Session{
		id:     id,
		host:   host,
		label:  "sftp-" + id[:8],
		binary: "sftp",
		log:    logging.Discard,
		mode:   logging.ModeNormal,
		reg:    registry.New(),
		done:   make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.tr == nil {
		if host == "" {
			return nil, errors.New("host is required")
		}
		s.tr = s.newTransport()
	}

	s.router = diag.New(s.log, s.mode, s.label)
	s.eng = engine.New(s.reg, s.router)

	connected, err := registry.Register[bool](s.reg, registry.Op{
		Kind:    registry.KindConnect,
		Target:  host,
		Command: "connect " + host,
	})
	if err != nil {
		return nil, err
	}
	s.connected = connected

	if err := s.tr.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", s.tr, err)
	}
	s.router.Routine("started %s", s.tr)

	go s.run()

	return s, nil
}

func (s *Session) newTransport() transport.Transport {
	args := append(append([]string(nil), s.args...), s.host)

	switch {
	case s.container != "":
		var copts []container.Option
		if s.cwd != "" {
			copts = append(copts, container.WithWorkdir(s.cwd))
		}
		return container.New(s.container, s.binary, args, copts...)
	case s.pty:
		var popts []pty.Option
		if s.cwd != "" {
			popts = append(popts, pty.WithDir(s.cwd))
		}
		return pty.New(s.binary, args, popts...)
	default:
		var popts []process.Option
		if s.cwd != "" {
			popts = append(popts, process.WithDir(s.cwd))
		}
		return process.New(s.binary, args, popts...)
	}
}

// run feeds output to the engine until the child's output ends, then
// rejects whatever is still pending.
func (s *Session) run() {
	s.eng.Run(context.Background(), s.tr.Lines())

	// Without output nothing pending can settle, even if sftp is still up.
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	if n := s.reg.Drain(ErrSessionClosed); n > 0 {
		s.router.Error("%d pending operation(s) rejected: %v", n, ErrSessionClosed)
	}

	err := s.tr.Wait()
	if errors.Is(err, transport.ErrOutputLost) {
		s.router.Error("failed to read sftp output: %v", err)
	}

	s.mu.Lock()
	s.exitErr = err
	s.mu.Unlock()

	close(s.done)
}

// ID returns the unique session identifier.
func (s *Session) ID() string {
	return s.id
}

// Label returns the diagnostic label.
func (s *Session) Label() string {
	return s.label
}

// Host returns the host sftp was started against.
func (s *Session) Host() string {
	return s.host
}

// Cwd returns the configured local working directory.
func (s *Session) Cwd() string {
	return s.cwd
}

func (s *Session) String() string {
	return fmt.Sprintf("%s (%s)", s.label, s.tr)
}

// Connected settles with true once sftp reports the connection.
func (s *Session) Connected() *future.Future[bool] {
	return s.connected
}

// WaitConnected blocks until the connection is confirmed, the child exits,
// or ctx is done.
func (s *Session) WaitConnected(ctx context.Context) error {
	_, err := s.connected.Await(ctx)
	return err
}

// Pwd asks for the remote working directory.
func (s *Session) Pwd() (*future.Future[string], error) {
	return issue[string](s, registry.Op{
		Kind:    registry.KindPwd,
		Command: "pwd",
	}, false)
}

// Cd changes the remote working directory. The future is rejected with an
// *OperationError when sftp refuses the change.
func (s *Session) Cd(dir string) (*future.Future[struct{}], error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: cd needs a directory", ErrInvalidCommand)
	}
	return issue[struct{}](s, registry.Op{
		Kind:    registry.KindCd,
		Target:  dir,
		Command: "cd " + QuoteArg(dir),
	}, true)
}

// Ls lists a remote directory. The future carries the printed lines.
func (s *Session) Ls(path string) (*future.Future[[]string], error) {
	return s.SendCommand(JoinCommand("ls", path))
}

// Lls lists a local directory. The future carries the printed lines.
func (s *Session) Lls(path string) (*future.Future[[]string], error) {
	return s.SendCommand(JoinCommand("lls", path))
}

// SendCommand writes a raw sftp command. The future settles with the lines
// sftp printed for it once the next prompt appears.
func (s *Session) SendCommand(cmd string) (*future.Future[[]string], error) {
	cmd = strings.TrimSpace(cmd)
	if cmd == "" {
		return nil, fmt.Errorf("%w: empty command", ErrInvalidCommand)
	}

	s.mu.Lock()
	s.generic++
	key := fmt.Sprintf("%s (#%d)", cmd, s.generic)
	s.mu.Unlock()

	return issue[[]string](s, registry.Op{
		Kind:    registry.KindGeneric,
		Key:     key,
		Target:  cmd,
		Command: cmd,
	}, true)
}

// UploadFile sends local to the remote side. remote may be empty to keep the
// file name in the remote working directory.
func (s *Session) UploadFile(local, remote string) (*future.Future[bool], error) {
	if local == "" {
		return nil, fmt.Errorf("%w: put needs a local file", ErrInvalidCommand)
	}
	if err := s.checkLocal(local); err != nil {
		return nil, err
	}

	return issue[bool](s, registry.Op{
		Kind:    registry.KindUpload,
		Key:     local,
		Target:  remote,
		Command: JoinCommand("put", local, remote),
	}, false)
}

// UploadFiles uploads locals one after another into remoteDir. Each upload
// is issued only after the previous one was confirmed. On the first failure
// it returns the results collected so far together with the error.
func (s *Session) UploadFiles(ctx context.Context, locals []string, remoteDir string) ([]bool, error) {
	results := make([]bool, 0, len(locals))
	for _, local := range locals {
		f, err := s.UploadFile(local, remoteDir)
		if err != nil {
			return results, err
		}
		ok, err := f.Await(ctx)
		if err != nil {
			return results, fmt.Errorf("failed to upload %s: %w", local, err)
		}
		results = append(results, ok)
	}
	return results, nil
}

// DownloadFile fetches remote. local may be empty to keep the file name in
// the local working directory.
func (s *Session) DownloadFile(remote, local string) (*future.Future[bool], error) {
	if remote == "" {
		return nil, fmt.Errorf("%w: get needs a remote file", ErrInvalidCommand)
	}
	return issue[bool](s, registry.Op{
		Kind:    registry.KindDownload,
		Key:     remote,
		Target:  local,
		Command: JoinCommand("get", remote, local),
	}, false)
}

// Close asks sftp to quit and waits for it to exit. If ctx ends first the
// process is killed. An unclean exit is logged and returned.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	if !s.quitting {
		s.quitting = true
		if err := s.tr.WriteLine("bye"); err != nil {
			s.router.Routine("failed to write bye: %v", err)
		}
		if err := s.tr.CloseInput(); err != nil {
			s.router.Routine("failed to close input: %v", err)
		}
	}
	s.mu.Unlock()

	select {
	case <-s.done:
	case <-ctx.Done():
		_ = s.tr.Kill()
		<-s.done
		return fmt.Errorf("failed to close %s: %w", s.label, ctx.Err())
	}

	if err := s.Err(); err != nil {
		s.router.Error("sftp exited uncleanly: %v", err)
		return fmt.Errorf("failed to close %s: %w", s.label, err)
	}
	s.router.Milestone("session closed")
	return nil
}

// Kill terminates sftp immediately. Pending operations are rejected with
// ErrSessionClosed once the process is gone.
func (s *Session) Kill() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	if err := s.tr.Kill(); err != nil {
		return fmt.Errorf("failed to kill %s: %w", s.label, err)
	}
	return nil
}

// Done is closed once the child has exited and pending operations were
// rejected.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns the child's exit error after Done is closed.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitErr
}

// issue registers op and writes its command under the session lock, so the
// registry order is the order sftp receives commands. A probe follows the
// command with an empty line that makes sftp print a bare prompt once the
// command has finished.
func issue[T any](s *Session, op registry.Op, probe bool) (*future.Future[T], error) {
	if strings.ContainsAny(op.Command, "\r\n") {
		return nil, fmt.Errorf("%w: %q contains a line break", ErrInvalidCommand, op.Command)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}

	f, err := registry.Register[T](s.reg, op)
	if err != nil {
		return nil, err
	}

	lines := []string{op.Command}
	if probe {
		lines = append(lines, "")
	}
	for _, line := range lines {
		if err := s.tr.WriteLine(line); err != nil {
			werr := fmt.Errorf("failed to write %q: %w", op.Command, err)
			_ = s.reg.Fail(op.Kind, op.Key, werr)
			return nil, werr
		}
	}

	s.router.Routine("sent %s", op.Command)
	return f, nil
}

func (s *Session) checkLocal(local string) error {
	if s.container != "" {
		return nil
	}
	p := local
	if !filepath.IsAbs(p) && s.cwd != "" {
		p = filepath.Join(s.cwd, p)
	}
	if _, err := os.Stat(p); err != nil {
		return fmt.Errorf("%w: %s", ErrLocalFileMissing, local)
	}
	return nil
}

// JoinCommand builds an sftp command line, skipping empty arguments.
func JoinCommand(action string, args ...string) string {
	parts := []string{action}
	for _, a := range args {
		if a != "" {
			parts = append(parts, QuoteArg(a))
		}
	}
	return strings.Join(parts, " ")
}

// QuoteArg quotes s for the sftp command parser when it contains spaces,
// quotes, or backslashes.
func QuoteArg(s string) string {
	if !strings.ContainsAny(s, " \t\"'\\") {
		return s
	}
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		if r == '"' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('"')
	return b.String()
}
