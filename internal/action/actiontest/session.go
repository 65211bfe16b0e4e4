// Package actiontest provides an in-memory action.Session for tests.
package actiontest

import (
	"context"
	"fmt"
	"sync"

	"github.com/codemonument/sftpc/internal/action"
	"github.com/codemonument/sftpc/pkg/future"
)

// Session answers every operation immediately from its fields and records
// the calls it received.
type Session struct {
	// Dir is returned by Pwd and replaced by a successful Cd.
	Dir string

	// Listing is returned by Ls, Lls, and SendCommand.
	Listing []string

	// Output overrides Listing for SendCommand per exact command line.
	Output map[string][]string

	// Fail makes the named operation ("cd", "put", ...) reject with this error.
	Fail map[string]error

	mu    sync.Mutex
	calls []string
}

// New creates a session rooted at dir.
func New(dir string) *Session {
	return &Session{Dir: dir, Fail: make(map[string]error), Output: make(map[string][]string)}
}

// Calls returns every operation received, formatted as "op arg...".
func (s *Session) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *Session) record(op string, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	call := op
	for _, a := range args {
		if a != "" {
			call += fmt.Sprintf(" %v", a)
		}
	}
	s.calls = append(s.calls, call)
	return s.Fail[op]
}

func settle[T any](v T, err error) *future.Future[T] {
	if err != nil {
		return future.Rejected[T](err)
	}
	return future.Resolved(v)
}

func (s *Session) Pwd() (*future.Future[string], error) {
	err := s.record("pwd")
	s.mu.Lock()
	dir := s.Dir
	s.mu.Unlock()
	return settle(dir, err), nil
}

func (s *Session) Cd(dir string) (*future.Future[struct{}], error) {
	err := s.record("cd", dir)
	if err == nil {
		s.mu.Lock()
		s.Dir = dir
		s.mu.Unlock()
	}
	return settle(struct{}{}, err), nil
}

func (s *Session) Ls(path string) (*future.Future[[]string], error) {
	err := s.record("ls", path)
	return settle(s.Listing, err), nil
}

func (s *Session) Lls(path string) (*future.Future[[]string], error) {
	err := s.record("lls", path)
	return settle(s.Listing, err), nil
}

func (s *Session) SendCommand(cmd string) (*future.Future[[]string], error) {
	err := s.record("command", cmd)
	if out, ok := s.Output[cmd]; ok {
		return settle(out, err), nil
	}
	return settle(s.Listing, err), nil
}

func (s *Session) UploadFile(local, remote string) (*future.Future[bool], error) {
	err := s.record("put", local, remote)
	return settle(true, err), nil
}

func (s *Session) UploadFiles(ctx context.Context, locals []string, remoteDir string) ([]bool, error) {
	var results []bool
	for _, local := range locals {
		f, _ := s.UploadFile(local, remoteDir)
		ok, err := f.Await(ctx)
		if err != nil {
			return results, err
		}
		results = append(results, ok)
	}
	return results, nil
}

func (s *Session) DownloadFile(remote, local string) (*future.Future[bool], error) {
	err := s.record("get", remote, local)
	return settle(true, err), nil
}

// Ensure Session implements the action.Session interface.
var _ action.Session = (*Session)(nil)
