package session

import (
	"github.com/codemonument/sftpc/internal/transport"
	"github.com/codemonument/sftpc/pkg/logging"
)

// Option configures a Session.
type Option func(*Session)

// WithCwd sets the local working directory of the sftp process. Relative
// upload paths are resolved against it.
func WithCwd(dir string) Option {
	return func(s *Session) {
		s.cwd = dir
	}
}

// WithLabel sets the name that prefixes every diagnostic line.
func WithLabel(label string) Option {
	return func(s *Session) {
		s.label = label
	}
}

// WithLogger sets the logger diagnostics are forwarded to.
func WithLogger(log logging.Logger) Option {
	return func(s *Session) {
		s.log = log
	}
}

// WithVerbosity sets which diagnostics reach the logger.
func WithVerbosity(mode logging.Mode) Option {
	return func(s *Session) {
		s.mode = mode
	}
}

// WithBinary sets the sftp executable. Defaults to "sftp" from PATH.
func WithBinary(path string) Option {
	return func(s *Session) {
		s.binary = path
	}
}

// WithArgs adds arguments passed to sftp before the host.
func WithArgs(args ...string) Option {
	return func(s *Session) {
		s.args = append(s.args, args...)
	}
}

// WithPTY runs sftp on a pseudo-terminal instead of plain pipes.
func WithPTY() Option {
	return func(s *Session) {
		s.pty = true
	}
}

// WithContainer runs sftp inside a running docker container. Local paths
// then refer to the container's filesystem.
func WithContainer(name string) Option {
	return func(s *Session) {
		s.container = name
	}
}

// WithTransport uses tr instead of starting sftp. The host and the process
// options are ignored.
func WithTransport(tr transport.Transport) Option {
	return func(s *Session) {
		s.tr = tr
	}
}
