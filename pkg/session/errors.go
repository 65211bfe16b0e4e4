package session

import (
	"errors"

	"github.com/codemonument/sftpc/internal/registry"
	"github.com/codemonument/sftpc/internal/transport"
)

var (
	// ErrSessionClosed is returned for operations on a session whose child
	// process has exited or is closing. Operations still pending when the
	// child exits are rejected with it.
	ErrSessionClosed = errors.New("session closed")

	// ErrLocalFileMissing is returned by UploadFile when the local file does
	// not exist.
	ErrLocalFileMissing = errors.New("local file does not exist")

	// ErrInvalidCommand is returned for empty commands and commands that
	// contain a line break.
	ErrInvalidCommand = errors.New("invalid command")

	// ErrDuplicateOperation is returned by Pwd and Cd while one is pending.
	ErrDuplicateOperation = registry.ErrDuplicateOperation

	// ErrTransportUnavailable is returned by New when the child's streams
	// cannot be set up.
	ErrTransportUnavailable = transport.ErrTransportUnavailable

	// ErrUncleanExit matches the error Close returns when sftp exits with a
	// failure status or a signal.
	ErrUncleanExit = transport.ErrUncleanExit

	// ErrOutputLost matches the error Close returns when sftp's output
	// could not be read to the end.
	ErrOutputLost = transport.ErrOutputLost
)

// OperationError is the rejection reason of a failed operation.
type OperationError = registry.OperationError

// ExitError describes an unclean child exit.
type ExitError = transport.ExitError
