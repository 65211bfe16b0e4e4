// Package transport defines how a session talks to the sftp child process.
package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

var (
	// ErrTransportUnavailable is returned when the child's input or output
	// stream cannot be set up.
	ErrTransportUnavailable = errors.New("process transport unavailable")

	// ErrUncleanExit matches any *ExitError.
	ErrUncleanExit = errors.New("unclean exit")

	// ErrOutputLost is returned from Wait when the child's output could not
	// be read to the end, for example because a line was too long.
	ErrOutputLost = errors.New("output lost")
)

// Transport is a running child process that accepts command lines and
// produces output lines.
type Transport interface {
	// Start launches the child process.
	Start(ctx context.Context) error

	// Lines returns the child's combined stdout and stderr as trimmed,
	// non-empty lines. The channel is closed when the output ends.
	Lines() <-chan string

	// WriteLine writes cmd followed by a newline to the child's input.
	WriteLine(cmd string) error

	// CloseInput closes the child's input.
	CloseInput() error

	// Wait blocks until the child exits. A non-zero exit returns *ExitError.
	Wait() error

	// Kill terminates the child immediately.
	Kill() error

	// String returns a human-readable description of the transport.
	String() string
}

// ExitError describes a child that did not exit cleanly.
type ExitError struct {
	Code  int
	State string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("process exited uncleanly: %s (code %d)", e.State, e.Code)
}

// Is makes errors.Is(err, ErrUncleanExit) true for any *ExitError.
func (e *ExitError) Is(target error) bool {
	return target == ErrUncleanExit
}

// maxLine bounds a single output line; directory listings can be long.
const maxLine = 1024 * 1024

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)

// StripANSI removes terminal control sequences from a line.
func StripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

// ScanLines reads r until EOF, sending every trimmed, non-empty line to
// out, and closes out when done. Filters are applied to each raw line
// before trimming.
func ScanLines(r io.Reader, out chan<- string, filters ...func(string) string) error {
	defer close(out)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLine)
	for scanner.Scan() {
		line := scanner.Text()
		for _, f := range filters {
			line = f(line)
		}
		line = strings.TrimSpace(strings.ReplaceAll(line, "\r", ""))
		if line == "" {
			continue
		}
		out <- line
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to read process output: %w", err)
	}
	return nil
}

// Scanner reads a child's output on its own goroutine and keeps the error
// that stopped it.
type Scanner struct {
	done chan struct{}
	err  error
}

// Scan starts reading r into out, closing out when the output ends. After a
// read error the rest of r is discarded, so the child never blocks on a
// full pipe or terminal.
func Scan(r io.Reader, out chan<- string, filters ...func(string) string) *Scanner {
	s := &Scanner{done: make(chan struct{})}
	go func() {
		err := ScanLines(r, out, filters...)
		if err != nil {
			s.err = fmt.Errorf("%w: %w", ErrOutputLost, err)
		}
		close(s.done)
		if err != nil {
			_, _ = io.Copy(io.Discard, r)
		}
	}()
	return s
}

// Err waits until no more lines will be sent and returns why reading
// stopped early, or nil at a clean end of output.
func (s *Scanner) Err() error {
	<-s.done
	return s.err
}
