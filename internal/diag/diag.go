// Package diag forwards session diagnostics to a logger according to the
// configured verbosity.
package diag

import (
	"fmt"

	"github.com/codemonument/sftpc/pkg/logging"
)

// Router applies a verbosity mode to every event before logging it.
type Router struct {
	log   logging.Logger
	mode  logging.Mode
	label string
}

// New creates a router. A nil logger discards everything.
func New(log logging.Logger, mode logging.Mode, label string) *Router {
	if log == nil {
		log = logging.Discard
	}
	return &Router{log: log, mode: mode, label: label}
}

// Mode returns the configured verbosity.
func (r *Router) Mode() logging.Mode {
	return r.mode
}

// Raw reports a line as it arrived, before classification.
func (r *Router) Raw(line string) {
	r.emit(logging.EventRaw, "< %s", line)
}

// Unknown reports a line no pattern recognized.
func (r *Router) Unknown(line string) {
	r.emit(logging.EventUnknown, "%s", line)
}

// Milestone reports a user-visible outcome.
func (r *Router) Milestone(format string, args ...any) {
	r.emit(logging.EventMilestone, format, args...)
}

// Routine reports internal bookkeeping.
func (r *Router) Routine(format string, args ...any) {
	r.emit(logging.EventRoutine, format, args...)
}

// Error reports a correlation failure or an unclean exit.
func (r *Router) Error(format string, args ...any) {
	r.emit(logging.EventError, format, args...)
}

func (r *Router) emit(ev logging.Event, format string, args ...any) {
	level, ok := logging.Route(r.mode, ev)
	if !ok {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if r.label != "" {
		msg = "[" + r.label + "] " + msg
	}
	logging.Log(r.log, level, "%s", msg)
}
