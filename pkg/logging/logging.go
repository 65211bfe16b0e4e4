// Package logging defines the logger sessions report to and the verbosity
// policy that decides which lines reach it.
package logging

import (
	"fmt"
	"strings"
)

// Logger receives formatted diagnostic messages.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Discard is a Logger that drops everything.
var Discard Logger = discard{}

type discard struct{}

func (discard) Debug(string, ...any) {}
func (discard) Info(string, ...any)  {}
func (discard) Warn(string, ...any)  {}
func (discard) Error(string, ...any) {}

// Level is the severity a message is forwarded at.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// Log forwards a message to l at the given level.
func Log(l Logger, level Level, format string, args ...any) {
	switch level {
	case LevelDebug:
		l.Debug(format, args...)
	case LevelInfo:
		l.Info(format, args...)
	case LevelWarn:
		l.Warn(format, args...)
	default:
		l.Error(format, args...)
	}
}

// Mode selects how chatty a session is.
type Mode int

const (
	// ModeNormal logs unrecognized lines, milestones, and errors.
	ModeNormal Mode = iota
	// ModeVerbose additionally logs every raw line and routine event at debug.
	ModeVerbose
	// ModeSilent logs nothing.
	ModeSilent
	// ModeOnlyUnknown logs unrecognized lines only.
	ModeOnlyUnknown
	// ModeUnknownAndError logs unrecognized lines and errors.
	ModeUnknownAndError
)

var modeNames = map[Mode]string{
	ModeNormal:          "normal",
	ModeVerbose:         "verbose",
	ModeSilent:          "silent",
	ModeOnlyUnknown:     "only-unknown",
	ModeUnknownAndError: "unknown-and-error",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseMode parses a mode name. The empty string is ModeNormal.
func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ModeNormal, nil
	}
	for m, name := range modeNames {
		if name == s {
			return m, nil
		}
	}
	return ModeNormal, fmt.Errorf("unknown verbosity %q (must be normal, verbose, silent, only-unknown, or unknown-and-error)", s)
}

// Set implements pflag.Value.
func (m *Mode) Set(s string) error {
	parsed, err := ParseMode(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Type implements pflag.Value.
func (m *Mode) Type() string {
	return "verbosity"
}

// Event classifies what a session wants to report.
type Event int

const (
	// EventRaw is any output line, before classification.
	EventRaw Event = iota
	// EventUnknown is a line no pattern recognized.
	EventUnknown
	// EventMilestone is a user-visible outcome (connected, transfer done).
	EventMilestone
	// EventRoutine is internal bookkeeping (prompts, echoes, pwd results).
	EventRoutine
	// EventError is a correlation failure or an unclean exit.
	EventError
)

// Route reports whether an event is forwarded in mode, and at which level.
func Route(mode Mode, ev Event) (Level, bool) {
	switch mode {
	case ModeSilent:
		return 0, false

	case ModeOnlyUnknown:
		if ev == EventUnknown {
			return LevelInfo, true
		}
		return 0, false

	case ModeUnknownAndError:
		switch ev {
		case EventUnknown:
			return LevelInfo, true
		case EventError:
			return LevelError, true
		}
		return 0, false

	case ModeVerbose:
		switch ev {
		case EventRaw, EventRoutine:
			return LevelDebug, true
		}
		return Route(ModeNormal, ev)

	default:
		switch ev {
		case EventUnknown, EventMilestone:
			return LevelInfo, true
		case EventError:
			return LevelError, true
		}
		return 0, false
	}
}
