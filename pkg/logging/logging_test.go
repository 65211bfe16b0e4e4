package logging

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoute(t *testing.T) {
	type want struct {
		level Level
		ok    bool
	}
	off := want{}

	tests := []struct {
		mode                                  Mode
		raw, unknown, milestone, routine, err want
	}{
		{
			mode:      ModeNormal,
			raw:       off,
			unknown:   want{LevelInfo, true},
			milestone: want{LevelInfo, true},
			routine:   off,
			err:       want{LevelError, true},
		},
		{
			mode:      ModeVerbose,
			raw:       want{LevelDebug, true},
			unknown:   want{LevelInfo, true},
			milestone: want{LevelInfo, true},
			routine:   want{LevelDebug, true},
			err:       want{LevelError, true},
		},
		{
			mode:      ModeSilent,
			raw:       off,
			unknown:   off,
			milestone: off,
			routine:   off,
			err:       off,
		},
		{
			mode:      ModeOnlyUnknown,
			raw:       off,
			unknown:   want{LevelInfo, true},
			milestone: off,
			routine:   off,
			err:       off,
		},
		{
			mode:      ModeUnknownAndError,
			raw:       off,
			unknown:   want{LevelInfo, true},
			milestone: off,
			routine:   off,
			err:       want{LevelError, true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			cases := map[Event]want{
				EventRaw:       tt.raw,
				EventUnknown:   tt.unknown,
				EventMilestone: tt.milestone,
				EventRoutine:   tt.routine,
				EventError:     tt.err,
			}
			for ev, w := range cases {
				level, ok := Route(tt.mode, ev)
				assert.Equal(t, w.ok, ok, "event %d", ev)
				if w.ok {
					assert.Equal(t, w.level, level, "event %d", ev)
				}
			}
		})
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeNormal, false},
		{"normal", ModeNormal, false},
		{"VERBOSE", ModeVerbose, false},
		{" silent ", ModeSilent, false},
		{"only-unknown", ModeOnlyUnknown, false},
		{"unknown-and-error", ModeUnknownAndError, false},
		{"loud", ModeNormal, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestModeFlagValue(t *testing.T) {
	var m Mode
	require.NoError(t, m.Set("only-unknown"))
	assert.Equal(t, ModeOnlyUnknown, m)
	assert.Equal(t, "only-unknown", m.String())
	assert.Equal(t, "verbosity", m.Type())
	assert.Error(t, m.Set("nope"))
	assert.Equal(t, ModeOnlyUnknown, m, "failed Set keeps the old value")
}

func TestLogrusAdapter(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetLevel(logrus.DebugLevel)
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true, DisableColors: true})

	log := NewLogrus(l.WithField("session", "s1"))
	Log(log, LevelWarn, "disk %d%%", 91)
	log.Debug("raw %s", "line")

	out := buf.String()
	assert.Contains(t, out, "level=warning")
	assert.Contains(t, out, "disk 91%")
	assert.Contains(t, out, "session=s1")
	assert.Contains(t, out, "raw line")
}

func TestDiscard(t *testing.T) {
	Log(Discard, LevelError, "ignored")
	assert.Equal(t, "error", LevelError.String())
}
