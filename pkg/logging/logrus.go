package logging

import "github.com/sirupsen/logrus"

type logrusLogger struct {
	l logrus.FieldLogger
}

// NewLogrus adapts a logrus logger or entry to Logger.
func NewLogrus(l logrus.FieldLogger) Logger {
	return &logrusLogger{l: l}
}

func (g *logrusLogger) Debug(format string, args ...any) { g.l.Debugf(format, args...) }
func (g *logrusLogger) Info(format string, args ...any)  { g.l.Infof(format, args...) }
func (g *logrusLogger) Warn(format string, args ...any)  { g.l.Warnf(format, args...) }
func (g *logrusLogger) Error(format string, args ...any) { g.l.Errorf(format, args...) }
