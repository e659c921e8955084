// Package rdbglog is the structured logger shared by the GDB server, the
// QMP server, and the admin surface. It wraps logrus rather than replacing
// it: logrus's own Entry already serializes writes to a single output, so
// this package's job is giving every subsystem a consistently-tagged
// sub-logger instead of re-deriving thread safety logrus already has.
package rdbglog

import (
	"os"

	"github.com/sirupsen/logrus"
)

// levelWriters maps each level this package exposes to the logrus.Entry
// method that emits it. Built once per process instead of switched on at
// every call site.
var levelWriters = map[logrus.Level]func(*logrus.Entry, ...interface{}){
	logrus.DebugLevel: (*logrus.Entry).Debug,
	logrus.InfoLevel:  (*logrus.Entry).Info,
	logrus.WarnLevel:  (*logrus.Entry).Warn,
	logrus.ErrorLevel: (*logrus.Entry).Error,
}

// Logger is a component-tagged front end onto a shared *logrus.Logger.
// Component loggers derived from the same root (via WithComponent) share
// one output and one level, so adjusting verbosity at the root affects
// every subsystem at once.
type Logger struct {
	entry *logrus.Entry
}

// New creates a root Logger writing to stderr with key=value formatting.
// Real embedders typically redirect Out to the emulator's own log sink.
func New() *Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &Logger{entry: logrus.NewEntry(l)}
}

// WithComponent returns a child Logger that tags every line with
// component=name, sharing the parent's underlying *logrus.Logger (and so
// its output and level).
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{entry: l.entry.WithField("component", name)}
}

// SetLevel adjusts the minimum level that reaches the sink. It affects
// every Logger sharing this one's underlying *logrus.Logger, including
// children created by WithComponent.
func (l *Logger) SetLevel(level logrus.Level) {
	l.entry.Logger.SetLevel(level)
}

func (l *Logger) log(level logrus.Level, msg string, fields logrus.Fields) {
	write, ok := levelWriters[level]
	if !ok {
		return
	}
	write(l.entry.WithFields(fields), msg)
}

// Debug logs per-frame dispatch chatter.
func (l *Logger) Debug(msg string, fields logrus.Fields) { l.log(logrus.DebugLevel, msg, fields) }

// Info logs lifecycle events: server start/stop, client accepted,
// disconnected or detached.
func (l *Logger) Info(msg string, fields logrus.Fields) { l.log(logrus.InfoLevel, msg, fields) }

// Warn logs protocol violations that the session recovers from on its own.
func (l *Logger) Warn(msg string, fields logrus.Fields) { l.log(logrus.WarnLevel, msg, fields) }

// Error logs resource and transport errors.
func (l *Logger) Error(msg string, fields logrus.Fields) { l.log(logrus.ErrorLevel, msg, fields) }
