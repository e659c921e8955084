package rdbglog

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func newBufferedLogger() (*Logger, *bytes.Buffer) {
	l := New()
	buf := &bytes.Buffer{}
	l.entry.Logger.SetOutput(buf)
	l.entry.Logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	l.SetLevel(logrus.DebugLevel)
	return l, buf
}

func TestLevelsWriteExpectedSeverity(t *testing.T) {
	l, buf := newBufferedLogger()

	l.Debug("debug line", nil)
	l.Info("info line", logrus.Fields{"n": 1})
	l.Warn("warn line", nil)
	l.Error("error line", nil)

	out := buf.String()
	assert.Contains(t, out, "level=debug msg=\"debug line\"")
	assert.Contains(t, out, "level=info msg=\"info line\" n=1")
	assert.Contains(t, out, "level=warning msg=\"warn line\"")
	assert.Contains(t, out, "level=error msg=\"error line\"")
}

func TestSetLevelFiltersBelowThreshold(t *testing.T) {
	l, buf := newBufferedLogger()
	l.SetLevel(logrus.WarnLevel)

	l.Debug("hidden", nil)
	l.Info("also hidden", nil)
	l.Warn("visible", nil)

	out := buf.String()
	assert.False(t, strings.Contains(out, "hidden"))
	assert.Contains(t, out, "visible")
}

func TestWithComponentTagsLinesAndSharesLevel(t *testing.T) {
	l, buf := newBufferedLogger()
	child := l.WithComponent("qmp")

	child.Info("hello", nil)
	assert.Contains(t, buf.String(), "component=qmp")

	l.SetLevel(logrus.ErrorLevel)
	child.Info("suppressed", nil)
	assert.False(t, strings.Contains(buf.String(), "suppressed"))
}
