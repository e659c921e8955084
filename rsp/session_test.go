package rsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lokkju/dosbox-x/facade"
	"github.com/lokkju/dosbox-x/rdbglog"
)

func newTestSession() *Session {
	return NewSession(facade.NewFake(), rdbglog.New(), "test-session")
}

func TestDispatchHaltReasonQuery(t *testing.T) {
	s := newTestSession()
	reply, hasReply, detach := s.Dispatch("?")
	assert.Equal(t, "S05", reply)
	assert.True(t, hasReply)
	assert.False(t, detach)
}

func TestDispatchNoAckModeNegotiation(t *testing.T) {
	s := newTestSession()
	reply, hasReply, _ := s.Dispatch("QStartNoAckMode")
	assert.Equal(t, "OK", reply)
	assert.True(t, hasReply)
	assert.True(t, s.NoAckMode())
}

func TestDispatchUnknownCommandEmptyReply(t *testing.T) {
	s := newTestSession()
	reply, hasReply, detach := s.Dispatch("qRandomUnknownThing")
	assert.Equal(t, "", reply)
	assert.True(t, hasReply)
	assert.False(t, detach)
}

func TestDispatchRegisterReadWriteRoundTrip(t *testing.T) {
	s := newTestSession()
	reply, _, _ := s.Dispatch("g")
	assert.Len(t, reply, facade.NumRegisters*8)

	ok, _, _ := s.Dispatch("G" + reply)
	assert.Equal(t, "OK", ok)
}

func TestDispatchSingleRegisterRead(t *testing.T) {
	s := newTestSession()
	reply, hasReply, _ := s.Dispatch("p0")
	assert.True(t, hasReply)
	assert.Len(t, reply, 8)
}

func TestDispatchMemoryReadWriteRoundTrip(t *testing.T) {
	s := newTestSession()
	write, _, _ := s.Dispatch("M1000,2:aabb")
	assert.Equal(t, "OK", write)

	read, _, _ := s.Dispatch("m1000,2")
	assert.Equal(t, "aabb", read)
}

func TestDispatchMemoryWriteLengthMismatch(t *testing.T) {
	s := newTestSession()
	reply, _, _ := s.Dispatch("M1000,4:aabb")
	assert.Equal(t, "E01", reply)
}

func TestDispatchSetAndRemoveBreakpoint(t *testing.T) {
	s := newTestSession()
	set, _, _ := s.Dispatch("Z0,2000,1")
	assert.Equal(t, "OK", set)
	assert.Equal(t, 1, s.BreakpointCount())

	remove, _, _ := s.Dispatch("z0,2000,1")
	assert.Equal(t, "OK", remove)
	assert.Equal(t, 0, s.BreakpointCount())
}

func TestDispatchUnsupportedBreakpointKindEmptyReply(t *testing.T) {
	s := newTestSession()
	reply, hasReply, _ := s.Dispatch("Z1,2000,1")
	assert.Equal(t, "", reply)
	assert.True(t, hasReply)
}

func TestDispatchStepQueuesAction(t *testing.T) {
	s := newTestSession()
	reply, hasReply, _ := s.Dispatch("s")
	assert.Equal(t, "", reply)
	assert.False(t, hasReply)

	action := s.TakePendingAction()
	assert.Equal(t, ActionStep, action)
	assert.Equal(t, StateRunning, s.ExecState())
}

func TestDispatchContinueThenNotifyStop(t *testing.T) {
	s := newTestSession()
	_, _, _ = s.Dispatch("c")
	action := s.TakePendingAction()
	require.Equal(t, ActionContinue, action)

	reply := s.NotifyStop(SigTrap)
	assert.Equal(t, "S05", reply)
	assert.Equal(t, StateStoppedIdle, s.ExecState())
}

func TestHandleInterruptWhileStoppedRepliesImmediately(t *testing.T) {
	s := newTestSession()
	reply, hasReply, action := s.HandleInterrupt()
	assert.Equal(t, "S05", reply)
	assert.True(t, hasReply)
	assert.Equal(t, ActionNone, action)
}

func TestHandleInterruptWhileRunningReturnsHaltAction(t *testing.T) {
	s := newTestSession()
	_, _, _ = s.Dispatch("c")
	s.TakePendingAction()

	reply, hasReply, action := s.HandleInterrupt()
	assert.False(t, hasReply)
	assert.Equal(t, "", reply)
	assert.Equal(t, ActionHalt, action)
}

func TestDispatchDetachReportsDetach(t *testing.T) {
	s := newTestSession()
	reply, hasReply, detach := s.Dispatch("D")
	assert.Equal(t, "OK", reply)
	assert.True(t, hasReply)
	assert.True(t, detach)
}

func TestResetClearsRunningStateAndNoAck(t *testing.T) {
	s := newTestSession()
	s.Dispatch("QStartNoAckMode")
	s.Dispatch("c")
	s.TakePendingAction()
	require.Equal(t, StateRunning, s.ExecState())

	s.Reset()
	assert.False(t, s.NoAckMode())
	assert.Equal(t, StateStoppedIdle, s.ExecState())
	assert.Equal(t, ActionNone, s.TakePendingAction())
}
