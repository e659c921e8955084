package rsp

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/lokkju/dosbox-x/facade"
	"github.com/lokkju/dosbox-x/rdbglog"
)

// ExecutionState is the GDB session's view of whether the emulated CPU is
// running, has a stop reply outstanding, or is idle and stopped.
type ExecutionState int

const (
	StateStoppedIdle ExecutionState = iota
	StateRunning
	StateStoppedPendingReply
)

// PendingAction is the action dispatch has queued for the Debug Poll Loop
// to carry out on the emulator's behalf.
type PendingAction int

const (
	ActionNone PendingAction = iota
	ActionStep
	ActionContinue
	// ActionHalt is returned when a 0x03 interrupt arrives while RUNNING;
	// the embedder should stop at the next instruction boundary and report
	// the resulting stop via NotifyStop.
	ActionHalt
)

// SigTrap is the signal number this stub reports for every stop (single
// step, software breakpoint, or interrupt).
const SigTrap = 5

// Session holds one GDB client connection's protocol state: negotiated
// mode, execution state, and installed breakpoints.
type Session struct {
	mu sync.Mutex

	facade facade.Emulator
	log    *rdbglog.Logger
	id     string

	noAckMode   bool
	execState   ExecutionState
	pending     PendingAction
	breakpoints map[uint32]struct{}
}

// NewSession creates a GDB session bound to the given facade. id is an
// opaque correlation token (typically a uuid) attached to log lines.
func NewSession(f facade.Emulator, log *rdbglog.Logger, id string) *Session {
	return &Session{
		facade:      f,
		log:         log,
		id:          id,
		execState:   StateStoppedIdle,
		breakpoints: make(map[uint32]struct{}),
	}
}

// NoAckMode reports whether QStartNoAckMode has been negotiated.
func (s *Session) NoAckMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.noAckMode
}

// ExecState reports the current execution state, for the admin status API.
func (s *Session) ExecState() ExecutionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.execState
}

// BreakpointCount reports the number of installed software breakpoints.
func (s *Session) BreakpointCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.breakpoints)
}

// Reset clears session state back to its just-connected values. Called on
// client disconnect; a detach implicitly cancels any pending
// step/continue.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.noAckMode = false
	s.execState = StateStoppedIdle
	s.pending = ActionNone
}

// Dispatch processes one complete RSP payload and returns the reply to send
// (if hasReply is true) and whether the client connection should be closed
// after the reply is flushed (detach).
func (s *Session) Dispatch(payload string) (reply string, hasReply bool, detach bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fields := logrus.Fields{"session": s.id, "command": payload}

	switch {
	case payload == "?":
		s.log.Debug("halt reason query", fields)
		return "S05", true, false

	case strings.HasPrefix(payload, "qSupported"):
		return "PacketSize=3fff;swbreak+;hwbreak+;vContSupported+;QStartNoAckMode+", true, false

	case payload == "QStartNoAckMode":
		s.noAckMode = true
		return "OK", true, false

	case payload == "qfThreadInfo":
		return "m1", true, false

	case payload == "qsThreadInfo":
		return "l", true, false

	case payload == "qAttached":
		return "1", true, false

	case strings.HasPrefix(payload, "H"):
		return "OK", true, false

	case payload == "vCont?":
		return "vCont;c;s;t", true, false

	case payload == "vCont;s" || strings.HasPrefix(payload, "vCont;s:"):
		s.pending = ActionStep
		return "", false, false

	case payload == "vCont;c" || strings.HasPrefix(payload, "vCont;c:"):
		s.pending = ActionContinue
		return "", false, false

	case payload == "s":
		s.pending = ActionStep
		return "", false, false

	case payload == "c":
		s.pending = ActionContinue
		return "", false, false

	case payload == "g":
		return encodeAllRegisters(s.facade), true, false

	case strings.HasPrefix(payload, "G"):
		if err := decodeAllRegisters(s.facade, payload[1:]); err != nil {
			s.log.Warn("malformed G packet", fields)
			return "E01", true, false
		}

		return "OK", true, false

	case strings.HasPrefix(payload, "p"):
		return s.handleReadRegister(payload[1:])

	case strings.HasPrefix(payload, "m"):
		return s.handleReadMemory(payload[1:])

	case strings.HasPrefix(payload, "M"):
		return s.handleWriteMemory(payload[1:])

	case strings.HasPrefix(payload, "Z"):
		return s.handleSetBreakpoint(payload)

	case strings.HasPrefix(payload, "z"):
		return s.handleRemoveBreakpoint(payload)

	case payload == "D" || strings.HasPrefix(payload, "D;"):
		s.log.Info("client detached", fields)
		return "OK", true, true

	default:
		return "", true, false
	}
}

// HandleInterrupt processes an out-of-band 0x03 token. If the session is
// already stopped, it replies S05 immediately; if RUNNING, it returns
// ActionHalt for the caller to act on and NotifyStop reports the eventual
// stop.
func (s *Session) HandleInterrupt() (reply string, hasReply bool, action PendingAction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.execState != StateRunning {
		return "S05", true, ActionNone
	}

	return "", false, ActionHalt
}

// TakePendingAction clears and returns the queued step/continue action,
// transitioning execState to RUNNING when an action is taken (invariant 2
// session state).
func (s *Session) TakePendingAction() PendingAction {
	s.mu.Lock()
	defer s.mu.Unlock()

	action := s.pending
	if action == ActionNone {
		return ActionNone
	}

	s.pending = ActionNone
	s.execState = StateRunning
	return action
}

// NotifyStop reports exactly one stop reply for a RUNNING->STOPPED
// transition and returns the frame payload to send.
func (s *Session) NotifyStop(signal int) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.execState = StateStoppedIdle
	return fmt.Sprintf("S%02x", signal)
}

func (s *Session) handleReadRegister(hexIndex string) (string, bool, bool) {
	idx, err := strconv.ParseInt(hexIndex, 16, 32)
	if err != nil || idx < 0 || int(idx) >= facade.NumRegisters {
		return "E01", true, false
	}

	return encodeRegister(s.facade.GetRegister(int(idx))), true, false
}

func (s *Session) handleReadMemory(rest string) (string, bool, bool) {
	addr, length, ok := parseAddrLen(rest)
	if !ok {
		return "E01", true, false
	}

	buf := make([]byte, length)
	for i := uint32(0); i < length; i++ {
		buf[i] = s.facade.ReadByte(addr + i)
	}

	return hex.EncodeToString(buf), true, false
}

func (s *Session) handleWriteMemory(rest string) (string, bool, bool) {
	addrLen, hexData, found := strings.Cut(rest, ":")
	if !found {
		return "E01", true, false
	}

	addr, length, ok := parseAddrLen(addrLen)
	if !ok {
		return "E01", true, false
	}

	data, err := hex.DecodeString(hexData)
	if err != nil || uint32(len(data)) != length {
		return "E01", true, false
	}

	for i, b := range data {
		s.facade.WriteByte(addr+uint32(i), b)
	}

	return "OK", true, false
}

func parseAddrLen(s string) (addr uint32, length uint32, ok bool) {
	addrStr, lenStr, found := strings.Cut(s, ",")
	if !found {
		return 0, 0, false
	}

	a, err := strconv.ParseUint(addrStr, 16, 32)
	if err != nil {
		return 0, 0, false
	}

	l, err := strconv.ParseUint(lenStr, 16, 32)
	if err != nil {
		return 0, 0, false
	}

	return uint32(a), uint32(l), true
}

// handleSetBreakpoint handles "Z0,<addr>,<kind>". Breakpoint types other
// than 0 (software) are unsupported and reply empty.
func (s *Session) handleSetBreakpoint(payload string) (string, bool, bool) {
	if len(payload) < 2 || payload[1] != '0' {
		return "", true, false
	}

	addr, ok := parseBreakpointAddr(payload)
	if !ok {
		return "E01", true, false
	}

	if !s.facade.SetBreakpoint(addr) {
		return "E01", true, false
	}

	s.breakpoints[addr] = struct{}{}
	return "OK", true, false
}

func (s *Session) handleRemoveBreakpoint(payload string) (string, bool, bool) {
	if len(payload) < 2 || payload[1] != '0' {
		return "", true, false
	}

	addr, ok := parseBreakpointAddr(payload)
	if !ok {
		return "E01", true, false
	}

	if !s.facade.RemoveBreakpoint(addr) {
		return "E01", true, false
	}

	delete(s.breakpoints, addr)
	return "OK", true, false
}

// parseBreakpointAddr parses "<Z|z><kind>,<addr>,<len>" and returns addr.
func parseBreakpointAddr(payload string) (uint32, bool) {
	rest := payload[2:] // drop "Z0" / "z0"
	rest = strings.TrimPrefix(rest, ",")
	addrStr, _, _ := strings.Cut(rest, ",")
	a, err := strconv.ParseUint(addrStr, 16, 32)
	if err != nil {
		return 0, false
	}

	return uint32(a), true
}
