package qmp

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lokkju/dosbox-x/asyncgate"
	"github.com/lokkju/dosbox-x/facade"
	"github.com/lokkju/dosbox-x/rdbglog"
)

// memdumpSizeCap is the largest memdump size this stub will read or report.
// screendump is not subject to it.
const memdumpSizeCap = 16 * 1024 * 1024

// NegotiationMode selects whether commands other than qmp_capabilities are
// honored before the capability handshake completes. This module defaults
// to Relaxed (see DESIGN.md).
type NegotiationMode int

const (
	// Relaxed honors any command before qmp_capabilities, matching the
	// source's observed behavior.
	Relaxed NegotiationMode = iota
	// Strict rejects every command but qmp_capabilities until it has run.
	Strict
)

// Session holds one QMP client connection's protocol state.
type Session struct {
	mu sync.Mutex

	facade facade.Emulator
	gate   *asyncgate.Gate
	log    *rdbglog.Logger
	id     string
	mode   NegotiationMode

	negotiated bool

	pendingRel struct {
		dx, dy   int
		haveX    bool
		haveY    bool
	}
}

// NewSession creates a QMP session bound to the given facade and shared
// Async Request Gate.
func NewSession(f facade.Emulator, gate *asyncgate.Gate, log *rdbglog.Logger, id string, mode NegotiationMode) *Session {
	return &Session{facade: f, gate: gate, log: log, id: id, mode: mode}
}

// Greeting renders the line sent immediately after accept.
func Greeting() []byte {
	return []byte(`{"QMP":{"version":{"qemu":{"major":8,"micro":0,"minor":2},"package":"rdbgd"},"capabilities":["oob"]}}` + "\r\n")
}

// Dispatch processes one complete JSON command object (as extracted by
// ExtractObject, braces included) and returns the JSON reply line to send,
// including its trailing CRLF, and whether the connection should close.
func (s *Session) Dispatch(obj []byte) (reply []byte, closeConn bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name, ok := FieldString(obj, "execute")
	if !ok {
		return s.errorReply(genericError("missing 'execute' field")), false
	}

	fields := logrus.Fields{"session": s.id, "command": name}

	if s.mode == Strict && !s.negotiated && name != "qmp_capabilities" {
		s.log.Warn("command rejected before capability negotiation", fields)
		return s.errorReply(genericError("capabilities negotiation not finished")), false
	}

	args, _ := FieldRaw(obj, "arguments")

	switch name {
	case "qmp_capabilities":
		s.negotiated = true
		return s.okReply("{}"), false

	case "query-commands":
		return s.okReply(supportedCommandsJSON()), false

	case "query-status":
		return s.okReply(s.queryStatusJSON()), false

	case "send-key":
		return s.handleSendKey(args)

	case "input-send-event":
		return s.handleInputSendEvent(args)

	case "memdump":
		return s.handleMemdump(args)

	case "screendump":
		return s.handleScreendump(args)

	case "savestate":
		return s.handleSaveState(args)

	case "loadstate":
		return s.handleLoadState(args)

	case "stop":
		return s.handleStop()

	case "cont":
		return s.handleCont()

	case "system_reset":
		return s.handleSystemReset(args)

	case "quit", "system_powerdown":
		s.log.Info("quit/system_powerdown acknowledged, no-op", fields)
		return s.okReply("{}"), false

	default:
		return s.errorReply(commandNotFound(name)), false
	}
}

func (s *Session) okReply(rawJSON string) []byte {
	return []byte(fmt.Sprintf(`{"return":%s}`, rawJSON) + "\r\n")
}

func (s *Session) errorReply(err *cmdError) []byte {
	return []byte(fmt.Sprintf(`{"error":{"class":"%s","desc":%q}}`, err.class, err.desc) + "\r\n")
}

func supportedCommandsJSON() string {
	names := []string{
		"qmp_capabilities", "query-commands", "query-status", "send-key",
		"input-send-event", "memdump", "screendump", "savestate",
		"loadstate", "stop", "cont", "system_reset", "quit", "system_powerdown",
	}

	var b strings.Builder
	b.WriteByte('[')
	for i, n := range names {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, `{"name":%q}`, n)
	}
	b.WriteByte(']')
	return b.String()
}

func (s *Session) queryStatusJSON() string {
	if s.facade.IsPaused() {
		return `{"status":"paused","running":false}`
	}
	return `{"status":"running","running":true}`
}

func (s *Session) handleSendKey(args []byte) ([]byte, bool) {
	keyObjs, ok := FieldObjectArray(args, "keys")
	if !ok || len(keyObjs) == 0 {
		return s.errorReply(genericError("send-key requires a non-empty 'keys' array")), false
	}

	holdMs := int64(100)
	if v, ok := FieldInt(args, "hold-time"); ok {
		holdMs = v
	}

	ids := make([]int, 0, len(keyObjs))
	for _, k := range keyObjs {
		name, ok := FieldString(k, "data")
		if !ok {
			continue
		}

		id := lookupKeyCode(name)
		if id == KBDNone {
			s.log.Warn("unrecognized qcode in send-key", logrus.Fields{"session": s.id, "data": name})
			continue
		}

		ids = append(ids, id)
	}

	for _, id := range ids {
		s.facade.AddKey(id, true)
	}

	time.Sleep(time.Duration(holdMs) * time.Millisecond)

	for i := len(ids) - 1; i >= 0; i-- {
		s.facade.AddKey(ids[i], false)
	}

	return s.okReply("{}"), false
}

func (s *Session) handleInputSendEvent(args []byte) ([]byte, bool) {
	events, ok := FieldObjectArray(args, "events")
	if !ok {
		return s.errorReply(genericError("input-send-event requires an 'events' array")), false
	}

	s.pendingRel.haveX = false
	s.pendingRel.haveY = false
	s.pendingRel.dx = 0
	s.pendingRel.dy = 0

	for _, ev := range events {
		typ, _ := FieldString(ev, "type")
		data, _ := FieldRaw(ev, "data")

		switch typ {
		case "key":
			s.applyKeyEvent(data)
		case "rel":
			s.accumulateRel(data)
		case "btn":
			s.applyButtonEvent(data)
		}
	}

	if s.pendingRel.haveX || s.pendingRel.haveY {
		s.facade.CursorMoved(s.pendingRel.dx, s.pendingRel.dy, true)
	}

	return s.okReply("{}"), false
}

func (s *Session) applyKeyEvent(data []byte) {
	down, _ := FieldBool(data, "down")
	keyObj, ok := FieldRaw(data, "key")
	if !ok {
		return
	}

	name, ok := FieldString(keyObj, "data")
	if !ok {
		return
	}

	id := lookupKeyCode(name)
	if id == KBDNone {
		s.log.Warn("unrecognized qcode in input-send-event", logrus.Fields{"session": s.id, "data": name})
		return
	}

	s.facade.AddKey(id, down)
}

func (s *Session) accumulateRel(data []byte) {
	axis, _ := FieldString(data, "axis")
	value, ok := FieldInt(data, "value")
	if !ok {
		return
	}

	switch axis {
	case "x":
		s.pendingRel.dx += int(value)
		s.pendingRel.haveX = true
	case "y":
		s.pendingRel.dy += int(value)
		s.pendingRel.haveY = true
	}
}

func (s *Session) applyButtonEvent(data []byte) {
	button, _ := FieldString(data, "button")
	down, _ := FieldBool(data, "down")

	var b facade.MouseButton
	switch button {
	case "left":
		b = facade.MouseButtonLeft
	case "right":
		b = facade.MouseButtonRight
	case "middle":
		b = facade.MouseButtonMiddle
	default:
		return
	}

	if down {
		s.facade.ButtonPressed(b)
	} else {
		s.facade.ButtonReleased(b)
	}
}

func (s *Session) handleMemdump(args []byte) ([]byte, bool) {
	addr, ok := FieldInt(args, "address")
	if !ok {
		return s.errorReply(genericError("memdump requires 'address'")), false
	}

	size, ok := FieldInt(args, "size")
	if !ok || size < 0 {
		return s.errorReply(genericError("memdump requires 'size'")), false
	}

	if size > memdumpSizeCap {
		return s.errorReply(genericError("size exceeds 16 MiB limit")), false
	}

	buf := make([]byte, size)
	for i := int64(0); i < size; i++ {
		buf[i] = s.facade.ReadByte(uint32(addr) + uint32(i))
	}

	file, hasFile := FieldString(args, "file")
	if !hasFile {
		encoded := base64.StdEncoding.EncodeToString(buf)
		return s.okReply(fmt.Sprintf(`{"data":%q,"size":%d}`, encoded, size)), false
	}

	if err := os.WriteFile(file, buf, 0o644); err != nil {
		return s.errorReply(genericError("cannot write file: " + err.Error())), false
	}

	return s.okReply(fmt.Sprintf(`{"file":%q,"size":%d}`, file, size)), false
}

func (s *Session) handleScreendump(args []byte) ([]byte, bool) {
	s.facade.ClearLastScreenshotPath()

	if _, err := s.gate.Submit(asyncgate.KindScreenshot, nil); err != nil {
		return s.errorReply(genericError(err.Error())), false
	}

	if err := s.gate.Await(context.Background(), screenshotTimeout); err != nil {
		return s.errorReply(toCmdError(err)), false
	}

	path := s.facade.GetLastScreenshotPath()
	data, err := os.ReadFile(path)
	if err != nil {
		return s.errorReply(genericError("cannot read screenshot: " + err.Error())), false
	}

	file, hasFile := FieldString(args, "file")
	if !hasFile {
		encoded := base64.StdEncoding.EncodeToString(data)
		return s.okReply(fmt.Sprintf(`{"data":%q,"size":%d,"format":"png"}`, encoded, len(data))), false
	}

	if err := os.WriteFile(file, data, 0o644); err != nil {
		return s.errorReply(genericError("cannot write file: " + err.Error())), false
	}

	return s.okReply(fmt.Sprintf(`{"file":%q,"size":%d,"format":"png"}`, file, len(data))), false
}

func (s *Session) handleSaveState(args []byte) ([]byte, bool) {
	file, ok := FieldString(args, "file")
	if !ok || file == "" {
		return s.errorReply(genericError("savestate requires 'file'")), false
	}

	if _, err := s.gate.Submit(asyncgate.KindSave, file); err != nil {
		return s.errorReply(genericError(err.Error())), false
	}

	if err := s.gate.Await(context.Background(), saveLoadTimeout); err != nil {
		return s.errorReply(toCmdError(err)), false
	}

	return s.okReply(fmt.Sprintf(`{"file":%q}`, file)), false
}

func (s *Session) handleLoadState(args []byte) ([]byte, bool) {
	file, ok := FieldString(args, "file")
	if !ok || file == "" {
		return s.errorReply(genericError("loadstate requires 'file'")), false
	}

	if _, err := os.Stat(file); err != nil {
		return s.errorReply(genericError("file does not exist: " + file)), false
	}

	if _, err := s.gate.Submit(asyncgate.KindLoad, file); err != nil {
		return s.errorReply(genericError(err.Error())), false
	}

	if err := s.gate.Await(context.Background(), saveLoadTimeout); err != nil {
		return s.errorReply(toCmdError(err)), false
	}

	return s.okReply(fmt.Sprintf(`{"file":%q}`, file)), false
}

func (s *Session) handleStop() ([]byte, bool) {
	if s.facade.IsPaused() {
		return s.okReply("{}"), false
	}

	if _, err := s.gate.Submit(asyncgate.KindPause, nil); err != nil {
		return s.errorReply(genericError(err.Error())), false
	}

	if err := s.gate.Await(context.Background(), pauseResumeTimeout); err != nil {
		return s.errorReply(toCmdError(err)), false
	}

	return s.okReply("{}"), false
}

func (s *Session) handleCont() ([]byte, bool) {
	if !s.facade.IsPaused() {
		return s.okReply("{}"), false
	}

	if _, err := s.gate.Submit(asyncgate.KindResume, nil); err != nil {
		return s.errorReply(genericError(err.Error())), false
	}

	if err := s.gate.Await(context.Background(), pauseResumeTimeout); err != nil {
		return s.errorReply(toCmdError(err)), false
	}

	return s.okReply("{}"), false
}

func (s *Session) handleSystemReset(args []byte) ([]byte, bool) {
	dosOnly, _ := FieldBool(args, "dos_only")

	if _, err := s.gate.Submit(asyncgate.KindReset, dosOnly); err != nil {
		return s.errorReply(genericError(err.Error())), false
	}

	// system_reset replies immediately; Forget drains the slot back to
	// Idle once the GateWorker completes the request without making the
	// client wait on the reset itself.
	s.gate.Forget()

	return s.okReply("{}"), false
}

func toCmdError(err error) *cmdError {
	if ce, ok := err.(*cmdError); ok {
		return ce
	}

	return genericError(err.Error())
}
