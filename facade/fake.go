package facade

import "sync"

// Fake is an in-memory Emulator used by the cmd/rdbgd harness and by the
// package tests in rsp/ and qmp/. It has no relation to a real x86
// interpreter; it exists to exercise the protocol state machines against
// something that behaves like one.
type Fake struct {
	mu sync.Mutex

	regs [NumRegisters]uint32
	mem  map[uint32]uint8

	breakpoints map[uint32]struct{}

	paused              bool
	interactiveDebugger bool

	screenshotPending bool
	lastScreenshot    string

	saveLoadPending bool
	saveLoadErr     error
	saveLoadDone    bool

	keyEvents    []KeyEvent
	mouseButtons []ButtonEvent
	cursorMoves  []CursorEvent

	resets int
}

// KeyEvent records one AddKey call.
type KeyEvent struct {
	KeyID int
	Down  bool
}

// ButtonEvent records one mouse button transition.
type ButtonEvent struct {
	Button MouseButton
	Down   bool
}

// CursorEvent records one cursor-move call.
type CursorEvent struct {
	DX, DY int
	Rel    bool
}

// NewFake returns a Fake with EIP=0xFFF0 and CS=0xF000, the canonical
// reset vector of a freshly reset x86 real-mode CPU.
func NewFake() *Fake {
	f := &Fake{
		mem:         make(map[uint32]uint8),
		breakpoints: make(map[uint32]struct{}),
		paused:      true,
	}
	f.regs[RegEIP] = 0xFFF0
	f.regs[RegCS] = 0xF000
	return f
}

func (f *Fake) GetRegister(index int) uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if index < 0 || index >= NumRegisters {
		return 0
	}
	return f.regs[index]
}

func (f *Fake) SetRegister(index int, value uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if index < 0 || index >= NumRegisters {
		return
	}
	f.regs[index] = value
}

func (f *Fake) ReadByte(linear uint32) uint8 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mem[linear]
}

func (f *Fake) WriteByte(linear uint32, value uint8) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mem[linear] = value
}

// SaveMemoryBin writes nothing: the fake never touches the filesystem. It
// reports success for any non-zero size.
func (f *Fake) SaveMemoryBin(path string, addr uint32, size uint32) bool {
	return size > 0
}

func (f *Fake) SetBreakpoint(linear uint32) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.breakpoints[linear] = struct{}{}
	return true
}

func (f *Fake) RemoveBreakpoint(linear uint32) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.breakpoints[linear]
	delete(f.breakpoints, linear)
	return ok
}

func (f *Fake) HasBreakpoint(linear uint32) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.breakpoints[linear]
	return ok
}

// StepInstruction advances EIP by one, standing in for executing a single
// CPU instruction, and reports whether the new address has an installed
// breakpoint. It is a driver-loop helper, not part of the Emulator
// interface: a real interpreter executes instructions on its own and
// calls the poll loop between them, rather than being stepped by it.
func (f *Fake) StepInstruction() (hitBreakpoint bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.regs[RegEIP]++
	_, hitBreakpoint = f.breakpoints[f.regs[RegEIP]]
	return hitBreakpoint
}

func (f *Fake) AddKey(keyID int, down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keyEvents = append(f.keyEvents, KeyEvent{KeyID: keyID, Down: down})
}

func (f *Fake) KeyEvents() []KeyEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]KeyEvent, len(f.keyEvents))
	copy(out, f.keyEvents)
	return out
}

func (f *Fake) ButtonPressed(button MouseButton) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mouseButtons = append(f.mouseButtons, ButtonEvent{Button: button, Down: true})
}

func (f *Fake) ButtonReleased(button MouseButton) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mouseButtons = append(f.mouseButtons, ButtonEvent{Button: button, Down: false})
}

func (f *Fake) CursorMoved(dx, dy int, rel bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cursorMoves = append(f.cursorMoves, CursorEvent{DX: dx, DY: dy, Rel: rel})
}

// MouseButtons returns a copy of every button transition recorded so far.
func (f *Fake) MouseButtons() []ButtonEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ButtonEvent, len(f.mouseButtons))
	copy(out, f.mouseButtons)
	return out
}

// CursorMoves returns a copy of every cursor-move call recorded so far.
func (f *Fake) CursorMoves() []CursorEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]CursorEvent, len(f.cursorMoves))
	copy(out, f.cursorMoves)
	return out
}

func (f *Fake) TakeScreenshot() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.screenshotPending = true
}

func (f *Fake) IsScreenshotPending() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.screenshotPending
}

func (f *Fake) GetLastScreenshotPath() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastScreenshot
}

func (f *Fake) ClearLastScreenshotPath() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastScreenshot = ""
}

// CompleteScreenshot is a test/harness helper simulating the screenshot
// subsystem finishing asynchronously.
func (f *Fake) CompleteScreenshot(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.screenshotPending = false
	f.lastScreenshot = path
}

func (f *Fake) RequestSave(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveLoadPending = true
	f.saveLoadDone = false
}

func (f *Fake) RequestLoad(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveLoadPending = true
	f.saveLoadDone = false
}

func (f *Fake) IsPending() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saveLoadPending
}

func (f *Fake) IsComplete() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.saveLoadDone {
		return false, nil
	}
	return true, f.saveLoadErr
}

// CompleteSaveLoad is a test/harness helper simulating the save/load
// machinery finishing asynchronously.
func (f *Fake) CompleteSaveLoad(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveLoadPending = false
	f.saveLoadDone = true
	f.saveLoadErr = err
}

func (f *Fake) IsPaused() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paused
}

func (f *Fake) RequestPause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = true
}

func (f *Fake) RequestResume() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = false
}

func (f *Fake) RequestReset(dosOnly bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	f.regs[RegEIP] = 0xFFF0
	f.regs[RegCS] = 0xF000
}

func (f *Fake) Resets() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resets
}

func (f *Fake) IsInteractiveDebuggerActive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.interactiveDebugger
}

// SetInteractiveDebuggerActive is a test/harness helper.
func (f *Fake) SetInteractiveDebuggerActive(active bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.interactiveDebugger = active
}
