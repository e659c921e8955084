// Package facade declares the narrow interface the remote-debugging core
// uses to reach the CPU, memory, and devices of the embedding emulator. The
// interpreter, VGA/keyboard/mouse devices, screenshot subsystem, and
// save-state machinery live on the other side of this interface and are out
// of scope for this module.
package facade

// Register indices, fixed order per the GDB RSP register map this core
// advertises: EAX, ECX, EDX, EBX, ESP, EBP, ESI, EDI, EIP, EFLAGS, CS, SS,
// DS, ES, FS, GS.
const (
	RegEAX = iota
	RegECX
	RegEDX
	RegEBX
	RegESP
	RegEBP
	RegESI
	RegEDI
	RegEIP
	RegEFLAGS
	RegCS
	RegSS
	RegDS
	RegES
	RegFS
	RegGS
	NumRegisters
)

// MouseButton identifies one of the buttons input-send-event can toggle.
type MouseButton int

const (
	MouseButtonLeft MouseButton = iota
	MouseButtonRight
	MouseButtonMiddle
)

// Emulator is the facade the GDB and QMP sessions drive. Every method may be
// called from a transport goroutine; implementations are responsible for
// marshalling onto the emulator's main thread where the underlying state is
// not otherwise safe to touch concurrently.
type Emulator interface {
	// Registers.
	GetRegister(index int) uint32
	SetRegister(index int, value uint32)

	// Memory. Addresses are linear (real-mode callers compute (seg<<4)+off
	// before calling).
	ReadByte(linear uint32) uint8
	WriteByte(linear uint32, value uint8)
	SaveMemoryBin(path string, addr uint32, size uint32) bool

	// Breakpoints.
	SetBreakpoint(linear uint32) bool
	RemoveBreakpoint(linear uint32) bool

	// Keyboard.
	AddKey(keyID int, down bool)

	// Mouse. dx/dy are pixel or relative-unit deltas; rel selects relative
	// vs. absolute interpretation for the accumulated cursor-move event.
	ButtonPressed(button MouseButton)
	ButtonReleased(button MouseButton)
	CursorMoved(dx, dy int, rel bool)

	// Screenshot.
	TakeScreenshot()
	IsScreenshotPending() bool
	GetLastScreenshotPath() string
	ClearLastScreenshotPath()

	// Save/load state.
	RequestSave(path string)
	RequestLoad(path string)
	IsPending() bool
	IsComplete() (done bool, err error)

	// Emulator control.
	IsPaused() bool
	RequestPause()
	RequestResume()
	RequestReset(dosOnly bool)

	// Diagnostic.
	IsInteractiveDebuggerActive() bool
}

// StepResult names the outcome of a STEP or CONTINUE action returned by the
// Debug Poll Loop. No method in this module takes it; the embedder reports a
// stop through ReportStop's signal number.
type StepResult int

const (
	// StepCompleted means a single instruction executed (or, for
	// CONTINUE, the run was cut short by a software breakpoint, interrupt
	// token, or equivalent) and the CPU is stopped again.
	StepCompleted StepResult = iota
)
