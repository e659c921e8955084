// Package rsp implements the GDB Remote Serial Protocol stub: the packet
// framer, the register/memory/breakpoint command dispatcher, and the
// step/continue interlock.
package rsp

import (
	"bytes"
	"fmt"
	"io"
)

// ResultKind classifies what Framer.Next produced.
type ResultKind int

const (
	// ResultNone means the buffer holds no complete token yet; the caller
	// should read more bytes and call Next again.
	ResultNone ResultKind = iota
	// ResultInterrupt means a bare 0x03 byte was consumed.
	ResultInterrupt
	// ResultFrame means a checksum-valid $payload#cc frame was consumed;
	// Payload holds the payload.
	ResultFrame
)

// Result is one parse step's outcome.
type Result struct {
	Kind    ResultKind
	Payload string
}

// Framer incrementally parses an append-only byte stream into RSP frames.
// It is not safe for concurrent use.
type Framer struct {
	buf   []byte
	NoAck bool
}

// Feed appends newly-received bytes to the framer's internal buffer.
func (f *Framer) Feed(data []byte) {
	f.buf = append(f.buf, data...)
}

// Pending reports whether any unparsed bytes remain.
func (f *Framer) Pending() bool {
	return len(f.buf) > 0
}

// Next consumes as much of the buffer as it can and returns the first
// interrupt token or checksum-valid frame found. Bytes preceding the first
// '$' (including stray '+'/'-' acks) are discarded silently. Frames with a
// bad checksum cause a '-' (or nothing, in no-ack mode) to be written to ack
// and parsing resumes at the next '$'; a matching checksum writes '+' (or
// nothing) and returns the frame. Next returns ResultNone once no further
// progress can be made without more input.
func (f *Framer) Next(ack io.Writer) Result {
	for {
		if len(f.buf) == 0 {
			return Result{Kind: ResultNone}
		}

		if f.buf[0] == 0x03 {
			f.buf = f.buf[1:]
			return Result{Kind: ResultInterrupt}
		}

		idx := bytes.IndexByte(f.buf, '$')
		if idx == -1 {
			// Nothing recoverable in the buffer; drop it all. More bytes
			// may still arrive and start a fresh frame.
			f.buf = nil
			return Result{Kind: ResultNone}
		}

		if idx > 0 {
			f.buf = f.buf[idx:]
		}

		hashIdx := bytes.IndexByte(f.buf, '#')
		if hashIdx == -1 {
			return Result{Kind: ResultNone}
		}

		if len(f.buf) < hashIdx+3 {
			return Result{Kind: ResultNone}
		}

		payload := string(f.buf[1:hashIdx])
		checksum := string(f.buf[hashIdx+1 : hashIdx+3])
		f.buf = f.buf[hashIdx+3:]

		if checksum != computeChecksum(payload) {
			if !f.NoAck && ack != nil {
				_, _ = ack.Write([]byte{'-'})
			}

			continue
		}

		if !f.NoAck && ack != nil {
			_, _ = ack.Write([]byte{'+'})
		}

		return Result{Kind: ResultFrame, Payload: payload}
	}
}

// computeChecksum is the unsigned 8-bit sum of payload's bytes, modulo 256,
// rendered as two lowercase hex digits.
func computeChecksum(payload string) string {
	var sum byte
	for i := 0; i < len(payload); i++ {
		sum += payload[i]
	}

	return fmt.Sprintf("%02x", sum)
}

// SendFrame writes "$payload#cc" to w.
func SendFrame(w io.Writer, payload string) error {
	_, err := fmt.Fprintf(w, "$%s#%s", payload, computeChecksum(payload))
	return err
}
