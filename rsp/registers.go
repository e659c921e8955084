package rsp

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/lokkju/dosbox-x/facade"
)

// encodeRegister renders a register value as GDB expects it on the wire:
// little-endian byte order, hex-encoded.
func encodeRegister(v uint32) string {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return hex.EncodeToString(b[:])
}

// decodeRegister parses a little-endian hex register value, as sent within
// a 'G' packet.
func decodeRegister(s string) (uint32, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return 0, err
	}

	if len(b) != 4 {
		return 0, fmt.Errorf("register value must be 4 bytes, got %d", len(b))
	}

	return binary.LittleEndian.Uint32(b), nil
}

// encodeAllRegisters renders the 16 registers in the fixed order the target
// description advertises, for the 'g' command.
func encodeAllRegisters(e facade.Emulator) string {
	out := make([]byte, 0, facade.NumRegisters*8)
	for i := 0; i < facade.NumRegisters; i++ {
		out = append(out, encodeRegister(e.GetRegister(i))...)
	}

	return string(out)
}

// decodeAllRegisters writes every register in encoded from the hex stream
// sent by 'G'.
func decodeAllRegisters(e facade.Emulator, encoded string) error {
	if len(encoded) != facade.NumRegisters*8 {
		return fmt.Errorf("expected %d hex chars, got %d", facade.NumRegisters*8, len(encoded))
	}

	for i := 0; i < facade.NumRegisters; i++ {
		v, err := decodeRegister(encoded[i*8 : i*8+8])
		if err != nil {
			return err
		}

		e.SetRegister(i, v)
	}

	return nil
}
