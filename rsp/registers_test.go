package rsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lokkju/dosbox-x/facade"
)

func TestEncodeDecodeRegisterRoundTrip(t *testing.T) {
	encoded := encodeRegister(0x12345678)
	assert.Equal(t, "78563412", encoded)

	v, err := decodeRegister(encoded)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x12345678), v)
}

func TestDecodeRegisterRejectsWrongLength(t *testing.T) {
	_, err := decodeRegister("1234")
	assert.Error(t, err)
}

func TestEncodeDecodeAllRegistersRoundTrip(t *testing.T) {
	fake := facade.NewFake()
	for i := 0; i < facade.NumRegisters; i++ {
		fake.SetRegister(i, uint32(i)*0x1000+1)
	}

	encoded := encodeAllRegisters(fake)
	assert.Len(t, encoded, facade.NumRegisters*8)

	other := facade.NewFake()
	require.NoError(t, decodeAllRegisters(other, encoded))

	for i := 0; i < facade.NumRegisters; i++ {
		assert.Equal(t, fake.GetRegister(i), other.GetRegister(i))
	}
}

func TestDecodeAllRegistersRejectsShortInput(t *testing.T) {
	fake := facade.NewFake()
	assert.Error(t, decodeAllRegisters(fake, "1234"))
}
