package qmp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractObjectSimple(t *testing.T) {
	obj, consumed, ok := ExtractObject([]byte(`{"execute":"stop"}`))
	require.True(t, ok)
	assert.Equal(t, `{"execute":"stop"}`, string(obj))
	assert.Equal(t, len(`{"execute":"stop"}`), consumed)
}

func TestExtractObjectSkipsGarbagePrefix(t *testing.T) {
	obj, _, ok := ExtractObject([]byte("garbage {\"a\":1}"))
	require.True(t, ok)
	assert.Equal(t, `{"a":1}`, string(obj))
}

func TestExtractObjectIncomplete(t *testing.T) {
	_, _, ok := ExtractObject([]byte(`{"execute":"st`))
	assert.False(t, ok)
}

func TestExtractObjectIgnoresBracesInStrings(t *testing.T) {
	obj, _, ok := ExtractObject([]byte(`{"data":"} { escaped \" still inside"}`))
	require.True(t, ok)
	assert.Equal(t, `{"data":"} { escaped \" still inside"}`, string(obj))
}

func TestExtractObjectLeavesRemainderForNextCall(t *testing.T) {
	buf := []byte(`{"a":1}{"b":2}`)
	obj1, consumed, ok := ExtractObject(buf)
	require.True(t, ok)
	assert.Equal(t, `{"a":1}`, string(obj1))

	obj2, _, ok := ExtractObject(buf[consumed:])
	require.True(t, ok)
	assert.Equal(t, `{"b":2}`, string(obj2))
}

func TestFieldStringNested(t *testing.T) {
	obj := []byte(`{"execute":"send-key","arguments":{"keys":[{"type":"qcode","data":"ctrl"}]}}`)
	name, ok := FieldString(obj, "execute")
	require.True(t, ok)
	assert.Equal(t, "send-key", name)
}

func TestFieldIntAndBool(t *testing.T) {
	obj := []byte(`{"address":4096,"running":true,"paused":false}`)

	addr, ok := FieldInt(obj, "address")
	require.True(t, ok)
	assert.Equal(t, int64(4096), addr)

	running, ok := FieldBool(obj, "running")
	require.True(t, ok)
	assert.True(t, running)

	paused, ok := FieldBool(obj, "paused")
	require.True(t, ok)
	assert.False(t, paused)
}

func TestFieldObjectArray(t *testing.T) {
	obj := []byte(`{"arguments":{"keys":[{"type":"qcode","data":"ctrl"},{"type":"qcode","data":"alt"}]}}`)
	args, ok := FieldRaw(obj, "arguments")
	require.True(t, ok)

	keys, ok := FieldObjectArray(args, "keys")
	require.True(t, ok)
	require.Len(t, keys, 2)

	name0, _ := FieldString(keys[0], "data")
	name1, _ := FieldString(keys[1], "data")
	assert.Equal(t, "ctrl", name0)
	assert.Equal(t, "alt", name1)
}

func TestFieldLookupDoesNotCrossObjectBoundary(t *testing.T) {
	obj := []byte(`{"arguments":{"file":"inner.bin"},"file":"outer.bin"}`)
	args, ok := FieldRaw(obj, "arguments")
	require.True(t, ok)

	inner, ok := FieldString(args, "file")
	require.True(t, ok)
	assert.Equal(t, "inner.bin", inner)

	outer, ok := FieldString(obj, "file")
	require.True(t, ok)
	assert.Equal(t, "outer.bin", outer)
}

func TestFieldStringUnescapesQuotes(t *testing.T) {
	obj := []byte(`{"desc":"say \"hi\""}`)
	desc, ok := FieldString(obj, "desc")
	require.True(t, ok)
	assert.Equal(t, `say "hi"`, desc)
}
