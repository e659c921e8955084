// Package qmp implements the QEMU Monitor Protocol server: the
// brace-balanced JSON object extractor, the greeting/capability handshake,
// and the command dispatcher.
package qmp

import (
	"strconv"
)

// ExtractObject scans buf for the first complete, brace-balanced `{...}`
// object, respecting quoted strings (with `\"` escapes) so that braces
// inside string literals are not mistaken for structure. It returns the
// object's bytes (including the outer braces) and the number of leading
// bytes of buf that were consumed, including any garbage preceding the
// opening brace. ok is false if buf holds no complete object yet.
func ExtractObject(buf []byte) (object []byte, consumed int, ok bool) {
	start := -1
	for i, b := range buf {
		if b == '{' {
			start = i
			break
		}
	}

	if start == -1 {
		return nil, 0, false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(buf); i++ {
		b := buf[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case b == '\\':
				escaped = true
			case b == '"':
				inString = false
			}

			continue
		}

		switch b {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return buf[start : i+1], i + 1, true
			}
		}
	}

	return nil, 0, false
}

// fieldSpan locates the raw value bytes following "<key>": inside obj
// (which must include its outer braces). It does not descend into nested
// objects/arrays other than to skip over them correctly while scanning for
// the key at the top level of obj.
func fieldSpan(obj []byte, key string) (value []byte, ok bool) {
	needle := []byte(`"` + key + `"`)
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(obj); i++ {
		b := obj[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case b == '\\':
				escaped = true
			case b == '"':
				inString = false
			}

			continue
		}

		switch b {
		case '"':
			// Only attempt a key match at depth 1 (top level of this object).
			if depth == 1 && matchesAt(obj, i, needle) {
				j := i + len(needle)
				j = skipWhitespace(obj, j)
				if j < len(obj) && obj[j] == ':' {
					j = skipWhitespace(obj, j+1)
					end := valueEnd(obj, j)
					if end == -1 {
						return nil, false
					}

					return obj[j:end], true
				}
			}

			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
		}
	}

	return nil, false
}

func matchesAt(data []byte, i int, needle []byte) bool {
	if i+len(needle) > len(data) {
		return false
	}

	for k := 0; k < len(needle); k++ {
		if data[i+k] != needle[k] {
			return false
		}
	}

	return true
}

func skipWhitespace(data []byte, i int) int {
	for i < len(data) {
		switch data[i] {
		case ' ', '\t', '\r', '\n':
			i++
		default:
			return i
		}
	}

	return i
}

// valueEnd returns the index one past the end of the JSON value starting at
// data[start], or -1 if the value is malformed/truncated.
func valueEnd(data []byte, start int) int {
	if start >= len(data) {
		return -1
	}

	switch data[start] {
	case '"':
		i := start + 1
		escaped := false
		for i < len(data) {
			if escaped {
				escaped = false
				i++
				continue
			}

			if data[i] == '\\' {
				escaped = true
				i++
				continue
			}

			if data[i] == '"' {
				return i + 1
			}

			i++
		}

		return -1

	case '{', '[':
		open, close := byte('{'), byte('}')
		if data[start] == '[' {
			open, close = '[', ']'
		}

		depth := 0
		inString := false
		escaped := false
		for i := start; i < len(data); i++ {
			b := data[i]
			if inString {
				switch {
				case escaped:
					escaped = false
				case b == '\\':
					escaped = true
				case b == '"':
					inString = false
				}

				continue
			}

			switch {
			case b == '"':
				inString = true
			case b == open:
				depth++
			case b == close:
				depth--
				if depth == 0 {
					return i + 1
				}
			}
		}

		return -1

	default:
		i := start
		for i < len(data) {
			switch data[i] {
			case ',', '}', ']', ' ', '\t', '\r', '\n':
				return i
			}

			i++
		}

		return i
	}
}

// FieldString returns the string value of key, with the closing/opening
// quotes stripped and `\"` unescaped.
func FieldString(obj []byte, key string) (string, bool) {
	raw, ok := fieldSpan(obj, key)
	if !ok || len(raw) < 2 || raw[0] != '"' || raw[len(raw)-1] != '"' {
		return "", false
	}

	inner := raw[1 : len(raw)-1]
	out := make([]byte, 0, len(inner))
	for i := 0; i < len(inner); i++ {
		if inner[i] == '\\' && i+1 < len(inner) && inner[i+1] == '"' {
			out = append(out, '"')
			i++
			continue
		}

		out = append(out, inner[i])
	}

	return string(out), true
}

// FieldInt returns the base-10 integer value of key.
func FieldInt(obj []byte, key string) (int64, bool) {
	raw, ok := fieldSpan(obj, key)
	if !ok {
		return 0, false
	}

	v, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, false
	}

	return v, true
}

// FieldBool returns the boolean value of key.
func FieldBool(obj []byte, key string) (bool, bool) {
	raw, ok := fieldSpan(obj, key)
	if !ok {
		return false, false
	}

	switch string(raw) {
	case "true":
		return true, true
	case "false":
		return false, true
	default:
		return false, false
	}
}

// FieldRaw returns the unparsed value bytes for key, whatever its type.
func FieldRaw(obj []byte, key string) ([]byte, bool) {
	return fieldSpan(obj, key)
}

// FieldObjectArray returns the list of top-level brace-balanced objects
// inside the array value of key. Non-object array elements are skipped.
func FieldObjectArray(obj []byte, key string) ([][]byte, bool) {
	raw, ok := fieldSpan(obj, key)
	if !ok || len(raw) < 2 || raw[0] != '[' || raw[len(raw)-1] != ']' {
		return nil, false
	}

	inner := raw[1 : len(raw)-1]
	var out [][]byte

	for {
		elem, consumed, ok := ExtractObject(inner)
		if !ok {
			break
		}

		out = append(out, elem)
		inner = inner[consumed:]
	}

	return out, true
}
