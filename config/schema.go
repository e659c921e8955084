// Package config provides the typed key/value schema consumed by the
// embedder to enable/disable each server and choose its listen
// address and port, modeled on lxd/config's Schema+Map split.
package config

import (
	"fmt"
	"sort"
	"strconv"
)

// Type is a numeric code identifying a key's value type.
type Type int

// Possible value types.
const (
	String Type = iota
	Bool
	Int64
)

// Key defines the type, default, and validator of one config entry.
type Key struct {
	Type      Type
	Default   string
	Validator func(string) error
}

func (k Key) validate(value string) error {
	switch k.Type {
	case String:
	case Bool:
		if value != "true" && value != "false" {
			return fmt.Errorf("invalid boolean %q", value)
		}
	case Int64:
		if _, err := strconv.ParseInt(value, 10, 64); err != nil {
			return fmt.Errorf("invalid integer %q", value)
		}
	default:
		panic(fmt.Sprintf("unexpected value type: %d", k.Type))
	}

	if k.Validator != nil {
		return k.Validator(value)
	}

	return nil
}

// Schema is an immutable set of named Keys.
type Schema map[string]Key

// Keys returns all key names, sorted.
func (s Schema) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DebugServerSchema is the schema this module consumes: booleans to enable
// each server and the integer ports.
func DebugServerSchema() Schema {
	// Port 0 is accepted and means "let the OS assign an ephemeral port",
	// matching net.Listen's own convention; tests rely on this.
	portValidator := func(v string) error {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return err
		}

		if n < 0 || n > 65535 {
			return fmt.Errorf("port %d out of range", n)
		}

		return nil
	}

	return Schema{
		"gdb.enabled":        {Type: Bool, Default: "true"},
		"gdb.port":           {Type: Int64, Default: "2159", Validator: portValidator},
		"gdb.bind":           {Type: String, Default: "0.0.0.0"},
		"gdb.proxy_protocol": {Type: Bool, Default: "false"},
		"qmp.enabled":        {Type: Bool, Default: "true"},
		"qmp.port":           {Type: Int64, Default: "4444", Validator: portValidator},
		"qmp.bind":           {Type: String, Default: "0.0.0.0"},
		"qmp.proxy_protocol": {Type: Bool, Default: "false"},
		"admin.enabled":      {Type: Bool, Default: "false"},
		"admin.port":         {Type: Int64, Default: "2160", Validator: portValidator},
		"admin.bind":         {Type: String, Default: "127.0.0.1"},
	}
}
