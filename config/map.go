package config

import (
	"fmt"
	"strconv"
)

// Map is a validated set of string values for a Schema's keys.
type Map struct {
	schema Schema
	values map[string]string
}

// Load validates the given values against schema and returns a Map. Keys
// missing from values fall back to their schema default. Load fails on the
// first invalid value or unknown key.
func Load(schema Schema, values map[string]string) (Map, error) {
	m := Map{schema: schema, values: make(map[string]string, len(schema))}

	for name, key := range schema {
		value, ok := values[name]
		if !ok || value == "" {
			value = key.Default
		}

		if err := key.validate(value); err != nil {
			return Map{}, fmt.Errorf("config key %q: %w", name, err)
		}

		m.values[name] = value
	}

	for name := range values {
		if _, ok := schema[name]; !ok {
			return Map{}, fmt.Errorf("unknown config key %q", name)
		}
	}

	return m, nil
}

func (m Map) mustGet(name string, want Type) string {
	key, ok := m.schema[name]
	if !ok {
		panic(fmt.Sprintf("unknown config key %q", name))
	}

	if key.Type != want {
		panic(fmt.Sprintf("config key %q is not type %d", name, want))
	}

	return m.values[name]
}

// GetString returns the value of a String key.
func (m Map) GetString(name string) string {
	return m.mustGet(name, String)
}

// GetBool returns the value of a Bool key.
func (m Map) GetBool(name string) bool {
	return m.mustGet(name, Bool) == "true"
}

// GetInt64 returns the value of an Int64 key.
func (m Map) GetInt64(name string) int64 {
	n, err := strconv.ParseInt(m.mustGet(name, Int64), 10, 64)
	if err != nil {
		panic(fmt.Sprintf("config key %q: %v", name, err))
	}

	return n
}

// Default returns the default, fully-validated configuration for the
// debug server schema.
func Default() Map {
	m, err := Load(DebugServerSchema(), nil)
	if err != nil {
		panic(err)
	}

	return m
}
