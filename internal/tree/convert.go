package tree

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FromAny converts a plain Go value into a tree.
//
// Accepted inputs are what encoding/json, yaml.v3 and CUE decode into:
// nil, bool, string, integer and float kinds, json.Number, *big.Int,
// map[string]any, map[any]any with string keys, and []any. Values that
// already implement Value are returned unchanged.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case int:
		return Int(val), nil
	case int8:
		return Int(val), nil
	case int16:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint:
		return fromUint(uint64(val))
	case uint8:
		return Int(val), nil
	case uint16:
		return Int(val), nil
	case uint32:
		return Int(val), nil
	case uint64:
		return fromUint(val)
	case float32:
		return Float(val), nil
	case float64:
		return Float(val), nil
	case json.Number:
		return fromNumber(val)
	case *big.Int:
		if !val.IsInt64() {
			return nil, fmt.Errorf("integer out of int64 range: %s", val)
		}
		return Int(val.Int64()), nil
	case map[string]any:
		m := &Map{entries: make(map[string]Value, len(val))}
		for k, elem := range val {
			tv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("map[%q]: %w", k, err)
			}
			m.entries[k] = tv
		}
		return m, nil
	case map[any]any:
		m := &Map{entries: make(map[string]Value, len(val))}
		for k, elem := range val {
			key, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("map key %v: keys must be strings, got %T", k, k)
			}
			tv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("map[%q]: %w", key, err)
			}
			m.entries[key] = tv
		}
		return m, nil
	case []any:
		l := &List{elems: make([]Value, len(val))}
		for i, elem := range val {
			tv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			l.elems[i] = tv
		}
		return l, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

func fromUint(u uint64) (Value, error) {
	if u > 1<<63-1 {
		return nil, fmt.Errorf("integer out of int64 range: %d", u)
	}
	return Int(int64(u)), nil
}

// fromNumber keeps integers as Int and everything else as Float.
func fromNumber(n json.Number) (Value, error) {
	s := string(n)
	if !strings.ContainsAny(s, ".eE") {
		if i, err := n.Int64(); err == nil {
			return Int(i), nil
		}
	}
	f, err := n.Float64()
	if err != nil {
		return nil, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return Float(f), nil
}

// ToAny converts a tree into plain Go values (map[string]any, []any,
// int64, float64, string, bool, nil). Cyclic trees fail.
func ToAny(v Value) (any, error) {
	return toAny(v, make(map[Container]bool))
}

func toAny(v Value, visiting map[Container]bool) (any, error) {
	v = Unwrap(v)
	switch val := v.(type) {
	case nil, Null:
		return nil, nil
	case String:
		return string(val), nil
	case Int:
		return int64(val), nil
	case Float:
		return float64(val), nil
	case Bool:
		return bool(val), nil
	case *Map:
		if visiting[val] {
			return nil, fmt.Errorf("cycle detected in map")
		}
		visiting[val] = true
		defer delete(visiting, val)

		out := make(map[string]any, len(val.entries))
		for k, elem := range val.entries {
			a, err := toAny(elem, visiting)
			if err != nil {
				return nil, fmt.Errorf("map[%q]: %w", k, err)
			}
			out[k] = a
		}
		return out, nil
	case *List:
		if visiting[val] {
			return nil, fmt.Errorf("cycle detected in list")
		}
		visiting[val] = true
		defer delete(visiting, val)

		out := make([]any, len(val.elems))
		for i, elem := range val.elems {
			a, err := toAny(elem, visiting)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = a
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported value type: %T", v)
	}
}

// Clone returns a deep copy of v. Shared sub-containers are copied once
// and stay shared in the copy; cycles are preserved.
func Clone(v Value) Value {
	return clone(Unwrap(v), make(map[Container]Container))
}

func clone(v Value, seen map[Container]Container) Value {
	switch val := v.(type) {
	case *Map:
		if c, ok := seen[val]; ok {
			return c
		}
		m := &Map{entries: make(map[string]Value, len(val.entries))}
		seen[val] = m
		for k, elem := range val.entries {
			m.entries[k] = clone(Unwrap(elem), seen)
		}
		return m
	case *List:
		if c, ok := seen[val]; ok {
			return c
		}
		l := &List{elems: make([]Value, len(val.elems))}
		seen[val] = l
		for i, elem := range val.elems {
			l.elems[i] = clone(Unwrap(elem), seen)
		}
		return l
	default:
		return v
	}
}

// ParseJSON decodes a single JSON document into a tree.
// Integers stay Int; numbers with a fraction or exponent become Float.
func ParseJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse JSON: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("parse JSON: unexpected data after document")
	}
	return FromAny(raw)
}

// ParseYAML decodes a single YAML document into a tree.
func ParseYAML(data []byte) (Value, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	return FromAny(raw)
}

// LoadFile reads a tree from a .json, .yaml, .yml or .cue file.
func LoadFile(path string) (Value, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tree file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		return ParseJSON(data)
	case ".yaml", ".yml":
		return ParseYAML(data)
	case ".cue":
		return ParseCUE(data, filepath.Base(path))
	default:
		return nil, fmt.Errorf("unsupported tree file extension %q (want .json, .yaml, .yml or .cue)", ext)
	}
}
