package tree

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces RFC 8785 canonical JSON for a tree.
//
// Differences from encoding/json:
//  1. Map keys sorted by UTF-16 code units (not UTF-8 bytes)
//  2. No HTML escaping; U+2028/U+2029 are written literally
//  3. Strings are NFC normalized
//  4. Floats use the shortest ECMAScript representation; NaN and Inf fail
//
// Cyclic trees fail with an error instead of recursing forever.
func MarshalCanonical(v Value) ([]byte, error) {
	var buf bytes.Buffer
	e := &canonicalEncoder{buf: &buf, visiting: make(map[Container]bool)}
	if err := e.encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type canonicalEncoder struct {
	buf      *bytes.Buffer
	visiting map[Container]bool
}

func (e *canonicalEncoder) encode(v Value) error {
	v = Unwrap(v)
	switch val := v.(type) {
	case nil:
		return fmt.Errorf("absent value cannot be encoded")
	case Null:
		e.buf.WriteString("null")
	case String:
		writeCanonicalString(e.buf, string(val))
	case Int:
		e.buf.WriteString(strconv.FormatInt(int64(val), 10))
	case Float:
		s, err := formatFloat(float64(val))
		if err != nil {
			return err
		}
		e.buf.WriteString(s)
	case Bool:
		if val {
			e.buf.WriteString("true")
		} else {
			e.buf.WriteString("false")
		}
	case *Map:
		return e.encodeMap(val)
	case *List:
		return e.encodeList(val)
	default:
		return fmt.Errorf("unsupported value type for canonical JSON: %T", v)
	}
	return nil
}

func (e *canonicalEncoder) enter(c Container) error {
	if e.visiting[c] {
		return fmt.Errorf("cycle detected: %s contains itself", c.Kind())
	}
	e.visiting[c] = true
	return nil
}

func (e *canonicalEncoder) encodeMap(m *Map) error {
	if err := e.enter(m); err != nil {
		return err
	}
	defer delete(e.visiting, m)

	e.buf.WriteByte('{')
	for i, k := range m.Keys() {
		if i > 0 {
			e.buf.WriteByte(',')
		}
		writeCanonicalString(e.buf, k)
		e.buf.WriteByte(':')
		if err := e.encode(m.entries[k]); err != nil {
			return fmt.Errorf("key %q: %w", k, err)
		}
	}
	e.buf.WriteByte('}')
	return nil
}

func (e *canonicalEncoder) encodeList(l *List) error {
	if err := e.enter(l); err != nil {
		return err
	}
	defer delete(e.visiting, l)

	e.buf.WriteByte('[')
	for i, elem := range l.elems {
		if i > 0 {
			e.buf.WriteByte(',')
		}
		if err := e.encode(elem); err != nil {
			return fmt.Errorf("[%d]: %w", i, err)
		}
	}
	e.buf.WriteByte(']')
	return nil
}

// writeCanonicalString writes s as an RFC 8785 JSON string.
// Only quote, backslash and control characters are escaped.
func writeCanonicalString(buf *bytes.Buffer, s string) {
	s = norm.NFC.String(s)
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(buf, `\u%04x`, r)
			} else {
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
}

// formatFloat renders f the way ECMAScript Number.prototype.toString does,
// which is what RFC 8785 requires.
func formatFloat(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("non-finite float %v cannot be encoded", f)
	}
	if f == 0 {
		return "0", nil
	}
	abs := math.Abs(f)
	if abs >= 1e-6 && abs < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	}
	s := strconv.FormatFloat(f, 'e', -1, 64)
	// Go writes e-07 where ECMAScript writes e-7
	mant, exp, _ := strings.Cut(s, "e")
	sign := exp[0]
	exp = strings.TrimLeft(exp[1:], "0")
	return mant + "e" + string(sign) + exp, nil
}

// MarshalJSON implements json.Marshaler using canonical encoding.
func (m *Map) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(m)
}

// MarshalJSON implements json.Marshaler using canonical encoding.
func (l *List) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(l)
}

// MarshalJSON implements json.Marshaler for Null.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// MarshalJSON implements json.Marshaler; NaN and Inf fail.
func (f Float) MarshalJSON() ([]byte, error) {
	s, err := formatFloat(float64(f))
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}
