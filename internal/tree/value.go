package tree

import (
	"fmt"
	"math"
	"reflect"
	"slices"
	"unicode/utf16"
)

// Kind identifies the shape of a Value.
type Kind int

const (
	KindNull Kind = iota + 1
	KindString
	KindInt
	KindFloat
	KindBool
	KindMap
	KindList
)

// String returns the lower-case kind name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindMap:
		return "map"
	case KindList:
		return "list"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// IsContainer reports whether values of this kind are containers.
func (k Kind) IsContainer() bool {
	return k == KindMap || k == KindList
}

// Value is any node of a data tree.
//
// Besides the types in this package, mediating nodes from the engine also
// implement Value (reporting their container's kind) so they can be read
// and written back uniformly. Such values implement Wrapper.
type Value interface {
	Kind() Kind
}

// Container is a mutable, identity-bearing Value: *Map or *List.
type Container interface {
	Value
	container()
}

// Wrapper is implemented by values that stand in for a raw container.
// Unwrap returns nil when the wrapper no longer has access to it.
type Wrapper interface {
	Value
	Unwrap() Container
}

// Null represents an explicit null.
type Null struct{}

func (Null) Kind() Kind { return KindNull }

// String is a string value.
type String string

func (String) Kind() Kind { return KindString }

// Int is an integer value.
type Int int64

func (Int) Kind() Kind { return KindInt }

// Float is a floating point value.
type Float float64

func (Float) Kind() Kind { return KindFloat }

// Bool is a boolean value.
type Bool bool

func (Bool) Kind() Kind { return KindBool }

// normalize turns an absent value into an explicit null for storage.
func normalize(v Value) Value {
	if v == nil {
		return Null{}
	}
	return v
}

// Map is a keyed container.
// Use Keys() for deterministic iteration.
type Map struct {
	entries map[string]Value
}

func (*Map) Kind() Kind { return KindMap }
func (*Map) container() {}

// NewMap creates an empty map.
func NewMap() *Map {
	return &Map{entries: make(map[string]Value)}
}

// Pair is a key-value pair for Map construction.
type Pair struct {
	Key   string
	Value Value
}

// P is a shorthand for Pair.
// Example: MapOf(P("name", String("cart")), P("count", Int(5)))
func P(key string, value Value) Pair {
	return Pair{Key: key, Value: value}
}

// MapOf creates a map from pairs. Later pairs win on duplicate keys.
func MapOf(pairs ...Pair) *Map {
	m := &Map{entries: make(map[string]Value, len(pairs))}
	for _, p := range pairs {
		m.entries[p.Key] = normalize(p.Value)
	}
	return m
}

// Get returns the value stored under key.
func (m *Map) Get(key string) (Value, bool) {
	v, ok := m.entries[key]
	return v, ok
}

// Has reports whether key is present.
func (m *Map) Has(key string) bool {
	_, ok := m.entries[key]
	return ok
}

// Set stores v under key. A nil v is stored as Null.
func (m *Map) Set(key string, v Value) {
	if m.entries == nil {
		m.entries = make(map[string]Value)
	}
	m.entries[key] = normalize(v)
}

// Delete removes key and returns the removed value.
func (m *Map) Delete(key string) (Value, bool) {
	v, ok := m.entries[key]
	if ok {
		delete(m.entries, key)
	}
	return v, ok
}

// Len returns the number of entries.
func (m *Map) Len() int {
	return len(m.entries)
}

// Keys returns keys in RFC 8785 canonical order (UTF-16 code units).
// CRITICAL: Go's sort.Strings uses UTF-8 which produces DIFFERENT order.
func (m *Map) Keys() []string {
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, CompareKeys)
	return keys
}

// CompareKeys compares strings using UTF-16 code unit ordering
// as required by RFC 8785 (Canonical JSON).
func CompareKeys(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := min(len(a16), len(b16))
	for i := 0; i < minLen; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	// If all compared units are equal, shorter string comes first
	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}

// List is an ordered container.
type List struct {
	elems []Value
}

func (*List) Kind() Kind { return KindList }
func (*List) container() {}

// NewList creates a list holding vals. The slice is copied.
func NewList(vals ...Value) *List {
	l := &List{elems: make([]Value, len(vals))}
	for i, v := range vals {
		l.elems[i] = normalize(v)
	}
	return l
}

// Len returns the number of elements.
func (l *List) Len() int {
	return len(l.elems)
}

// At returns the element at i. Panics if i is out of range.
func (l *List) At(i int) Value {
	return l.elems[i]
}

// SetAt replaces the element at i. Panics if i is out of range.
func (l *List) SetAt(i int, v Value) {
	l.elems[i] = normalize(v)
}

// Values returns a copy of the elements.
func (l *List) Values() []Value {
	return slices.Clone(l.elems)
}

// Snapshot returns a new list with the same elements (shallow copy).
func (l *List) Snapshot() *List {
	return &List{elems: slices.Clone(l.elems)}
}

// Append adds vals at the end.
func (l *List) Append(vals ...Value) {
	for _, v := range vals {
		l.elems = append(l.elems, normalize(v))
	}
}

// Insert inserts vals before index i. Panics if i is out of range [0, Len].
func (l *List) Insert(i int, vals ...Value) {
	norm := make([]Value, len(vals))
	for j, v := range vals {
		norm[j] = normalize(v)
	}
	l.elems = slices.Insert(l.elems, i, norm...)
}

// Remove removes n elements starting at i and returns them.
// Panics if the range is out of bounds.
func (l *List) Remove(i, n int) []Value {
	removed := slices.Clone(l.elems[i : i+n])
	l.elems = slices.Delete(l.elems, i, i+n)
	return removed
}

// Replace swaps the whole content of the list for vals (copied).
func (l *List) Replace(vals []Value) {
	l.elems = l.elems[:0]
	l.Append(vals...)
}

// Unwrap returns the raw container behind v when v is a Wrapper,
// otherwise v itself.
func Unwrap(v Value) Value {
	if w, ok := v.(Wrapper); ok {
		if c := w.Unwrap(); c != nil {
			return c
		}
	}
	return v
}

// Equal reports primitive/identity equality.
//
// Primitives compare by kind and value: Int(1) and Float(1) differ, and NaN
// equals NaN. Containers compare by identity. Wrappers compare as the
// container they wrap. A nil Value only equals nil.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	a, b = Unwrap(a), Unwrap(b)

	if x, ok := a.(Float); ok {
		y, ok := b.(Float)
		return ok && (x == y || (math.IsNaN(float64(x)) && math.IsNaN(float64(y))))
	}

	if !reflect.TypeOf(a).Comparable() || !reflect.TypeOf(b).Comparable() {
		return false
	}
	return a == b
}

// IsContainer reports whether v is (or wraps) a container.
func IsContainer(v Value) bool {
	_, ok := Unwrap(v).(Container)
	return ok
}
