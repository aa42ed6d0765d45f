package change

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Segment is one step of a Path: a map key or a list index.
type Segment struct {
	key     string
	index   int
	isIndex bool
}

// Key returns a map-key segment.
func Key(k string) Segment {
	return Segment{key: k}
}

// Index returns a list-index segment.
func Index(i int) Segment {
	return Segment{index: i, isIndex: true}
}

// IsIndex reports whether the segment addresses a list element.
func (s Segment) IsIndex() bool {
	return s.isIndex
}

// Index returns the list index and true for index segments.
func (s Segment) Index() (int, bool) {
	return s.index, s.isIndex
}

// Key returns the map key and true for key segments.
func (s Segment) Key() (string, bool) {
	return s.key, !s.isIndex
}

// String renders the segment as it appears in dotted notation.
func (s Segment) String() string {
	if s.isIndex {
		return strconv.Itoa(s.index)
	}
	return s.key
}

// MarshalJSON renders index segments as numbers and keys as strings.
func (s Segment) MarshalJSON() ([]byte, error) {
	if s.isIndex {
		return json.Marshal(s.index)
	}
	return json.Marshal(s.key)
}

// Path addresses a slot relative to an observed root.
// The empty path addresses the root itself.
type Path []Segment

// ParsePath parses dotted notation. Segments made only of decimal digits
// become index segments. The empty string is the root path.
func ParsePath(s string) Path {
	if s == "" {
		return Path{}
	}
	parts := strings.Split(s, ".")
	p := make(Path, len(parts))
	for i, part := range parts {
		if n, err := strconv.Atoi(part); err == nil && n >= 0 && strconv.Itoa(n) == part {
			p[i] = Index(n)
		} else {
			p[i] = Key(part)
		}
	}
	return p
}

// PathOf builds a path from keys (string) and indices (int).
// It panics on any other element type.
func PathOf(elems ...any) Path {
	p := make(Path, len(elems))
	for i, e := range elems {
		switch v := e.(type) {
		case string:
			p[i] = Key(v)
		case int:
			p[i] = Index(v)
		default:
			panic(fmt.Sprintf("change.PathOf: unsupported element %T", e))
		}
	}
	return p
}

// String renders the path in dotted notation.
func (p Path) String() string {
	parts := make([]string, len(p))
	for i, s := range p {
		parts[i] = s.String()
	}
	return strings.Join(parts, ".")
}

// Equal reports whether both paths render the same segments.
func (p Path) Equal(q Path) bool {
	if len(p) != len(q) {
		return false
	}
	for i := range p {
		if p[i].String() != q[i].String() {
			return false
		}
	}
	return true
}

// HasPrefix reports whether q is a prefix of p (or equal to it).
func (p Path) HasPrefix(q Path) bool {
	if len(q) > len(p) {
		return false
	}
	return p[:len(q)].Equal(q)
}

// Append returns a new path with segs added. p is never modified.
func (p Path) Append(segs ...Segment) Path {
	out := make(Path, 0, len(p)+len(segs))
	out = append(out, p...)
	return append(out, segs...)
}

// Concat returns a new path made of p followed by q.
func (p Path) Concat(q Path) Path {
	return p.Append(q...)
}

// Parent returns the path without its last segment.
// The root path is its own parent.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return Path{}
	}
	return slices.Clone(p[:len(p)-1])
}

// Last returns the final segment.
func (p Path) Last() (Segment, bool) {
	if len(p) == 0 {
		return Segment{}, false
	}
	return p[len(p)-1], true
}

// Strings returns the rendered segments.
func (p Path) Strings() []string {
	out := make([]string, len(p))
	for i, s := range p {
		out[i] = s.String()
	}
	return out
}
