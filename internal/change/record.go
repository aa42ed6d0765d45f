package change

import (
	"fmt"
	"strings"

	"github.com/roach88/shadow/internal/tree"
)

// Type is the kind of edit a Record describes.
type Type string

const (
	// Insert adds a key or list element that did not exist.
	Insert Type = "insert"
	// Update replaces the value of an existing key or list element.
	Update Type = "update"
	// Delete removes a key or list element.
	Delete Type = "delete"
	// Reverse reverses a list in place.
	Reverse Type = "reverse"
	// Shuffle reorders a list in place (sort, rotate).
	Shuffle Type = "shuffle"
)

// AllTypes lists every record type in declaration order.
var AllTypes = []Type{Insert, Update, Delete, Reverse, Shuffle}

// Valid reports whether t is a known record type.
func (t Type) Valid() bool {
	switch t {
	case Insert, Update, Delete, Reverse, Shuffle:
		return true
	}
	return false
}

// ParseType parses a record type name.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown change type %q", s)
	}
	return t, nil
}

// Record is an immutable description of one mutation.
//
// Value and OldValue are raw tree values; nil means absent (an insert has no
// OldValue, a delete has no Value). For reverse and shuffle records OldValue
// and Value are snapshots of the list before and after the reorder.
type Record struct {
	Type     Type
	Path     Path
	Value    tree.Value
	OldValue tree.Value
	Object   tree.Container

	// Seq is the logical clock stamp assigned by the owning root.
	// Strictly increasing per root, in mutation order.
	Seq int64
}

// String renders a compact, human-readable form of the record.
func (r Record) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", r.Type, r.Path)
	if r.Value != nil {
		fmt.Fprintf(&b, " value=%s", render(r.Value))
	}
	if r.OldValue != nil {
		fmt.Fprintf(&b, " old=%s", render(r.OldValue))
	}
	return b.String()
}

func render(v tree.Value) string {
	b, err := tree.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("<%s>", v.Kind())
	}
	return string(b)
}

// WithPrefix returns a copy of r whose path is prefix followed by r.Path.
func (r Record) WithPrefix(prefix Path) Record {
	r.Path = prefix.Concat(r.Path)
	return r
}
