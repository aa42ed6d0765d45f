// Package tree provides the raw value model observed by the engine.
//
// A tree is built from primitives (Null, String, Int, Float, Bool) and two
// container types, *Map and *List. Containers are mutable and carry identity:
// two containers are the same container only if they are the same pointer.
// The engine wraps containers but never copies them; callers own them.
//
// This package imports nothing internal. Every other internal package
// depends on tree, so it stays the foundational layer.
//
// Key constraints:
//   - Map keys enumerate in RFC 8785 order (UTF-16 code units), never in Go
//     map order, so traces and golden files are deterministic
//   - Equal compares primitives by value and containers by identity
//   - A nil Value means "absent"; an explicit null is Null{}
package tree
