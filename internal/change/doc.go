// Package change defines change records and the paths that address them.
//
// A Record describes one mutation of an observed tree: what kind of edit it
// was, where it happened (Path, relative to the observed root), the new and
// previous values, and the raw container that was mutated. Records are
// created at mutation time and never modified afterward.
//
// Path conventions:
//   - insert, update and delete records end with the key or index that changed
//   - reverse and shuffle records address the list itself
//
// Paths render in dotted notation ("items.0.name"). Keys containing dots
// cannot be told apart from nested keys in that notation; compare Path
// values directly when that matters.
package change
