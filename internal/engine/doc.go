// Package engine implements observable roots over raw data trees.
//
// A root wraps a raw *tree.Map or *tree.List. Reads and writes go through
// mediating nodes (MapNode, ListNode) that mirror the raw tree; every
// accepted write mutates the raw container in place and enqueues a
// change.Record on the root. Observers registered on the root receive the
// records in batches.
//
// ARCHITECTURE:
//
// Mutation path:
// 1. A node method validates access and unwraps node values to raw ones
// 2. The raw container is mutated; list operations go through arrayops,
// which returns records describing the mutation
// 3. Record paths are resolved by walking parent links to the root
// 4. The root stamps each record with its logical clock and appends it to
// its queue, scheduling one flush on its scheduler if none is pending
//
// Delivery path:
// 1. The scheduler runs the flush at its next turn
// 2. The flush swaps out the buffer and snapshots the observer registry
// 3. Each observer gets the records that pass its filter, in mutation order
// 4. Observer errors and panics go to the error handler, never the mutator
//
// Identity:
// The same raw container always maps to the same live Root (From is
// idempotent). Child nodes are cached per parent slot, so reading the same
// slot twice yields the same node. A raw container reachable from two slots
// gets two independent nodes, and a write through one is reported only
// under that node's path.
//
// INVARIANTS:
//   - Records in one flush are in mutation order; Seq strictly increases
//   - A flush never contains records produced during its own delivery
//   - At most one flush is pending per root
//   - Reads never enqueue; writes of an equal value enqueue nothing
package engine
