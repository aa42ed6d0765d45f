// Package arrayops translates bulk list operations into change records.
//
// Each operation mutates a raw *tree.List in place, returns the operation's
// native result unchanged (new length, removed elements), and returns the
// records that, replayed in order against the pre-operation list, rebuild the
// post-operation list exactly. Record paths are relative to the list: element
// records carry a single index segment, whole-list records carry an empty
// path. Callers prefix the list's own path.
//
// Replay semantics (see Replay):
//   - delete i removes the element at i; later elements shift down
//   - insert i places the value before the element at i
//   - reverse/shuffle replace the whole order with the record's Value snapshot
//
// Splice emits its deletes in descending index order so every delete record
// names the removed element's original index and stays valid when replayed
// sequentially; inserts follow in ascending order.
package arrayops

import (
	"slices"

	"github.com/roach88/shadow/internal/change"
	"github.com/roach88/shadow/internal/tree"
)

// Push appends vals and returns the new length.
func Push(l *tree.List, vals ...tree.Value) (int, []change.Record) {
	_, records := splice(l, l.Len(), 0, vals)
	return l.Len(), records
}

// Pop removes the last element. ok is false on an empty list, which emits
// nothing.
func Pop(l *tree.List) (removed tree.Value, ok bool, records []change.Record) {
	if l.Len() == 0 {
		return nil, false, nil
	}
	out, records := splice(l, l.Len()-1, 1, nil)
	return out[0], true, records
}

// Shift removes the first element. ok is false on an empty list, which
// emits nothing.
func Shift(l *tree.List) (removed tree.Value, ok bool, records []change.Record) {
	if l.Len() == 0 {
		return nil, false, nil
	}
	out, records := splice(l, 0, 1, nil)
	return out[0], true, records
}

// Unshift prepends vals (keeping their order) and returns the new length.
func Unshift(l *tree.List, vals ...tree.Value) (int, []change.Record) {
	_, records := splice(l, 0, 0, vals)
	return l.Len(), records
}

// Splice removes deleteCount elements at start, inserts items there, and
// returns the removed elements.
//
// Arguments are normalized like Array.prototype.splice: a negative start
// counts back from the end, start is clamped to [0, Len], and deleteCount is
// clamped to [0, Len-start].
func Splice(l *tree.List, start, deleteCount int, items ...tree.Value) ([]tree.Value, []change.Record) {
	n := l.Len()
	if start < 0 {
		start = max(n+start, 0)
	}
	start = min(start, n)
	deleteCount = min(max(deleteCount, 0), n-start)
	return splice(l, start, deleteCount, items)
}

// Clear removes every element and returns them.
func Clear(l *tree.List) ([]tree.Value, []change.Record) {
	return splice(l, 0, l.Len(), nil)
}

// splice is the shared core; start and deleteCount must be normalized.
func splice(l *tree.List, start, deleteCount int, items []tree.Value) ([]tree.Value, []change.Record) {
	records := make([]change.Record, 0, deleteCount+len(items))

	removed := l.Remove(start, deleteCount)
	for i := deleteCount - 1; i >= 0; i-- {
		records = append(records, change.Record{
			Type:     change.Delete,
			Path:     change.Path{change.Index(start + i)},
			OldValue: removed[i],
			Object:   l,
		})
	}

	l.Insert(start, items...)
	for i := range items {
		records = append(records, change.Record{
			Type:   change.Insert,
			Path:   change.Path{change.Index(start + i)},
			Value:  l.At(start + i),
			Object: l,
		})
	}

	return removed, records
}

// Reverse reverses l in place. Lists shorter than two elements are left
// alone and emit nothing.
func Reverse(l *tree.List) []change.Record {
	if l.Len() < 2 {
		return nil
	}
	before := l.Snapshot()
	vals := l.Values()
	slices.Reverse(vals)
	l.Replace(vals)
	return []change.Record{reorder(change.Reverse, l, before)}
}

// Sort stably sorts l with cmp (Compare when nil). Emits one shuffle record
// when the order changed.
func Sort(l *tree.List, cmp func(a, b tree.Value) int) []change.Record {
	if cmp == nil {
		cmp = Compare
	}
	before := l.Snapshot()
	vals := l.Values()
	slices.SortStableFunc(vals, cmp)
	if sameOrder(before, vals) {
		return nil
	}
	l.Replace(vals)
	return []change.Record{reorder(change.Shuffle, l, before)}
}

// Rotate rotates l left by k positions (negative k rotates right).
// Emits one shuffle record when the order changed.
func Rotate(l *tree.List, k int) []change.Record {
	n := l.Len()
	if n < 2 {
		return nil
	}
	k = ((k % n) + n) % n
	if k == 0 {
		return nil
	}
	before := l.Snapshot()
	vals := l.Values()
	vals = slices.Concat(vals[k:], vals[:k])
	if sameOrder(before, vals) {
		return nil
	}
	l.Replace(vals)
	return []change.Record{reorder(change.Shuffle, l, before)}
}

func reorder(t change.Type, l, before *tree.List) change.Record {
	return change.Record{
		Type:     t,
		Path:     change.Path{},
		Value:    l.Snapshot(),
		OldValue: before,
		Object:   l,
	}
}

func sameOrder(before *tree.List, after []tree.Value) bool {
	for i, v := range after {
		if !tree.Equal(before.At(i), v) {
			return false
		}
	}
	return true
}

// Replay rebuilds a list from pre by applying list-relative records in
// order. pre is not modified.
func Replay(pre []tree.Value, records []change.Record) ([]tree.Value, error) {
	l := tree.NewList(pre...)
	if err := change.ApplyAll(l, records); err != nil {
		return nil, err
	}
	return l.Values(), nil
}
