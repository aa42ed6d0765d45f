package engine

import (
	"cmp"
	"slices"

	"github.com/roach88/shadow/internal/arrayops"
	"github.com/roach88/shadow/internal/change"
	"github.com/roach88/shadow/internal/tree"
)

// ListNode mediates access to a *tree.List.
//
// Structural mutators (Push, Splice, Sort, ...) go through package
// arrayops, which both mutates the list and describes the mutation as
// records. Afterwards the node re-keys its cached children to their new
// positions.
type ListNode struct {
	*node
}

// Kind implements tree.Value.
func (l *ListNode) Kind() tree.Kind { return tree.KindList }

// Raw returns the wrapped list, or nil once the root is revoked.
func (l *ListNode) Raw() *tree.List {
	if c, ok := l.Unwrap().(*tree.List); ok {
		return c
	}
	return nil
}

func (l *ListNode) rawList() *tree.List {
	return l.raw.(*tree.List)
}

// Len returns the number of elements.
func (l *ListNode) Len() (int, error) {
	if err := l.check("len"); err != nil {
		return 0, err
	}
	return l.rawList().Len(), nil
}

// At returns the element at i, as a node when it is a container.
func (l *ListNode) At(i int) (tree.Value, error) {
	if err := l.check("at"); err != nil {
		return nil, err
	}
	raw := l.rawList()
	if i < 0 || i >= raw.Len() {
		return nil, invalidArgument("at", l.Path(), "index %d out of range [0,%d)", i, raw.Len())
	}
	return l.wrap(change.Index(i), raw.At(i)), nil
}

// Values returns every element, containers as nodes.
func (l *ListNode) Values() ([]tree.Value, error) {
	if err := l.check("values"); err != nil {
		return nil, err
	}
	raw := l.rawList()
	out := make([]tree.Value, raw.Len())
	for i := range out {
		out[i] = l.wrap(change.Index(i), raw.At(i))
	}
	return out, nil
}

// Map returns the child map node at i.
func (l *ListNode) Map(i int) (*MapNode, error) {
	v, err := l.At(i)
	if err != nil {
		return nil, err
	}
	child, ok := v.(*MapNode)
	if !ok {
		return nil, invalidArgument("map", l.Path().Append(change.Index(i)), "slot does not hold a map")
	}
	return child, nil
}

// List returns the child list node at i.
func (l *ListNode) List(i int) (*ListNode, error) {
	v, err := l.At(i)
	if err != nil {
		return nil, err
	}
	child, ok := v.(*ListNode)
	if !ok {
		return nil, invalidArgument("list", l.Path().Append(change.Index(i)), "slot does not hold a list")
	}
	return child, nil
}

// Set writes v at index i. i == Len appends and records an insert; any
// other index outside [0, Len) is an InvalidArgument error.
func (l *ListNode) Set(i int, v tree.Value) error {
	if err := l.check("set"); err != nil {
		return err
	}
	val, err := rawValue("set", l.Path(), v)
	if err != nil {
		return err
	}

	raw := l.rawList()
	n := raw.Len()
	switch {
	case i < 0 || i > n:
		return invalidArgument("set", l.Path(), "index %d out of range [0,%d]", i, n)
	case i == n:
		_, records := arrayops.Push(raw, val)
		l.emit(records...)
		return nil
	}

	old := tree.Unwrap(raw.At(i))
	if tree.Equal(old, val) {
		return nil
	}
	raw.SetAt(i, val)
	seg := change.Index(i)
	l.dropChild(seg)
	l.emit(change.Record{
		Type:     change.Update,
		Path:     change.Path{seg},
		Value:    val,
		OldValue: old,
		Object:   raw,
	})
	return nil
}

// prepare validates access and converts vals for storage.
func (l *ListNode) prepare(op string, vals []tree.Value) ([]tree.Value, error) {
	if err := l.check(op); err != nil {
		return nil, err
	}
	out := make([]tree.Value, len(vals))
	for i, v := range vals {
		rv, err := rawValue(op, l.Path(), v)
		if err != nil {
			return nil, err
		}
		out[i] = rv
	}
	return out, nil
}

// Push appends vals and returns the new length.
func (l *ListNode) Push(vals ...tree.Value) (int, error) {
	vals, err := l.prepare("push", vals)
	if err != nil {
		return 0, err
	}
	n, records := arrayops.Push(l.rawList(), vals...)
	l.emit(records...)
	return n, nil
}

// Pop removes and returns the last element; ok is false on an empty list.
func (l *ListNode) Pop() (removed tree.Value, ok bool, err error) {
	if err := l.check("pop"); err != nil {
		return nil, false, err
	}
	removed, ok, records := arrayops.Pop(l.rawList())
	l.restructure(records)
	return removed, ok, nil
}

// Shift removes and returns the first element; ok is false on an empty list.
func (l *ListNode) Shift() (removed tree.Value, ok bool, err error) {
	if err := l.check("shift"); err != nil {
		return nil, false, err
	}
	removed, ok, records := arrayops.Shift(l.rawList())
	l.restructure(records)
	return removed, ok, nil
}

// Unshift prepends vals and returns the new length.
func (l *ListNode) Unshift(vals ...tree.Value) (int, error) {
	vals, err := l.prepare("unshift", vals)
	if err != nil {
		return 0, err
	}
	n, records := arrayops.Unshift(l.rawList(), vals...)
	l.restructure(records)
	return n, nil
}

// Splice removes deleteCount elements at start, inserts items there and
// returns the removed elements. Arguments are normalized the way
// JavaScript's Array.prototype.splice normalizes them.
func (l *ListNode) Splice(start, deleteCount int, items ...tree.Value) ([]tree.Value, error) {
	items, err := l.prepare("splice", items)
	if err != nil {
		return nil, err
	}
	removed, records := arrayops.Splice(l.rawList(), start, deleteCount, items...)
	l.restructure(records)
	return removed, nil
}

// Clear removes every element and returns them.
func (l *ListNode) Clear() ([]tree.Value, error) {
	if err := l.check("clear"); err != nil {
		return nil, err
	}
	removed, records := arrayops.Clear(l.rawList())
	l.restructure(records)
	return removed, nil
}

// Reverse reverses the list in place.
func (l *ListNode) Reverse() error {
	if err := l.check("reverse"); err != nil {
		return err
	}
	l.restructure(arrayops.Reverse(l.rawList()))
	return nil
}

// Sort stably sorts the list with compare, or arrayops.Compare when
// compare is nil. compare receives raw values.
func (l *ListNode) Sort(compare func(a, b tree.Value) int) error {
	if err := l.check("sort"); err != nil {
		return err
	}
	l.restructure(arrayops.Sort(l.rawList(), compare))
	return nil
}

// Rotate rotates the list left by k positions; negative k rotates right.
func (l *ListNode) Rotate(k int) error {
	if err := l.check("rotate"); err != nil {
		return err
	}
	l.restructure(arrayops.Rotate(l.rawList(), k))
	return nil
}

// restructure re-keys the child cache after elements moved, then emits.
// Emitting after re-keying is fine: records carry the list's path, which
// does not depend on the children.
func (l *ListNode) restructure(records []change.Record) {
	if len(records) == 0 {
		return
	}
	l.rekey()
	l.emit(records...)
}

// rekey moves each cached child to the index its raw container now sits
// at. Children are matched in their old index order, each to the first
// unclaimed position holding the same container, so duplicates keep their
// relative order. Children whose container left the list are dropped.
func (l *ListNode) rekey() {
	if len(l.children) == 0 {
		return
	}

	type cached struct {
		old   int
		child Node
	}
	olds := make([]cached, 0, len(l.children))
	for seg, ch := range l.children {
		i, _ := seg.Index()
		olds = append(olds, cached{old: i, child: ch})
	}
	slices.SortFunc(olds, func(a, b cached) int { return cmp.Compare(a.old, b.old) })

	raw := l.rawList()
	claimed := make([]bool, raw.Len())
	next := make(map[change.Segment]Node, len(olds))
	for _, c := range olds {
		b := c.child.base()
		for i := 0; i < raw.Len(); i++ {
			if claimed[i] || tree.Unwrap(raw.At(i)) != tree.Value(b.raw) {
				continue
			}
			claimed[i] = true
			b.seg = change.Index(i)
			next[b.seg] = c.child
			break
		}
	}
	l.children = next
}
