package change

import (
	"fmt"

	"github.com/roach88/shadow/internal/tree"
)

// Apply replays one record against a tree rooted at root.
//
// Replay is exact: inserted and updated values are stored as-is, so
// containers carried by the record become shared with the target. For list
// slots, insert places the value before the index, delete removes the
// element at the index (later elements shift down), and update replaces it.
// Reverse and shuffle replace the whole list content with the snapshot in
// Value.
func Apply(root tree.Container, r Record) error {
	switch r.Type {
	case Reverse, Shuffle:
		target, err := resolve(root, r.Path)
		if err != nil {
			return err
		}
		l, ok := target.(*tree.List)
		if !ok {
			return fmt.Errorf("%s at %q: target is %s, not list", r.Type, r.Path, target.Kind())
		}
		after, ok := r.Value.(*tree.List)
		if !ok {
			return fmt.Errorf("%s at %q: record value must be a list snapshot", r.Type, r.Path)
		}
		l.Replace(after.Values())
		return nil

	case Insert, Update, Delete:
		last, ok := r.Path.Last()
		if !ok {
			return fmt.Errorf("%s: empty path", r.Type)
		}
		target, err := resolve(root, r.Path.Parent())
		if err != nil {
			return err
		}
		return applySlot(target, last, r)

	default:
		return fmt.Errorf("unknown change type %q", r.Type)
	}
}

// ApplyAll replays records in order, stopping at the first failure.
func ApplyAll(root tree.Container, records []Record) error {
	for i, r := range records {
		if err := Apply(root, r); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	return nil
}

func applySlot(target tree.Container, seg Segment, r Record) error {
	switch c := target.(type) {
	case *tree.Map:
		key := seg.String()
		switch r.Type {
		case Insert, Update:
			c.Set(key, r.Value)
		case Delete:
			if _, ok := c.Delete(key); !ok {
				return fmt.Errorf("delete at %q: key not present", r.Path)
			}
		}
		return nil

	case *tree.List:
		i, ok := seg.Index()
		if !ok {
			return fmt.Errorf("%s at %q: list slot needs an index segment", r.Type, r.Path)
		}
		switch r.Type {
		case Insert:
			if i < 0 || i > c.Len() {
				return fmt.Errorf("insert at %q: index out of range [0,%d]", r.Path, c.Len())
			}
			c.Insert(i, r.Value)
		case Update:
			if i < 0 || i >= c.Len() {
				return fmt.Errorf("update at %q: index out of range [0,%d)", r.Path, c.Len())
			}
			c.SetAt(i, r.Value)
		case Delete:
			if i < 0 || i >= c.Len() {
				return fmt.Errorf("delete at %q: index out of range [0,%d)", r.Path, c.Len())
			}
			c.Remove(i, 1)
		}
		return nil

	default:
		return fmt.Errorf("unsupported container %T", target)
	}
}

// resolve walks p from root and returns the container found there.
func resolve(root tree.Container, p Path) (tree.Container, error) {
	var cur tree.Container = root
	for depth, seg := range p {
		var next tree.Value
		switch c := cur.(type) {
		case *tree.Map:
			v, ok := c.Get(seg.String())
			if !ok {
				return nil, fmt.Errorf("path %q: key %q not found", p[:depth+1], seg)
			}
			next = v
		case *tree.List:
			i, ok := seg.Index()
			if !ok || i < 0 || i >= c.Len() {
				return nil, fmt.Errorf("path %q: index %s out of range", p[:depth+1], seg)
			}
			next = c.At(i)
		}
		container, ok := tree.Unwrap(next).(tree.Container)
		if !ok {
			return nil, fmt.Errorf("path %q: %s is not a container", p[:depth+1], next.Kind())
		}
		cur = container
	}
	return cur, nil
}
