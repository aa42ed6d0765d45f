package engine

import (
	"github.com/roach88/shadow/internal/change"
	"github.com/roach88/shadow/internal/tree"
)

// MapNode mediates access to a *tree.Map.
type MapNode struct {
	*node
}

// Kind implements tree.Value.
func (m *MapNode) Kind() tree.Kind { return tree.KindMap }

// Raw returns the wrapped map, or nil once the root is revoked.
func (m *MapNode) Raw() *tree.Map {
	if c, ok := m.Unwrap().(*tree.Map); ok {
		return c
	}
	return nil
}

func (m *MapNode) rawMap() *tree.Map {
	return m.raw.(*tree.Map)
}

// Get returns the value at key: a node for container values, the value
// itself for primitives, nil when the key is absent.
func (m *MapNode) Get(key string) (tree.Value, error) {
	v, _, err := m.lookup(key)
	return v, err
}

func (m *MapNode) lookup(key string) (tree.Value, bool, error) {
	if err := m.check("get"); err != nil {
		return nil, false, err
	}
	v, ok := m.rawMap().Get(key)
	if !ok {
		return nil, false, nil
	}
	return m.wrap(change.Key(key), v), true, nil
}

// Has reports whether key is present.
func (m *MapNode) Has(key string) (bool, error) {
	if err := m.check("has"); err != nil {
		return false, err
	}
	return m.rawMap().Has(key), nil
}

// Keys returns the keys in deterministic order.
func (m *MapNode) Keys() ([]string, error) {
	if err := m.check("keys"); err != nil {
		return nil, err
	}
	return m.rawMap().Keys(), nil
}

// Len returns the number of keys.
func (m *MapNode) Len() (int, error) {
	if err := m.check("len"); err != nil {
		return 0, err
	}
	return m.rawMap().Len(), nil
}

// Map returns the child map node at key.
func (m *MapNode) Map(key string) (*MapNode, error) {
	v, ok, err := m.lookup(key)
	if err != nil {
		return nil, err
	}
	child, isMap := v.(*MapNode)
	if !ok || !isMap {
		return nil, invalidArgument("map", m.Path().Append(change.Key(key)), "slot does not hold a map")
	}
	return child, nil
}

// List returns the child list node at key.
func (m *MapNode) List(key string) (*ListNode, error) {
	v, ok, err := m.lookup(key)
	if err != nil {
		return nil, err
	}
	child, isList := v.(*ListNode)
	if !ok || !isList {
		return nil, invalidArgument("list", m.Path().Append(change.Key(key)), "slot does not hold a list")
	}
	return child, nil
}

// Set writes v at key and records an insert or update. Writing a value
// equal to the current one (same primitive or same container) records
// nothing.
func (m *MapNode) Set(key string, v tree.Value) error {
	if err := m.check("set"); err != nil {
		return err
	}
	val, err := rawValue("set", m.Path(), v)
	if err != nil {
		return err
	}

	raw := m.rawMap()
	old, existed := raw.Get(key)
	if existed {
		old = tree.Unwrap(old)
		if tree.Equal(old, val) {
			return nil
		}
	}

	raw.Set(key, val)
	seg := change.Key(key)
	m.dropChild(seg)

	rec := change.Record{Type: change.Insert, Path: change.Path{seg}, Value: val, Object: raw}
	if existed {
		rec.Type = change.Update
		rec.OldValue = old
	}
	m.emit(rec)
	return nil
}

// Delete removes key and records a delete. Deleting an absent key is a
// no-op.
func (m *MapNode) Delete(key string) error {
	if err := m.check("delete"); err != nil {
		return err
	}
	raw := m.rawMap()
	old, ok := raw.Delete(key)
	if !ok {
		return nil
	}
	seg := change.Key(key)
	m.dropChild(seg)
	m.emit(change.Record{
		Type:     change.Delete,
		Path:     change.Path{seg},
		OldValue: tree.Unwrap(old),
		Object:   raw,
	})
	return nil
}
