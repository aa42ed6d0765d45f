package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/shadow/internal/change"
	"github.com/roach88/shadow/internal/tree"
)

func TestMapNode_Reads(t *testing.T) {
	raw := tree.MapOf(
		tree.P("s", tree.String("x")),
		tree.P("m", tree.NewMap()),
		tree.P("l", tree.NewList()),
	)
	r, loop, rec := newObservedMap(t, raw)
	m := rootMap(t, r)

	v, err := m.Get("s")
	require.NoError(t, err)
	assert.Equal(t, tree.String("x"), v)

	v, err = m.Get("missing")
	require.NoError(t, err)
	assert.Nil(t, v)

	child1, err := m.Get("m")
	require.NoError(t, err)
	child2, err := m.Map("m")
	require.NoError(t, err)
	assert.Same(t, child1, child2, "child nodes are cached per slot")

	_, err = m.List("l")
	require.NoError(t, err)
	_, err = m.Map("l")
	assert.True(t, IsInvalidArgument(err))
	_, err = m.List("missing")
	assert.True(t, IsInvalidArgument(err))

	has, err := m.Has("s")
	require.NoError(t, err)
	assert.True(t, has)

	keys, err := m.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"l", "m", "s"}, keys)

	n, err := m.Len()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	assert.Equal(t, 0, r.Pending(), "reads never enqueue")
	loop.Turn()
	assert.Equal(t, 0, rec.Calls())
}

func TestMapNode_SetInsertAndNil(t *testing.T) {
	r, loop, rec := newObservedMap(t, tree.NewMap())
	m := rootMap(t, r)

	require.NoError(t, m.Set("a", nil))
	loop.Turn()

	got := rec.Records()
	require.Len(t, got, 1)
	assert.Equal(t, change.Insert, got[0].Type)
	assert.Equal(t, tree.Null{}, got[0].Value)
	assert.Nil(t, got[0].OldValue)
}

func TestMapNode_NaNIsSilentOnReassign(t *testing.T) {
	r, loop, rec := newObservedMap(t, tree.MapOf(tree.P("f", tree.Float(math.NaN()))))
	require.NoError(t, rootMap(t, r).Set("f", tree.Float(math.NaN())))
	loop.Turn()
	assert.Equal(t, 0, rec.Calls())
}

func TestMapNode_SetNumberOfOtherKind(t *testing.T) {
	raw := tree.MapOf(
		tree.P("n", tree.Int(1)),
		tree.P("big", tree.Int(9007199254740993)),
	)
	r, loop, rec := newObservedMap(t, raw)
	m := rootMap(t, r)

	require.NoError(t, m.Set("n", tree.Float(1)))
	require.NoError(t, m.Set("big", tree.Float(9007199254740992)))
	loop.Turn()

	got := rec.Records()
	require.Len(t, got, 2)
	assert.Equal(t, "update n value=1 old=1", got[0].String())
	assert.Equal(t, tree.Float(1), got[0].Value)
	assert.Equal(t, tree.Int(1), got[0].OldValue)
	assert.Equal(t, tree.Float(9007199254740992), got[1].Value)
	assert.Equal(t, tree.Int(9007199254740993), got[1].OldValue)

	n, _ := raw.Get("n")
	assert.Equal(t, tree.Float(1), n)
	big, _ := raw.Get("big")
	assert.Equal(t, tree.Float(9007199254740992), big)
}

func TestMapNode_SetLargeIntIsExact(t *testing.T) {
	r, loop, rec := newObservedMap(t, tree.MapOf(tree.P("id", tree.Int(1 << 53))))
	require.NoError(t, rootMap(t, r).Set("id", tree.Int(1<<53 + 1)))
	loop.Turn()

	got := rec.Records()
	require.Len(t, got, 1)
	assert.Equal(t, tree.Int(1<<53 + 1), got[0].Value)
}

func TestMapNode_DeleteAbsentIsNoop(t *testing.T) {
	r, loop, rec := newObservedMap(t, tree.NewMap())
	require.NoError(t, rootMap(t, r).Delete("nope"))
	loop.Turn()
	assert.Equal(t, 0, rec.Calls())
}

func TestMapNode_WritingNodeStoresRawContainer(t *testing.T) {
	inner := tree.MapOf(tree.P("v", tree.Int(1)))
	raw := tree.MapOf(tree.P("a", inner))
	r, loop, rec := newObservedMap(t, raw)
	m := rootMap(t, r)

	a, err := m.Map("a")
	require.NoError(t, err)
	require.NoError(t, m.Set("copy", a))
	loop.Turn()

	stored, ok := raw.Get("copy")
	require.True(t, ok)
	assert.Same(t, inner, stored, "raw tree holds the container, not the node")

	got := rec.Records()
	require.Len(t, got, 1)
	assert.Same(t, inner, got[0].Value, "record values are raw")
}

func TestMapNode_OverwriteReplacesCachedChild(t *testing.T) {
	raw := tree.MapOf(tree.P("a", tree.MapOf(tree.P("x", tree.Int(1)))))
	r, loop, rec := newObservedMap(t, raw)
	m := rootMap(t, r)

	stale, err := m.Map("a")
	require.NoError(t, err)
	staleRaw := stale.Raw()

	replacement := tree.MapOf(tree.P("x", tree.Int(2)))
	require.NoError(t, m.Set("a", replacement))

	fresh, err := m.Map("a")
	require.NoError(t, err)
	assert.NotSame(t, stale, fresh)
	assert.Same(t, replacement, fresh.Raw())

	// The orphaned node keeps working and reports its stale path.
	require.NoError(t, stale.Set("x", tree.Int(9)))
	loop.Turn()

	got := rec.Records()
	require.Len(t, got, 2)
	assert.Equal(t, change.Update, got[0].Type)
	assert.Equal(t, "a", got[0].Path.String())
	assert.Same(t, replacement, got[0].Value)
	assert.Same(t, staleRaw, got[0].OldValue, "records hold containers by reference")
	assert.Equal(t, "update a.x value=9 old=1", got[1].String())
	assert.Same(t, staleRaw, got[1].Object)

	x, _ := replacement.Get("x")
	assert.Equal(t, tree.Int(2), x, "the live slot is untouched")
}

func TestMapNode_DeleteDropsCachedChild(t *testing.T) {
	raw := tree.MapOf(tree.P("a", tree.NewMap()))
	r, _, _ := newObservedMap(t, raw)
	m := rootMap(t, r)

	before, err := m.Map("a")
	require.NoError(t, err)
	require.NoError(t, m.Delete("a"))
	require.NoError(t, m.Set("a", before.Raw()))

	after, err := m.Map("a")
	require.NoError(t, err)
	assert.NotSame(t, before, after)
}

func TestMapNode_SelfReference(t *testing.T) {
	raw := tree.NewMap()
	r, loop, rec := newObservedMap(t, raw)
	m := rootMap(t, r)

	require.NoError(t, m.Set("self", m))
	self, err := m.Map("self")
	require.NoError(t, err)
	require.NoError(t, self.Set("v", tree.Int(1)))
	loop.Turn()

	assert.Equal(t, []string{"self", "self.v"}, []string{
		rec.Records()[0].Path.String(),
		rec.Records()[1].Path.String(),
	})
	v, _ := raw.Get("v")
	assert.Equal(t, tree.Int(1), v)
}
