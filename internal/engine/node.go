package engine

import (
	"slices"

	"github.com/roach88/shadow/internal/change"
	"github.com/roach88/shadow/internal/tree"
)

// Node is a mediating node: *MapNode or *ListNode.
//
// A node wraps exactly one raw container. Reads through a node return child
// nodes for container-valued slots and primitives unchanged; writes through
// a node mutate the raw container and enqueue change records on the root.
// Nodes implement tree.Wrapper, so writing a node into a tree stores its
// raw container.
type Node interface {
	tree.Wrapper

	// Path returns the node's current path from the root.
	Path() change.Path

	// Root returns the root the node belongs to.
	Root() *Root

	base() *node
}

// node holds the state shared by MapNode and ListNode.
//
// Parent links are plain pointers. A node dropped from its parent's cache
// keeps its parent and segment: it stays usable and reports the path it
// had when it was dropped.
type node struct {
	raw    tree.Container
	root   *Root
	parent *node
	seg    change.Segment
	self   Node

	// children caches child nodes by the segment they sit under.
	children map[change.Segment]Node
}

func newNode(raw tree.Container, root *Root, parent *node, seg change.Segment) Node {
	n := &node{raw: raw, root: root, parent: parent, seg: seg}
	switch raw.(type) {
	case *tree.Map:
		m := &MapNode{node: n}
		n.self = m
	case *tree.List:
		l := &ListNode{node: n}
		n.self = l
	}
	return n.self
}

func (n *node) base() *node { return n }

// Root returns the root the node belongs to.
func (n *node) Root() *Root { return n.root }

// Unwrap returns the raw container, or nil once the root is revoked.
func (n *node) Unwrap() tree.Container {
	if n.root.revoked {
		return nil
	}
	return n.raw
}

// Path walks parent links to the root, so a relocated subtree always
// reports its current position.
func (n *node) Path() change.Path {
	var segs change.Path
	for cur := n; cur.parent != nil; cur = cur.parent {
		segs = append(segs, cur.seg)
	}
	slices.Reverse(segs)
	if segs == nil {
		return change.Path{}
	}
	return segs
}

func (n *node) check(op string) error {
	if n.root.revoked {
		return revokedAccess(op, n.Path())
	}
	return nil
}

// wrap returns v as seen through n at seg: containers become cached child
// nodes, primitives pass through.
func (n *node) wrap(seg change.Segment, v tree.Value) tree.Value {
	c, ok := tree.Unwrap(v).(tree.Container)
	if !ok {
		return v
	}
	return n.child(seg, c)
}

// child returns the cached node for seg, replacing it when the slot now
// holds a different container.
func (n *node) child(seg change.Segment, c tree.Container) Node {
	if cached, ok := n.children[seg]; ok && cached.base().raw == c {
		return cached
	}
	if n.children == nil {
		n.children = make(map[change.Segment]Node)
	}
	ch := newNode(c, n.root, n, seg)
	n.children[seg] = ch
	return ch
}

func (n *node) dropChild(seg change.Segment) {
	delete(n.children, seg)
}

// emit stamps and enqueues records built relative to n.
func (n *node) emit(records ...change.Record) {
	if len(records) == 0 {
		return
	}
	prefix := n.Path()
	for _, r := range records {
		n.root.enqueue(r.WithPrefix(prefix))
	}
}

// detach clears raw references on n and every cached descendant.
func (n *node) detach() {
	for _, ch := range n.children {
		ch.base().detach()
	}
	n.children = nil
	n.raw = nil
}

// rawValue prepares v for storage: nil becomes Null and wrappers become
// their raw container.
func rawValue(op string, path change.Path, v tree.Value) (tree.Value, error) {
	switch x := v.(type) {
	case nil:
		return tree.Null{}, nil
	case tree.Wrapper:
		c := x.Unwrap()
		if c == nil {
			return nil, &Error{
				Code:    ErrCodeRevokedAccess,
				Op:      op,
				Message: "value belongs to a revoked root",
				Path:    path,
			}
		}
		return c, nil
	}
	return v, nil
}

// Lookup resolves p from n through mediating nodes. Container slots
// resolve to nodes, primitive slots to their value.
func Lookup(n Node, p change.Path) (tree.Value, error) {
	var cur tree.Value = n
	for i, seg := range p {
		var (
			next tree.Value
			err  error
		)
		switch c := cur.(type) {
		case *MapNode:
			var ok bool
			next, ok, err = c.lookup(seg.String())
			if err == nil && !ok {
				err = invalidArgument("lookup", p[:i+1], "key %q not found", seg.String())
			}
		case *ListNode:
			idx, isIndex := seg.Index()
			if !isIndex {
				return nil, invalidArgument("lookup", p[:i+1], "list segment %q is not an index", seg.String())
			}
			next, err = c.At(idx)
		default:
			return nil, invalidArgument("lookup", p[:i+1], "cannot descend into %s", cur.Kind())
		}
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}
