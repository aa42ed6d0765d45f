package engine

import (
	"log/slog"
	"runtime"
	"slices"
	"sync"
	"weak"

	"github.com/roach88/shadow/internal/change"
	"github.com/roach88/shadow/internal/tree"
)

// Root is an observable root: the parentless node of an observed tree,
// together with its observer registry and change queue.
//
// Thread-safety model:
// A root and every node of its tree are single-threaded. Mutations, reads,
// Observe, Flush and the turns of the root's scheduler must all happen on
// one goroutine at a time. No locks are taken on the mutation path.
type Root struct {
	id      string
	raw     tree.Container
	top     Node
	sched   Scheduler
	clock   *Clock
	logger  *slog.Logger
	metrics Metrics

	observers []*registration
	queue     changeQueue
	revoked   bool
	cleanup   runtime.Cleanup
}

// roots maps raw container identity to its live root. Entries are weak, so
// a root nobody references is collected and its entry removed by a cleanup.
var roots = struct {
	mu sync.Mutex
	m  map[tree.Container]weak.Pointer[Root]
}{m: make(map[tree.Container]weak.Pointer[Root])}

// From returns the observable root for target.
//
//   - *tree.Map, *tree.List: the live root for that container, created on
//     first use with opts
//   - *Root, or the top node of a root: that root
//
// Any other target (nil, a primitive, a nested node, a revoked root) is an
// InvalidArgument error. To observe a nested subtree on its own, pass its
// Raw() container, which creates an independent root.
func From(target tree.Value, opts ...Option) (*Root, error) {
	switch t := target.(type) {
	case nil:
		return nil, invalidArgument("from", nil, "nil target")
	case *Root:
		if t == nil {
			return nil, invalidArgument("from", nil, "nil root")
		}
		if t.revoked {
			return nil, revokedTarget()
		}
		return t, nil
	case *MapNode:
		if t == nil {
			return nil, invalidArgument("from", nil, "nil node")
		}
		return fromNode(t)
	case *ListNode:
		if t == nil {
			return nil, invalidArgument("from", nil, "nil node")
		}
		return fromNode(t)
	case *tree.Map:
		if t == nil {
			return nil, invalidArgument("from", nil, "nil map")
		}
		return rootFor(t, opts), nil
	case *tree.List:
		if t == nil {
			return nil, invalidArgument("from", nil, "nil list")
		}
		return rootFor(t, opts), nil
	default:
		return nil, invalidArgument("from", nil, "cannot observe %s value", target.Kind())
	}
}

// fromNode resolves the top node of a root back to that root.
func fromNode(t Node) (*Root, error) {
	b := t.base()
	if b.root.revoked {
		return nil, revokedTarget()
	}
	if b.parent != nil || b.root.top != t {
		return nil, invalidArgument("from", t.Path(), "nested node cannot be promoted to a root; pass its raw container")
	}
	return b.root, nil
}

func revokedTarget() *Error {
	return invalidArgument("from", nil, "root has been revoked")
}

func rootFor(raw tree.Container, opts []Option) *Root {
	roots.mu.Lock()
	defer roots.mu.Unlock()

	if wp, ok := roots.m[raw]; ok {
		if r := wp.Value(); r != nil {
			return r
		}
	}

	cfg := defaultRootConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	r := &Root{
		id:      cfg.ids.Generate(),
		raw:     raw,
		sched:   cfg.scheduler,
		clock:   NewClock(),
		logger:  cfg.logger,
		metrics: cfg.metrics,
	}
	r.top = newNode(raw, r, nil, change.Segment{})
	roots.m[raw] = weak.Make(r)
	r.cleanup = runtime.AddCleanup(r, releaseRoot, rootKey{raw: raw, metrics: cfg.metrics})

	r.metrics.RootCreated()
	r.logger.Info("root created", "root", r.id, "kind", raw.Kind())
	return r
}

// rootKey is what the cleanup needs after the root is gone.
type rootKey struct {
	raw     tree.Container
	metrics Metrics
}

func releaseRoot(k rootKey) {
	roots.mu.Lock()
	defer roots.mu.Unlock()

	// A new root may already have been created for the same container.
	if wp, ok := roots.m[k.raw]; ok && wp.Value() == nil {
		delete(roots.m, k.raw)
	}
	k.metrics.RootReleased()
}

// ID returns the root's unique ID.
func (r *Root) ID() string { return r.id }

// Kind implements tree.Value with the kind of the wrapped container.
func (r *Root) Kind() tree.Kind { return r.raw.Kind() }

// Unwrap returns the raw container, or nil once revoked.
func (r *Root) Unwrap() tree.Container {
	if r.revoked {
		return nil
	}
	return r.raw
}

// Revoked reports whether Revoke has been called.
func (r *Root) Revoked() bool { return r.revoked }

// Node returns the root's top node: a *MapNode or a *ListNode.
func (r *Root) Node() Node { return r.top }

// Map returns the top node of a root wrapping a map.
func (r *Root) Map() (*MapNode, error) {
	if r.revoked {
		return nil, revokedAccess("map", nil)
	}
	m, ok := r.top.(*MapNode)
	if !ok {
		return nil, invalidArgument("map", nil, "root wraps a %s", r.raw.Kind())
	}
	return m, nil
}

// List returns the top node of a root wrapping a list.
func (r *Root) List() (*ListNode, error) {
	if r.revoked {
		return nil, revokedAccess("list", nil)
	}
	l, ok := r.top.(*ListNode)
	if !ok {
		return nil, invalidArgument("list", nil, "root wraps a %s", r.raw.Kind())
	}
	return l, nil
}

// Lookup resolves p from the top node. See the package-level Lookup.
func (r *Root) Lookup(p change.Path) (tree.Value, error) {
	if r.revoked {
		return nil, revokedAccess("lookup", p)
	}
	return Lookup(r.top, p)
}

// Observe registers obs, or updates its filter if it is already
// registered (keeping its place in delivery order).
func (r *Root) Observe(obs Observer, opts ...ObserveOption) error {
	if r.revoked {
		return revokedAccess("observe", nil)
	}
	if err := validateObserver(obs); err != nil {
		return err
	}
	filter, err := buildFilter(opts)
	if err != nil {
		return err
	}

	for _, reg := range r.observers {
		if reg.obs == obs {
			reg.filter = filter
			return nil
		}
	}
	r.observers = append(r.observers, &registration{obs: obs, filter: filter})
	r.logger.Debug("observer registered", "root", r.id, "observers", len(r.observers))
	return nil
}

// Unobserve removes the given observers, or every observer when called
// with none. Unknown observers are ignored. A flush already being
// delivered still reaches observers removed during it.
func (r *Root) Unobserve(obs ...Observer) {
	if len(obs) == 0 {
		r.observers = nil
		return
	}
	r.observers = slices.DeleteFunc(slices.Clone(r.observers), func(reg *registration) bool {
		return slices.ContainsFunc(obs, func(o Observer) bool { return safeEqual(o, reg.obs) })
	})
}

// safeEqual compares observers without panicking on non-comparable values.
func safeEqual(a, b Observer) (eq bool) {
	defer func() {
		if recover() != nil {
			eq = false
		}
	}()
	return a == b
}

// Observers returns the number of registered observers.
func (r *Root) Observers() int { return len(r.observers) }

// Pending returns the number of records waiting for the next flush.
func (r *Root) Pending() int { return len(r.queue.pending) }

// Revoke permanently disconnects the root. Pending records are dropped,
// observers are removed, and every node of the tree (including nodes held
// by callers) fails further operations with RevokedAccess. The raw
// container is untouched and can be passed to From again to get a fresh
// root. Revoke is idempotent.
func (r *Root) Revoke() {
	if r.revoked {
		return
	}
	r.queue.cancel()
	r.queue.pending = nil
	r.observers = nil
	r.revoked = true
	r.top.base().detach()

	roots.mu.Lock()
	if wp, ok := roots.m[r.raw]; ok && wp.Value() == r {
		delete(roots.m, r.raw)
	}
	roots.mu.Unlock()

	r.cleanup.Stop()
	r.metrics.RootReleased()
	r.logger.Info("root revoked", "root", r.id)
}
