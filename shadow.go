// Package shadow observes mutations of plain data trees.
//
// Wrap a tree with From, mutate it through the returned nodes, and every
// write is reported as a change record. Records written during one
// scheduler turn are delivered together, in mutation order, to each
// registered observer at the start of the next turn.
//
//	data := shadow.MapOf(shadow.P("a", shadow.MapOf(shadow.P("b", shadow.Int(1)))))
//	root, err := shadow.From(data)
//	if err != nil {
//	    return err
//	}
//	_ = root.Observe(shadow.ObserverFunc(func(records []shadow.Record) error {
//	    for _, r := range records {
//	        fmt.Println(r) // update a.b value=2 old=1
//	    }
//	    return nil
//	}))
//	m, _ := root.Map()
//	a, _ := m.Map("a")
//	_ = a.Set("b", shadow.Int(2))
//	shadow.Turn()
package shadow

import (
	"github.com/roach88/shadow/internal/change"
	"github.com/roach88/shadow/internal/engine"
	"github.com/roach88/shadow/internal/sched"
	"github.com/roach88/shadow/internal/tree"
)

// Tree values.
type (
	Value  = tree.Value
	Map    = tree.Map
	List   = tree.List
	Null   = tree.Null
	String = tree.String
	Int    = tree.Int
	Float  = tree.Float
	Bool   = tree.Bool
)

// MapOf builds a map from key/value pairs.
func MapOf(pairs ...tree.Pair) *Map { return tree.MapOf(pairs...) }

// P is a key/value pair for MapOf.
func P(key string, v Value) tree.Pair { return tree.P(key, v) }

// ListOf builds a list.
func ListOf(vals ...Value) *List { return tree.NewList(vals...) }

// FromAny converts decoded JSON or YAML data into a tree.
func FromAny(v any) (Value, error) { return tree.FromAny(v) }

// Change records.
type (
	Record     = change.Record
	RecordType = change.Type
	Path       = change.Path
)

// Record types.
const (
	Insert  = change.Insert
	Update  = change.Update
	Delete  = change.Delete
	Reverse = change.Reverse
	Shuffle = change.Shuffle
)

// ParsePath parses a dotted path; all-digit segments are list indices.
func ParsePath(s string) Path { return change.ParsePath(s) }

// Apply replays a record onto a plain tree.
func Apply(root tree.Container, r Record) error { return change.Apply(root, r) }

// Roots, nodes and observers.
type (
	Root          = engine.Root
	Node          = engine.Node
	MapNode       = engine.MapNode
	ListNode      = engine.ListNode
	Observer      = engine.Observer
	Option        = engine.Option
	ObserveOption = engine.ObserveOption
	Error         = engine.Error
	ObserverError = engine.ObserverError
)

// From returns the root that mediates target, creating it on first use.
func From(target Value, opts ...Option) (*Root, error) { return engine.From(target, opts...) }

// ObserverFunc adapts a function to the Observer interface.
func ObserverFunc(fn func(records []Record) error) Observer { return engine.ObserverFunc(fn) }

// Root options.
var (
	WithScheduler   = engine.WithScheduler
	WithIDGenerator = engine.WithIDGenerator
	WithMetrics     = engine.WithMetrics
	WithLogger      = engine.WithLogger
)

// Observe options.
var (
	WithPath       = engine.WithPath
	WithPathPrefix = engine.WithPathPrefix
	WithPathsOf    = engine.WithPathsOf
	WithFilter     = engine.WithFilter
)

// Error sentinels for errors.Is.
var (
	ErrInvalidArgument = engine.ErrInvalidArgument
	ErrRevokedAccess   = engine.ErrRevokedAccess
)

// IsInvalidArgument reports whether err is an invalid-argument error.
func IsInvalidArgument(err error) bool { return engine.IsInvalidArgument(err) }

// IsRevokedAccess reports whether err came from a revoked root.
func IsRevokedAccess(err error) bool { return engine.IsRevokedAccess(err) }

// SetErrorHandler installs the handler for observer failures and returns
// the previous one. nil restores the default, which logs through slog.
func SetErrorHandler(h func(error)) func(error) { return engine.SetErrorHandler(h) }

// Turn runs one turn of the default scheduler, delivering pending batches
// of roots created without WithScheduler. It returns the number of tasks run.
func Turn() int { return sched.Default().Turn() }

// Drain runs turns of the default scheduler until no task is pending.
func Drain() error { return sched.Default().Drain() }
