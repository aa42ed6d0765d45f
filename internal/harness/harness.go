package harness

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/roach88/shadow/internal/arrayops"
	"github.com/roach88/shadow/internal/change"
	"github.com/roach88/shadow/internal/engine"
	"github.com/roach88/shadow/internal/sched"
	"github.com/roach88/shadow/internal/testutil"
	"github.com/roach88/shadow/internal/tree"
)

// Option configures a harness run.
type Option func(*config)

type config struct {
	logger  *slog.Logger
	metrics engine.Metrics
}

// WithLogger sets the logger handed to the scheduler and the root.
// Default: logs are discarded.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics forwards the root's activity to m in addition to the
// harness's own counters.
func WithMetrics(m engine.Metrics) Option {
	return func(c *config) {
		c.metrics = m
	}
}

// Harness executes one scenario against a private loop and root.
type Harness struct {
	scenario  *Scenario
	loop      *sched.Loop
	root      *engine.Root
	raw       tree.Container
	observers map[string]*testutil.Recorder
	stats     *runStats
	result    *Result
	logger    *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each run gets its own scheduler loop, a sequential root ID generator and
// a fresh copy of the initial tree, so results are reproducible.
//
// Execution flow:
//  1. Build the initial tree and observe it
//  2. Register the named observers
//  3. Execute the steps in order
//  4. Drain the loop
//  5. Evaluate expectations against the delivery trace and final tree
//
// Run returns an error when the scenario cannot be executed: a bad
// initial tree, or a step failing that was not expected to.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := config{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&cfg)
	}

	raw, err := scenario.initialTree()
	if err != nil {
		return nil, err
	}

	loopOpts := []sched.Option{sched.WithLogger(cfg.logger)}
	if scenario.MaxTurns > 0 {
		loopOpts = append(loopOpts, sched.WithMaxTurns(scenario.MaxTurns))
	}
	loop := sched.New(loopOpts...)
	defer loop.Stop()

	stats := &runStats{next: cfg.metrics}
	root, err := engine.From(raw,
		engine.WithScheduler(loop),
		engine.WithIDGenerator(testutil.NewSequentialIDs("root")),
		engine.WithMetrics(stats),
		engine.WithLogger(cfg.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to observe initial tree: %w", err)
	}
	defer root.Revoke()

	h := &Harness{
		scenario:  scenario,
		loop:      loop,
		root:      root,
		raw:       raw,
		observers: make(map[string]*testutil.Recorder, len(scenario.Observers)),
		stats:     stats,
		result:    NewResult(),
		logger:    cfg.logger,
	}

	if err := h.registerObservers(); err != nil {
		return nil, err
	}

	for i, step := range scenario.Steps {
		if err := h.executeStep(i, step); err != nil {
			return nil, err
		}
	}

	if err := loop.Drain(); err != nil {
		h.result.AddError(fmt.Sprintf("drain: %v", err))
	}

	h.result.Flushes = stats.flushes
	h.result.ObserverErrors = stats.failures
	h.result.Final = tree.Clone(raw)

	for _, msg := range EvaluateExpect(h.result, scenario.Expect) {
		h.result.AddError(msg)
	}

	h.logger.Info("scenario finished",
		"scenario", scenario.Name,
		"flushes", h.result.Flushes,
		"deliveries", len(h.result.Deliveries),
		"pass", h.result.Pass,
	)
	return h.result, nil
}

// registerObservers attaches one recording observer per spec, in order.
func (h *Harness) registerObservers() error {
	for _, spec := range h.scenario.Observers {
		rec := testutil.NewRecorder(spec.Name)
		if spec.Fail != "" {
			rec.Err = errors.New(spec.Fail)
		}
		name := spec.Name
		rec.OnDeliver = func(records []change.Record) {
			h.result.AddDelivery(name, h.stats.flushes, records)
		}

		if err := h.root.Observe(rec, observeOptions(spec)...); err != nil {
			return fmt.Errorf("observer %q: %w", spec.Name, err)
		}
		h.observers[spec.Name] = rec
	}
	return nil
}

func observeOptions(spec ObserverSpec) []engine.ObserveOption {
	var opts []engine.ObserveOption
	switch {
	case spec.Path != nil:
		opts = append(opts, engine.WithPath(change.ParsePath(*spec.Path)))
	case spec.PathPrefix != nil:
		opts = append(opts, engine.WithPathPrefix(change.ParsePath(*spec.PathPrefix)))
	case spec.PathsOf != nil:
		opts = append(opts, engine.WithPathsOf(change.ParsePath(*spec.PathsOf)))
	}
	if len(spec.Types) > 0 {
		types := make([]change.Type, len(spec.Types))
		for i, t := range spec.Types {
			types[i] = change.Type(t)
		}
		opts = append(opts, engine.WithFilter(func(r change.Record) bool {
			return slices.Contains(types, r.Type)
		}))
	}
	return opts
}

// executeStep runs one step and reconciles its outcome with the step's
// expected error.
func (h *Harness) executeStep(i int, step Step) error {
	err := h.apply(step)

	got := errorKind(err)
	switch {
	case err != nil && step.Error == "":
		return fmt.Errorf("step %d (%s): %w", i, step.Op, err)
	case err != nil && got == "":
		return fmt.Errorf("step %d (%s): expected %s error: %w", i, step.Op, step.Error, err)
	case err == nil && step.Error != "":
		h.result.AddError(fmt.Sprintf("step %d (%s): expected %s error, got none", i, step.Op, step.Error))
	case err != nil && got != step.Error:
		h.result.AddError(fmt.Sprintf("step %d (%s): expected %s error, got %s: %v", i, step.Op, step.Error, got, err))
	}

	h.logger.Debug("step executed",
		"step", i,
		"op", step.Op,
		"path", step.Path,
		"error", got,
	)
	return nil
}

// errorKind maps engine errors onto the scenario's error names.
func errorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case engine.IsInvalidArgument(err):
		return ErrorInvalidArgument
	case engine.IsRevokedAccess(err):
		return ErrorRevokedAccess
	default:
		return ""
	}
}

func (h *Harness) apply(step Step) error {
	switch step.Op {
	case OpTurn:
		h.loop.Turn()
		return nil
	case OpFlush:
		h.root.Flush()
		return nil
	case OpDrain:
		return h.loop.Drain()
	case OpUnobserve:
		if step.Observer == "" {
			h.root.Unobserve()
		} else {
			h.root.Unobserve(h.observers[step.Observer])
		}
		return nil
	case OpRevoke:
		h.root.Revoke()
		return nil
	case OpSet:
		return h.set(step)
	case OpDelete:
		return h.delete(step)
	default:
		return h.listOp(step)
	}
}

// slot resolves the container holding the slot at path and the slot's
// last segment.
func (h *Harness) slot(path string) (tree.Value, change.Segment, error) {
	p := change.ParsePath(path)
	seg, _ := p.Last()
	parent, err := engine.Lookup(h.root.Node(), p.Parent())
	return parent, seg, err
}

func (h *Harness) set(step Step) error {
	v, err := tree.FromAny(step.Value)
	if err != nil {
		return fmt.Errorf("value: %w", err)
	}
	parent, seg, err := h.slot(step.Path)
	if err != nil {
		return err
	}

	switch n := parent.(type) {
	case *engine.MapNode:
		return n.Set(seg.String(), v)
	case *engine.ListNode:
		idx, ok := seg.Index()
		if !ok {
			return fmt.Errorf("set %s: %q is not a list index", step.Path, seg.String())
		}
		return n.Set(idx, v)
	default:
		return fmt.Errorf("set %s: parent is %s, not a container", step.Path, parent.Kind())
	}
}

func (h *Harness) delete(step Step) error {
	parent, seg, err := h.slot(step.Path)
	if err != nil {
		return err
	}

	switch n := parent.(type) {
	case *engine.MapNode:
		return n.Delete(seg.String())
	case *engine.ListNode:
		idx, ok := seg.Index()
		if !ok {
			return fmt.Errorf("delete %s: %q is not a list index", step.Path, seg.String())
		}
		_, err := n.Splice(idx, 1)
		return err
	default:
		return fmt.Errorf("delete %s: parent is %s, not a container", step.Path, parent.Kind())
	}
}

func (h *Harness) listOp(step Step) error {
	v, err := engine.Lookup(h.root.Node(), change.ParsePath(step.Path))
	if err != nil {
		return err
	}
	l, ok := v.(*engine.ListNode)
	if !ok {
		return fmt.Errorf("%s %q: target is %s, not a list", step.Op, step.Path, v.Kind())
	}

	items, err := toValues(step.Items)
	if err != nil {
		return err
	}

	switch step.Op {
	case OpPush:
		_, err = l.Push(items...)
	case OpPop:
		_, _, err = l.Pop()
	case OpShift:
		_, _, err = l.Shift()
	case OpUnshift:
		_, err = l.Unshift(items...)
	case OpSplice:
		count := 0
		if step.Count != nil {
			count = *step.Count
		} else if count, err = l.Len(); err != nil {
			return err
		}
		_, err = l.Splice(step.Start, count, items...)
	case OpReverse:
		err = l.Reverse()
	case OpSort:
		var cmp func(a, b tree.Value) int
		if step.Desc {
			cmp = func(a, b tree.Value) int { return arrayops.Compare(b, a) }
		}
		err = l.Sort(cmp)
	case OpRotate:
		err = l.Rotate(step.K)
	case OpClear:
		_, err = l.Clear()
	default:
		err = fmt.Errorf("unknown op %q", step.Op)
	}
	return err
}

func toValues(items []any) ([]tree.Value, error) {
	out := make([]tree.Value, len(items))
	for i, item := range items {
		v, err := tree.FromAny(item)
		if err != nil {
			return nil, fmt.Errorf("items[%d]: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// runStats counts flushes and failed deliveries for the result and
// forwards every event to an optional downstream collector.
type runStats struct {
	flushes  int
	failures int
	next     engine.Metrics
}

func (s *runStats) RecordEmitted(t change.Type) {
	if s.next != nil {
		s.next.RecordEmitted(t)
	}
}

func (s *runStats) Flushed(n int) {
	s.flushes++
	if s.next != nil {
		s.next.Flushed(n)
	}
}

func (s *runStats) ObserverFailed() {
	s.failures++
	if s.next != nil {
		s.next.ObserverFailed()
	}
}

func (s *runStats) RootCreated() {
	if s.next != nil {
		s.next.RootCreated()
	}
}

func (s *runStats) RootReleased() {
	if s.next != nil {
		s.next.RootReleased()
	}
}
