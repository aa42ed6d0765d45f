package sched

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Task is a unit of deferred work.
type Task func()

// Handle refers to one deferred task. The zero Handle and a nil *Handle
// refer to nothing.
type Handle struct {
	loop *Loop
	e    *entry
}

type entry struct {
	fn       Task
	canceled bool
	done     bool
}

// Cancel prevents the task from running. It reports whether the task was
// still pending; cancelling a task that already ran (or was already
// cancelled) is a no-op that returns false.
func (h *Handle) Cancel() bool {
	if h == nil || h.e == nil {
		return false
	}
	h.loop.mu.Lock()
	defer h.loop.mu.Unlock()

	if h.e.canceled || h.e.done {
		return false
	}
	h.e.canceled = true
	h.loop.live--
	return true
}

// Pending reports whether the task has neither run nor been cancelled.
func (h *Handle) Pending() bool {
	if h == nil || h.e == nil {
		return false
	}
	h.loop.mu.Lock()
	defer h.loop.mu.Unlock()
	return !h.e.canceled && !h.e.done
}

// Loop is a cooperative, turn-based task queue.
//
// Thread-safety model:
//   - Defer(), Post(), Stop(), Len(): safe from any goroutine
//   - Turn(), Drain(), Run(): must be driven by one goroutine at a time
type Loop struct {
	mu      sync.Mutex
	pending []*entry
	live    int // pending entries not cancelled
	closed  bool
	signal  chan struct{} // Signals task availability (buffered, size 1)

	maxTurns int
	logger   *slog.Logger
	turns    int64
}

// Option configures a Loop.
type Option func(*Loop)

// WithMaxTurns sets the turn budget for a single Drain call.
//
// Default: 1000 turns (DefaultMaxTurns).
func WithMaxTurns(n int) Option {
	return func(l *Loop) {
		l.maxTurns = n
	}
}

// WithLogger sets the logger used for task panics and lifecycle messages.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		l.logger = logger
	}
}

// New creates an idle loop.
func New(opts ...Option) *Loop {
	l := &Loop{
		pending:  make([]*entry, 0, 16),
		signal:   make(chan struct{}, 1),
		maxTurns: DefaultMaxTurns,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

var defaultLoop = New()

// Default returns the process-wide loop used by roots created without an
// explicit scheduler.
func Default() *Loop {
	return defaultLoop
}

// Defer queues fn for the next turn and returns a handle that can cancel it.
// Thread-safe: may be called from any goroutine, including from a task.
func (l *Loop) Defer(fn Task) *Handle {
	if fn == nil {
		return nil
	}
	e := &entry{fn: fn}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.pending = append(l.pending, e)
	l.live++
	l.notifyLocked()

	return &Handle{loop: l, e: e}
}

// Post queues fn for a loop driven by Run. It returns false, without
// queuing, once the loop has been stopped.
func (l *Loop) Post(fn Task) bool {
	if fn == nil {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return false
	}
	l.pending = append(l.pending, &entry{fn: fn})
	l.live++
	l.notifyLocked()
	return true
}

// notifyLocked signals availability without blocking; the buffer of 1
// coalesces multiple signals. Caller must hold l.mu.
func (l *Loop) notifyLocked() {
	if l.closed {
		return
	}
	select {
	case l.signal <- struct{}{}:
	default:
	}
}

// Len returns the number of tasks waiting to run, excluding cancelled ones.
func (l *Loop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.live
}

// Turns returns the number of non-empty turns executed so far.
func (l *Loop) Turns() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.turns
}

// Turn runs the tasks that were pending when it was called, in the order
// they were deferred, and returns how many ran. Tasks deferred during the
// turn are left for the next one. A task cancelled by an earlier task in the
// same turn does not run.
func (l *Loop) Turn() int {
	l.mu.Lock()
	batch := l.pending
	if len(batch) == 0 {
		l.mu.Unlock()
		return 0
	}
	l.pending = make([]*entry, 0, cap(batch))
	l.turns++
	l.mu.Unlock()

	ran := 0
	for _, e := range batch {
		l.mu.Lock()
		if e.canceled {
			l.mu.Unlock()
			continue
		}
		e.done = true
		l.live--
		l.mu.Unlock()

		l.runTask(e.fn)
		ran++
	}
	return ran
}

// runTask executes one task, logging and swallowing a panic so one bad task
// does not take down the remaining tasks of the turn.
func (l *Loop) runTask(fn Task) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("task panicked", "panic", fmt.Sprint(r))
		}
	}()
	fn()
}

// Drain runs turns until no task is pending.
//
// Returns TurnsExceededError if tasks are still pending after the turn
// budget; the remaining tasks stay queued.
func (l *Loop) Drain() error {
	budget := newTurnBudget(l.maxTurns)
	for l.Len() > 0 {
		if err := budget.Check(); err != nil {
			var te *TurnsExceededError
			if errors.As(err, &te) {
				te.Pending = l.Len()
			}
			l.logger.Error("loop turn budget exceeded",
				"turns", budget.current,
				"limit", budget.maxTurns,
			)
			return err
		}
		l.Turn()
	}
	return nil
}

// Run executes turns as tasks arrive.
// Blocks until the context is cancelled or Stop() is called.
//
// Tasks still pending when Stop is called are run before Run returns;
// on context cancellation they are left queued.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Debug("loop starting")

	for {
		if l.Turn() > 0 {
			continue
		}

		select {
		case <-ctx.Done():
			l.logger.Debug("loop stopping: context cancelled")
			return ctx.Err()

		case <-l.signal:
			// The signal channel closes on Stop, which makes this case fire
			// immediately; exit once the last tasks have run.
			if l.isClosed() && l.Len() == 0 {
				l.logger.Debug("loop stopping: stopped")
				return nil
			}
		}
	}
}

// Stop makes Run return once pending tasks have run. Post fails after
// Stop; Defer, Turn and Drain keep working.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	l.closed = true
	close(l.signal)
}

func (l *Loop) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}
