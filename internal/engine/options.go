package engine

import (
	"log/slog"

	"github.com/roach88/shadow/internal/change"
	"github.com/roach88/shadow/internal/sched"
)

// Scheduler defers a root's flush to a later turn.
// Implemented by *sched.Loop.
type Scheduler interface {
	Defer(fn sched.Task) *sched.Handle
}

// Metrics receives engine events. Implemented by metrics.Collector.
// A root created without WithMetrics reports nowhere.
type Metrics interface {
	RecordEmitted(t change.Type)
	Flushed(records int)
	ObserverFailed()
	RootCreated()
	RootReleased()
}

type noopMetrics struct{}

func (noopMetrics) RecordEmitted(change.Type) {}
func (noopMetrics) Flushed(int)               {}
func (noopMetrics) ObserverFailed()           {}
func (noopMetrics) RootCreated()              {}
func (noopMetrics) RootReleased()             {}

type rootConfig struct {
	scheduler Scheduler
	ids       IDGenerator
	metrics   Metrics
	logger    *slog.Logger
}

func defaultRootConfig() rootConfig {
	return rootConfig{
		scheduler: sched.Default(),
		ids:       UUIDv7Generator{},
		metrics:   noopMetrics{},
		logger:    slog.Default(),
	}
}

// Option configures a root. Options only apply when From creates a new
// root; they are ignored when an existing root is returned.
type Option func(*rootConfig)

// WithScheduler sets the loop the root's flushes are deferred onto.
//
// Default: sched.Default().
func WithScheduler(s Scheduler) Option {
	return func(c *rootConfig) {
		if s != nil {
			c.scheduler = s
		}
	}
}

// WithIDGenerator sets the generator for the root's ID.
//
// Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(c *rootConfig) {
		if g != nil {
			c.ids = g
		}
	}
}

// WithMetrics reports the root's activity to m.
func WithMetrics(m Metrics) Option {
	return func(c *rootConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithLogger sets the root's logger.
//
// Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *rootConfig) {
		if l != nil {
			c.logger = l
		}
	}
}
