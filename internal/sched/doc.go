// Package sched provides the cooperative turn-based loop that change delivery
// is deferred onto.
//
// MODEL:
//
// A Loop holds a FIFO of pending tasks. A turn runs exactly the tasks that
// were pending when the turn started; anything deferred while a turn is
// running waits for the next turn. This is what lets a mutation made inside
// an observer callback land in a later flush instead of the one being
// delivered.
//
// Tasks always run on the goroutine that drives the loop (Turn, Drain or
// Run). Defer and Post may be called from any goroutine.
//
// Two ways to drive a loop:
//   - Turn / Drain: synchronous, used by tests, the scenario harness and
//     programs that own their main loop
//   - Run: blocks, executing turns as tasks arrive, until the context is
//     cancelled or Stop is called
//
// Drain is bounded by a turn budget (WithMaxTurns). An observer that mutates
// the tree it observes on every delivery would otherwise keep the loop busy
// forever; exceeding the budget returns *TurnsExceededError.
package sched
