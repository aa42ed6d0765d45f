package engine

import (
	"slices"

	"github.com/roach88/shadow/internal/change"
	"github.com/roach88/shadow/internal/sched"
)

// changeQueue is a root's buffer of records awaiting delivery.
//
// At most one flush is scheduled at a time: the first enqueue after a flush
// schedules the next one, later enqueues only append. The buffer is swapped
// out before delivery starts, so records produced by observers land in a
// fresh buffer and a later flush.
type changeQueue struct {
	pending []change.Record
	handle  *sched.Handle
}

func (q *changeQueue) cancel() {
	if q.handle != nil {
		q.handle.Cancel()
		q.handle = nil
	}
}

// take empties the buffer and forgets the scheduled flush.
func (q *changeQueue) take() []change.Record {
	batch := q.pending
	q.pending = nil
	q.handle = nil
	return batch
}

// enqueue stamps rec and schedules a flush if none is pending.
func (r *Root) enqueue(rec change.Record) {
	rec.Seq = r.clock.Next()
	r.queue.pending = append(r.queue.pending, rec)
	r.metrics.RecordEmitted(rec.Type)

	r.logger.Debug("change recorded",
		"root", r.id,
		"seq", rec.Seq,
		"type", rec.Type,
		"path", rec.Path.String(),
	)

	if r.queue.handle == nil {
		r.queue.handle = r.sched.Defer(r.flush)
	}
}

// Flush delivers pending records now instead of at the next turn, and
// cancels the scheduled flush. Records produced during this delivery are
// scheduled as usual.
func (r *Root) Flush() {
	if r.revoked {
		return
	}
	r.queue.cancel()
	r.flush()
}

// flush delivers the buffered batch to a snapshot of the registry, in
// registration order. Observers whose filter leaves nothing are skipped.
func (r *Root) flush() {
	batch := r.queue.take()
	if len(batch) == 0 || r.revoked {
		return
	}
	registry := slices.Clone(r.observers)

	r.metrics.Flushed(len(batch))
	r.logger.Debug("flushing",
		"root", r.id,
		"records", len(batch),
		"observers", len(registry),
	)

	for _, reg := range registry {
		records := reg.filter.Apply(batch)
		if len(records) == 0 {
			continue
		}
		r.deliver(reg.obs, records)
	}
}

// deliver calls one observer, isolating its failure from the rest of the
// flush and from the mutator.
func (r *Root) deliver(obs Observer, records []change.Record) {
	if failure := callObserver(obs, records); failure != nil {
		failure.RootID = r.id
		r.observerFailed(failure)
	}
}

func callObserver(obs Observer, records []change.Record) (failure *ObserverError) {
	defer func() {
		if p := recover(); p != nil {
			failure = &ObserverError{Records: len(records), Panic: p}
		}
	}()
	if err := obs.OnChange(records); err != nil {
		return &ObserverError{Records: len(records), Err: err}
	}
	return nil
}

func (r *Root) observerFailed(err *ObserverError) {
	r.metrics.ObserverFailed()
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("observer error handler panicked", "root", r.id, "panic", p, "error", err)
		}
	}()
	reportError(err)
}
