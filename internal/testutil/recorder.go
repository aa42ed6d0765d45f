// Package testutil provides deterministic helpers shared by tests and the
// scenario harness.
package testutil

import (
	"slices"
	"sync"

	"github.com/roach88/shadow/internal/change"
)

// Recorder is an observer that keeps every batch it receives.
//
// It implements engine.Observer. Err, when set, is returned from every
// delivery after the batch is recorded; OnDeliver, when set, runs after
// recording (tests use it to mutate or unobserve from inside a callback).
type Recorder struct {
	Name      string
	Err       error
	OnDeliver func(records []change.Record)

	mu      sync.Mutex
	batches [][]change.Record
}

// NewRecorder creates a named recorder.
func NewRecorder(name string) *Recorder {
	return &Recorder{Name: name}
}

// OnChange records the batch.
func (r *Recorder) OnChange(records []change.Record) error {
	r.mu.Lock()
	r.batches = append(r.batches, records)
	hook, err := r.OnDeliver, r.Err
	r.mu.Unlock()

	if hook != nil {
		hook(records)
	}
	return err
}

// Batches returns the received batches in delivery order.
func (r *Recorder) Batches() [][]change.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.batches)
}

// Calls returns the number of deliveries.
func (r *Recorder) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

// Records returns every received record, flattened in delivery order.
func (r *Recorder) Records() []change.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []change.Record
	for _, b := range r.batches {
		out = append(out, b...)
	}
	return out
}

// Last returns the most recent batch, or nil.
func (r *Recorder) Last() []change.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.batches) == 0 {
		return nil
	}
	return r.batches[len(r.batches)-1]
}

// Reset forgets every recorded batch.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = nil
}
