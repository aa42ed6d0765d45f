package harness

import (
	"github.com/roach88/shadow/internal/change"
	"github.com/roach88/shadow/internal/tree"
)

// RecordTrace is a delivered record as the observer saw it. Values are
// deep copies taken at delivery time, so later mutations don't leak into
// the trace.
type RecordTrace struct {
	Type     change.Type `json:"type"`
	Path     change.Path `json:"path"`
	Value    tree.Value  `json:"value,omitempty"`
	OldValue tree.Value  `json:"old_value,omitempty"`
	Seq      int64       `json:"seq"`
}

// String renders the record the way assertion failures list it.
func (r RecordTrace) String() string {
	return describeRecord(r)
}

// Delivery is one batch handed to one observer.
type Delivery struct {
	Observer string        `json:"observer"`
	Flush    int           `json:"flush"` // 1-based flush number
	Records  []RecordTrace `json:"records"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success: no failed expectation and no
	// mismatched step error.
	Pass bool `json:"pass"`

	// Deliveries lists every delivery in the order it happened.
	Deliveries []Delivery `json:"deliveries"`

	// Flushes counts non-empty flushes.
	Flushes int `json:"flushes"`

	// ObserverErrors counts deliveries that returned an error or panicked.
	ObserverErrors int `json:"observer_errors"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Final is a copy of the tree after the last flush.
	Final tree.Value `json:"final"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:       true,
		Deliveries: []Delivery{},
		Errors:     []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddDelivery appends a delivery, copying the records' values.
func (r *Result) AddDelivery(observer string, flush int, records []change.Record) {
	traced := make([]RecordTrace, len(records))
	for i, rec := range records {
		traced[i] = RecordTrace{
			Type:     rec.Type,
			Path:     rec.Path,
			Value:    cloneValue(rec.Value),
			OldValue: cloneValue(rec.OldValue),
			Seq:      rec.Seq,
		}
	}
	r.Deliveries = append(r.Deliveries, Delivery{
		Observer: observer,
		Flush:    flush,
		Records:  traced,
	})
}

// DeliveriesTo returns the deliveries one observer received.
func (r *Result) DeliveriesTo(observer string) []Delivery {
	var out []Delivery
	for _, d := range r.Deliveries {
		if d.Observer == observer {
			out = append(out, d)
		}
	}
	return out
}

func cloneValue(v tree.Value) tree.Value {
	if v == nil {
		return nil
	}
	return tree.Clone(v)
}
