package harness

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/shadow/internal/change"
	"github.com/roach88/shadow/internal/tree"
)

// Assertion types, as reported in AssertionError.Type.
const (
	AssertFlushes        = "flushes"
	AssertObserverErrors = "observer_errors"
	AssertDelivery       = "delivery"
	AssertFinal          = "final"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string     // Assertion type for categorization
	Expected string     // Human-readable expected outcome
	Actual   string     // Human-readable actual outcome
	Trace    []Delivery // Deliveries for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nDeliveries:\n")
		for _, d := range e.Trace {
			fmt.Fprintf(&buf, "  [flush %d] %s\n", d.Flush, d.Observer)
			for _, r := range d.Records {
				fmt.Fprintf(&buf, "    %s\n", describeRecord(r))
			}
		}
	}
	return buf.String()
}

// EvaluateExpect checks result against expect.
// Returns a slice of error messages for failed assertions.
func EvaluateExpect(result *Result, expect *Expect) []string {
	if expect == nil {
		return nil
	}

	var errs []string
	add := func(err error) {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	if expect.Flushes != nil {
		add(assertCount(AssertFlushes, *expect.Flushes, result.Flushes))
	}
	if expect.ObserverErrors != nil {
		add(assertCount(AssertObserverErrors, *expect.ObserverErrors, result.ObserverErrors))
	}
	for _, d := range expect.Deliveries {
		add(assertDelivery(result.Deliveries, d))
	}
	if expect.Final != nil {
		add(assertFinal(result.Final, expect.Final))
	}
	return errs
}

func assertCount(kind string, expected, actual int) error {
	if expected == actual {
		return nil
	}
	return &AssertionError{
		Type:     kind,
		Expected: fmt.Sprintf("%d", expected),
		Actual:   fmt.Sprintf("%d", actual),
	}
}

// assertDelivery finds the observer's batch for the expected flush and
// matches it record by record.
func assertDelivery(trace []Delivery, expected DeliveryExpect) error {
	var found *Delivery
	for i := range trace {
		if trace[i].Observer == expected.Observer && trace[i].Flush == expected.Flush {
			found = &trace[i]
			break
		}
	}
	if found == nil {
		return &AssertionError{
			Type:     AssertDelivery,
			Expected: fmt.Sprintf("delivery to %s in flush %d", expected.Observer, expected.Flush),
			Actual:   "not delivered",
			Trace:    trace,
		}
	}

	if len(found.Records) != len(expected.Records) {
		return &AssertionError{
			Type:     AssertDelivery,
			Expected: fmt.Sprintf("%d records to %s in flush %d", len(expected.Records), expected.Observer, expected.Flush),
			Actual:   fmt.Sprintf("%d records", len(found.Records)),
			Trace:    []Delivery{*found},
		}
	}

	for i, want := range expected.Records {
		if mismatch := matchRecord(found.Records[i], want); mismatch != "" {
			return &AssertionError{
				Type:     AssertDelivery,
				Expected: fmt.Sprintf("%s flush %d record %d: %s", expected.Observer, expected.Flush, i, describeExpect(want)),
				Actual:   mismatch,
				Trace:    []Delivery{*found},
			}
		}
	}
	return nil
}

// matchRecord compares the fields want sets. It returns "" on a match and
// a description of the first difference otherwise.
func matchRecord(got RecordTrace, want RecordExpect) string {
	if string(got.Type) != want.Type {
		return fmt.Sprintf("type %s", got.Type)
	}
	if want.Path != nil {
		if p := change.ParsePath(*want.Path); !p.Equal(got.Path) {
			return fmt.Sprintf("path %q", got.Path.String())
		}
	}

	for _, field := range []struct {
		name string
		node *yaml.Node
		got  tree.Value
	}{
		{"value", &want.Value, got.Value},
		{"old_value", &want.OldValue, got.OldValue},
	} {
		exp, ok, err := nodeValue(field.node)
		if err != nil {
			return fmt.Sprintf("invalid expected %s: %v", field.name, err)
		}
		if ok && !sameTree(exp, field.got) {
			return fmt.Sprintf("%s %s", field.name, render(field.got))
		}
	}
	return ""
}

func assertFinal(final tree.Value, expected any) error {
	want, err := tree.FromAny(expected)
	if err != nil {
		return fmt.Errorf("Assertion failed: final\n  invalid expected tree: %v", err)
	}
	if sameTree(want, final) {
		return nil
	}
	return &AssertionError{
		Type:     AssertFinal,
		Expected: render(want),
		Actual:   render(final),
	}
}

// nodeValue decodes an expected value. ok is false when the field was
// omitted.
func nodeValue(n *yaml.Node) (tree.Value, bool, error) {
	if n.Kind == 0 {
		return nil, false, nil
	}
	var raw any
	if err := n.Decode(&raw); err != nil {
		return nil, false, err
	}
	v, err := tree.FromAny(raw)
	return v, err == nil, err
}

// sameTree compares two trees structurally through their canonical JSON.
// Ints and floats with the same value render the same.
func sameTree(a, b tree.Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ab, err := tree.MarshalCanonical(a)
	if err != nil {
		return false
	}
	bb, err := tree.MarshalCanonical(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

func render(v tree.Value) string {
	if v == nil {
		return "<absent>"
	}
	b, err := tree.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("<%s: %v>", v.Kind(), err)
	}
	return string(b)
}

func describeRecord(r RecordTrace) string {
	s := fmt.Sprintf("#%d %s %q", r.Seq, r.Type, r.Path.String())
	if r.Value != nil {
		s += " value=" + render(r.Value)
	}
	if r.OldValue != nil {
		s += " old=" + render(r.OldValue)
	}
	return s
}

func describeExpect(r RecordExpect) string {
	s := r.Type
	if r.Path != nil {
		s += fmt.Sprintf(" %q", *r.Path)
	}
	if v, ok, _ := nodeValue(&r.Value); ok {
		s += " value=" + render(v)
	}
	if v, ok, _ := nodeValue(&r.OldValue); ok {
		s += " old=" + render(v)
	}
	return s
}
