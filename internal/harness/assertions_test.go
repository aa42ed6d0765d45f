package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/roach88/shadow/internal/change"
	"github.com/roach88/shadow/internal/tree"
)

func recordExpect(t *testing.T, src string) RecordExpect {
	t.Helper()
	var r RecordExpect
	require.NoError(t, yaml.Unmarshal([]byte(src), &r))
	return r
}

func TestMatchRecord(t *testing.T) {
	update := RecordTrace{
		Type:     change.Update,
		Path:     change.PathOf("a", 0),
		Value:    tree.MapOf(tree.P("n", tree.Int(2))),
		OldValue: tree.Int(1),
		Seq:      4,
	}
	del := RecordTrace{Type: change.Delete, Path: change.PathOf("a"), OldValue: tree.String("x")}

	tests := []struct {
		name     string
		got      RecordTrace
		want     string
		mismatch string
	}{
		{"type only", update, `{type: update}`, ""},
		{"full match", update, `{type: update, path: a.0, value: {n: 2}, old_value: 1}`, ""},
		{"float equals int", update, `{type: update, old_value: 1.0}`, ""},
		{"wrong type", update, `{type: insert}`, "type update"},
		{"wrong path", update, `{type: update, path: a.1}`, `path "a.0"`},
		{"wrong value", update, `{type: update, value: {n: 3}}`, `value {"n":2}`},
		{"wrong old value", update, `{type: update, old_value: 2}`, "old_value 1"},
		{"omitted value is not checked", del, `{type: delete, old_value: x}`, ""},
		{"explicit null is checked", del, `{type: delete, value: null}`, "value <absent>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.mismatch, matchRecord(tt.got, recordExpect(t, tt.want)))
		})
	}
}

func TestAssertDelivery(t *testing.T) {
	trace := []Delivery{
		{Observer: "all", Flush: 1, Records: []RecordTrace{{Type: change.Insert, Path: change.PathOf("a"), Value: tree.Int(1), Seq: 1}}},
		{Observer: "all", Flush: 2, Records: []RecordTrace{{Type: change.Delete, Path: change.PathOf("a"), OldValue: tree.Int(1), Seq: 2}}},
	}

	ok := DeliveryExpect{Observer: "all", Flush: 2, Records: []RecordExpect{{Type: "delete"}}}
	assert.NoError(t, assertDelivery(trace, ok))

	missing := DeliveryExpect{Observer: "all", Flush: 3}
	err := assertDelivery(trace, missing)
	require.Error(t, err)
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertDelivery, ae.Type)
	assert.Equal(t, "not delivered", ae.Actual)
	assert.Len(t, ae.Trace, 2, "the whole trace is attached for context")

	count := DeliveryExpect{Observer: "all", Flush: 1, Records: []RecordExpect{{Type: "insert"}, {Type: "insert"}}}
	err = assertDelivery(trace, count)
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "1 records", ae.Actual)
}

func TestAssertFinal(t *testing.T) {
	final := tree.MapOf(tree.P("a", tree.NewList(tree.Int(1), tree.Float(2.5))))

	assert.NoError(t, assertFinal(final, map[string]any{"a": []any{1, 2.5}}))

	err := assertFinal(final, map[string]any{"a": []any{1}})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, `{"a":[1]}`, ae.Expected)
	assert.Equal(t, `{"a":[1,2.5]}`, ae.Actual)

	err = assertFinal(final, struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid expected tree")
}

func TestEvaluateExpect_NilExpectChecksNothing(t *testing.T) {
	r := NewResult()
	r.Flushes = 7
	assert.Empty(t, EvaluateExpect(r, nil))
	assert.Empty(t, EvaluateExpect(r, &Expect{}))
}

func TestAssertionError_ErrorFormat(t *testing.T) {
	err := &AssertionError{
		Type:     AssertDelivery,
		Expected: "1 records to all in flush 1",
		Actual:   "2 records",
		Trace: []Delivery{{
			Observer: "all",
			Flush:    1,
			Records: []RecordTrace{
				{Type: change.Insert, Path: change.PathOf("a"), Value: tree.Int(1), Seq: 1},
				{Type: change.Update, Path: change.PathOf("a"), Value: tree.Int(2), OldValue: tree.Int(1), Seq: 2},
			},
		}},
	}

	want := "Assertion failed: delivery\n" +
		"  Expected: 1 records to all in flush 1\n" +
		"  Actual: 2 records\n" +
		"\nDeliveries:\n" +
		"  [flush 1] all\n" +
		"    #1 insert \"a\" value=1\n" +
		"    #2 update \"a\" value=2 old=1\n"
	assert.Equal(t, want, err.Error())
}

func TestSameTree(t *testing.T) {
	shared := tree.NewList(tree.Int(1))
	a := tree.MapOf(tree.P("x", shared), tree.P("y", shared))
	b := tree.MapOf(tree.P("x", tree.NewList(tree.Int(1))), tree.P("y", tree.NewList(tree.Float(1))))

	assert.True(t, sameTree(a, b), "structure matters, identity does not")
	assert.True(t, sameTree(nil, nil))
	assert.False(t, sameTree(tree.Null{}, nil))
	assert.False(t, sameTree(tree.String("1"), tree.Int(1)))
}
