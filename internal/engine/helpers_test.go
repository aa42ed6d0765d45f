package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/shadow/internal/change"
	"github.com/roach88/shadow/internal/sched"
	"github.com/roach88/shadow/internal/testutil"
	"github.com/roach88/shadow/internal/tree"
)

// newObservedMap creates a root on a private loop with one catch-all
// recorder attached.
func newObservedMap(t *testing.T, raw *tree.Map, opts ...Option) (*Root, *sched.Loop, *testutil.Recorder) {
	t.Helper()
	loop := sched.New()
	r, err := From(raw, append([]Option{WithScheduler(loop)}, opts...)...)
	require.NoError(t, err)

	rec := testutil.NewRecorder("all")
	require.NoError(t, r.Observe(rec))
	return r, loop, rec
}

func rootMap(t *testing.T, r *Root) *MapNode {
	t.Helper()
	m, err := r.Map()
	require.NoError(t, err)
	return m
}

// captureErrors installs an error handler for the duration of the test.
func captureErrors(t *testing.T) *errorSink {
	t.Helper()
	sink := &errorSink{}
	prev := SetErrorHandler(sink.handle)
	t.Cleanup(func() { SetErrorHandler(prev) })
	return sink
}

type errorSink struct {
	mu   sync.Mutex
	errs []error
}

func (s *errorSink) handle(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, err)
}

func (s *errorSink) Errors() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.errs...)
}

// canonical renders a raw value as canonical JSON for comparisons.
func canonical(t *testing.T, v tree.Value) string {
	t.Helper()
	b, err := tree.MarshalCanonical(tree.Unwrap(v))
	require.NoError(t, err)
	return string(b)
}

// summarize renders records compactly for order assertions.
func summarize(records []change.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.String()
	}
	return out
}

type fakeMetrics struct {
	records  map[change.Type]int
	flushes  []int
	failures int
	created  int
	released int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{records: make(map[change.Type]int)}
}

func (f *fakeMetrics) RecordEmitted(t change.Type) { f.records[t]++ }
func (f *fakeMetrics) Flushed(n int)               { f.flushes = append(f.flushes, n) }
func (f *fakeMetrics) ObserverFailed()             { f.failures++ }
func (f *fakeMetrics) RootCreated()                { f.created++ }
func (f *fakeMetrics) RootReleased()               { f.released++ }
