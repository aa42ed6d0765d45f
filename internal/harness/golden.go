package harness

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/shadow/internal/tree"
)

// Snapshot renders a result as canonical JSON for golden comparison.
//
// Layout (keys sorted canonically):
//
//	{"deliveries":[{"flush":1,"observer":"all","records":[
//	    {"old_value":1,"path":"a.b","seq":1,"type":"update","value":2}]}],
//	 "final":{...},"flushes":1,"observer_errors":0,"scenario":"name"}
//
// Paths render in dotted notation; absent values are omitted.
func Snapshot(name string, result *Result) ([]byte, error) {
	deliveries := tree.NewList()
	for _, d := range result.Deliveries {
		records := tree.NewList()
		for _, r := range d.Records {
			rec := tree.MapOf(
				tree.P("type", tree.String(r.Type)),
				tree.P("path", tree.String(r.Path.String())),
				tree.P("seq", tree.Int(r.Seq)),
			)
			if r.Value != nil {
				rec.Set("value", r.Value)
			}
			if r.OldValue != nil {
				rec.Set("old_value", r.OldValue)
			}
			records.Append(rec)
		}
		deliveries.Append(tree.MapOf(
			tree.P("observer", tree.String(d.Observer)),
			tree.P("flush", tree.Int(d.Flush)),
			tree.P("records", records),
		))
	}

	snapshot := tree.MapOf(
		tree.P("scenario", tree.String(name)),
		tree.P("deliveries", deliveries),
		tree.P("flushes", tree.Int(result.Flushes)),
		tree.P("observer_errors", tree.Int(result.ObserverErrors)),
	)
	if result.Final != nil {
		snapshot.Set("final", result.Final)
	}

	data, err := tree.MarshalCanonical(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return data, nil
}

// GoldenPath returns the golden file that belongs to a scenario file:
// golden/<base name>.golden next to the scenario.
func GoldenPath(scenarioFile string) string {
	dir := filepath.Dir(scenarioFile)
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "golden", name+".golden")
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result, or an error if the scenario could not be executed.
// A snapshot mismatch fails the test through goldie.
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(scenario, opts...)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := Snapshot(name, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
