// Package harness runs YAML scenarios against the observation engine.
//
// A scenario builds a tree, registers named recording observers, applies a
// sequence of mutations through mediating nodes, and checks the batches
// each observer received and the final tree.
//
// # Scenario Format
//
//	name: nested_update
//	description: "Update below a nested map"
//	initial: { a: { b: 1 } }        # or initial_file: data.json|.yaml|.cue
//	observers:
//	  - name: all
//	  - name: a_only
//	    path_prefix: a              # or path / paths_of; types: [insert]
//	steps:
//	  - op: set
//	    path: a.b
//	    value: 2
//	  - op: turn
//	expect:
//	  flushes: 1
//	  deliveries:
//	    - observer: all
//	      flush: 1
//	      records:
//	        - { type: update, path: a.b, value: 2, old_value: 1 }
//	  final: { a: { b: 2 } }
//
// # Steps
//
//   - set, delete: write or remove the slot at path (delete on a list
//     element splices it out)
//   - push, pop, shift, unshift, splice, reverse, sort, rotate, clear:
//     list operations on the list at path
//   - turn, flush, drain: run one scheduler turn, flush the root
//     synchronously, or run turns until idle
//   - unobserve, revoke: remove one observer (or all), revoke the root
//
// A step may declare error: invalid_argument or error: revoked_access when
// it is expected to fail.
//
// # Deterministic Testing
//
// Every run uses a private scheduler loop and a sequential root ID
// generator, and values in the trace are copied at delivery time, so the
// same scenario always yields the same Snapshot. Golden snapshots live in
// golden/<scenario file>.golden for suites and testdata/golden for tests.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/nested.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, e := range result.Errors {
//	        log.Println(e)
//	    }
//	}
package harness
