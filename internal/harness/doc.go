// Package harness runs edit-cycle scenarios against a real Orchestrator.
//
// A scenario describes the backend's starting rows, the edit buffer the
// grid widget hands back, and what the user does with the preview. The
// harness drives one cycle through reconcile.Orchestrator over an in-memory
// fake backend and an in-memory journal, records a trace of every backend
// call and orchestrator step, and evaluates the scenario's assertions.
//
// # Scenario Format
//
//	name: update_title
//	description: "Editing a title sends one update batch"
//	dataset: movies
//	rows:
//	  - { id: 1, title: "A", year: 2000 }
//	buffer:
//	  edited_rows:
//	    0: { title: "A2" }
//	action: apply            # none | apply | discard
//	failures:
//	  - { operation: update, status: 500, message: "boom" }
//	assertions:
//	  - { type: diff_counts, updated: 1 }
//	  - { type: outcome, outcome: failed }
//	  - { type: key_rotated, expect: true }
//	  - { type: snapshot_cleared, expect: false }
//	  - { type: failed_operations, operations: [update] }
//	  - { type: backend_rows, count: 1 }
//
// # Deterministic Testing
//
// Session keys come from testutil.NewSession, so every run of a scenario
// produces the same editor keys and a byte-identical trace. RunWithGolden
// compares that trace with testdata/golden/<name>.golden:
//
//	go test ./internal/harness -update
package harness
