// Package reconcile drives the edit cycle for one dataset within a session.
//
// An Orchestrator moves through three states:
//
//	Idle ──Cycle (non-empty diff)──▶ DiffComputed ──Apply──▶ Applying ──▶ Idle
//	                                      │
//	                                      └──Discard──▶ Idle
//
// Each Cycle call is one user interaction: the widget's edit buffer is read
// from the session, diffed against the cached snapshot, and staged. Apply
// persists the staged diff through a Persister; Discard drops it. Both end
// by rotating the session's EditorData key so the widget forgets the edits
// it rendered. A successful Apply also clears the cached snapshot, forcing
// the next Cycle to refetch.
//
// If any persistence batch fails, Apply behaves as Discard and returns an
// *ApplyError naming the failed batches.
package reconcile
