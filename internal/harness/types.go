package harness

import (
	"github.com/roach88/gridsync/internal/diff"
	"github.com/roach88/gridsync/internal/reconcile"
	"github.com/roach88/gridsync/internal/record"
	"github.com/roach88/gridsync/internal/store"
)

// Trace event kinds.
const (
	EventBackend = "backend"
	EventCycle   = "cycle"
	EventApply   = "apply"
	EventDiscard = "discard"
	EventJournal = "journal"
)

// Outcomes a scenario can end in.
const (
	OutcomeEmpty     = "empty"
	OutcomeStaged    = "staged"
	OutcomeRejected  = "rejected"
	OutcomeApplied   = "applied"
	OutcomeFailed    = "failed"
	OutcomeDiscarded = "discarded"
)

// TraceEvent is one step of a scenario run. Only the fields relevant to the
// event kind are set.
type TraceEvent struct {
	Seq       int64               `json:"seq"`
	Event     string              `json:"event"`
	Operation string              `json:"operation,omitempty"`
	EditorKey string              `json:"editor_key,omitempty"`
	Outcome   string              `json:"outcome,omitempty"`
	Rows      []record.Record     `json:"rows,omitempty"`
	IDs       []record.Value      `json:"ids,omitempty"`
	Counts    *diff.Counts        `json:"counts,omitempty"`
	Failures  []reconcile.Failure `json:"failures,omitempty"`
	Statuses  []string            `json:"statuses,omitempty"`
	Error     string              `json:"error,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	Trace  []TraceEvent `json:"trace"`
	Errors []string     `json:"errors,omitempty"`

	Outcome          string          `json:"outcome"`
	Counts           diff.Counts     `json:"counts"`
	KeyBefore        string          `json:"key_before"`
	KeyAfter         string          `json:"key_after"`
	SnapshotCleared  bool            `json:"snapshot_cleared"`
	FailedOperations []string        `json:"failed_operations,omitempty"`
	BackendRows      []record.Record `json:"backend_rows"`
	Journal          []store.Cycle   `json:"journal,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:        true,
		Trace:       []TraceEvent{},
		Errors:      []string{},
		BackendRows: []record.Record{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) addEvent(ev TraceEvent) {
	ev.Seq = int64(len(r.Trace) + 1)
	r.Trace = append(r.Trace, ev)
}
