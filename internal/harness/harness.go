package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/gridsync/internal/dataset"
	"github.com/roach88/gridsync/internal/fault"
	"github.com/roach88/gridsync/internal/persist"
	"github.com/roach88/gridsync/internal/reconcile"
	"github.com/roach88/gridsync/internal/record"
	"github.com/roach88/gridsync/internal/session"
	"github.com/roach88/gridsync/internal/store"
	"github.com/roach88/gridsync/internal/testutil"
)

// Harness is the scenario execution environment: one session, one fake
// backend and one in-memory journal.
type Harness struct {
	dataset *dataset.Dataset
	session *session.Store
	backend *testutil.FakeBackend
	journal *store.Store
	orch    *reconcile.Orchestrator

	// calls is how many backend calls have already been traced.
	calls int
}

// Run executes a scenario against the builtin datasets.
//
// Each scenario runs against a fresh backend, session and in-memory journal.
//
// Execution flow:
// 1. Seed the fake backend and script its failures
// 2. Write the buffer under the current editor key
// 3. Cycle, then apply or discard as the scenario says
// 4. Evaluate assertions against the result
func Run(scenario *Scenario) (*Result, error) {
	return RunWith(dataset.Builtin(), scenario)
}

// RunWith executes a scenario resolving its dataset in reg.
func RunWith(reg *dataset.Registry, scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	h, err := newHarness(reg, scenario)
	if err != nil {
		return nil, err
	}
	defer h.journal.Close()

	buf, err := scenario.Buffer.EditBuffer()
	if err != nil {
		return nil, fmt.Errorf("buffer: %w", err)
	}

	result := NewResult()
	before := h.orch.EditorKey()
	result.KeyBefore = before.String()
	if err := h.session.WriteBuffer(before, buf); err != nil {
		return nil, fmt.Errorf("failed to write buffer: %w", err)
	}

	staged := h.cycle(ctx, result)
	if staged {
		switch scenario.Action {
		case ActionApply:
			if err := h.apply(ctx, result); err != nil {
				return nil, err
			}
		case ActionDiscard:
			if err := h.discard(ctx, result); err != nil {
				return nil, err
			}
		}
	}

	if err := h.finish(ctx, result); err != nil {
		return nil, err
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func newHarness(reg *dataset.Registry, scenario *Scenario) (*Harness, error) {
	d, err := reg.Lookup(scenario.Dataset)
	if err != nil {
		return nil, err
	}

	rows := make([]record.Record, 0, len(scenario.Rows))
	for i, m := range scenario.Rows {
		r, err := record.FromMap(m)
		if err != nil {
			return nil, fmt.Errorf("rows[%d]: %w", i, err)
		}
		rows = append(rows, r)
	}

	journal, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory journal: %w", err)
	}

	sessionID := scenario.SessionID
	if sessionID == "" {
		sessionID = "scenario"
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	be := testutil.NewFakeBackend(d.Name, d.Identity, rows...)
	for _, f := range scenario.Failures {
		be.FailWith(f.Operation, f.Status, f.Message)
	}

	s := testutil.NewSession(sessionID)
	gw := persist.NewGateway(be, d.Identity, persist.WithLogger(logger))

	return &Harness{
		dataset: d,
		session: s,
		backend: be,
		journal: journal,
		orch: reconcile.New(d, s, be, gw,
			reconcile.WithJournal(journal),
			reconcile.WithLogger(logger),
		),
	}, nil
}

// cycle runs one Cycle and reports whether a diff was staged.
func (h *Harness) cycle(ctx context.Context, result *Result) bool {
	preview, err := h.orch.Cycle(ctx)
	h.traceCalls(result)

	ev := TraceEvent{Event: EventCycle, EditorKey: result.KeyBefore}
	switch {
	case err != nil:
		ev.Error = errorCode(err)
		result.Outcome = OutcomeRejected
	case preview == nil:
		result.Outcome = OutcomeEmpty
		ev.Counts = &result.Counts
	default:
		result.Outcome = OutcomeStaged
		result.Counts = preview.Counts
		ev.Counts = &preview.Counts
	}
	result.addEvent(ev)
	return err == nil && preview != nil
}

func (h *Harness) apply(ctx context.Context, result *Result) error {
	out, err := h.orch.Apply(ctx)
	h.traceCalls(result)

	var ae *reconcile.ApplyError
	switch {
	case err == nil:
		result.Outcome = OutcomeApplied
	case errors.As(err, &ae):
		result.Outcome = OutcomeFailed
		for _, f := range ae.Failures {
			result.FailedOperations = append(result.FailedOperations, string(f.Operation))
		}
	default:
		return fmt.Errorf("apply: %w", err)
	}

	result.addEvent(TraceEvent{
		Event:     EventApply,
		EditorKey: out.EditorKey,
		Outcome:   result.Outcome,
		Failures:  out.Failures,
	})
	return nil
}

func (h *Harness) discard(ctx context.Context, result *Result) error {
	if err := h.orch.Discard(ctx); err != nil {
		return fmt.Errorf("discard: %w", err)
	}
	result.Outcome = OutcomeDiscarded
	result.addEvent(TraceEvent{
		Event:     EventDiscard,
		EditorKey: h.orch.EditorKey().String(),
	})
	return nil
}

// finish captures end state: the editor key, the snapshot, backend rows and
// the journal.
func (h *Harness) finish(ctx context.Context, result *Result) error {
	result.KeyAfter = h.orch.EditorKey().String()
	_, cached := h.session.Snapshot(h.dataset.Name)
	result.SnapshotCleared = !cached
	result.BackendRows = h.backend.Rows()

	cycles, err := h.journal.ReadCycles(ctx, store.Filter{})
	if err != nil {
		return fmt.Errorf("failed to read journal: %w", err)
	}
	result.Journal = cycles
	for _, c := range cycles {
		ev := TraceEvent{Event: EventJournal, Outcome: string(c.Outcome)}
		for _, op := range c.Operations {
			ev.Statuses = append(ev.Statuses, op.Operation+":"+string(op.Status))
		}
		result.addEvent(ev)
	}
	return nil
}

// traceCalls appends backend calls made since the last trace.
func (h *Harness) traceCalls(result *Result) {
	calls := h.backend.Calls()
	for _, c := range calls[h.calls:] {
		result.addEvent(TraceEvent{
			Event:     EventBackend,
			Operation: c.Operation,
			Rows:      c.Rows,
			IDs:       c.IDs,
		})
	}
	h.calls = len(calls)
}

func errorCode(err error) string {
	if code := fault.CodeOf(err); code != "" {
		return string(code)
	}
	return err.Error()
}
