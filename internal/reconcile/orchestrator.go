package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/gridsync/internal/dataset"
	"github.com/roach88/gridsync/internal/diff"
	"github.com/roach88/gridsync/internal/fault"
	"github.com/roach88/gridsync/internal/persist"
	"github.com/roach88/gridsync/internal/record"
	"github.com/roach88/gridsync/internal/session"
	"github.com/roach88/gridsync/internal/store"
)

// State is the orchestrator's position in the cycle state machine.
type State int

const (
	// Idle has no staged diff.
	Idle State = iota

	// DiffComputed holds a staged diff awaiting Apply or Discard.
	DiffComputed

	// Applying is persisting the staged diff.
	Applying
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case DiffComputed:
		return "diff_computed"
	case Applying:
		return "applying"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

var (
	// ErrNoStagedDiff is returned by Apply and Discard outside DiffComputed.
	ErrNoStagedDiff = errors.New("no staged diff")

	// ErrBusy is returned when a cycle starts while an apply is in flight.
	ErrBusy = errors.New("apply in progress")
)

// Fetcher reads a dataset's rows from its backend.
type Fetcher interface {
	Fetch(ctx context.Context) ([]record.Record, error)
	FetchAudit(ctx context.Context, id record.Value) ([]record.Record, error)
}

// Persister issues a diff to the backend.
type Persister interface {
	Persist(ctx context.Context, d *diff.Result) persist.Results
}

// Journal records finished cycles.
type Journal interface {
	AppendCycle(ctx context.Context, c store.Cycle) (store.Cycle, error)
}

// Preview is a staged diff as presented before Apply or Discard.
type Preview struct {
	Dataset   string       `json:"dataset"`
	EditorKey string       `json:"editor_key"`
	Counts    diff.Counts  `json:"counts"`
	Diff      *diff.Result `json:"diff"`
}

// Failure names one failed persistence batch.
type Failure struct {
	Operation persist.Operation `json:"operation"`
	Reason    string            `json:"reason"`
}

// String names the batch and its reason, e.g. "Updated failed: 500 Server Error: boom".
func (f Failure) String() string {
	return fmt.Sprintf("%s failed: %s", operationLabel(f.Operation), f.Reason)
}

// ApplyError reports which batches of an apply failed. The staged edits
// have already been discarded when it is returned.
type ApplyError struct {
	Dataset  string
	Failures []Failure
	Results  persist.Results
}

// Error implements the error interface.
func (e *ApplyError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = f.String()
	}
	return fmt.Sprintf("apply %s: %s", e.Dataset, strings.Join(parts, "; "))
}

// Unwrap returns the underlying batch errors.
func (e *ApplyError) Unwrap() []error {
	var errs []error
	for _, r := range e.Results.Failed() {
		errs = append(errs, r.Err)
	}
	return errs
}

func operationLabel(op persist.Operation) string {
	switch op {
	case persist.OpCreate:
		return "Created"
	case persist.OpUpdate:
		return "Updated"
	case persist.OpDelete:
		return "Deleted"
	}
	return string(op)
}

// Outcome summarizes an Apply.
type Outcome struct {
	Dataset   string          `json:"dataset"`
	Applied   bool            `json:"applied"`
	Counts    diff.Counts     `json:"counts"`
	Failures  []Failure       `json:"failures,omitempty"`
	EditorKey string          `json:"editor_key"`
	Results   persist.Results `json:"-"`
}

// Orchestrator drives one dataset's edit cycles within one session.
//
// It is not safe for concurrent use; a session drives one orchestrator per
// dataset at a time.
type Orchestrator struct {
	dataset *dataset.Dataset
	session *session.Store
	fetcher Fetcher
	persist Persister
	journal Journal
	logger  *slog.Logger

	state     State
	staged    *diff.Result
	stagedKey session.Key
	stagedFP  string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithJournal records every Apply and Discard to j.
func WithJournal(j Journal) Option {
	return func(o *Orchestrator) {
		o.journal = j
	}
}

// WithLogger sets the orchestrator logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// New creates an orchestrator for d over the session's store.
func New(d *dataset.Dataset, s *session.Store, f Fetcher, p Persister, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		dataset: d,
		session: s,
		fetcher: f,
		persist: p,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns the current state.
func (o *Orchestrator) State() State {
	return o.state
}

// Staged returns the staged diff, or nil when Idle.
func (o *Orchestrator) Staged() *diff.Result {
	return o.staged
}

// EditorKey returns the key the widget must render its buffer under.
func (o *Orchestrator) EditorKey() session.Key {
	return o.session.Key(o.dataset.Name, session.EditorData)
}

// Load returns the dataset snapshot, fetching it when the session holds
// none. An empty backend yields an empty snapshot over the dataset's
// columns, which is not cached so the next load fetches again.
func (o *Orchestrator) Load(ctx context.Context) (record.Snapshot, error) {
	if snap, ok := o.session.Snapshot(o.dataset.Name); ok {
		return snap, nil
	}

	rows, err := o.fetcher.Fetch(ctx)
	if fault.IsNoData(err) {
		o.logger.InfoContext(ctx, "dataset empty, starting from blank table",
			"dataset", o.dataset.Name,
		)
		return record.NewSnapshot(o.dataset.Fields(), nil), nil
	}
	if err != nil {
		return record.Snapshot{}, fmt.Errorf("load %s: %w", o.dataset.Name, err)
	}

	snap := record.NewSnapshot(o.dataset.Fields(), rows)
	snap.SortByIdentity(o.dataset.Identity)
	o.session.SetSnapshot(o.dataset.Name, snap)

	o.logger.DebugContext(ctx, "snapshot fetched",
		"dataset", o.dataset.Name,
		"rows", snap.Len(),
	)
	return snap, nil
}

// Cycle processes one user interaction: it diffs the widget's buffer
// against the snapshot and stages the result. It returns nil when there is
// nothing to preview.
//
// A buffer addressing rows outside the snapshot is discarded (the editor
// key is rotated) and the IndexOutOfRange error returned.
func (o *Orchestrator) Cycle(ctx context.Context) (*Preview, error) {
	if o.state == Applying {
		return nil, ErrBusy
	}

	snap, err := o.Load(ctx)
	if err != nil {
		return nil, err
	}

	key := o.session.Key(o.dataset.Name, session.EditorData)
	buf := o.session.Buffer(o.dataset.Name)

	res, err := diff.Calculate(snap, buf, diff.WithIdentity(o.dataset.Identity))
	if err != nil {
		o.logger.ErrorContext(ctx, "edit buffer does not match snapshot, discarding edits",
			"dataset", o.dataset.Name,
			"editor_key", key.String(),
			"error", err,
		)
		o.reset()
		o.session.RotateKey(o.dataset.Name, session.EditorData)
		return nil, err
	}

	if res.Empty() {
		o.reset()
		return nil, nil
	}

	fp, err := snap.Fingerprint()
	if err != nil {
		return nil, fmt.Errorf("cycle %s: %w", o.dataset.Name, err)
	}

	o.state = DiffComputed
	o.staged = res
	o.stagedKey = key
	o.stagedFP = fp

	o.logger.DebugContext(ctx, "diff staged",
		"dataset", o.dataset.Name,
		"editor_key", key.String(),
		"created", len(res.Created),
		"updated", len(res.Updated),
		"deleted", len(res.Deleted),
	)

	return &Preview{
		Dataset:   o.dataset.Name,
		EditorKey: key.String(),
		Counts:    res.Counts(),
		Diff:      res,
	}, nil
}

// Discard drops the staged diff and rotates the editor key so the widget
// forgets its buffer.
func (o *Orchestrator) Discard(ctx context.Context) error {
	if o.state != DiffComputed {
		return ErrNoStagedDiff
	}

	staged, key, fp := o.staged, o.stagedKey, o.stagedFP
	o.reset()
	newKey := o.session.RotateKey(o.dataset.Name, session.EditorData)

	o.logger.InfoContext(ctx, "edits discarded",
		"dataset", o.dataset.Name,
		"editor_key", newKey.String(),
	)
	o.record(ctx, key, fp, store.OutcomeDiscarded, staged, persist.Results{})
	return nil
}

// Apply persists the staged diff.
//
// On success the editor key is rotated and the snapshot cleared so the next
// cycle refetches. If any batch fails the staged edits are discarded as by
// Discard and an *ApplyError naming the failed batches is returned. If some
// batches did succeed the snapshot is cleared too, since the backend has
// changed underneath it.
func (o *Orchestrator) Apply(ctx context.Context) (*Outcome, error) {
	if o.state != DiffComputed {
		return nil, ErrNoStagedDiff
	}

	staged, key, fp := o.staged, o.stagedKey, o.stagedFP
	o.state = Applying

	o.logger.InfoContext(ctx, "applying edits",
		"dataset", o.dataset.Name,
		"editor_key", key.String(),
		"created", len(staged.Created),
		"updated", len(staged.Updated),
		"deleted", len(staged.Deleted),
	)

	results := o.persist.Persist(ctx, staged)

	o.reset()
	newKey := o.session.RotateKey(o.dataset.Name, session.EditorData)

	out := &Outcome{
		Dataset:   o.dataset.Name,
		Counts:    staged.Counts(),
		EditorKey: newKey.String(),
		Results:   results,
	}

	if results.OK() {
		o.session.Clear(o.dataset.Name, session.TableData)
		out.Applied = true

		o.logger.InfoContext(ctx, "edits applied",
			"dataset", o.dataset.Name,
			"editor_key", newKey.String(),
		)
		o.record(ctx, key, fp, store.OutcomeApplied, staged, results)
		return out, nil
	}

	failed := results.Failed()
	if len(failed) < len(results.All()) {
		o.session.Clear(o.dataset.Name, session.TableData)
	}
	for _, r := range failed {
		out.Failures = append(out.Failures, Failure{Operation: r.Operation, Reason: r.Reason()})
	}

	o.logger.ErrorContext(ctx, "apply failed, edits discarded",
		"dataset", o.dataset.Name,
		"editor_key", newKey.String(),
		"failed", len(failed),
	)
	o.record(ctx, key, fp, store.OutcomeFailed, staged, results)

	return out, &ApplyError{Dataset: o.dataset.Name, Failures: out.Failures, Results: results}
}

// Audit fetches the version history of the row with identity id and caches
// it under the session's AuditData key.
func (o *Orchestrator) Audit(ctx context.Context, id record.Value) (record.Snapshot, error) {
	rows, err := o.fetcher.FetchAudit(ctx, id)
	if fault.IsNoData(err) {
		rows = nil
	} else if err != nil {
		return record.Snapshot{}, fmt.Errorf("audit %s %s: %w", o.dataset.Name, record.Text(id), err)
	}

	snap := record.NewSnapshot(o.dataset.AuditFields(), rows)
	o.session.RotateKey(o.dataset.Name, session.AuditData)
	o.session.Put(o.dataset.Name, session.AuditData, snap)
	return snap, nil
}

func (o *Orchestrator) reset() {
	o.state = Idle
	o.staged = nil
	o.stagedKey = session.Key{}
	o.stagedFP = ""
}

// record journals a finished cycle. Journal failures are logged and do not
// change the cycle's outcome.
func (o *Orchestrator) record(ctx context.Context, key session.Key, fp string, outcome store.Outcome, staged *diff.Result, results persist.Results) {
	if o.journal == nil {
		return
	}

	c := store.Cycle{
		SessionID:           o.session.ID(),
		Dataset:             o.dataset.Name,
		EditorKey:           key.String(),
		SnapshotFingerprint: fp,
		Outcome:             outcome,
	}

	payloads := map[persist.Operation]any{
		persist.OpCreate: staged.Created,
		persist.OpUpdate: staged.NewRows(),
	}
	ids, _ := staged.DeletedIdentities(o.dataset.Identity)
	payloads[persist.OpDelete] = ids

	issued := map[persist.Operation]*persist.Result{}
	for _, r := range results.All() {
		issued[r.Operation] = r
	}
	counts := staged.Counts()
	rows := map[persist.Operation]int{
		persist.OpCreate: counts.Created,
		persist.OpUpdate: counts.Updated,
		persist.OpDelete: counts.Deleted,
	}

	for _, op := range persist.Operations {
		if rows[op] == 0 {
			continue
		}
		payload, err := store.Payload(payloads[op])
		if err != nil {
			o.logger.WarnContext(ctx, "journal payload failed", "operation", op, "error", err)
			payload = "null"
		}
		entry := store.Operation{Operation: string(op), Rows: rows[op], Payload: payload, Status: store.StatusSkipped}
		if r, ok := issued[op]; ok {
			entry.Status = store.StatusOK
			if !r.OK() {
				entry.Status = store.StatusFailed
				entry.Message = r.Reason()
			}
		}
		c.Operations = append(c.Operations, entry)
	}

	written, err := o.journal.AppendCycle(ctx, c)
	if err != nil {
		o.logger.WarnContext(ctx, "journal write failed",
			"dataset", o.dataset.Name,
			"error", err,
		)
		return
	}
	o.logger.DebugContext(ctx, "cycle journaled",
		"dataset", o.dataset.Name,
		"cycle_id", written.ID,
		"seq", written.Seq,
	)
}
