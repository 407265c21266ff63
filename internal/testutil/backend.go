package testutil

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/gridsync/internal/fault"
	"github.com/roach88/gridsync/internal/record"
)

// Call records one request received by a FakeBackend.
type Call struct {
	Operation string          `json:"operation" yaml:"operation"`
	Rows      []record.Record `json:"rows,omitempty" yaml:"rows,omitempty"`
	IDs       []record.Value  `json:"ids,omitempty" yaml:"ids,omitempty"`
}

// FakeBackend is an in-memory stand-in for a dataset's REST backend.
//
// Created rows receive sequential identities after the highest existing
// one. Operations listed in failures return a backend error and change
// nothing.
//
// Thread-safety: FakeBackend is safe for concurrent use via internal mutex.
type FakeBackend struct {
	mu       sync.Mutex
	dataset  string
	identity string
	rows     []record.Record
	audit    map[string][]record.Record
	failures map[string]error
	calls    []Call
}

// NewFakeBackend creates a backend holding rows.
func NewFakeBackend(dataset, identity string, rows ...record.Record) *FakeBackend {
	if identity == "" {
		identity = record.DefaultIdentity
	}
	f := &FakeBackend{
		dataset:  dataset,
		identity: identity,
		audit:    make(map[string][]record.Record),
		failures: make(map[string]error),
	}
	for _, r := range rows {
		f.rows = append(f.rows, r.Clone())
	}
	return f
}

// FailWith makes operation ("fetch", "create", "update", "delete",
// "audit") return a backend error with the given status and message.
func (f *FakeBackend) FailWith(operation string, status int, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[operation] = fault.Backend(f.dataset, operation, status, message, nil)
}

// SetAudit stores the audit history returned for id.
func (f *FakeBackend) SetAudit(id record.Value, rows ...record.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audit[record.Text(id)] = rows
}

// Rows returns a copy of the stored rows.
func (f *FakeBackend) Rows() []record.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]record.Record, len(f.rows))
	for i, r := range f.rows {
		out[i] = r.Clone()
	}
	return out
}

// Calls returns the requests received so far.
func (f *FakeBackend) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// Fetch returns the stored rows, or a NoData error when there are none.
func (f *FakeBackend) Fetch(ctx context.Context) ([]record.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, Call{Operation: "fetch"})
	if err := f.failures["fetch"]; err != nil {
		return nil, err
	}
	if len(f.rows) == 0 {
		return nil, fault.NoData(f.dataset)
	}
	out := make([]record.Record, len(f.rows))
	for i, r := range f.rows {
		out[i] = r.Clone()
	}
	return out, nil
}

// FetchAudit returns the audit history for id.
func (f *FakeBackend) FetchAudit(ctx context.Context, id record.Value) ([]record.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, Call{Operation: "audit", IDs: []record.Value{id}})
	if err := f.failures["audit"]; err != nil {
		return nil, err
	}
	rows, ok := f.audit[record.Text(id)]
	if !ok || len(rows) == 0 {
		return nil, fault.NoData(f.dataset)
	}
	return slices.Clone(rows), nil
}

// Create appends rows, assigning identities to rows without one.
func (f *FakeBackend) Create(ctx context.Context, rows []record.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, Call{Operation: "create", Rows: cloneRows(rows)})
	if err := f.failures["create"]; err != nil {
		return err
	}
	next := f.maxIdentityLocked()
	for _, r := range rows {
		r = r.Clone()
		if _, ok := r.Identity(f.identity); !ok {
			next++
			r[f.identity] = record.Int(next)
		}
		f.rows = append(f.rows, r)
	}
	return nil
}

// Update replaces stored rows matched by identity.
func (f *FakeBackend) Update(ctx context.Context, rows []record.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, Call{Operation: "update", Rows: cloneRows(rows)})
	if err := f.failures["update"]; err != nil {
		return err
	}
	for _, r := range rows {
		id, ok := r.Identity(f.identity)
		if !ok {
			return fault.Backend(f.dataset, "update", 400, "row without "+f.identity, nil)
		}
		i := f.indexLocked(id)
		if i < 0 {
			return fault.Backend(f.dataset, "update", 404, fmt.Sprintf("no row with %s %s", f.identity, record.Text(id)), nil)
		}
		f.rows[i] = r.Clone()
	}
	return nil
}

// Delete removes stored rows by identity.
func (f *FakeBackend) Delete(ctx context.Context, ids []record.Value) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, Call{Operation: "delete", IDs: slices.Clone(ids)})
	if err := f.failures["delete"]; err != nil {
		return err
	}
	for _, id := range ids {
		if i := f.indexLocked(id); i >= 0 {
			f.rows = slices.Delete(f.rows, i, i+1)
		}
	}
	return nil
}

func (f *FakeBackend) indexLocked(id record.Value) int {
	return slices.IndexFunc(f.rows, func(r record.Record) bool {
		v, ok := r.Identity(f.identity)
		return ok && record.Equal(v, id)
	})
}

func (f *FakeBackend) maxIdentityLocked() int64 {
	var highest int64
	for _, r := range f.rows {
		v, _ := r.Identity(f.identity)
		if n, ok := v.(record.Int); ok && int64(n) > highest {
			highest = int64(n)
		}
	}
	return highest
}

func cloneRows(rows []record.Record) []record.Record {
	out := make([]record.Record, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}
