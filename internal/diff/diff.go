// Package diff turns a widget edit buffer into created, updated and deleted
// row sets against a snapshot.
//
// Calculate is pure: identical inputs always give identical output, and it
// owns nothing across calls.
package diff

import (
	"github.com/roach88/gridsync/internal/fault"
	"github.com/roach88/gridsync/internal/record"
)

// StateField tags display rows of an update pair.
const StateField = "state"

// Row states used in UpdatedRows.
const (
	StateOld = "old"
	StateNew = "new"
)

// Pair is one updated row before and after the edit.
type Pair struct {
	Position int           `json:"position"`
	Old      record.Record `json:"old"`
	New      record.Record `json:"new"`
}

// Result is the classified difference between a snapshot and an edit buffer.
type Result struct {
	Columns []string        `json:"columns"`
	Created []record.Record `json:"created"`
	Updated []Pair          `json:"updated"`
	Deleted []record.Record `json:"deleted"`
}

// Counts summarizes a result.
type Counts struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
}

// Empty reports whether there is nothing to persist.
func (r *Result) Empty() bool {
	return r == nil || (len(r.Created) == 0 && len(r.Updated) == 0 && len(r.Deleted) == 0)
}

// Counts returns the size of each set.
func (r *Result) Counts() Counts {
	if r == nil {
		return Counts{}
	}
	return Counts{Created: len(r.Created), Updated: len(r.Updated), Deleted: len(r.Deleted)}
}

// UpdatedRows returns the update pairs flattened for display: each old row
// followed by its new row, tagged in the state column.
func (r *Result) UpdatedRows() []record.Record {
	rows := make([]record.Record, 0, 2*len(r.Updated))
	for _, p := range r.Updated {
		rows = append(rows,
			p.Old.With(StateField, record.String(StateOld)),
			p.New.With(StateField, record.String(StateNew)),
		)
	}
	return rows
}

// NewRows returns the new side of every update pair.
func (r *Result) NewRows() []record.Record {
	rows := make([]record.Record, 0, len(r.Updated))
	for _, p := range r.Updated {
		rows = append(rows, p.New)
	}
	return rows
}

// DeletedIdentities returns the identity of each deleted row in order.
// ok is false if any deleted row lacks an identity.
func (r *Result) DeletedIdentities(field string) (ids []record.Value, ok bool) {
	ids = make([]record.Value, 0, len(r.Deleted))
	ok = true
	for _, row := range r.Deleted {
		id, has := row.Identity(field)
		if !has {
			ok = false
			continue
		}
		ids = append(ids, id)
	}
	return ids, ok
}

// Option configures Calculate.
type Option func(*options)

type options struct {
	identity string
}

// WithIdentity names the identity field. Defaults to "id".
func WithIdentity(field string) Option {
	return func(o *options) {
		o.identity = field
	}
}

// Calculate classifies buf against snap.
//
// Created partials are projected onto the snapshot's columns. Each edited
// position yields a pair unless the merged row equals the original. Deleted
// positions copy the snapshot row, first occurrence wins. Any position
// outside the snapshot fails the whole calculation. Edits never change an
// existing row's identity.
func Calculate(snap record.Snapshot, buf record.EditBuffer, opts ...Option) (*Result, error) {
	o := options{identity: record.DefaultIdentity}
	for _, opt := range opts {
		opt(&o)
	}

	res := &Result{
		Columns: snap.Columns,
		Created: make([]record.Record, 0, len(buf.Created)),
		Updated: make([]Pair, 0, len(buf.Updated)),
		Deleted: make([]record.Record, 0, len(buf.Deleted)),
	}

	for _, partial := range buf.Created {
		res.Created = append(res.Created, partial.Project(snap.Columns))
	}

	for _, pos := range buf.UpdatedPositions() {
		old, ok := snap.Row(pos)
		if !ok {
			return nil, fault.IndexOutOfRange("edited", pos, snap.Len())
		}
		before := old.Project(snap.Columns)
		merged := old.Overlay(buf.Updated[pos])
		if id, has := old.Identity(o.identity); has {
			merged[o.identity] = id
		}
		after := merged.Project(snap.Columns)
		if before.Equal(after) {
			continue
		}
		res.Updated = append(res.Updated, Pair{Position: pos, Old: before, New: after})
	}

	seen := make(map[int]struct{}, len(buf.Deleted))
	for _, pos := range buf.Deleted {
		row, ok := snap.Row(pos)
		if !ok {
			return nil, fault.IndexOutOfRange("deleted", pos, snap.Len())
		}
		if _, dup := seen[pos]; dup {
			continue
		}
		seen[pos] = struct{}{}
		res.Deleted = append(res.Deleted, row.Clone())
	}

	return res, nil
}
