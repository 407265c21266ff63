// Package persist issues a diff to a backend as create, update and delete
// batches and reports a result per operation.
package persist

import (
	"context"
	"errors"
	"log/slog"

	"github.com/roach88/gridsync/internal/diff"
	"github.com/roach88/gridsync/internal/fault"
	"github.com/roach88/gridsync/internal/record"
)

// Operation names a persistence batch.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Operations lists the batches in the order they are issued.
var Operations = []Operation{OpCreate, OpUpdate, OpDelete}

// Backend accepts batches for one dataset.
type Backend interface {
	Create(ctx context.Context, rows []record.Record) error
	Update(ctx context.Context, rows []record.Record) error
	Delete(ctx context.Context, ids []record.Value) error
}

// Result is the outcome of one issued batch.
type Result struct {
	Operation Operation
	Rows      int
	Err       error
}

// OK reports whether the batch succeeded.
func (r *Result) OK() bool {
	return r.Err == nil
}

// Reason returns the failure message as shown to users.
func (r *Result) Reason() string {
	if r.Err == nil {
		return ""
	}
	var fe *fault.Error
	if errors.As(r.Err, &fe) {
		return fe.Reason()
	}
	return fault.DisplayMessage(r.Err.Error())
}

// Results holds one Result per non-empty operation; empty operations are nil.
type Results struct {
	Created *Result
	Updated *Result
	Deleted *Result
}

// All returns the issued results in operation order.
func (rs Results) All() []*Result {
	out := make([]*Result, 0, 3)
	for _, r := range []*Result{rs.Created, rs.Updated, rs.Deleted} {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

// OK reports whether every issued batch succeeded. No batches is success.
func (rs Results) OK() bool {
	return len(rs.Failed()) == 0
}

// Failed returns the failed results in operation order.
func (rs Results) Failed() []*Result {
	var out []*Result
	for _, r := range rs.All() {
		if !r.OK() {
			out = append(out, r)
		}
	}
	return out
}

// Gateway issues diffs to a Backend.
type Gateway struct {
	backend  Backend
	identity string
	logger   *slog.Logger
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithLogger sets the gateway logger.
func WithLogger(l *slog.Logger) GatewayOption {
	return func(g *Gateway) {
		g.logger = l
	}
}

// NewGateway creates a gateway over backend. identity names the field
// whose values are sent in delete batches.
func NewGateway(backend Backend, identity string, opts ...GatewayOption) *Gateway {
	if identity == "" {
		identity = record.DefaultIdentity
	}
	g := &Gateway{
		backend:  backend,
		identity: identity,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Persist issues the created, updated and deleted batches in that order.
// Every non-empty batch is issued even if an earlier one failed; nothing is
// retried.
func (g *Gateway) Persist(ctx context.Context, d *diff.Result) Results {
	var rs Results
	if d.Empty() {
		return rs
	}

	if len(d.Created) > 0 {
		rs.Created = g.issue(ctx, OpCreate, len(d.Created), func() error {
			return g.backend.Create(ctx, d.Created)
		})
	}

	if len(d.Updated) > 0 {
		rows := d.NewRows()
		rs.Updated = g.issue(ctx, OpUpdate, len(rows), func() error {
			return g.backend.Update(ctx, rows)
		})
	}

	if len(d.Deleted) > 0 {
		ids, ok := d.DeletedIdentities(g.identity)
		rs.Deleted = g.issue(ctx, OpDelete, len(d.Deleted), func() error {
			if !ok {
				return errors.New("deleted row has no " + g.identity)
			}
			return g.backend.Delete(ctx, ids)
		})
	}

	return rs
}

func (g *Gateway) issue(ctx context.Context, op Operation, rows int, call func() error) *Result {
	err := call()
	if err != nil {
		g.logger.ErrorContext(ctx, "batch failed",
			"operation", op,
			"rows", rows,
			"error", err,
		)
	} else {
		g.logger.DebugContext(ctx, "batch persisted",
			"operation", op,
			"rows", rows,
		)
	}
	return &Result{Operation: op, Rows: rows, Err: err}
}
