package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/gridsync/internal/record"
)

// AppendCycle journals c. Seq and ID are assigned here and written back to
// the returned cycle; any values set by the caller are ignored.
func (s *Store) AppendCycle(ctx context.Context, c Cycle) (Cycle, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Cycle{}, fmt.Errorf("append cycle: begin: %w", err)
	}
	defer tx.Rollback()

	seq, err := nextSeq(ctx, tx)
	if err != nil {
		return Cycle{}, fmt.Errorf("append cycle: %w", err)
	}
	id, err := record.CycleID(c.SessionID, c.Dataset, c.EditorKey, seq)
	if err != nil {
		return Cycle{}, fmt.Errorf("append cycle: %w", err)
	}
	c.Seq = seq
	c.ID = id

	_, err = tx.ExecContext(ctx, `
		INSERT INTO cycles
		(id, session_id, dataset, seq, editor_key, snapshot_fingerprint, outcome)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		c.ID,
		c.SessionID,
		c.Dataset,
		c.Seq,
		c.EditorKey,
		c.SnapshotFingerprint,
		string(c.Outcome),
	)
	if err != nil {
		return Cycle{}, fmt.Errorf("append cycle: %w", err)
	}

	for _, op := range c.Operations {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO cycle_operations
			(cycle_id, operation, row_count, payload, status, message)
			VALUES (?, ?, ?, ?, ?, ?)
		`,
			c.ID,
			op.Operation,
			op.Rows,
			op.Payload,
			string(op.Status),
			op.Message,
		)
		if err != nil {
			return Cycle{}, fmt.Errorf("append cycle operation %s: %w", op.Operation, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Cycle{}, fmt.Errorf("append cycle: commit: %w", err)
	}
	return c, nil
}

func nextSeq(ctx context.Context, tx *sql.Tx) (int64, error) {
	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM cycles`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("next seq: %w", err)
	}
	return seq, nil
}

// Payload renders rows or identities as canonical JSON for an Operation.
func Payload(v any) (string, error) {
	b, err := record.MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("payload: %w", err)
	}
	return string(b), nil
}
