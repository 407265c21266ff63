package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a cycle ID is not in the journal.
var ErrNotFound = errors.New("cycle not found")

// ReadCycles returns journaled cycles ordered by seq ASC, id ASC.
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) ReadCycles(ctx context.Context, f Filter) ([]Cycle, error) {
	query := `
		SELECT id, session_id, dataset, seq, editor_key, snapshot_fingerprint, outcome
		FROM cycles
		WHERE (? = '' OR dataset = ?)
		ORDER BY seq DESC, id COLLATE BINARY DESC
	`
	args := []any{f.Dataset, f.Dataset}
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT * FROM (`+query+`)
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("query cycles: %w", err)
	}
	defer rows.Close()

	cycles := []Cycle{}
	for rows.Next() {
		c, err := scanCycle(rows)
		if err != nil {
			return nil, err
		}
		cycles = append(cycles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cycles: %w", err)
	}
	// Release the single connection before querying operations.
	rows.Close()

	for i := range cycles {
		ops, err := s.readOperations(ctx, cycles[i].ID)
		if err != nil {
			return nil, err
		}
		cycles[i].Operations = ops
	}
	return cycles, nil
}

// ReadCycle returns one cycle by ID.
func (s *Store) ReadCycle(ctx context.Context, id string) (Cycle, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, dataset, seq, editor_key, snapshot_fingerprint, outcome
		FROM cycles
		WHERE id = ?
	`, id)
	c, err := scanCycle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Cycle{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Cycle{}, err
	}
	c.Operations, err = s.readOperations(ctx, id)
	if err != nil {
		return Cycle{}, err
	}
	return c, nil
}

// readOperations returns a cycle's batches in create, update, delete order.
func (s *Store) readOperations(ctx context.Context, cycleID string) ([]Operation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT operation, row_count, payload, status, message
		FROM cycle_operations
		WHERE cycle_id = ?
		ORDER BY CASE operation WHEN 'create' THEN 0 WHEN 'update' THEN 1 ELSE 2 END
	`, cycleID)
	if err != nil {
		return nil, fmt.Errorf("query operations: %w", err)
	}
	defer rows.Close()

	ops := []Operation{}
	for rows.Next() {
		var op Operation
		var status string
		if err := rows.Scan(&op.Operation, &op.Rows, &op.Payload, &status, &op.Message); err != nil {
			return nil, fmt.Errorf("scan operation: %w", err)
		}
		op.Status = Status(status)
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate operations: %w", err)
	}
	return ops, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCycle(row scanner) (Cycle, error) {
	var c Cycle
	var outcome string
	err := row.Scan(&c.ID, &c.SessionID, &c.Dataset, &c.Seq, &c.EditorKey, &c.SnapshotFingerprint, &outcome)
	if errors.Is(err, sql.ErrNoRows) {
		return Cycle{}, err
	}
	if err != nil {
		return Cycle{}, fmt.Errorf("scan cycle: %w", err)
	}
	c.Outcome = Outcome(outcome)
	return c, nil
}
