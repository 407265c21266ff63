// Package store provides the SQLite-backed apply journal for gridsync.
//
// Every reconciliation cycle that ends in apply or discard is appended as
// one cycles row plus one cycle_operations row per persistence batch. The
// journal is local bookkeeping: the backend remains the source of truth.
//
// # Ordering
//
//   - seq is a logical clock, assigned inside the write transaction
//   - All reads ORDER BY seq ASC, id ASC COLLATE BINARY
//   - Cycle IDs are content addressed via record.CycleID
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
