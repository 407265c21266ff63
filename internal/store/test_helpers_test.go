package store

import (
	"path/filepath"
	"testing"
)

// createTestStore opens a journal in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestCycle creates a cycle with one successful create batch.
func createTestCycle(sessionID, dataset, editorKey string, outcome Outcome) Cycle {
	return Cycle{
		SessionID:           sessionID,
		Dataset:             dataset,
		EditorKey:           editorKey,
		SnapshotFingerprint: "fp-" + dataset,
		Outcome:             outcome,
		Operations: []Operation{
			{Operation: "create", Rows: 1, Payload: `[{"title":"C"}]`, Status: StatusOK},
		},
	}
}
