package store

// Outcome is how a reconciliation cycle ended.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeFailed    Outcome = "failed"
	OutcomeDiscarded Outcome = "discarded"
)

// Status is the result of one persistence batch within a cycle.
type Status string

const (
	StatusOK      Status = "ok"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Cycle is one journaled apply or discard.
type Cycle struct {
	ID                  string      `json:"id"`
	SessionID           string      `json:"session_id"`
	Dataset             string      `json:"dataset"`
	Seq                 int64       `json:"seq"`
	EditorKey           string      `json:"editor_key"`
	SnapshotFingerprint string      `json:"snapshot_fingerprint"`
	Outcome             Outcome     `json:"outcome"`
	Operations          []Operation `json:"operations"`
}

// Operation is one persistence batch of a cycle. Payload is the canonical
// JSON of the rows or identities the batch carried.
type Operation struct {
	Operation string `json:"operation"`
	Rows      int    `json:"rows"`
	Payload   string `json:"payload"`
	Status    Status `json:"status"`
	Message   string `json:"message,omitempty"`
}

// Filter narrows ReadCycles.
type Filter struct {
	// Dataset restricts to one dataset when non-empty.
	Dataset string

	// Limit keeps only the most recent cycles when positive.
	Limit int
}
