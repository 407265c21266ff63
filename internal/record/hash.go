package record

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainSnapshot = "gridsync/snapshot/v1"
	DomainCycle    = "gridsync/cycle/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint returns a content hash of the snapshot. Two snapshots with the
// same columns and rows in the same order share a fingerprint.
func (s Snapshot) Fingerprint() (string, error) {
	canonical, err := MarshalCanonical(s)
	if err != nil {
		return "", fmt.Errorf("Fingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSnapshot, canonical), nil
}

// CycleID computes the content-addressed ID of one reconciliation cycle.
func CycleID(sessionID, dataset, editorKey string, seq int64) (string, error) {
	canonical, err := MarshalCanonical(map[string]any{
		"session_id": sessionID,
		"dataset":    dataset,
		"editor_key": editorKey,
		"seq":        seq,
	})
	if err != nil {
		return "", fmt.Errorf("CycleID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainCycle, canonical), nil
}
