package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/gridsync/internal/record"
)

// Scenario defines one edit cycle to run and check.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Dataset is a registered dataset name, e.g. "movies".
	Dataset string `yaml:"dataset"`

	// SessionID defaults to "scenario".
	SessionID string `yaml:"session_id,omitempty"`

	// Rows are the backend's rows before the cycle. None means the backend
	// reports no data.
	Rows []map[string]any `yaml:"rows,omitempty"`

	// Buffer is the widget's edit buffer, addressed by snapshot position.
	Buffer BufferSpec `yaml:"buffer"`

	// Action is what the user does with the preview: none, apply or
	// discard. Defaults to none.
	Action string `yaml:"action,omitempty"`

	// Failures script backend errors per operation.
	Failures []FailureSpec `yaml:"failures,omitempty"`

	Assertions []Assertion `yaml:"assertions"`
}

// BufferSpec mirrors the widget's edit buffer in YAML.
type BufferSpec struct {
	Created []map[string]any       `yaml:"added_rows,omitempty"`
	Updated map[int]map[string]any `yaml:"edited_rows,omitempty"`
	Deleted []int                  `yaml:"deleted_rows,omitempty"`
}

// FailureSpec makes one backend operation fail.
type FailureSpec struct {
	Operation string `yaml:"operation"`
	Status    int    `yaml:"status"`
	Message   string `yaml:"message"`
}

// Assertion checks one property of the run.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Created, Updated and Deleted are the expected sizes (diff_counts).
	Created int `yaml:"created,omitempty"`
	Updated int `yaml:"updated,omitempty"`
	Deleted int `yaml:"deleted,omitempty"`

	// Outcome is the expected outcome (outcome).
	Outcome string `yaml:"outcome,omitempty"`

	// Expect is the expected flag (key_rotated, snapshot_cleared).
	Expect *bool `yaml:"expect,omitempty"`

	// Operations lists the operations expected to fail (failed_operations).
	Operations []string `yaml:"operations,omitempty"`

	// Count is the expected number of backend rows afterwards (backend_rows).
	Count *int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertDiffCounts       = "diff_counts"
	AssertOutcome          = "outcome"
	AssertKeyRotated       = "key_rotated"
	AssertSnapshotCleared  = "snapshot_cleared"
	AssertFailedOperations = "failed_operations"
	AssertBackendRows      = "backend_rows"
)

// Scenario actions.
const (
	ActionNone    = "none"
	ActionApply   = "apply"
	ActionDiscard = "discard"
)

var (
	validActions     = []string{ActionNone, ActionApply, ActionDiscard}
	validOutcomes    = []string{OutcomeEmpty, OutcomeStaged, OutcomeRejected, OutcomeApplied, OutcomeFailed, OutcomeDiscarded}
	failureOperation = []string{"fetch", "create", "update", "delete", "audit"}
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Reject unknown fields so "assertion:" vs "assertions:" typos surface.
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Action == "" {
		scenario.Action = ActionNone
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// FindScenarios returns the .yaml and .yml files under dir whose base name
// matches filter (a glob; empty matches all), in lexical order.
func FindScenarios(dir, filter string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

// EditBuffer converts the YAML buffer into a record.EditBuffer.
func (b BufferSpec) EditBuffer() (record.EditBuffer, error) {
	var buf record.EditBuffer
	for i, m := range b.Created {
		r, err := record.FromMap(m)
		if err != nil {
			return record.EditBuffer{}, fmt.Errorf("added_rows[%d]: %w", i, err)
		}
		buf.Created = append(buf.Created, r)
	}
	if len(b.Updated) > 0 {
		buf.Updated = make(map[int]record.Record, len(b.Updated))
		for pos, m := range b.Updated {
			r, err := record.FromMap(m)
			if err != nil {
				return record.EditBuffer{}, fmt.Errorf("edited_rows[%d]: %w", pos, err)
			}
			buf.Updated[pos] = r
		}
	}
	buf.Deleted = slices.Clone(b.Deleted)
	return buf, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Dataset == "" {
		return fmt.Errorf("dataset is required")
	}
	if !slices.Contains(validActions, s.Action) {
		return fmt.Errorf("action %q: must be one of %v", s.Action, validActions)
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, f := range s.Failures {
		if !slices.Contains(failureOperation, f.Operation) {
			return fmt.Errorf("failures[%d]: unknown operation %q", i, f.Operation)
		}
		if f.Status < 400 || f.Status > 599 {
			return fmt.Errorf("failures[%d]: status must be 4xx or 5xx, got %d", i, f.Status)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertDiffCounts:
		if a.Created < 0 || a.Updated < 0 || a.Deleted < 0 {
			return fmt.Errorf("assertions[%d]: counts must be non-negative", index)
		}
	case AssertOutcome:
		if !slices.Contains(validOutcomes, a.Outcome) {
			return fmt.Errorf("assertions[%d]: outcome %q: must be one of %v", index, a.Outcome, validOutcomes)
		}
	case AssertKeyRotated, AssertSnapshotCleared:
		if a.Expect == nil {
			return fmt.Errorf("assertions[%d]: expect is required for %s", index, a.Type)
		}
	case AssertFailedOperations:
		// An empty list asserts that nothing failed.
	case AssertBackendRows:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for backend_rows", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
