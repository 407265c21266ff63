package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/gridsync/internal/record"
)

// TraceSnapshot captures the complete trace for a scenario execution.
// All fields use canonical JSON serialization for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Trace        []TraceEvent `json:"trace"`
}

// toCanonicalMap converts the snapshot to plain maps, omitting empty
// fields, since record.MarshalCanonical does not reflect over structs.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, ev := range s.Trace {
		m := map[string]any{
			"seq":   ev.Seq,
			"event": ev.Event,
		}
		if ev.Operation != "" {
			m["operation"] = ev.Operation
		}
		if ev.EditorKey != "" {
			m["editor_key"] = ev.EditorKey
		}
		if ev.Outcome != "" {
			m["outcome"] = ev.Outcome
		}
		if len(ev.Rows) > 0 {
			m["rows"] = ev.Rows
		}
		if len(ev.IDs) > 0 {
			m["ids"] = ev.IDs
		}
		if ev.Counts != nil {
			m["counts"] = map[string]any{
				"created": ev.Counts.Created,
				"updated": ev.Counts.Updated,
				"deleted": ev.Counts.Deleted,
			}
		}
		if len(ev.Failures) > 0 {
			failures := make([]any, len(ev.Failures))
			for j, f := range ev.Failures {
				failures[j] = map[string]any{
					"operation": string(f.Operation),
					"reason":    f.Reason,
				}
			}
			m["failures"] = failures
		}
		if len(ev.Statuses) > 0 {
			m["statuses"] = ev.Statuses
		}
		if ev.Error != "" {
			m["error"] = ev.Error
		}
		traceList[i] = m
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         traceList,
	}
}

// Golden returns the canonical trace bytes stored in a scenario's golden
// file.
func Golden(scenarioName string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Trace:        result.Trace,
	}
	return record.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can check assertions too. Test failure (via
// goldie) occurs if the trace doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	traceJSON, err := Golden(scenario.Name, result)
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, traceJSON)

	return result, nil
}
