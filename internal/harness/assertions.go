package harness

import (
	"fmt"
	"slices"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes the trace to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, ev := range e.Trace {
		switch ev.Event {
		case EventBackend:
			fmt.Fprintf(&buf, "  [%d] backend %s\n", ev.Seq, ev.Operation)
		case EventJournal:
			fmt.Fprintf(&buf, "  [%d] journal %s %v\n", ev.Seq, ev.Outcome, ev.Statuses)
		default:
			fmt.Fprintf(&buf, "  [%d] %s %s\n", ev.Seq, ev.Event, ev.EditorKey)
		}
	}

	return buf.String()
}

// EvaluateAssertions checks every assertion and returns the failure
// messages. Nil means all passed.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for _, a := range assertions {
		if err := evaluate(result, a); err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertDiffCounts:
		return assertDiffCounts(result, a)
	case AssertOutcome:
		if result.Outcome != a.Outcome {
			return mismatch(result, a.Type, a.Outcome, result.Outcome)
		}
	case AssertKeyRotated:
		rotated := result.KeyBefore != result.KeyAfter
		if rotated != *a.Expect {
			return mismatch(result, a.Type,
				fmt.Sprintf("rotated=%t", *a.Expect),
				fmt.Sprintf("rotated=%t (%s -> %s)", rotated, result.KeyBefore, result.KeyAfter))
		}
	case AssertSnapshotCleared:
		if result.SnapshotCleared != *a.Expect {
			return mismatch(result, a.Type,
				fmt.Sprintf("cleared=%t", *a.Expect),
				fmt.Sprintf("cleared=%t", result.SnapshotCleared))
		}
	case AssertFailedOperations:
		return assertFailedOperations(result, a)
	case AssertBackendRows:
		if len(result.BackendRows) != *a.Count {
			return mismatch(result, a.Type,
				fmt.Sprintf("%d rows", *a.Count),
				fmt.Sprintf("%d rows", len(result.BackendRows)))
		}
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
	return nil
}

func assertDiffCounts(result *Result, a Assertion) error {
	c := result.Counts
	if c.Created == a.Created && c.Updated == a.Updated && c.Deleted == a.Deleted {
		return nil
	}
	return mismatch(result, a.Type,
		fmt.Sprintf("created=%d updated=%d deleted=%d", a.Created, a.Updated, a.Deleted),
		fmt.Sprintf("created=%d updated=%d deleted=%d", c.Created, c.Updated, c.Deleted))
}

// assertFailedOperations compares as sets; order is not significant.
func assertFailedOperations(result *Result, a Assertion) error {
	want := slices.Clone(a.Operations)
	got := slices.Clone(result.FailedOperations)
	slices.Sort(want)
	slices.Sort(got)
	if slices.Equal(want, got) {
		return nil
	}
	return mismatch(result, a.Type, fmt.Sprintf("%v", want), fmt.Sprintf("%v", got))
}

func mismatch(result *Result, typ, expected, actual string) *AssertionError {
	return &AssertionError{
		Type:     typ,
		Expected: expected,
		Actual:   actual,
		Trace:    result.Trace,
	}
}
