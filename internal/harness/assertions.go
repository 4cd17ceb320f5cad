package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/flowledger/internal/ledger"
)

// AssertionError is returned when an assertion fails.
// It includes the trace to help debug the failure.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] entity=%d %s events=%d\n", event.Batch, event.Entity, event.Outcome, len(event.Events))
		}
	}
	return buf.String()
}

// AssertionContext provides ledger access for state assertions.
type AssertionContext struct {
	Ledger *ledger.Ledger
	Ctx    context.Context
}

func assertExponent(actx *AssertionContext, trace []TraceEvent, a Assertion) error {
	got, err := actx.Ledger.Exponent(actx.Ctx, a.Entity, a.Prime)
	if err != nil {
		return fmt.Errorf("exponent(%d, %d): %w", a.Entity, a.Prime, err)
	}
	if got != *a.Value {
		return &AssertionError{
			Type:     AssertExponent,
			Expected: fmt.Sprintf("factors[%d:%d] = %d", a.Entity, a.Prime, *a.Value),
			Actual:   fmt.Sprintf("%d", got),
			Trace:    trace,
		}
	}
	return nil
}

func assertPosting(actx *AssertionContext, trace []TraceEvent, a Assertion) error {
	postings, err := actx.Ledger.Postings(actx.Ctx, a.Prime)
	if err != nil {
		return fmt.Errorf("postings(%d): %w", a.Prime, err)
	}
	for _, p := range postings {
		if p.Entity != a.Entity {
			continue
		}
		if p.Exponent != *a.Value {
			return &AssertionError{
				Type:     AssertPosting,
				Expected: fmt.Sprintf("postings[%d:%d] = %d", a.Prime, a.Entity, *a.Value),
				Actual:   fmt.Sprintf("%d", p.Exponent),
				Trace:    trace,
			}
		}
		return nil
	}
	return &AssertionError{
		Type:     AssertPosting,
		Expected: fmt.Sprintf("postings[%d:%d] = %d", a.Prime, a.Entity, *a.Value),
		Actual:   "not found",
		Trace:    trace,
	}
}

func assertNoEntry(actx *AssertionContext, trace []TraceEvent, a Assertion) error {
	factors, err := actx.Ledger.Factors(actx.Ctx, a.Entity)
	if err != nil {
		return fmt.Errorf("factors(%d): %w", a.Entity, err)
	}
	for _, f := range factors {
		if f.Prime == a.Prime {
			return &AssertionError{
				Type:     AssertNoEntry,
				Expected: fmt.Sprintf("no factors[%d:%d]", a.Entity, a.Prime),
				Actual:   fmt.Sprintf("%d", f.Exponent),
				Trace:    trace,
			}
		}
	}
	return nil
}

func assertCount(kind string, got, want int, trace []TraceEvent) error {
	if got != want {
		return &AssertionError{
			Type:     kind,
			Expected: fmt.Sprintf("%d", want),
			Actual:   fmt.Sprintf("%d", got),
			Trace:    trace,
		}
	}
	return nil
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, a := range assertions {
		var err error

		switch a.Type {
		case AssertExponent:
			err = assertExponent(actx, result.Trace, a)
		case AssertPosting:
			err = assertPosting(actx, result.Trace, a)
		case AssertNoEntry:
			err = assertNoEntry(actx, result.Trace, a)
		case AssertEventCount:
			err = assertCount(AssertEventCount, len(result.Log), *a.Count, result.Trace)
		case AssertCentroidFlips:
			flips := 0
			for _, ev := range result.Log {
				if ev.ViaCentroid {
					flips++
				}
			}
			err = assertCount(AssertCentroidFlips, flips, *a.Count, result.Trace)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}
	return errors
}
