package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/roach88/livelist/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Diff     string       // Inline diff of expected vs actual, if useful
	Trace    []TraceEntry // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if e.Diff != "" {
		fmt.Fprintf(&buf, "  Diff: %s\n", e.Diff)
	}

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, entry := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s loading=%t keys=%v", entry.Seq, entry.Token, entry.Loading, entry.Keys)
			if entry.Error != "" {
				fmt.Fprintf(&buf, " error=%q", entry.Error)
			}
			buf.WriteByte('\n')
		}
	}

	return buf.String()
}

// assertKeys checks the exact published key order.
func assertKeys(state State, trace []TraceEntry, a Assertion) error {
	want := a.Keys
	if want == nil {
		want = []string{}
	}
	if slices.Equal(want, state.Keys) {
		return nil
	}
	return &AssertionError{
		Type:     AssertKeys,
		Expected: fmt.Sprintf("%v", want),
		Actual:   fmt.Sprintf("%v", state.Keys),
		Diff:     keyDiff(want, state.Keys),
		Trace:    trace,
	}
}

func assertLoading(state State, trace []TraceEntry, a Assertion) error {
	if state.Loading == *a.Loading {
		return nil
	}
	return &AssertionError{
		Type:     AssertLoading,
		Expected: fmt.Sprintf("loading=%t", *a.Loading),
		Actual:   fmt.Sprintf("loading=%t", state.Loading),
		Trace:    trace,
	}
}

func assertError(state State, trace []TraceEntry, a Assertion) error {
	if state.Error == *a.Error {
		return nil
	}
	return &AssertionError{
		Type:     AssertError,
		Expected: describeError(*a.Error),
		Actual:   describeError(state.Error),
		Trace:    trace,
	}
}

func assertCount(state State, trace []TraceEntry, a Assertion) error {
	if len(state.Keys) == *a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertCount,
		Expected: fmt.Sprintf("%d records", *a.Count),
		Actual:   fmt.Sprintf("%d records %v", len(state.Keys), state.Keys),
		Trace:    trace,
	}
}

// assertPublished checks how many snapshots had been published.
func assertPublished(state State, trace []TraceEntry, a Assertion) error {
	if state.Published == *a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertPublished,
		Expected: fmt.Sprintf("%d snapshots published", *a.Count),
		Actual:   fmt.Sprintf("%d snapshots published", state.Published),
		Trace:    trace,
	}
}

// assertValue checks one record's value.
func assertValue(state State, trace []TraceEntry, a Assertion) error {
	want, err := ir.FromGo(a.Value)
	if err != nil {
		return fmt.Errorf("value assertion for %q: %w", a.Key, err)
	}

	for _, item := range state.Items {
		if item.Key != a.Key {
			continue
		}
		if ir.Equal(want, item.Value) {
			return nil
		}
		wantJSON := ir.MustCanonical(want)
		gotJSON := ir.MustCanonical(item.Value)
		return &AssertionError{
			Type:     AssertValue,
			Expected: fmt.Sprintf("%s = %s", a.Key, wantJSON),
			Actual:   fmt.Sprintf("%s = %s", a.Key, gotJSON),
			Diff:     InlineDiff(wantJSON, gotJSON),
			Trace:    trace,
		}
	}

	return &AssertionError{
		Type:     AssertValue,
		Expected: fmt.Sprintf("record %q present", a.Key),
		Actual:   fmt.Sprintf("not found in %v", state.Keys),
		Trace:    trace,
	}
}

// EvaluateAssertions evaluates all assertions against state.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(state State, trace []TraceEntry, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertKeys:
			err = assertKeys(state, trace, assertion)
		case AssertLoading:
			err = assertLoading(state, trace, assertion)
		case AssertError:
			err = assertError(state, trace, assertion)
		case AssertCount:
			err = assertCount(state, trace, assertion)
		case AssertPublished:
			err = assertPublished(state, trace, assertion)
		case AssertValue:
			err = assertValue(state, trace, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

// keyDiff renders the difference between two key lists, one key per token.
func keyDiff(want, got []string) string {
	return InlineDiff(strings.Join(want, " "), strings.Join(got, " "))
}

// InlineDiff renders a character diff as text with [-removed-] and {+added+}
// markers.
func InlineDiff(want, got string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(want, got, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var buf strings.Builder
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			buf.WriteString(d.Text)
		case diffmatchpatch.DiffDelete:
			buf.WriteString("[-" + d.Text + "-]")
		case diffmatchpatch.DiffInsert:
			buf.WriteString("{+" + d.Text + "+}")
		}
	}
	return buf.String()
}

func describeError(msg string) string {
	if msg == "" {
		return "no error"
	}
	return fmt.Sprintf("error %q", msg)
}
