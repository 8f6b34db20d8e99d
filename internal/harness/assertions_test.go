package harness

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/livelist/internal/ir"
	"github.com/roach88/livelist/internal/testutil"
)

func ptr[T any](v T) *T { return &v }

func testState() State {
	items := []ir.Snapshot{
		testutil.Snap("a", map[string]any{"n": 1}),
		testutil.Snap("b", 2),
	}
	return State{
		Seq:       3,
		Token:     "sub-1",
		Keys:      testutil.Keys(items),
		Items:     items,
		Published: 3,
	}
}

func TestEvaluateAssertions_Pass(t *testing.T) {
	errs := EvaluateAssertions(testState(), nil, []Assertion{
		{Type: AssertKeys, Keys: []string{"a", "b"}},
		{Type: AssertLoading, Loading: ptr(false)},
		{Type: AssertError, Error: ptr("")},
		{Type: AssertCount, Count: ptr(2)},
		{Type: AssertPublished, Count: ptr(3)},
		{Type: AssertValue, Key: "a", Value: map[string]any{"n": 1}},
		{Type: AssertValue, Key: "b", Value: 2},
	})

	assert.Empty(t, errs)
}

func TestEvaluateAssertions_Failures(t *testing.T) {
	trace := []TraceEntry{{Seq: 1, Token: "sub-1", Loading: true, Keys: []string{}}}

	tests := []struct {
		name      string
		assertion Assertion
		contains  []string
	}{
		{
			name:      "keys",
			assertion: Assertion{Type: AssertKeys, Keys: []string{"b", "a"}},
			contains:  []string{"Assertion failed: keys", "Expected: [b a]", "Actual: [a b]", "Diff:", "[1] sub-1 loading=true"},
		},
		{
			name:      "empty keys",
			assertion: Assertion{Type: AssertKeys},
			contains:  []string{"Expected: []"},
		},
		{
			name:      "loading",
			assertion: Assertion{Type: AssertLoading, Loading: ptr(true)},
			contains:  []string{"Expected: loading=true", "Actual: loading=false"},
		},
		{
			name:      "error",
			assertion: Assertion{Type: AssertError, Error: ptr("denied")},
			contains:  []string{`Expected: error "denied"`, "Actual: no error"},
		},
		{
			name:      "count",
			assertion: Assertion{Type: AssertCount, Count: ptr(5)},
			contains:  []string{"Expected: 5 records", "Actual: 2 records"},
		},
		{
			name:      "published",
			assertion: Assertion{Type: AssertPublished, Count: ptr(9)},
			contains:  []string{"9 snapshots published"},
		},
		{
			name:      "value mismatch",
			assertion: Assertion{Type: AssertValue, Key: "a", Value: map[string]any{"n": 2}},
			contains:  []string{`Expected: a = {"n":2}`, `Actual: a = {"n":1}`, "[-2-]{+1+}"},
		},
		{
			name:      "value missing",
			assertion: Assertion{Type: AssertValue, Key: "zz", Value: 1},
			contains:  []string{`record "zz" present`},
		},
		{
			name:      "value not representable",
			assertion: Assertion{Type: AssertValue, Key: "a", Value: 1.5},
			contains:  []string{"floats are not supported"},
		},
		{
			name:      "unknown type",
			assertion: Assertion{Type: "nope"},
			contains:  []string{`unknown assertion type "nope"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := EvaluateAssertions(testState(), trace, []Assertion{tt.assertion})
			require.Len(t, errs, 1)
			for _, want := range tt.contains {
				assert.Contains(t, errs[0], want)
			}
		})
	}
}

func TestInlineDiff(t *testing.T) {
	assert.Equal(t, "a b", InlineDiff("a b", "a b"))
	assert.Equal(t, "a b{+ c+}", InlineDiff("a b", "a b c"))
	assert.Equal(t, "a[- b-]", InlineDiff("a b", "a"))
}

func TestKeyDiff(t *testing.T) {
	diff := keyDiff([]string{"m1", "m2"}, []string{"m1", "m3"})

	assert.True(t, strings.HasPrefix(diff, "m1 m"))
	assert.Contains(t, diff, "[-2-]")
	assert.Contains(t, diff, "{+3+}")
}
