package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical(t *testing.T) {
	tests := []struct {
		name     string
		input    Value
		expected string
	}{
		{"null", Null{}, "null"},
		{"nil", nil, "null"},
		{"string", String("hello"), `"hello"`},
		{"int", Int(-100), "-100"},
		{"bool", Bool(false), "false"},
		{"empty array", Array{}, "[]"},
		{"empty object", Object{}, "{}"},
		{"sorted keys", Obj(O("b", Int(2)), O("a", Int(1))), `{"a":1,"b":2}`},
		{"nested", Obj(O("x", Array{Obj(O("y", Null{}))})), `{"x":[{"y":null}]}`},
		{"no html escape", String("<a&b>"), `"<a&b>"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(got))
		})
	}
}

func TestMarshalCanonical_LineSeparators(t *testing.T) {
	got, err := MarshalCanonical(String("a\u2028b\u2029c"))
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\u2029c\"", string(got))

	// A literal backslash followed by "u2028" text stays escaped.
	got, err = MarshalCanonical(String(`\u2028`))
	require.NoError(t, err)
	assert.Equal(t, `"\\u2028"`, string(got))
}

func TestMarshalCanonical_NFC(t *testing.T) {
	// "e" + combining acute accent normalizes to U+00E9.
	got, err := MarshalCanonical(String("e\u0301"))
	require.NoError(t, err)
	assert.Equal(t, "\"\u00e9\"", string(got))
}

func TestMustCanonical(t *testing.T) {
	assert.Equal(t, `{"k":"v"}`, MustCanonical(Obj(O("k", String("v")))))
}
