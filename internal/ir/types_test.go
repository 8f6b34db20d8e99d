package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnapshot_Valid(t *testing.T) {
	assert.True(t, NewSnapshot("k", Int(1)).Valid())
	assert.False(t, NewSnapshot("", Int(1)).Valid())
}

func TestSnapshot_Child(t *testing.T) {
	s := NewSnapshot("m1", Obj(
		O("ts", Int(5)),
		O("author", Obj(O("name", String("ada")))),
	))

	assert.Equal(t, Int(5), s.Child("ts"))
	assert.Equal(t, String("ada"), s.Child("author/name"))
	assert.Equal(t, Null{}, s.Child("missing"))
	assert.Equal(t, Null{}, s.Child("ts/deeper"))
	assert.Equal(t, s.Value, s.Child(""))
}

func TestSnapshot_Exists(t *testing.T) {
	assert.True(t, NewSnapshot("k", String("v")).Exists())
	assert.False(t, NewSnapshot("k", nil).Exists())
}

func TestCompare(t *testing.T) {
	ordered := []Value{Null{}, Bool(false), Bool(true), Int(-1), Int(3), String("a"), String("b"), Obj()}
	for i := 0; i < len(ordered)-1; i++ {
		assert.Equal(t, -1, Compare(ordered[i], ordered[i+1]), "index %d", i)
		assert.Equal(t, 1, Compare(ordered[i+1], ordered[i]), "index %d", i)
	}
	assert.Equal(t, 0, Compare(Int(2), Int(2)))
	assert.Equal(t, 0, Compare(Obj(O("a", Int(1))), Array{}))
}
