package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"
	"unicode/utf16"
)

// Value is a sealed interface over the JSON-shaped value types a feed may
// deliver. Only Null, String, Int, Bool, Array and Object implement it.
type Value interface {
	irValue()
}

// Null is the explicit null value.
type Null struct{}

func (Null) irValue() {}

// String is a string value.
type String string

func (String) irValue() {}

// Int is an integer value. Always int64, never float64.
type Int int64

func (Int) irValue() {}

// Bool is a boolean value.
type Bool bool

func (Bool) irValue() {}

// Array is an ordered list of values.
type Array []Value

func (Array) irValue() {}

// Object maps string keys to values. Use SortedKeys for deterministic iteration.
type Object map[string]Value

func (Object) irValue() {}

// Pair is a key-value pair for Object construction.
type Pair struct {
	Key   string
	Value Value
}

// O is a shorthand for Pair.
// Example: Obj(O("text", String("hi")), O("ts", Int(3)))
func O(key string, value Value) Pair {
	return Pair{Key: key, Value: value}
}

// Obj builds an Object from pairs. Later pairs win on duplicate keys.
func Obj(pairs ...Pair) Object {
	obj := make(Object, len(pairs))
	for _, p := range pairs {
		obj[p.Key] = p.Value
	}
	return obj
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)
	return keys
}

// Clone returns a shallow copy of obj. Nested values are shared.
func (obj Object) Clone() Object {
	out := make(Object, len(obj)+1)
	for k, v := range obj {
		out[k] = v
	}
	return out
}

// compareUTF16 orders strings by UTF-16 code units.
// Go's native string comparison is by UTF-8 bytes, which differs above U+FFFF.
func compareUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}

// FromGo converts decoded Go data (from YAML, JSON or hand-built literals)
// into a Value. Integral floats are accepted as Int; fractional floats are not.
func FromGo(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("integer out of int64 range: %d", val)
		}
		return Int(val), nil
	case float64:
		if val != math.Trunc(val) || math.IsInf(val, 0) || val > math.MaxInt64 || val < math.MinInt64 {
			return nil, fmt.Errorf("floats are not supported: %v", val)
		}
		return Int(int64(val)), nil
	case json.Number:
		s := val.String()
		if strings.ContainsAny(s, ".eE") {
			return nil, fmt.Errorf("floats are not supported: %s", s)
		}
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("integer out of int64 range: %s", s)
		}
		return Int(n), nil
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			conv, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = conv
		}
		return arr, nil
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			conv, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			obj[k] = conv
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// ToGo converts a Value back into plain Go data (map[string]any, []any,
// string, int64, bool, nil). Used for JSON output.
func ToGo(v Value) any {
	switch val := v.(type) {
	case String:
		return string(val)
	case Int:
		return int64(val)
	case Bool:
		return bool(val)
	case Array:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = ToGo(elem)
		}
		return out
	case Object:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = ToGo(elem)
		}
		return out
	default:
		return nil
	}
}

// Parse decodes JSON into a Value. Floats are rejected.
func Parse(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return FromGo(raw)
}

// Equal reports whether a and b are deeply equal.
// A nil Value is equal to Null.
func Equal(a, b Value) bool {
	if a == nil {
		a = Null{}
	}
	if b == nil {
		b = Null{}
	}
	switch av := a.(type) {
	case Null:
		_, ok := b.(Null)
		return ok
	case String, Int, Bool:
		return a == b
	case Array:
		bv, ok := b.(Array)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Object:
		bv, ok := b.(Object)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			other, ok := bv[k]
			if !ok || !Equal(v, other) {
				return false
			}
		}
		return true
	}
	return false
}
