package ir

// typeRank orders value kinds the way a hierarchical store sorts children by
// a child field: null, false, true, numbers, strings, then objects/arrays.
func typeRank(v Value) int {
	switch val := v.(type) {
	case nil, Null:
		return 0
	case Bool:
		if !bool(val) {
			return 1
		}
		return 2
	case Int:
		return 3
	case String:
		return 4
	default:
		return 5
	}
}

// Compare orders two values for sorting. Values of different kinds compare by
// kind rank; composite values all compare equal so ties fall to the key.
func Compare(a, b Value) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch av := a.(type) {
	case Int:
		bv := b.(Int)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
	case String:
		return compareUTF16(string(av), string(b.(String)))
	}
	return 0
}
