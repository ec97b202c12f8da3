package term

import (
	"fmt"
)

// From converts a Go value into a Term. Strings starting with "?" become
// variables, other strings constants; Go numerics become numbers; slices
// become compounds. Terms pass through unchanged.
func From(v any) (Term, error) {
	switch x := v.(type) {
	case Term:
		return x, nil
	case string:
		if IsVarName(x) {
			return Var(x), nil
		}
		return Const(x), nil
	case int:
		return Num(x), nil
	case int32:
		return Num(x), nil
	case int64:
		return Num(x), nil
	case uint:
		return Num(x), nil
	case uint32:
		return Num(x), nil
	case uint64:
		return Num(x), nil
	case float32:
		return Num(x), nil
	case float64:
		return Num(x), nil
	case []any:
		return Tuple(x...)
	case []string:
		out := make(Compound, len(x))
		for i, s := range x {
			if IsVarName(s) {
				out[i] = Var(s)
			} else {
				out[i] = Const(s)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("term: cannot convert %T", v)
	}
}

// Tuple builds a compound from Go values using the same rules as From.
//
//	Tuple("on", "?x", "B")               // (on ?x B)
//	Tuple("not", []any{"on", "?y", "C"}) // (not (on ?y C))
func Tuple(elems ...any) (Compound, error) {
	out := make(Compound, len(elems))
	for i, e := range elems {
		t, err := From(e)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = t
	}
	return out, nil
}

// MustTuple is Tuple for literals known to be valid; it panics otherwise.
func MustTuple(elems ...any) Compound {
	c, err := Tuple(elems...)
	if err != nil {
		panic(err)
	}
	return c
}
