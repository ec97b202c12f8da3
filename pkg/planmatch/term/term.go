// Package term defines the symbolic values the matcher works on: variables,
// constants, numbers and compound terms, plus substitutions over them.
//
// Terms print as s-expressions; Parse reads that form back.
//
//	(on ?x B)          a compound with a variable
//	(not (on ?y C))    a negated literal
//	(at P1 12.5)       numbers are compared with tolerance during unification
package term

import (
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// VarPrefix marks a variable name.
const VarPrefix = "?"

// Term is any value the engine can unify. The set of implementations is closed:
// Var, Const, Num and Compound.
type Term interface {
	String() string
	isTerm()
}

// Var is a logic variable. The name includes the leading "?".
type Var string

// Const is an opaque atomic symbol.
type Const string

// Num is a numeric constant.
type Num float64

// Compound is an ordered, fixed-arity sequence of terms. The first element is
// conventionally the relation symbol.
type Compound []Term

func (Var) isTerm()      {}
func (Const) isTerm()    {}
func (Num) isTerm()      {}
func (Compound) isTerm() {}

func (v Var) String() string { return string(v) }

// String renders the constant bare when it would read back as the same
// constant, and quoted otherwise.
func (c Const) String() string {
	if needsQuote(string(c)) {
		return strconv.Quote(string(c))
	}
	return string(c)
}

func (n Num) String() string {
	return strconv.FormatFloat(float64(n), 'g', -1, 64)
}

func (c Compound) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, t := range c {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(t.String())
	}
	b.WriteByte(')')
	return b.String()
}

// Head returns the first element of the compound, or nil when it is empty.
func (c Compound) Head() Term {
	if len(c) == 0 {
		return nil
	}
	return c[0]
}

func needsQuote(s string) bool {
	if s == "" || strings.HasPrefix(s, VarPrefix) || s[0] == '#' {
		return true
	}
	if _, ok := parseNumber(s); ok {
		return true
	}
	if !utf8.ValidString(s) || strings.ContainsAny(s, "()\",;%.'") {
		return true
	}
	return strings.IndexFunc(s, unicode.IsSpace) >= 0
}

// IsVarName reports whether s names a variable: a non-empty string starting
// with "?".
func IsVarName(s string) bool {
	return len(s) > 0 && strings.HasPrefix(s, VarPrefix)
}

// IsVariable reports whether t is a variable.
func IsVariable(t Term) bool {
	_, ok := t.(Var)
	return ok
}

// Equal reports structural equality. Numbers compare exactly here; tolerance
// only applies during unification.
func Equal(a, b Term) bool {
	switch x := a.(type) {
	case Var:
		y, ok := b.(Var)
		return ok && x == y
	case Const:
		y, ok := b.(Const)
		return ok && x == y
	case Num:
		y, ok := b.(Num)
		return ok && (x == y || math.IsNaN(float64(x)) && math.IsNaN(float64(y)))
	case Compound:
		y, ok := b.(Compound)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	default:
		return a == nil && b == nil
	}
}

// IsGround reports whether t contains no variables.
func IsGround(t Term) bool {
	switch x := t.(type) {
	case Var:
		return false
	case Compound:
		for _, e := range x {
			if !IsGround(e) {
				return false
			}
		}
	}
	return true
}

// Vars returns the distinct variables of t in order of first occurrence.
func Vars(t Term) []Var {
	var out []Var
	seen := make(map[Var]bool)
	var walk func(Term)
	walk = func(t Term) {
		switch x := t.(type) {
		case Var:
			if !seen[x] {
				seen[x] = true
				out = append(out, x)
			}
		case Compound:
			for _, e := range x {
				walk(e)
			}
		}
	}
	walk(t)
	return out
}
