package term

import (
	"sort"
	"strings"
)

// Subst maps variables to the terms they are bound to.
//
// A Subst is treated as immutable once shared: Extend returns a copy, so
// sibling branches of a search never observe each other's bindings.
type Subst map[Var]Term

// Lookup returns the direct binding of v.
func (s Subst) Lookup(v Var) (Term, bool) {
	t, ok := s[v]
	return t, ok
}

// Clone returns a shallow copy. Bound terms are immutable and shared.
func (s Subst) Clone() Subst {
	out := make(Subst, len(s)+1)
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Extend returns a copy of s with v bound to t.
func (s Subst) Extend(v Var, t Term) Subst {
	out := s.Clone()
	out[v] = t
	return out
}

// Vars returns the bound variables in sorted order.
func (s Subst) Vars() []Var {
	vars := make([]Var, 0, len(s))
	for v := range s {
		vars = append(vars, v)
	}
	sort.Slice(vars, func(i, j int) bool { return vars[i] < vars[j] })
	return vars
}

// String renders the bindings sorted by variable name, e.g. {?x: A, ?y: B}.
func (s Subst) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, v := range s.Vars() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(v.String())
		b.WriteString(": ")
		b.WriteString(s[v].String())
	}
	b.WriteByte('}')
	return b.String()
}

// Equal reports whether both substitutions hold structurally equal bindings
// for the same variables.
func (s Subst) Equal(other Subst) bool {
	if len(s) != len(other) {
		return false
	}
	for v, t := range s {
		u, ok := other[v]
		if !ok || !Equal(t, u) {
			return false
		}
	}
	return true
}

// Apply replaces every bound variable in t with its value, following chains
// of bindings. A variable whose resolution would re-enter itself (a cyclic
// binding made with the occurs check off) is left in place, so Apply always
// terminates.
func Apply(s Subst, t Term) Term {
	if len(s) == 0 {
		return t
	}
	return apply(s, t, nil)
}

func apply(s Subst, t Term, resolving []Var) Term {
	switch x := t.(type) {
	case Var:
		val, ok := s[x]
		if !ok {
			return x
		}
		for _, r := range resolving {
			if r == x {
				return x
			}
		}
		return apply(s, val, append(resolving, x))
	case Compound:
		out := make(Compound, len(x))
		for i, e := range x {
			out[i] = apply(s, e, resolving)
		}
		return out
	default:
		return t
	}
}
