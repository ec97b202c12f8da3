// Package unification computes most general unifiers of terms.
//
// Two policy knobs are exposed. The occurs check is off by default: skipping
// it makes unification cheaper but lets a variable be bound to a structure
// containing itself, which is unsound for general inference. When every fact
// is ground, as in pattern matching against a fact base, such bindings cannot
// arise. Numbers unify when they are within an absolute tolerance, which
// supports inexact or measured facts.
package unification

import (
	"math"

	"github.com/cognicore/planmatch/pkg/planmatch/term"
)

// Options holds the unification policy. The zero value means exact numeric
// comparison and no occurs check.
type Options struct {
	OccursCheck bool
	Epsilon     float64
}

// Option configures a call to Unify.
type Option func(*Options)

// WithOccursCheck enables or disables the occurs check.
func WithOccursCheck(on bool) Option {
	return func(o *Options) { o.OccursCheck = on }
}

// WithEpsilon sets the absolute tolerance used when comparing numbers.
func WithEpsilon(eps float64) Option {
	return func(o *Options) { o.Epsilon = eps }
}

// NewOptions folds opts into an Options value.
func NewOptions(opts ...Option) Options {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Unify returns a substitution extending s that makes x and y equal, or
// false when none exists. s is never modified; a nil s is the empty
// substitution.
//
//	Unify(Tuple("Value", "?a", "8"), Tuple("Value", "cell1", "?b"), nil)
//	// {?a: cell1, ?b: 8}
func Unify(x, y term.Term, s term.Subst, opts ...Option) (term.Subst, bool) {
	return NewOptions(opts...).Unify(x, y, s)
}

// Unify is the method form of the package-level Unify for callers that
// unify many times under one policy.
func (o Options) Unify(x, y term.Term, s term.Subst) (term.Subst, bool) {
	if s == nil {
		s = term.Subst{}
	}
	return o.unify(x, y, s)
}

func (o Options) unify(x, y term.Term, s term.Subst) (term.Subst, bool) {
	if term.Equal(x, y) {
		return s, true
	}

	if a, ok := x.(term.Num); ok {
		if b, ok := y.(term.Num); ok && math.Abs(float64(a)-float64(b)) <= o.Epsilon {
			return s, true
		}
	}

	if v, ok := x.(term.Var); ok {
		return o.unifyVar(v, y, s)
	}
	if v, ok := y.(term.Var); ok {
		return o.unifyVar(v, x, s)
	}

	cx, ok := x.(term.Compound)
	if !ok {
		return nil, false
	}
	cy, ok := y.(term.Compound)
	if !ok || len(cx) != len(cy) {
		return nil, false
	}
	for i := range cx {
		s, ok = o.unify(cx[i], cy[i], s)
		if !ok {
			return nil, false
		}
	}
	return s, true
}

func (o Options) unifyVar(v term.Var, t term.Term, s term.Subst) (term.Subst, bool) {
	if val, ok := s[v]; ok {
		return o.unify(val, t, s)
	}
	if tv, ok := t.(term.Var); ok {
		if val, ok := s[tv]; ok {
			return o.unify(v, val, s)
		}
	}
	if o.OccursCheck && Occurs(v, t, s) {
		return nil, false
	}
	return s.Extend(v, t), true
}

// Occurs reports whether v appears in t, looking through the bindings in s.
func Occurs(v term.Var, t term.Term, s term.Subst) bool {
	return occurs(v, t, s, make(map[term.Var]bool))
}

func occurs(v term.Var, t term.Term, s term.Subst, seen map[term.Var]bool) bool {
	switch x := t.(type) {
	case term.Var:
		if x == v {
			return true
		}
		if seen[x] {
			return false
		}
		seen[x] = true
		if val, ok := s[x]; ok {
			return occurs(v, val, s, seen)
		}
	case term.Compound:
		for _, e := range x {
			if occurs(v, e, s, seen) {
				return true
			}
		}
	}
	return false
}
