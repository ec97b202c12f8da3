package match

import (
	"fmt"
	"strings"

	"github.com/cognicore/planmatch/pkg/planmatch/internalerr"
	"github.com/cognicore/planmatch/pkg/planmatch/term"
)

// Not is the head symbol of a negated literal in wire form: (not (on ?x B)).
const Not = term.Const("not")

// Literal is one conjunct of a pattern.
type Literal struct {
	Term    term.Term
	Negated bool
}

// Pos returns a positive literal.
func Pos(t term.Term) Literal { return Literal{Term: t} }

// Neg returns a negated literal.
func Neg(t term.Term) Literal { return Literal{Term: t, Negated: true} }

// Wire returns the literal in wire form, wrapping negations in (not ...).
func (l Literal) Wire() term.Term {
	if l.Negated {
		return term.Compound{Not, l.Term}
	}
	return l.Term
}

func (l Literal) String() string { return l.Wire().String() }

// Pattern is an ordered conjunction of literals.
type Pattern []Literal

// Parse converts wire-form literals into a Pattern. A compound whose first
// element is the constant "not" is a negation wrapper and must hold exactly
// one compound literal.
func Parse(literals ...term.Term) (Pattern, error) {
	p := make(Pattern, 0, len(literals))
	for i, t := range literals {
		c, ok := t.(term.Compound)
		if !ok || len(c) == 0 {
			return nil, fmt.Errorf("%w: literal %d is not a compound term: %v", internalerr.ErrInvalidInput, i, t)
		}
		if !term.Equal(c[0], Not) {
			p = append(p, Pos(c))
			continue
		}
		if len(c) != 2 {
			return nil, fmt.Errorf("%w: literal %d: negation wraps exactly one literal, got %d", internalerr.ErrInvalidInput, i, len(c)-1)
		}
		inner, ok := c[1].(term.Compound)
		if !ok || len(inner) == 0 {
			return nil, fmt.Errorf("%w: literal %d: negated literal is not a compound term: %v", internalerr.ErrInvalidInput, i, c[1])
		}
		p = append(p, Neg(inner))
	}
	return p, nil
}

// ParseString reads a pattern written in the term syntax, e.g.
//
//	(on ?x ?y) (on ?y ?z) (not (on ?y C))
func ParseString(src string) (Pattern, error) {
	terms, err := term.ParseAll(src)
	if err != nil {
		return nil, err
	}
	return Parse(terms...)
}

// Validate checks a Pattern built by hand with the same rules Parse applies.
func (p Pattern) Validate() error {
	for i, l := range p {
		c, ok := l.Term.(term.Compound)
		if !ok || len(c) == 0 {
			return fmt.Errorf("%w: literal %d is not a compound term: %v", internalerr.ErrInvalidInput, i, l.Term)
		}
		if !l.Negated && term.Equal(c[0], Not) {
			return fmt.Errorf("%w: literal %d: positive literal headed by %s, use Neg", internalerr.ErrInvalidInput, i, Not)
		}
	}
	return nil
}

// Wire returns the pattern's literals in wire form.
func (p Pattern) Wire() []term.Term {
	out := make([]term.Term, len(p))
	for i, l := range p {
		out[i] = l.Wire()
	}
	return out
}

// Vars returns the distinct variables of the pattern in order of first
// occurrence.
func (p Pattern) Vars() []term.Var {
	return term.Vars(term.Compound(p.Wire()))
}

func (p Pattern) String() string {
	parts := make([]string, len(p))
	for i, l := range p {
		parts[i] = l.String()
	}
	return strings.Join(parts, " ")
}

func (p Pattern) split() (pos, neg []term.Term) {
	for _, l := range p {
		if l.Negated {
			neg = append(neg, l.Term)
		} else {
			pos = append(pos, l.Term)
		}
	}
	return pos, neg
}
