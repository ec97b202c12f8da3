// Package index maps generalized term shapes to the facts that may unify with
// them.
//
// A key is a term's shape with every variable replaced by the wildcard "?"
// and every number by "#NUM". At build time each fact is registered under
// every generalization of its own key: each position, the relation symbol
// included, either keeps its concrete sub-key or collapses to "?", and a
// compound sub-term may collapse as a whole. Looking up a query term is then a
// single map access on the query's key, and the bucket holds every fact the
// query could unify with. Buckets may still contain false positives (repeated
// variables, numeric tolerance), which unification filters out.
//
// The lattice has 2^n entries for a fact with n generalizable positions, so
// this scheme suits the short, fixed-arity relations of planning domains. Wide
// relations would call for a path-indexed discrimination tree instead.
package index

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"

	"github.com/cognicore/planmatch/pkg/planmatch/internalerr"
	"github.com/cognicore/planmatch/pkg/planmatch/term"
)

// Key is the canonical text of a generalized term.
type Key string

const (
	// Wildcard stands for any term.
	Wildcard Key = "?"
	// NumClass stands for any number.
	NumClass Key = "#NUM"
)

// shape is a parsed key, kept as a tree so it can be generalized position by
// position.
type shape struct {
	atom     Key
	kids     []shape
	compound bool
}

var wildcard = shape{atom: Wildcard}

func shapeOf(t term.Term) shape {
	switch x := t.(type) {
	case term.Var:
		return wildcard
	case term.Num:
		return shape{atom: NumClass}
	case term.Const:
		// Const.String quotes anything that could read as a marker.
		return shape{atom: Key(x.String())}
	case term.Compound:
		kids := make([]shape, len(x))
		for i, e := range x {
			kids[i] = shapeOf(e)
		}
		return shape{kids: kids, compound: true}
	default:
		return wildcard
	}
}

func (sh shape) key() Key {
	if !sh.compound {
		return sh.atom
	}
	var b strings.Builder
	sh.write(&b)
	return Key(b.String())
}

func (sh shape) write(b *strings.Builder) {
	if !sh.compound {
		b.WriteString(string(sh.atom))
		return
	}
	b.WriteByte('(')
	for i, k := range sh.kids {
		if i > 0 {
			b.WriteByte(' ')
		}
		k.write(b)
	}
	b.WriteByte(')')
}

// generalize lists sh itself, then every combination of generalized children,
// then the wildcard.
func (sh shape) generalize() []shape {
	out := []shape{sh}
	if sh.compound && len(sh.kids) > 0 {
		options := make([][]shape, len(sh.kids))
		for i, k := range sh.kids {
			options[i] = k.generalize()
		}
		pick := make([]int, len(options))
		for {
			// advance the mixed-radix counter; the all-zero pick is sh itself
			i := len(pick) - 1
			for ; i >= 0; i-- {
				pick[i]++
				if pick[i] < len(options[i]) {
					break
				}
				pick[i] = 0
			}
			if i < 0 {
				break
			}
			kids := make([]shape, len(pick))
			for j, p := range pick {
				kids[j] = options[j][p]
			}
			out = append(out, shape{kids: kids, compound: true})
		}
	}
	if sh.compound || sh.atom != Wildcard {
		out = append(out, wildcard)
	}
	return out
}

// KeyOf returns the canonical key of t.
func KeyOf(t term.Term) Key {
	return shapeOf(t).key()
}

// Generalizations returns every key a fact is registered under, starting with
// its own key and ending with the catch-all wildcard.
func Generalizations(t term.Term) []Key {
	shapes := shapeOf(t).generalize()
	keys := make([]Key, len(shapes))
	for i, sh := range shapes {
		keys[i] = sh.key()
	}
	return keys
}

// Index is a read-only map from keys to candidate facts. It is safe for
// concurrent readers.
type Index struct {
	buckets map[Key][]term.Term
	facts   []term.Term
}

// CheckFact returns f as a compound if it can be stored as a fact: a
// non-empty ground compound whose numbers are all finite.
func CheckFact(f term.Term) (term.Compound, error) {
	c, ok := f.(term.Compound)
	if !ok || len(c) == 0 {
		return nil, fmt.Errorf("%w: not a compound term: %v", internalerr.ErrInvalidInput, f)
	}
	if !term.IsGround(c) {
		return nil, fmt.Errorf("%w: not ground: %s", internalerr.ErrInvalidInput, c)
	}
	if !finite(c) {
		return nil, fmt.Errorf("%w: non-finite number in %s", internalerr.ErrInvalidInput, c)
	}
	return c, nil
}

func finite(t term.Term) bool {
	switch x := t.(type) {
	case term.Num:
		f := float64(x)
		return !math.IsNaN(f) && !math.IsInf(f, 0)
	case term.Compound:
		for _, e := range x {
			if !finite(e) {
				return false
			}
		}
	}
	return true
}

// Build indexes facts. Every fact must pass CheckFact.
// Duplicate facts are stored once.
func Build(facts []term.Term) (*Index, error) {
	idx := &Index{buckets: make(map[Key][]term.Term)}
	seen := make(map[string]bool, len(facts))
	for i, f := range facts {
		c, err := CheckFact(f)
		if err != nil {
			return nil, fmt.Errorf("fact %d: %w", i, err)
		}
		canon := c.String()
		if seen[canon] {
			continue
		}
		seen[canon] = true

		idx.facts = append(idx.facts, c)
		for _, k := range Generalizations(c) {
			idx.buckets[k] = append(idx.buckets[k], c)
		}
	}
	return idx, nil
}

// Lookup returns a copy of the bucket for t's key: every fact that may unify
// with t.
func (idx *Index) Lookup(t term.Term) []term.Term {
	return slices.Clone(idx.buckets[KeyOf(t)])
}

// Count returns the size of t's bucket without copying it.
func (idx *Index) Count(t term.Term) int {
	return len(idx.buckets[KeyOf(t)])
}

// Bucket returns a copy of the facts registered under k.
func (idx *Index) Bucket(k Key) []term.Term {
	return slices.Clone(idx.buckets[k])
}

// Len returns the number of distinct facts.
func (idx *Index) Len() int {
	return len(idx.facts)
}

// Facts returns the distinct facts in insertion order.
func (idx *Index) Facts() []term.Term {
	return slices.Clone(idx.facts)
}

// KeyCount returns the number of distinct keys.
func (idx *Index) KeyCount() int {
	return len(idx.buckets)
}

// Keys returns every key in sorted order.
func (idx *Index) Keys() []Key {
	keys := make([]Key, 0, len(idx.buckets))
	for k := range idx.buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
