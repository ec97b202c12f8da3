// Package match enumerates the substitutions under which a conjunctive
// pattern holds against an indexed fact base.
//
// Positive literals must each unify with some fact. Negated literals use
// negation as failure: a negated literal holds when no fact unifies with it
// under the bindings made so far. A negated literal is checked as soon as the
// positive literals have bound all of its variables; one whose variables are
// never bound is checked existentially once every positive literal is
// matched, so (not (on B ?w)) means "nothing is on B".
//
// The search is a depth-first walk. At each step it picks the positive literal
// with the fewest candidate facts, breaking ties at random, and tries the
// candidates in random order. Solutions are produced lazily and their order is
// not stable between runs unless a seeded source is supplied with WithRand.
package match

import (
	"context"
	"fmt"
	"iter"
	"math"
	"math/rand/v2"
	"slices"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cognicore/planmatch/pkg/planmatch/index"
	"github.com/cognicore/planmatch/pkg/planmatch/internalerr"
	"github.com/cognicore/planmatch/pkg/planmatch/term"
	"github.com/cognicore/planmatch/pkg/planmatch/unification"
)

// Options configures Match.
type Options struct {
	Epsilon     float64
	OccursCheck bool
	// Rand drives literal tie-breaking and candidate order. Nil uses the
	// process-wide source. A *rand.Rand is not safe for concurrent use, so
	// searches sharing one must not run at the same time.
	Rand   *rand.Rand
	Logger *zap.Logger
	Stats  *Stats
	// Context, when set, is checked at every search node; the search stops
	// without further solutions once it is done.
	Context context.Context
}

// Option configures a call to Match.
type Option func(*Options)

// WithEpsilon sets the absolute tolerance for numeric comparison.
func WithEpsilon(eps float64) Option { return func(o *Options) { o.Epsilon = eps } }

// WithOccursCheck enables the occurs check during unification.
func WithOccursCheck(on bool) Option { return func(o *Options) { o.OccursCheck = on } }

// WithRand sets the random source. Pass a seeded source to pin the order in
// which solutions are found.
func WithRand(r *rand.Rand) Option { return func(o *Options) { o.Rand = r } }

// WithLogger traces pruning decisions at debug level.
func WithLogger(l *zap.Logger) Option { return func(o *Options) { o.Logger = l } }

// WithContext stops the search once ctx is done.
func WithContext(ctx context.Context) Option { return func(o *Options) { o.Context = ctx } }

// WithStats accumulates search counters into st.
func WithStats(st *Stats) Option { return func(o *Options) { o.Stats = st } }

// Stats counts search work. Counters accumulate across iterations.
type Stats struct {
	Nodes          int `json:"nodes"`
	Unifications   int `json:"unifications"`
	NegationPrunes int `json:"negation_prunes"`
	Solutions      int `json:"solutions"`
}

// Match returns the substitutions extending s under which every positive
// literal of p unifies with a fact of idx and no negated literal does.
//
// Input problems are reported here, before any search runs. Each range over
// the returned sequence runs an independent search, and breaking out of the
// loop abandons the rest of it. An unsatisfiable pattern yields nothing; an
// empty pattern yields s once.
func Match(p Pattern, idx *index.Index, s term.Subst, opts ...Option) (iter.Seq[term.Subst], error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if idx == nil {
		return nil, fmt.Errorf("%w: nil index", internalerr.ErrInvalidInput)
	}

	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	if o.Epsilon < 0 || math.IsNaN(o.Epsilon) {
		return nil, fmt.Errorf("%w: epsilon must be a non-negative number, got %v", internalerr.ErrInvalidInput, o.Epsilon)
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Stats == nil {
		o.Stats = &Stats{}
	}

	pos, neg := p.split()
	initial := s.Clone()

	return func(yield func(term.Subst) bool) {
		sr := &search{
			idx:   idx,
			unify: unification.Options{OccursCheck: o.OccursCheck, Epsilon: o.Epsilon},
			rng:   o.Rand,
			log:   o.Logger,
			stats: o.Stats,
		}
		deferred, ok := sr.discharge(neg, initial)
		if !ok {
			return
		}
		sr.walk(node{sub: initial.Clone(), pos: pos, neg: deferred}, yield)
	}, nil
}

// node is one state of the search: bindings so far and the literals still to
// be satisfied.
type node struct {
	sub term.Subst
	pos []term.Term
	neg []term.Term
}

type search struct {
	idx   *index.Index
	unify unification.Options
	rng   *rand.Rand
	log   *zap.Logger
	stats *Stats
	ctx   context.Context
}

// walk explores n depth first. It returns false once the consumer stops or
// the context is done.
func (sr *search) walk(n node, yield func(term.Subst) bool) bool {
	if sr.ctx != nil && sr.ctx.Err() != nil {
		return false
	}
	sr.stats.Nodes++

	if len(n.pos) == 0 {
		for _, lit := range n.neg {
			if inst := term.Apply(n.sub, lit); sr.holds(inst) {
				sr.stats.NegationPrunes++
				sr.pruned("unbound negated literal holds", inst)
				return true
			}
		}
		sr.stats.Solutions++
		return yield(n.sub)
	}

	chosen, size := sr.choose(n)
	if size == 0 {
		return true
	}
	lit := n.pos[chosen]
	rest := make([]term.Term, 0, len(n.pos)-1)
	rest = append(rest, n.pos[:chosen]...)
	rest = append(rest, n.pos[chosen+1:]...)

	facts := sr.idx.Lookup(term.Apply(n.sub, lit))
	sr.shuffle(facts)

	// With a tolerance, distinct facts can match the literal with the same
	// bindings; only the first is explored.
	var tried []term.Subst
	for _, f := range facts {
		sr.stats.Unifications++
		sub, ok := sr.unify.Unify(lit, f, n.sub)
		if !ok {
			continue
		}
		if sr.unify.Epsilon > 0 {
			if slices.ContainsFunc(tried, sub.Equal) {
				continue
			}
			tried = append(tried, sub)
		}
		neg, ok := sr.discharge(n.neg, sub)
		if !ok {
			continue
		}
		if !sr.walk(node{sub: sub, pos: rest, neg: neg}, yield) {
			return false
		}
	}
	return true
}

// choose picks the positive literal with the smallest candidate bucket under
// the current bindings, breaking ties uniformly at random.
func (sr *search) choose(n node) (int, int) {
	best, bestSize, ties := -1, 0, 0
	for i, lit := range n.pos {
		size := sr.idx.Count(term.Apply(n.sub, lit))
		switch {
		case best < 0 || size < bestSize:
			best, bestSize, ties = i, size, 1
		case size == bestSize:
			ties++
			if sr.intn(ties) == 0 {
				best = i
			}
		}
	}
	return best, bestSize
}

// discharge checks every negated literal that s makes ground and returns the
// ones that still have free variables. It reports false when a ground negated
// literal matches a fact.
func (sr *search) discharge(neg []term.Term, s term.Subst) ([]term.Term, bool) {
	var deferred []term.Term
	for _, lit := range neg {
		inst := term.Apply(s, lit)
		if !term.IsGround(inst) {
			deferred = append(deferred, lit)
			continue
		}
		if sr.holds(inst) {
			sr.stats.NegationPrunes++
			sr.pruned("negated literal holds", inst)
			return nil, false
		}
	}
	return deferred, true
}

// holds reports whether some fact unifies with t.
func (sr *search) holds(t term.Term) bool {
	for _, f := range sr.idx.Lookup(t) {
		if _, ok := sr.unify.Unify(t, f, nil); ok {
			return true
		}
	}
	return false
}

func (sr *search) pruned(msg string, lit term.Term) {
	if ce := sr.log.Check(zapcore.DebugLevel, msg); ce != nil {
		ce.Write(zap.Stringer("literal", lit))
	}
}

func (sr *search) intn(n int) int {
	if sr.rng != nil {
		return sr.rng.IntN(n)
	}
	return rand.IntN(n)
}

func (sr *search) shuffle(facts []term.Term) {
	swap := func(i, j int) { facts[i], facts[j] = facts[j], facts[i] }
	if sr.rng != nil {
		sr.rng.Shuffle(len(facts), swap)
		return
	}
	rand.Shuffle(len(facts), swap)
}
