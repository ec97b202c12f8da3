// Package planmatch wires a fact store to the matcher: it reads the store,
// indexes the facts and enumerates the bindings of a pattern against them.
//
// The lower-level packages can be used directly:
//
//	term         terms, substitutions and the text notation
//	unification  unification with numeric tolerance and an optional occurs check
//	index        the generalization index over ground facts
//	match        pattern search with negation as failure
package planmatch

import (
	"context"
	"crypto/rand"
	"fmt"
	"iter"
	mrand "math/rand/v2"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/cognicore/planmatch/pkg/planmatch/index"
	"github.com/cognicore/planmatch/pkg/planmatch/internalerr"
	"github.com/cognicore/planmatch/pkg/planmatch/match"
	"github.com/cognicore/planmatch/pkg/planmatch/store"
	"github.com/cognicore/planmatch/pkg/planmatch/store/memstore"
	"github.com/cognicore/planmatch/pkg/planmatch/term"
	"github.com/cognicore/planmatch/pkg/planmatch/unification"
)

// Engine is the main matching facade
type Engine struct {
	store       store.Store
	log         *zap.Logger
	epsilon     float64
	occursCheck bool
	rng         *mrand.Rand

	mu      sync.Mutex // guards entropy and, when set, rng during Query
	entropy *ulid.MonotonicEntropy
}

// Options configures an Engine
type Options struct {
	// Store is the fact source. Nil means a fresh in-memory store.
	Store       store.Store
	Logger      *zap.Logger
	Epsilon     float64
	OccursCheck bool
	// Rand pins the search order. Query calls are serialized while it is set;
	// sequences returned by Stream must not be ranged over concurrently.
	Rand *mrand.Rand
}

// New creates an Engine with the given dependencies
func New(opts Options) *Engine {
	st := opts.Store
	if st == nil {
		st = memstore.New()
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		store:       st,
		log:         log,
		epsilon:     opts.Epsilon,
		occursCheck: opts.OccursCheck,
		rng:         opts.Rand,
		entropy:     ulid.Monotonic(rand.Reader, 0),
	}
}

// Close cleanly shuts down the engine and its store
func (e *Engine) Close() error {
	return e.store.Close()
}

// Store returns the fact source.
func (e *Engine) Store() store.Store { return e.store }

// Assert adds facts to the store.
func (e *Engine) Assert(ctx context.Context, facts ...term.Term) (int, error) {
	return e.store.AddFacts(ctx, facts...)
}

// Retract removes facts from the store.
func (e *Engine) Retract(ctx context.Context, facts ...term.Term) (int, error) {
	return e.store.RetractFacts(ctx, facts...)
}

// Index reads the store and indexes its current facts.
func (e *Engine) Index(ctx context.Context) (*index.Index, error) {
	facts, err := e.store.Facts(ctx)
	if err != nil {
		return nil, fmt.Errorf("read facts: %w", err)
	}
	return index.Build(facts)
}

// Stream matches p against the current facts. The sequence stops early when
// ctx is cancelled, including in the middle of a search that has not yet
// found a solution.
func (e *Engine) Stream(ctx context.Context, p match.Pattern, initial term.Subst, opts ...match.Option) (iter.Seq[term.Subst], error) {
	idx, err := e.Index(ctx)
	if err != nil {
		return nil, err
	}
	seq, err := match.Match(p, idx, initial, append(e.matchOptions(opts), match.WithContext(ctx))...)
	if err != nil {
		return nil, err
	}
	return func(yield func(term.Subst) bool) {
		for s := range seq {
			if ctx.Err() != nil || !yield(s) {
				return
			}
		}
	}, nil
}

// QueryRequest defines a pattern query. Pattern text and Literals are
// concatenated, text first.
type QueryRequest struct {
	Pattern  string
	Literals []term.Term
	Bindings term.Subst
	// Limit caps the number of solutions. Zero means all of them.
	Limit int
}

// QueryResult is the outcome of a query.
type QueryResult struct {
	ID        string        `json:"id"`
	Pattern   string        `json:"pattern"`
	Solutions []term.Subst  `json:"-"`
	Facts     int           `json:"facts"`
	Keys      int           `json:"keys"`
	Stats     match.Stats   `json:"stats"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Query parses and runs a pattern, collecting up to req.Limit solutions.
func (e *Engine) Query(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	if req.Limit < 0 {
		return nil, fmt.Errorf("%w: negative limit %d", internalerr.ErrInvalidInput, req.Limit)
	}
	p, err := parsePattern(req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res := &QueryResult{ID: e.newID(), Pattern: p.String()}

	idx, err := e.Index(ctx)
	if err != nil {
		return nil, err
	}
	res.Facts = idx.Len()
	res.Keys = idx.KeyCount()

	seq, err := match.Match(p, idx, req.Bindings, e.matchOptions([]match.Option{match.WithStats(&res.Stats), match.WithContext(ctx)})...)
	if err != nil {
		return nil, err
	}

	if e.rng != nil {
		e.mu.Lock()
		defer e.mu.Unlock()
	}
	for s := range seq {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res.Solutions = append(res.Solutions, s)
		if req.Limit > 0 && len(res.Solutions) >= req.Limit {
			break
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res.Elapsed = time.Since(start)

	e.log.Info("query",
		zap.String("query_id", res.ID),
		zap.String("pattern", res.Pattern),
		zap.Int("facts", res.Facts),
		zap.Int("keys", res.Keys),
		zap.Int("solutions", len(res.Solutions)),
		zap.Int("nodes", res.Stats.Nodes),
		zap.Duration("elapsed", res.Elapsed),
	)
	return res, nil
}

// Unify parses two terms and unifies them under the engine's settings.
func (e *Engine) Unify(x, y string) (term.Subst, bool, error) {
	tx, err := term.Parse(x)
	if err != nil {
		return nil, false, err
	}
	ty, err := term.Parse(y)
	if err != nil {
		return nil, false, err
	}
	s, ok := unification.Unify(tx, ty, nil,
		unification.WithEpsilon(e.epsilon),
		unification.WithOccursCheck(e.occursCheck))
	return s, ok, nil
}

func (e *Engine) matchOptions(extra []match.Option) []match.Option {
	opts := []match.Option{
		match.WithEpsilon(e.epsilon),
		match.WithOccursCheck(e.occursCheck),
		match.WithLogger(e.log),
	}
	if e.rng != nil {
		opts = append(opts, match.WithRand(e.rng))
	}
	return append(opts, extra...)
}

func (e *Engine) newID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return ulid.MustNew(ulid.Now(), e.entropy).String()
}

func parsePattern(req QueryRequest) (match.Pattern, error) {
	var p match.Pattern
	if req.Pattern != "" {
		parsed, err := match.ParseString(req.Pattern)
		if err != nil {
			return nil, err
		}
		p = parsed
	}
	if len(req.Literals) > 0 {
		more, err := match.Parse(req.Literals...)
		if err != nil {
			return nil, err
		}
		p = append(p, more...)
	}
	return p, nil
}
