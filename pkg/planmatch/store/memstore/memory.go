package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/cognicore/planmatch/pkg/planmatch/index"
	"github.com/cognicore/planmatch/pkg/planmatch/store"
	"github.com/cognicore/planmatch/pkg/planmatch/term"
)

// Store is an in-memory implementation of store.Store.
type Store struct {
	mu    sync.RWMutex
	facts map[string]term.Compound
	order []string
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{facts: make(map[string]term.Compound)}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// AddFacts implements store.Store. Nothing is stored if any fact is invalid.
func (s *Store) AddFacts(ctx context.Context, facts ...term.Term) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	checked, err := check(facts)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, c := range checked {
		key := c.String()
		if _, ok := s.facts[key]; ok {
			continue
		}
		s.facts[key] = c
		s.order = append(s.order, key)
		added++
	}
	return added, nil
}

// RetractFacts implements store.Store.
func (s *Store) RetractFacts(ctx context.Context, facts ...term.Term) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	checked, err := check(facts)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	gone := make(map[string]bool)
	for _, c := range checked {
		key := c.String()
		if _, ok := s.facts[key]; ok {
			delete(s.facts, key)
			gone[key] = true
		}
	}
	if len(gone) == 0 {
		return 0, nil
	}
	kept := s.order[:0]
	for _, key := range s.order {
		if !gone[key] {
			kept = append(kept, key)
		}
	}
	s.order = kept
	return len(gone), nil
}

// Facts implements store.Store.
func (s *Store) Facts(ctx context.Context) ([]term.Term, error) {
	return s.collect(ctx, func(term.Compound) bool { return true })
}

// FactsByRelation implements store.Store.
func (s *Store) FactsByRelation(ctx context.Context, relation string) ([]term.Term, error) {
	return s.collect(ctx, func(c term.Compound) bool { return store.RelationOf(c) == relation })
}

// Relations implements store.Store.
func (s *Store) Relations(ctx context.Context) ([]store.Relation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for _, c := range s.facts {
		counts[store.RelationOf(c)]++
	}
	out := make([]store.Relation, 0, len(counts))
	for name, n := range counts {
		out = append(out, store.Relation{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) collect(ctx context.Context, keep func(term.Compound) bool) ([]term.Term, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]term.Term, 0, len(s.order))
	for _, key := range s.order {
		if c := s.facts[key]; keep(c) {
			out = append(out, c)
		}
	}
	return out, nil
}

func check(facts []term.Term) ([]term.Compound, error) {
	out := make([]term.Compound, len(facts))
	for i, f := range facts {
		c, err := index.CheckFact(f)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

var _ store.Store = (*Store)(nil)
