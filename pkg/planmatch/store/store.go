// Package store persists the ground facts a matcher runs against. A store is
// a fact source: the engine reads it and builds a transient index per query.
package store

import (
	"context"

	"github.com/cognicore/planmatch/pkg/planmatch/term"
)

// Store is the interface for persisting and reading facts. Every fact must be
// a non-empty ground compound; implementations reject anything else with an
// error wrapping internalerr.ErrInvalidInput. Facts are kept as a set keyed by
// their canonical text.
type Store interface {
	Close() error

	// AddFacts stores facts and returns how many were not already present.
	AddFacts(ctx context.Context, facts ...term.Term) (int, error)
	// RetractFacts removes facts and returns how many were present.
	RetractFacts(ctx context.Context, facts ...term.Term) (int, error)

	// Facts returns every fact in insertion order.
	Facts(ctx context.Context) ([]term.Term, error)
	// FactsByRelation returns the facts whose head renders as relation.
	FactsByRelation(ctx context.Context, relation string) ([]term.Term, error)
	// Relations summarizes the stored facts per relation, sorted by name.
	Relations(ctx context.Context) ([]Relation, error)
}

// Relation is a relation symbol with the number of facts stored under it.
type Relation struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// RelationOf returns the relation name a fact is filed under: the text of its
// first element.
func RelationOf(fact term.Compound) string {
	if len(fact) == 0 {
		return ""
	}
	return fact[0].String()
}
