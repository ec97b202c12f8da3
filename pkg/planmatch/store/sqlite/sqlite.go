package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/cognicore/planmatch/pkg/planmatch/index"
	"github.com/cognicore/planmatch/pkg/planmatch/internalerr"
	"github.com/cognicore/planmatch/pkg/planmatch/store"
	"github.com/cognicore/planmatch/pkg/planmatch/term"
)

// sqliteStore implements the Store interface using SQLite. Facts are stored
// as their canonical text and parsed back on read.
type sqliteStore struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite database with WAL mode enabled.
func OpenSQLite(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: init schema: %v", internalerr.ErrStoreUnavailable, err)
	}

	return &sqliteStore{db: db}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS facts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	relation TEXT NOT NULL,
	arity INTEGER NOT NULL,
	body TEXT UNIQUE NOT NULL
);

CREATE INDEX IF NOT EXISTS facts_relation ON facts(relation);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// AddFacts inserts facts in a single transaction. Nothing is stored if any
// fact is invalid.
func (s *sqliteStore) AddFacts(ctx context.Context, facts ...term.Term) (int, error) {
	checked, err := check(facts)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO facts (relation, arity, body) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	added := 0
	for _, c := range checked {
		res, err := stmt.ExecContext(ctx, store.RelationOf(c), len(c), c.String())
		if err != nil {
			return 0, fmt.Errorf("insert %s: %w", c, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		added += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return added, nil
}

// RetractFacts deletes facts in a single transaction.
func (s *sqliteStore) RetractFacts(ctx context.Context, facts ...term.Term) (int, error) {
	checked, err := check(facts)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `DELETE FROM facts WHERE body = ?`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	removed := 0
	for _, c := range checked {
		res, err := stmt.ExecContext(ctx, c.String())
		if err != nil {
			return 0, fmt.Errorf("delete %s: %w", c, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		removed += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return removed, nil
}

// Facts returns every fact in insertion order.
func (s *sqliteStore) Facts(ctx context.Context) ([]term.Term, error) {
	return s.query(ctx, `SELECT body FROM facts ORDER BY id`)
}

// FactsByRelation returns the facts filed under relation in insertion order.
func (s *sqliteStore) FactsByRelation(ctx context.Context, relation string) ([]term.Term, error) {
	return s.query(ctx, `SELECT body FROM facts WHERE relation = ? ORDER BY id`, relation)
}

// Relations counts facts per relation.
func (s *sqliteStore) Relations(ctx context.Context) ([]store.Relation, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT relation, COUNT(*) FROM facts GROUP BY relation ORDER BY relation`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Relation
	for rows.Next() {
		var r store.Relation
		if err := rows.Scan(&r.Name, &r.Count); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *sqliteStore) query(ctx context.Context, q string, args ...any) ([]term.Term, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []term.Term
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		t, err := term.Parse(body)
		if err != nil {
			return nil, fmt.Errorf("stored fact %q: %w", body, err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
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
