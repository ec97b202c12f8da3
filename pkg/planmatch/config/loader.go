package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/cognicore/planmatch/pkg/planmatch/store"
	"github.com/cognicore/planmatch/pkg/planmatch/store/memstore"
	"github.com/cognicore/planmatch/pkg/planmatch/store/sqlite"
)

// Loader loads configuration and the fact source it points at. Explicit
// paths override the ones in the configuration file; relative paths inside
// the file are resolved against its directory.
type Loader struct {
	ConfigPath   string
	FactsPath    string
	DatabasePath string
}

// Components holds everything the loader produced. The caller owns Store and
// must close it.
type Components struct {
	Config *Config
	Store  store.Store
}

// Load reads the configuration, opens the fact store and imports the facts
// file into it. Without a database the store is in-memory.
func (l *Loader) Load(ctx context.Context) (*Components, error) {
	cfg := Default()
	if l.ConfigPath != "" {
		loaded, err := Load(l.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
		cfg.Facts = relativeTo(l.ConfigPath, cfg.Facts)
		cfg.Database = relativeTo(l.ConfigPath, cfg.Database)
	}
	if l.FactsPath != "" {
		cfg.Facts = l.FactsPath
	}
	if l.DatabasePath != "" {
		cfg.Database = l.DatabasePath
	}

	var st store.Store
	if cfg.Database != "" {
		var err error
		st, err = sqlite.OpenSQLite(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
	} else {
		st = memstore.New()
	}

	if cfg.Facts != "" {
		facts, err := LoadFacts(cfg.Facts)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("load facts: %w", err)
		}
		if _, err := st.AddFacts(ctx, facts...); err != nil {
			st.Close()
			return nil, fmt.Errorf("store facts: %w", err)
		}
	}

	return &Components{Config: cfg, Store: st}, nil
}

// relativeTo resolves a path from the configuration file against the file's
// directory.
func relativeTo(configPath, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(filepath.Dir(configPath), p)
}
