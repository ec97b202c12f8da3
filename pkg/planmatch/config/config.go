package config

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/planmatch/pkg/planmatch/internalerr"
	"github.com/cognicore/planmatch/pkg/planmatch/term"
)

// Config is the YAML configuration for the engine and its tools.
type Config struct {
	Engine   Engine `yaml:"engine"`
	Log      Log    `yaml:"log"`
	Facts    string `yaml:"facts"`
	Database string `yaml:"database"`
}

// Engine holds matcher settings.
type Engine struct {
	Epsilon     float64 `yaml:"epsilon"`
	OccursCheck bool    `yaml:"occurs_check"`
	// Seed pins the search order when non-zero.
	Seed uint64 `yaml:"seed"`
}

// Log holds logger settings.
type Log struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{Log: Log{Level: "info"}}
}

// Load reads a configuration file. Missing fields keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", internalerr.ErrInvalidConfig, path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	if c.Engine.Epsilon < 0 || math.IsNaN(c.Engine.Epsilon) || math.IsInf(c.Engine.Epsilon, 0) {
		return fmt.Errorf("%w: engine.epsilon must be a finite non-negative number, got %v", internalerr.ErrInvalidConfig, c.Engine.Epsilon)
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown log.level %q", internalerr.ErrInvalidConfig, c.Log.Level)
	}
	return nil
}

// LoadFacts reads a facts file: one term per fact in either s-expression or
// functor notation, with optional "." terminators and comments.
func LoadFacts(path string) ([]term.Term, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	facts, err := term.ParseAll(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return facts, nil
}
