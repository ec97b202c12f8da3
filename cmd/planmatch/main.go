package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cognicore/planmatch/internal/logging"
	"github.com/cognicore/planmatch/pkg/planmatch"
	"github.com/cognicore/planmatch/pkg/planmatch/config"
	"github.com/cognicore/planmatch/pkg/planmatch/internalerr"
)

// cliOptions holds the persistent flags shared by every subcommand.
type cliOptions struct {
	configPath  string
	factsPath   string
	dbPath      string
	verbose     bool
	seed        uint64
	epsilon     float64
	occursCheck bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}
	root := &cobra.Command{
		Use:   "planmatch",
		Short: "Match patterns with negation against a base of ground facts",
		Long: `planmatch enumerates the bindings under which a conjunction of literals
holds against a set of ground facts. Negated literals, written (not (...)),
hold when no fact matches them.

Facts come from a facts file (--facts), a SQLite database (--db) or both:

  planmatch query --facts world.pl "(on ?x ?y) (not (on ?y C))"`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "YAML configuration file")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	pf.StringVar(&opts.factsPath, "facts", "", "facts file to load")
	pf.StringVar(&opts.dbPath, "db", "", "SQLite fact database")
	pf.Uint64Var(&opts.seed, "seed", 0, "seed for the search order (0 = random)")
	pf.Float64Var(&opts.epsilon, "epsilon", 0, "absolute tolerance for numeric comparison")
	pf.BoolVar(&opts.occursCheck, "occurs-check", false, "reject bindings of a variable to a term containing it")

	root.AddCommand(
		newQueryCmd(opts),
		newIndexCmd(opts),
		newRelationsCmd(opts),
		newImportCmd(opts),
		newUnifyCmd(opts),
	)
	return root
}

func newQueryCmd(opts *cliOptions) *cobra.Command {
	var limit int
	var stats bool
	cmd := &cobra.Command{
		Use:   "query PATTERN...",
		Short: "Print every substitution satisfying a pattern",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, _, cleanup, err := buildEngine(cmd, opts)
			if err != nil {
				return err
			}
			defer cleanup()

			res, err := engine.Query(cmd.Context(), planmatch.QueryRequest{
				Pattern: strings.Join(args, " "),
				Limit:   limit,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(res.Solutions) == 0 {
				fmt.Fprintln(out, "no solutions")
			}
			for _, s := range res.Solutions {
				fmt.Fprintln(out, s)
			}
			if stats {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "stop after this many solutions (0 = all)")
	cmd.Flags().BoolVar(&stats, "stats", false, "print query statistics as JSON")
	return cmd
}

func newIndexCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Print every index key with the number of facts filed under it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, _, cleanup, err := buildEngine(cmd, opts)
			if err != nil {
				return err
			}
			defer cleanup()

			idx, err := engine.Index(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, k := range idx.Keys() {
				fmt.Fprintf(out, "%6d  %s\n", len(idx.Bucket(k)), k)
			}
			return nil
		},
	}
}

func newRelationsCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "relations",
		Short: "Print the stored relations with their fact counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, _, cleanup, err := buildEngine(cmd, opts)
			if err != nil {
				return err
			}
			defer cleanup()

			rels, err := engine.Store().Relations(cmd.Context())
			if err != nil {
				return err
			}
			for _, r := range rels {
				fmt.Fprintf(cmd.OutOrStdout(), "%6d  %s\n", r.Count, r.Name)
			}
			return nil
		},
	}
}

func newImportCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Load a facts file into the fact database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, cfg, cleanup, err := buildEngine(cmd, opts)
			if err != nil {
				return err
			}
			defer cleanup()
			if cfg.Database == "" {
				return fmt.Errorf("%w: import needs --db or a database in the config", internalerr.ErrInvalidConfig)
			}

			facts, err := config.LoadFacts(args[0])
			if err != nil {
				return err
			}
			added, err := engine.Assert(cmd.Context(), facts...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d new facts (%d read)\n", added, len(facts))
			return nil
		},
	}
}

func newUnifyCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "unify X Y",
		Short: "Print the most general unifier of two terms",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, _, cleanup, err := buildEngine(cmd, opts)
			if err != nil {
				return err
			}
			defer cleanup()

			s, ok, err := engine.Unify(args[0], args[1])
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "no unifier")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), s)
			return nil
		},
	}
}

// buildEngine loads the configuration and fact source and applies flag
// overrides. Flags win over the configuration file when set explicitly.
func buildEngine(cmd *cobra.Command, opts *cliOptions) (*planmatch.Engine, *config.Config, func(), error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	loader := config.Loader{
		ConfigPath:   opts.configPath,
		FactsPath:    opts.factsPath,
		DatabasePath: opts.dbPath,
	}
	components, err := loader.Load(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	cfg := components.Config

	flags := cmd.Flags()
	if flags.Changed("epsilon") {
		cfg.Engine.Epsilon = opts.epsilon
	}
	if flags.Changed("occurs-check") {
		cfg.Engine.OccursCheck = opts.occursCheck
	}
	if flags.Changed("seed") {
		cfg.Engine.Seed = opts.seed
	}
	if opts.verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		components.Store.Close()
		return nil, nil, nil, err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		components.Store.Close()
		return nil, nil, nil, err
	}

	var rng *rand.Rand
	if cfg.Engine.Seed != 0 {
		rng = rand.New(rand.NewPCG(cfg.Engine.Seed, cfg.Engine.Seed))
	}

	engine := planmatch.New(planmatch.Options{
		Store:       components.Store,
		Logger:      logger,
		Epsilon:     cfg.Engine.Epsilon,
		OccursCheck: cfg.Engine.OccursCheck,
		Rand:        rng,
	})
	logger.Debug("engine ready",
		zap.String("facts", cfg.Facts),
		zap.String("database", cfg.Database),
		zap.Float64("epsilon", cfg.Engine.Epsilon),
		zap.Bool("occurs_check", cfg.Engine.OccursCheck),
		zap.Uint64("seed", cfg.Engine.Seed),
	)

	cleanup := func() {
		if err := engine.Close(); err != nil {
			logger.Warn("close store", zap.Error(err))
		}
		_ = logger.Sync()
	}
	return engine, cfg, cleanup, nil
}
