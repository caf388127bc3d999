package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sessionvault/legacymigrate/internal/config"
	"github.com/sessionvault/legacymigrate/internal/migration"
	"github.com/sessionvault/legacymigrate/internal/migrations"
	"github.com/sessionvault/legacymigrate/internal/store"
)

var (
	cfgFile string
	homeDir string
	verbose bool
	cfg     *config.Config
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "legacymigrate",
	Short: "Migrate a legacy Session key-value store into SQLite",
	Long: `legacymigrate imports the legacy key-value store of a Session client
into the relational SQLite store, applying the ordered schema and data
migrations and recording which have run.

Run 'legacymigrate migrate' to bring a store up to date, then 'verify',
'stats' and 'search' to inspect the result.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "version" {
			return nil
		}

		var err error
		cfg, err = config.Load(cfgFile, homeDir)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		level, err := logLevel(cfg.Log.Level, verbose)
		if err != nil {
			return err
		}
		logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
			Level: level,
		}))

		if err := cfg.EnsureHomeDir(); err != nil {
			return fmt.Errorf("create data directory %s: %w", cfg.HomeDir, err)
		}
		return nil
	},
}

// Execute runs the root command with a background context.
// Prefer ExecuteContext for signal-aware execution.
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with the given context,
// enabling graceful shutdown when the context is cancelled.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// logLevel resolves the configured level; --verbose always wins.
func logLevel(configured string, verbose bool) (slog.Level, error) {
	if verbose {
		return slog.LevelDebug, nil
	}
	if configured == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(configured))); err != nil {
		return 0, fmt.Errorf("invalid log.level %q: %w", configured, err)
	}
	return level, nil
}

var errNoStore = errors.New("no relational store")

// openExistingStore opens the configured relational store for read-only
// commands. It refuses to create one.
func openExistingStore() (*store.Store, error) {
	path := cfg.DatabasePath()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w at %s (run 'legacymigrate migrate' first)", errNoStore, path)
	}
	s, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return s, nil
}

// newRunner builds a runner over every unit. deps only matters for runs;
// status queries pass the zero value.
func newRunner(s *store.Store, deps migrations.Deps, opts ...migration.Option) (*migration.Runner, error) {
	opts = append([]migration.Option{migration.WithLogger(logger)}, opts...)
	return migration.New(s, migrations.All(deps), opts...)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.legacymigrate/config.toml)")
	rootCmd.PersistentFlags().StringVar(&homeDir, "home", "", "home directory (overrides LEGACYMIGRATE_HOME)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
