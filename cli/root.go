/*
root.go - Command tree of the ledger binary

PURPOSE:
  Builds the cobra command tree and the shared setup every command needs:
  configuration, logger, SQLite store and ledger service.

COMMANDS:
  ledger serve                  HTTP API + integrity scheduler
  ledger validate               Integrity check, exit 1 on discrepancies
  ledger repair                 Create missing Unassigned envelopes
  ledger balances               Account and envelope balances by status
  ledger scenario list          Embedded demo budgets
  ledger scenario load <id>     Reset the database and load a demo budget

PERSISTENT FLAGS:
  --config   YAML config file (also LEDGER_CONFIG)
  --db       SQLite database path, overrides config and LEDGER_DB_PATH

SEE ALSO:
  - config/config.go: configuration sources and precedence
  - cmd/ledger/main.go: entry point
*/
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/warp/envelope-ledger/config"
	"github.com/warp/envelope-ledger/ledger"
	"github.com/warp/envelope-ledger/logging"
	"github.com/warp/envelope-ledger/store/sqlite"
)

// Version is overridden at build time with -ldflags.
var Version = "dev"

// ErrDiscrepancies is returned by validate when the ledger is inconsistent,
// so the process exits non-zero.
var ErrDiscrepancies = errors.New("integrity discrepancies found")

type rootOptions struct {
	configPath string
	dbPath     string
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:     "ledger",
		Short:   "Envelope budgeting ledger",
		Version: Version,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&opts.dbPath, "db", "", "SQLite database path")

	rootCmd.AddCommand(
		newServeCommand(opts),
		newValidateCommand(opts),
		newRepairCommand(opts),
		newBalancesCommand(opts),
		newScenarioCommand(opts),
	)
	return rootCmd
}

// app is what a command works with once setup has succeeded.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *sqlite.Store
	svc    *ledger.Service
}

func (a *app) Close() error {
	return a.store.Close()
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.dbPath != "" {
		cfg.Database.Path = o.dbPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// open loads configuration and opens the store. Logs go to logOut so that
// command output on stdout stays clean. The caller must Close the returned
// app.
func (o *rootOptions) open(ctx context.Context, logOut io.Writer) (*app, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	logger := logging.NewWithWriter(logOut, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	st, err := sqlite.Open(cfg.Database.Path, cfg.Database.Driver)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.Database.Path, err)
	}
	logging.For(logger, logging.ComponentStorage).InfoContext(ctx, "database opened",
		"path", cfg.Database.Path, "driver", cfg.Database.Driver)

	svc := ledger.NewService(st, ledger.WithLogger(logging.For(logger, logging.ComponentLedger)))
	return &app{cfg: cfg, logger: logger, store: st, svc: svc}, nil
}
