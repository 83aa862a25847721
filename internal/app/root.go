package app

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/vinceaperri/azure-linux-pkg-impact-analyzer/internal/config"
	"github.com/vinceaperri/azure-linux-pkg-impact-analyzer/internal/rpm"
)

var (
	configPath string
	dbPath     string
	verbose    bool
	quiet      bool

	// cfg is resolved before every command runs.
	cfg *config.Config

	// rpmRunner executes rpm. Nil runs the real binary.
	rpmRunner rpm.Runner

	// RootCmd is the root command for pkgimpact
	RootCmd = &cobra.Command{
		Use:   "pkgimpact",
		Short: "Measure how much storage removing each installed RPM would reclaim",
		Long: `pkgimpact inspects the RPM database of an Azure Linux host and reports, for
every installed package, which other packages would be left broken if it were
removed and how much storage removing all of them together would reclaim.

pkgimpact never installs, removes or modifies a package.

Configuration is read from $XDG_CONFIG_HOME/pkgimpact/config.toml, a .env file
in the working directory, and PKGIMPACT_* environment variables, in that order.
Command flags override all of them.`,
		Example: `  # Write a report for every installed package
  pkgimpact analyze impact.csv

  # Reuse a saved dependency graph between runs
  pkgimpact analyze impact.csv --graph /var/tmp/rpm-graph.txt

  # Record runs and inspect the largest removals
  pkgimpact --db ~/.local/share/pkgimpact/runs.db analyze impact.csv
  pkgimpact --db ~/.local/share/pkgimpact/runs.db top -n 10
  pkgimpact --db ~/.local/share/pkgimpact/runs.db explain openssl-libs`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
	}
)

func init() {
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: $XDG_CONFIG_HOME/pkgimpact/config.toml)")
	RootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "run history database (default: db from config, none if unset)")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	RootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "suppress progress output and informational logs")

	RootCmd.SuggestionsMinimumDistance = 2
	RootCmd.SetFlagErrorFunc(usageError)
}

// Execute runs the root command with ctx, which commands use for
// cancellation.
func Execute(ctx context.Context) error {
	return RootCmd.ExecuteContext(ctx)
}

// setup loads the configuration and attaches the logger to the command
// context.
func setup(cmd *cobra.Command, args []string) error {
	level := log.InfoLevel
	switch {
	case verbose:
		level = log.DebugLevel
	case quiet:
		level = log.WarnLevel
	}
	logger := newLogger(cmd.ErrOrStderr(), level)
	log.SetDefault(logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(withLogger(ctx, logger))

	loaded, err := config.Load(config.LoadOptions{Path: configPath})
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cmd.Flags().Changed("db") {
		loaded.DB = dbPath
	}
	cfg = loaded

	logger.Debug("configuration loaded", "workers", cfg.Workers, "rpm", cfg.RPMPath, "db", cfg.DB)
	return nil
}

// usageError prints the command usage before returning err.
func usageError(cmd *cobra.Command, err error) error {
	cmd.PrintErrln(cmd.UsageString())
	return err
}

// checkArgs wraps a positional argument validator so failures print usage.
func checkArgs(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			return usageError(cmd, err)
		}
		return nil
	}
}
