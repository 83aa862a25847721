package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/vinceaperri/azure-linux-pkg-impact-analyzer/internal/config"
	"github.com/vinceaperri/azure-linux-pkg-impact-analyzer/internal/output"
	"github.com/vinceaperri/azure-linux-pkg-impact-analyzer/internal/scanner"
	"github.com/vinceaperri/azure-linux-pkg-impact-analyzer/internal/watcher"
)

var (
	watchGraph     string
	watchDelimiter string
	watchWorkers   int
	watchDebounce  time.Duration
	watchRPMDBDir  string
	watchPIDFile   string

	watchCmd = &cobra.Command{
		Use:   "watch OUTPUT",
		Short: "Keep a report up to date as packages are installed and removed",
		Long: `Write the report to OUTPUT, then watch the RPM database directory and
rewrite the report whenever the set of installed packages changes.

Bursts of database writes are coalesced: the installed packages are listed
again only after the directory has been quiet for the debounce window, and the
dependency graph is rebuilt only when that list differs from the previous one.
A failed rebuild is logged and the watch continues with the previous report.

watch runs in the foreground until interrupted. A PID file prevents two
watchers from running at once.`,
		Example: `  # Keep impact.csv current
  pkgimpact watch impact.csv

  # Keep the graph snapshot current too, and record every rebuild
  pkgimpact --db runs.db watch impact.csv --graph rpm-graph.txt

  # Watch a database mounted from another root
  pkgimpact watch impact.csv --rpmdb-dir /mnt/sysroot/var/lib/rpm`,
		Args: checkArgs(cobra.ExactArgs(1)),
		RunE: runWatch,
	}
)

func init() {
	watchCmd.Flags().StringVar(&watchGraph, "graph", "", "dependency graph snapshot to keep current (default: snapshot from config)")
	watchCmd.Flags().StringVar(&watchDelimiter, "delimiter", "", "report field delimiter, a single character or 'tab' (default: ,)")
	watchCmd.Flags().IntVar(&watchWorkers, "workers", 0, "concurrent rpm queries (default: workers from config)")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 0, "quiet period before a change is handled (default: watch_debounce from config)")
	watchCmd.Flags().StringVar(&watchRPMDBDir, "rpmdb-dir", "", "RPM database directory to watch (default: rpmdb_dir from config)")
	watchCmd.Flags().StringVar(&watchPIDFile, "pid-file", "", "PID file path (default: $XDG_CONFIG_HOME/pkgimpact/watch.pid)")

	RootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	opts, err := watchOptions(cmd, args[0])
	if err != nil {
		return usageError(cmd, err)
	}

	ctx := cmd.Context()
	logger := loggerFromContext(ctx)

	pidFile := watchPIDFile
	if pidFile == "" {
		dir, err := config.Dir()
		if err != nil {
			return fmt.Errorf("failed to get default PID file path: %w", err)
		}
		pidFile = filepath.Join(dir, "watch.pid")
	}
	release, err := watcher.AcquireLock(pidFile)
	if err != nil {
		return err
	}
	defer func() {
		if err := release(); err != nil {
			logger.Warn("failed to release watch lock", "err", err)
		}
	}()

	w, err := watcher.New(cfg.RPMDBDir, cfg.WatchDebounce, logger)
	if err != nil {
		return err
	}

	client, err := newRPMClient(logger)
	if err != nil {
		w.Close()
		return err
	}
	cat, err := listCatalog(ctx, client, opts.Progress)
	if err != nil {
		w.Close()
		return err
	}
	if _, err := runPipeline(ctx, client, cat, opts); err != nil {
		w.Close()
		return err
	}
	if !quiet {
		fmt.Fprintln(cmd.OutOrStdout(), output.Success(fmt.Sprintf("Wrote %s, watching %s (press Ctrl+C to stop)", opts.Output, cfg.RPMDBDir)))
	}

	// Rebuilds run unattended; progress bars would interleave with logs.
	opts.Progress = nil
	last := cat.Fingerprint()

	return w.Run(ctx, func(ctx context.Context, paths []string) error {
		// A fresh client drops capability lookups cached before the change.
		client, err := newRPMClient(logger)
		if err != nil {
			return err
		}
		cat, err := scanner.Inventory(ctx, client)
		if err != nil {
			return err
		}
		if cat.Fingerprint() == last {
			logger.Debug("installed packages unchanged", "files", len(paths))
			return nil
		}

		logger.Info("installed packages changed, rebuilding", "packages", cat.Len())
		if _, err := runPipeline(ctx, client, cat, opts); err != nil {
			return err
		}
		last = cat.Fingerprint()
		return nil
	})
}

// watchOptions applies the command flags on top of the configuration.
func watchOptions(cmd *cobra.Command, outputPath string) (pipelineOptions, error) {
	flags := cmd.Flags()

	if flags.Changed("workers") {
		if watchWorkers < 1 {
			return pipelineOptions{}, fmt.Errorf("--workers must be at least 1, got %d", watchWorkers)
		}
		cfg.Workers = watchWorkers
	}
	if flags.Changed("debounce") {
		cfg.WatchDebounce = watchDebounce
	}
	if flags.Changed("rpmdb-dir") {
		cfg.RPMDBDir = watchRPMDBDir
	}
	if flags.Changed("delimiter") {
		cfg.Delimiter = watchDelimiter
	}
	if flags.Changed("graph") {
		cfg.Snapshot = watchGraph
	}

	delim, err := output.ParseDelimiter(cfg.Delimiter)
	if err != nil {
		return pipelineOptions{}, err
	}
	if err := cfg.Validate(); err != nil {
		return pipelineOptions{}, err
	}
	if cfg.RPMDBDir == "" {
		return pipelineOptions{}, errors.New("rpmdb_dir must not be empty")
	}

	// A snapshot only records dependents of packages it knew about, so a
	// long-running watch never trusts one written before it started.
	return pipelineOptions{
		Output:     outputPath,
		Snapshot:   cfg.Snapshot,
		Regenerate: true,
		Workers:    cfg.Workers,
		Delimiter:  delim,
		Progress:   progressWriter(cmd),
	}, nil
}
