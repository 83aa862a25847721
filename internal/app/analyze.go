package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vinceaperri/azure-linux-pkg-impact-analyzer/internal/output"
)

var (
	analyzeGraph          string
	analyzeRegenerate     bool
	analyzeWorkers        int
	analyzeTimeout        string
	analyzeDelimiter      string
	analyzeExpandProvides bool

	analyzeCmd = &cobra.Command{
		Use:   "analyze OUTPUT",
		Short: "Write the removal impact of every installed package to OUTPUT",
		Long: `Query the RPM database for every installed package, build the reverse
dependency graph, and write one report row per package to OUTPUT.

Each row lists the package size, the size reclaimed by removing the package
together with everything that depends on it, and the identities of those
co-removed packages.

With --graph the dependency graph is saved to PATH after it is built and
loaded from PATH on later runs instead of querying rpm again. Use
--regenerate after installing or removing packages. A snapshot that no longer
matches the installed packages is rejected.

The report is written atomically. A failed run leaves no output file and does
not replace an existing one.`,
		Example: `  # Analyze every installed package
  pkgimpact analyze impact.csv

  # Save the graph for faster reruns, tab separated output
  pkgimpact analyze impact.tsv --graph rpm-graph.txt --delimiter tab

  # Rebuild a saved graph with 8 concurrent rpm queries
  pkgimpact analyze impact.csv --graph rpm-graph.txt --regenerate --workers 8

  # Also follow virtual provides such as libssl.so.3
  pkgimpact analyze impact.csv --expand-provides`,
		Args: checkArgs(cobra.ExactArgs(1)),
		RunE: runAnalyze,
	}
)

func init() {
	analyzeCmd.Flags().StringVar(&analyzeGraph, "graph", "", "dependency graph snapshot to reuse or create (default: snapshot from config)")
	analyzeCmd.Flags().BoolVar(&analyzeRegenerate, "regenerate", false, "rebuild the graph even when the snapshot exists")
	analyzeCmd.Flags().IntVar(&analyzeWorkers, "workers", 0, "concurrent rpm queries (default: workers from config)")
	analyzeCmd.Flags().StringVar(&analyzeTimeout, "timeout", "", "per-query timeout such as 30s (default: query_timeout from config)")
	analyzeCmd.Flags().StringVar(&analyzeDelimiter, "delimiter", "", "report field delimiter, a single character or 'tab' (default: ,)")
	analyzeCmd.Flags().BoolVar(&analyzeExpandProvides, "expand-provides", false, "also count packages requiring any capability the package provides")

	RootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	opts, err := analyzeOptions(cmd, args[0])
	if err != nil {
		return usageError(cmd, err)
	}

	ctx := cmd.Context()
	logger := loggerFromContext(ctx)

	client, err := newRPMClient(logger)
	if err != nil {
		return err
	}

	cat, err := listCatalog(ctx, client, opts.Progress)
	if err != nil {
		return err
	}

	result, err := runPipeline(ctx, client, cat, opts)
	if err != nil {
		return err
	}

	if !quiet {
		fmt.Fprintln(cmd.OutOrStdout(), output.Success(fmt.Sprintf("Wrote %d records to %s", len(result.Records), opts.Output)))
		if result.RunID != 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded as run %d in %s\n", result.RunID, cfg.DB)
		}
	}
	return nil
}

// analyzeOptions applies the command flags on top of the configuration.
func analyzeOptions(cmd *cobra.Command, outputPath string) (pipelineOptions, error) {
	flags := cmd.Flags()

	if flags.Changed("workers") {
		if analyzeWorkers < 1 {
			return pipelineOptions{}, fmt.Errorf("--workers must be at least 1, got %d", analyzeWorkers)
		}
		cfg.Workers = analyzeWorkers
	}
	if flags.Changed("timeout") {
		if err := cfg.Set("query_timeout", analyzeTimeout); err != nil {
			return pipelineOptions{}, fmt.Errorf("invalid --timeout: %w", err)
		}
	}
	if flags.Changed("expand-provides") {
		cfg.ExpandProvides = analyzeExpandProvides
	}
	if flags.Changed("delimiter") {
		cfg.Delimiter = analyzeDelimiter
	}
	if flags.Changed("graph") {
		cfg.Snapshot = analyzeGraph
	}

	delim, err := output.ParseDelimiter(cfg.Delimiter)
	if err != nil {
		return pipelineOptions{}, err
	}
	if err := cfg.Validate(); err != nil {
		return pipelineOptions{}, err
	}

	return pipelineOptions{
		Output:     outputPath,
		Snapshot:   cfg.Snapshot,
		Regenerate: analyzeRegenerate,
		Workers:    cfg.Workers,
		Delimiter:  delim,
		Progress:   progressWriter(cmd),
	}, nil
}
