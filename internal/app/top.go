package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vinceaperri/azure-linux-pkg-impact-analyzer/internal/analyzer"
	"github.com/vinceaperri/azure-linux-pkg-impact-analyzer/internal/output"
)

var (
	topN int

	topCmd = &cobra.Command{
		Use:   "top",
		Short: "List the packages whose removal reclaims the most storage",
		Long: `Print the packages from the latest recorded run ordered by the storage
their removal would reclaim, largest first, followed by totals for the run.

top reads the run history, so analyze must have run with --db first.`,
		Example: `  # The ten largest removals
  pkgimpact --db runs.db top

  # The three largest
  pkgimpact --db runs.db top -n 3`,
		Args: checkArgs(cobra.NoArgs),
		RunE: runTop,
	}
)

func init() {
	topCmd.Flags().IntVarP(&topN, "count", "n", 10, "number of packages to show")
	RootCmd.AddCommand(topCmd)
}

func runTop(cmd *cobra.Command, args []string) error {
	if topN < 1 {
		return usageError(cmd, fmt.Errorf("-n must be at least 1, got %d", topN))
	}

	st, run, err := readHistory()
	if err != nil {
		return err
	}
	defer st.Close()

	top, err := st.TopRecords(run.ID, topN)
	if err != nil {
		return err
	}
	all, err := st.ListRecords(run.ID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprint(out, output.RenderImpactTable(top))
	fmt.Fprintln(out)
	fmt.Fprint(out, output.RenderSummary(analyzer.Summarize(all)))
	return nil
}
