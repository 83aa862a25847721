package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vinceaperri/azure-linux-pkg-impact-analyzer/internal/output"
)

var (
	historyLimit int

	historyCmd = &cobra.Command{
		Use:   "history",
		Short: "List recorded analysis runs",
		Long: `List the analyze runs kept in the run history, newest first, with the
number of packages and dependency edges each one saw and whether the graph was
built from rpm queries or loaded from a snapshot.

Runs with the same fingerprint saw the same set of installed packages.`,
		Example: `  pkgimpact --db runs.db history
  pkgimpact --db runs.db history --limit 5`,
		Args: checkArgs(cobra.NoArgs),
		RunE: runHistory,
	}
)

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum runs to show, 0 for all")
	RootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	st, _, err := readHistory()
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.ListRuns(historyLimit)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), output.RenderRunTable(runs))
	return nil
}
