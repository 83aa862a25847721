package app

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.trai.ch/zerr"

	"github.com/vinceaperri/azure-linux-pkg-impact-analyzer/internal/analyzer"
	"github.com/vinceaperri/azure-linux-pkg-impact-analyzer/internal/catalog"
	"github.com/vinceaperri/azure-linux-pkg-impact-analyzer/internal/output"
	"github.com/vinceaperri/azure-linux-pkg-impact-analyzer/internal/store"
)

var explainCmd = &cobra.Command{
	Use:   "explain PACKAGE...",
	Short: "Show what removing a package would take with it",
	Long: `Show the removal impact recorded by the latest analyze run for a package:
its own size, the total size reclaimed, and every co-removed package with its
size. PACKAGE is a package name or a full identity such as
bash-0-5.2.15-1.azl3.x86_64.

With several packages the combined removal is shown instead. Packages that
depend on more than one of them are counted once.

explain reads the run history, so analyze must have run with --db first.`,
	Example: `  # Explain a single package
  pkgimpact --db runs.db explain openssl-libs

  # Combined impact of removing two packages together
  pkgimpact --db runs.db explain python3 perl`,
	Args: checkArgs(cobra.MinimumNArgs(1)),
	RunE: runExplain,
}

func init() {
	RootCmd.AddCommand(explainCmd)
}

func runExplain(cmd *cobra.Command, args []string) error {
	st, run, err := readHistory()
	if err != nil {
		return err
	}
	defer st.Close()

	ids := make([]string, 0, len(args))
	var matched []analyzer.Record
	for _, query := range args {
		rec, err := findRecord(st, run.ID, query)
		if err != nil {
			return err
		}
		ids = append(ids, rec.Identity)
		matched = append(matched, rec)
	}

	if len(matched) == 1 {
		all, err := st.ListRecords(run.ID)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), output.RenderExplain(matched[0], coRemovedRecords(matched[0], all)))
		return nil
	}

	cat, err := st.LoadCatalog(run.ID)
	if err != nil {
		return err
	}
	g, err := st.LoadGraph(run.ID)
	if err != nil {
		return err
	}

	removal, err := analyzer.New(cat, g, loggerFromContext(cmd.Context())).Combined(ids)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), output.RenderRemoval(removal))
	return nil
}

// findRecord resolves a name or identity to exactly one record of run.
func findRecord(st *store.Store, runID int64, query string) (analyzer.Record, error) {
	recs, err := st.FindRecords(runID, query)
	if err != nil {
		return analyzer.Record{}, err
	}
	if len(recs) > 1 {
		ids := make([]string, len(recs))
		for i, r := range recs {
			ids[i] = r.Identity
		}
		err := zerr.Wrap(catalog.ErrMultipleMatches,
			fmt.Sprintf("%s matches %s; pass a full identity", query, strings.Join(ids, ", ")))
		return analyzer.Record{}, zerr.With(err, "name", query)
	}
	return recs[0], nil
}

// coRemovedRecords returns the records of r's co-removed packages.
func coRemovedRecords(r analyzer.Record, all []analyzer.Record) []analyzer.Record {
	byID := make(map[string]analyzer.Record, len(all))
	for _, rec := range all {
		byID[rec.Identity] = rec
	}

	members := make([]analyzer.Record, 0, len(r.CoRemoved))
	for _, id := range r.CoRemoved {
		if rec, ok := byID[id]; ok {
			members = append(members, rec)
		}
	}
	return members
}
