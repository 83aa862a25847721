package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/vinceaperri/azure-linux-pkg-impact-analyzer/internal/analyzer"
	"github.com/vinceaperri/azure-linux-pkg-impact-analyzer/internal/catalog"
	"github.com/vinceaperri/azure-linux-pkg-impact-analyzer/internal/graph"
	"github.com/vinceaperri/azure-linux-pkg-impact-analyzer/internal/output"
	"github.com/vinceaperri/azure-linux-pkg-impact-analyzer/internal/rpm"
	"github.com/vinceaperri/azure-linux-pkg-impact-analyzer/internal/scanner"
	"github.com/vinceaperri/azure-linux-pkg-impact-analyzer/internal/snapshots"
	"github.com/vinceaperri/azure-linux-pkg-impact-analyzer/internal/store"
)

// pipelineOptions selects how one analysis runs.
type pipelineOptions struct {
	Output     string
	Snapshot   string
	Regenerate bool
	Workers    int
	Delimiter  rune
	Progress   io.Writer // nil disables progress output
}

// pipelineResult is a completed analysis.
type pipelineResult struct {
	Catalog *catalog.Catalog
	Graph   *graph.Graph
	Records []analyzer.Record
	Source  string // store.SourceScan or store.SourceSnapshot
	RunID   int64  // zero when no history is configured
}

// listCatalog registers every installed package.
func listCatalog(ctx context.Context, client *rpm.Client, progress io.Writer) (*catalog.Catalog, error) {
	var spinner *output.Spinner
	if progress != nil {
		spinner = output.NewSpinner(progress, "Listing installed packages")
		spinner.Start()
	}

	cat, err := scanner.Inventory(ctx, client)
	if spinner != nil {
		if err != nil {
			spinner.Stop()
		} else {
			spinner.StopWithMessage(output.Success(fmt.Sprintf("%s installed packages", humanize.Comma(int64(cat.Len())))))
		}
	}
	return cat, err
}

// runPipeline builds or loads the dependency graph for cat, computes every
// record and writes the report. Nothing is written unless every step
// succeeds.
func runPipeline(ctx context.Context, client *rpm.Client, cat *catalog.Catalog, opts pipelineOptions) (*pipelineResult, error) {
	logger := loggerFromContext(ctx)
	started := time.Now()

	result := &pipelineResult{Catalog: cat, Source: store.SourceScan}
	snaps := snapshots.New(opts.Snapshot, logger)

	if snaps.Reusable(opts.Regenerate) {
		g, err := snaps.Load()
		if err != nil {
			return nil, err
		}
		result.Graph = g
		result.Source = store.SourceSnapshot
		logger.Info("reusing dependency graph", "snapshot", opts.Snapshot)
		if missing := missingNodes(cat, g); len(missing) > 0 {
			logger.Warn("snapshot predates installed packages, removal sizes may be understated; rerun with --regenerate",
				"snapshot", opts.Snapshot,
				"missing", len(missing),
				"packages", strings.Join(missing, " "))
		}
	} else {
		s := scanner.New(client, logger)
		s.Workers = opts.Workers
		bar := newBar(opts.Progress, cat.Len(), "Querying dependents")
		if bar != nil {
			s.OnProgress = bar.Update
		}

		g, err := s.Build(ctx, cat)
		if err != nil {
			return nil, err
		}
		if bar != nil {
			bar.Finish()
		}
		result.Graph = g

		if opts.Snapshot != "" {
			if err := snaps.Save(g); err != nil {
				return nil, err
			}
		}
	}

	a := analyzer.New(cat, result.Graph, logger)
	a.Workers = opts.Workers
	bar := newBar(opts.Progress, cat.Len(), "Computing removal impact")
	if bar != nil {
		a.OnProgress = bar.Update
	}
	records, err := a.Analyze(ctx)
	if err != nil {
		if result.Source == store.SourceSnapshot && errors.Is(err, graph.ErrGraphCatalogMismatch) {
			return nil, fmt.Errorf("snapshot %s does not match the installed packages, rerun with --regenerate: %w", opts.Snapshot, err)
		}
		return nil, err
	}
	if bar != nil {
		bar.Finish()
	}
	result.Records = records

	err = output.WriteFileAtomic(opts.Output, func(w io.Writer) error {
		return output.WriteReport(w, records, output.ReportOptions{Delimiter: opts.Delimiter})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to write report: %w", err)
	}

	if cfg.DB != "" {
		id, err := recordRun(result, opts, started)
		if err != nil {
			return nil, err
		}
		result.RunID = id
	}

	logger.Info("report written",
		"path", opts.Output,
		"packages", len(records),
		"edges", result.Graph.EdgeCount(),
		"graph", result.Source,
		"elapsed", time.Since(started).Round(time.Millisecond))
	for _, r := range analyzer.TopN(records, 3) {
		logger.Debug("large removal", "package", r.Identity, "bytes", r.TotalRemovalBytes, "co_removed", len(r.CoRemoved))
	}
	return result, nil
}

// recordRun stores the analysis in the run history and prunes old runs.
func recordRun(result *pipelineResult, opts pipelineOptions, started time.Time) (int64, error) {
	st, err := openHistory()
	if err != nil {
		return 0, err
	}
	defer st.Close()

	run := &store.Run{
		StartedAt:    started,
		Fingerprint:  result.Catalog.Fingerprint(),
		GraphSource:  result.Source,
		SnapshotPath: opts.Snapshot,
		OutputPath:   opts.Output,
	}
	id, err := st.RecordRun(run, result.Catalog, result.Graph, result.Records)
	if err != nil {
		return 0, fmt.Errorf("failed to record run: %w", err)
	}

	if cfg.KeepRuns > 0 {
		if _, err := st.PruneRuns(cfg.KeepRuns); err != nil {
			return 0, err
		}
	}
	return id, nil
}

// missingNodes returns the catalog identities the graph has never seen,
// which means they were installed after the graph was built.
func missingNodes(cat *catalog.Catalog, g *graph.Graph) []string {
	var missing []string
	for _, id := range cat.Identities() {
		if !g.HasNode(id) {
			missing = append(missing, id)
		}
	}
	return missing
}

func newBar(w io.Writer, total int, desc string) *output.ProgressBar {
	if w == nil {
		return nil
	}
	return output.NewProgress(w, total, desc)
}
