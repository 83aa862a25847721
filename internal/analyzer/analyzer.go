// Package analyzer computes how much storage removing each installed
// package would reclaim, counting everything that depends on it.
package analyzer

import (
	"context"
	"runtime"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/vinceaperri/azure-linux-pkg-impact-analyzer/internal/catalog"
	"github.com/vinceaperri/azure-linux-pkg-impact-analyzer/internal/graph"
)

// Analyzer computes removal impact over a catalog and its dependency graph.
type Analyzer struct {
	catalog *catalog.Catalog
	graph   *graph.Graph
	logger  *log.Logger

	// Workers bounds concurrent closure computations. Values below 1 use
	// runtime.NumCPU.
	Workers int

	// OnProgress, when set, is called after each record is computed.
	OnProgress func(done, total int)
}

// New creates a new Analyzer instance.
func New(cat *catalog.Catalog, g *graph.Graph, logger *log.Logger) *Analyzer {
	if logger == nil {
		logger = log.Default()
	}
	return &Analyzer{catalog: cat, graph: g, logger: logger}
}

// Analyze returns one record per catalog package in identity order. The
// graph is validated against the catalog first; any mismatch aborts the
// run without records.
func (a *Analyzer) Analyze(ctx context.Context) ([]Record, error) {
	if err := a.graph.Validate(a.catalog); err != nil {
		return nil, err
	}

	ids := a.catalog.Identities()
	records := make([]Record, len(ids))

	workers := a.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var done atomic.Int64
	for i, id := range ids {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			rec, err := a.Impact(id)
			if err != nil {
				return err
			}
			records[i] = rec
			if a.OnProgress != nil {
				a.OnProgress(int(done.Add(1)), len(ids))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.logger.Debug("removal impact computed", "packages", len(records))
	return records, nil
}
