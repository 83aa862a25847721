// Package scanner builds the reverse dependency graph of the installed
// packages by querying the package database for each one.
package scanner

//go:generate mockgen -source=scanner.go -destination=mocks/mock_querier.go -package=mocks

import (
	"context"
	"runtime"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
	"go.trai.ch/zerr"

	"github.com/vinceaperri/azure-linux-pkg-impact-analyzer/internal/catalog"
	"github.com/vinceaperri/azure-linux-pkg-impact-analyzer/internal/graph"
)

// DependentsQuerier answers "which installed packages directly require this
// one". An empty result means nothing does; a failed lookup must be
// reported as an error.
type DependentsQuerier interface {
	DirectDependents(ctx context.Context, name string) ([]string, error)
}

// Scanner builds dependency graphs.
type Scanner struct {
	querier DependentsQuerier
	logger  *log.Logger

	// Workers bounds concurrent queries. Values below 1 use runtime.NumCPU.
	Workers int

	// OnProgress, when set, is called after each package is queried.
	OnProgress func(done, total int)
}

// New creates a Scanner backed by querier.
func New(querier DependentsQuerier, logger *log.Logger) *Scanner {
	if logger == nil {
		logger = log.Default()
	}
	return &Scanner{querier: querier, logger: logger}
}

// Build queries the dependents of every package in cat and returns the
// resulting graph. Every catalog identity becomes a node. The first
// failure cancels outstanding queries and is returned; no partial graph
// is produced.
func (s *Scanner) Build(ctx context.Context, cat *catalog.Catalog) (*graph.Graph, error) {
	ids := cat.Identities()
	results := make([][]string, len(ids))

	workers := s.Workers
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
			deps, err := s.dependentsOf(gctx, cat, id)
			if err != nil {
				return err
			}
			results[i] = deps
			if s.OnProgress != nil {
				s.OnProgress(int(done.Add(1)), len(ids))
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

	out := graph.New()
	for i, id := range ids {
		out.AddNode(id)
		for _, dep := range results[i] {
			out.AddEdge(id, dep)
		}
	}

	s.logger.Debug("dependency graph built", "packages", out.Len(), "edges", out.EdgeCount())
	return out, nil
}

// ErrQueryFailed wraps collaborator failures with the package they were for.
var ErrQueryFailed = zerr.New("dependents query failed")
