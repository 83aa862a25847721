package analyzer

import (
	"slices"

	"go.trai.ch/zerr"

	"github.com/vinceaperri/azure-linux-pkg-impact-analyzer/internal/graph"
)

// Impact computes the removal record for a single package.
func (a *Analyzer) Impact(id string) (Record, error) {
	name, err := a.catalog.ResolveName(id)
	if err != nil {
		return Record{}, err
	}
	own, err := a.catalog.SizeOf(id)
	if err != nil {
		return Record{}, err
	}

	closure := graph.ClosureOf(a.graph, id)
	delete(closure, id)

	total := own
	for member := range closure {
		size, err := a.catalog.SizeOf(member)
		if err != nil {
			return Record{}, mismatch(id, member)
		}
		total += size
	}

	return Record{
		Identity:          id,
		Name:              name,
		SizeBytes:         own,
		TotalRemovalBytes: total,
		CoRemoved:         closure.Sorted(),
	}, nil
}

// Combined computes the impact of removing every package in ids together.
// Packages already in another root's closure are counted once.
func (a *Analyzer) Combined(ids []string) (Removal, error) {
	union := make(graph.Set)
	for _, id := range ids {
		if !a.catalog.Has(id) {
			return Removal{}, mismatch(id, id)
		}
		for member := range graph.ClosureOf(a.graph, id) {
			union[member] = struct{}{}
		}
	}

	var total int64
	for member := range union {
		size, err := a.catalog.SizeOf(member)
		if err != nil {
			return Removal{}, mismatch(member, member)
		}
		total += size
	}

	roots := slices.Clone(ids)
	slices.Sort(roots)
	roots = slices.Compact(roots)
	for _, r := range roots {
		delete(union, r)
	}

	return Removal{Roots: roots, CoRemoved: union.Sorted(), TotalRemovalBytes: total}, nil
}

func mismatch(root, member string) error {
	err := zerr.Wrap(graph.ErrGraphCatalogMismatch, member+" is reachable from "+root+" but not installed")
	return zerr.With(zerr.With(err, "root", root), "member", member)
}
