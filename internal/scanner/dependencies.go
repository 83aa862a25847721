package scanner

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.trai.ch/zerr"

	"github.com/vinceaperri/azure-linux-pkg-impact-analyzer/internal/catalog"
)

// dependentsOf resolves the direct dependents of id to catalog identities.
// Self-edges are dropped.
func (s *Scanner) dependentsOf(ctx context.Context, cat *catalog.Catalog, id string) ([]string, error) {
	name, err := cat.ResolveName(id)
	if err != nil {
		return nil, err
	}

	// The database is queried by name, so a name shared by several installed
	// versions cannot be attributed to one of them.
	if _, err := cat.IdentityOf(name); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "cannot query dependents of "+id), "identity", id)
	}

	names, err := s.querier.DirectDependents(ctx, name)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, zerr.With(fmt.Errorf("%w for %s: %w", ErrQueryFailed, id, err), "identity", id)
	}

	deps := make([]string, 0, len(names))
	for _, depName := range names {
		depID, err := cat.IdentityOf(depName)
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, "dependent of "+id), "required_by", id)
		}
		if depID == id {
			continue
		}
		deps = append(deps, depID)
	}

	slices.Sort(deps)
	return slices.Compact(deps), nil
}
