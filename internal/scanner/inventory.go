package scanner

import (
	"context"
	"fmt"

	"github.com/vinceaperri/azure-linux-pkg-impact-analyzer/internal/catalog"
	"github.com/vinceaperri/azure-linux-pkg-impact-analyzer/internal/rpm"
)

// PackageLister lists the installed packages.
type PackageLister interface {
	ListInstalled(ctx context.Context) ([]rpm.Package, error)
}

// Inventory lists the installed packages and registers them in a new
// Catalog.
func Inventory(ctx context.Context, lister PackageLister) (*catalog.Catalog, error) {
	packages, err := lister.ListInstalled(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list installed packages: %w", err)
	}

	entries := make([]catalog.Entry, 0, len(packages))
	for _, pkg := range packages {
		entries = append(entries, catalog.Entry{
			Identity:  pkg.Identity(),
			Name:      pkg.Name,
			SizeBytes: pkg.SizeBytes,
		})
	}

	cat, err := catalog.Load(entries)
	if err != nil {
		return nil, fmt.Errorf("failed to load package catalog: %w", err)
	}
	return cat, nil
}
