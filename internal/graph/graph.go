// Package graph holds the reverse dependency graph of installed packages
// and the closure computation over it.
package graph

import (
	"maps"
	"slices"

	"go.trai.ch/zerr"
)

// ErrGraphCatalogMismatch is returned when a graph refers to packages the
// catalog does not know.
var ErrGraphCatalogMismatch = zerr.New("dependency graph does not match the installed packages")

// Set is a set of package identities.
type Set map[string]struct{}

// Sorted returns the members in lexicographic order.
func (s Set) Sorted() []string {
	return slices.Sorted(maps.Keys(s))
}

// Has reports whether id is a member.
func (s Set) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Graph maps an identity to the identities that directly require it.
// It is not safe for concurrent mutation; concurrent reads are fine.
type Graph struct {
	edges map[string]Set
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{edges: make(map[string]Set)}
}

// AddNode registers id with no dependents if it is not present yet.
func (g *Graph) AddNode(id string) {
	if _, ok := g.edges[id]; !ok {
		g.edges[id] = make(Set)
	}
}

// AddEdge records that dependent directly requires id.
func (g *Graph) AddEdge(id, dependent string) {
	g.AddNode(id)
	g.edges[id][dependent] = struct{}{}
}

// Dependents returns the direct dependents of id, sorted.
func (g *Graph) Dependents(id string) []string {
	return g.edges[id].Sorted()
}

// HasNode reports whether id has an entry.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.edges[id]
	return ok
}

// Nodes returns every identity with an entry, sorted.
func (g *Graph) Nodes() []string {
	return slices.Sorted(maps.Keys(g.edges))
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.edges) }

// EdgeCount returns the total number of edges.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, deps := range g.edges {
		n += len(deps)
	}
	return n
}

// Equal reports whether a and b contain the same nodes and edges.
func Equal(a, b *Graph) bool {
	if a.Len() != b.Len() {
		return false
	}
	for id, deps := range a.edges {
		other, ok := b.edges[id]
		if !ok || !maps.Equal(deps, other) {
			return false
		}
	}
	return true
}

// Membership is the part of a package catalog Validate needs.
type Membership interface {
	Has(identity string) bool
}

// Validate checks that every node and every edge endpoint of g is known
// to catalog.
func (g *Graph) Validate(catalog Membership) error {
	for _, id := range g.Nodes() {
		if !catalog.Has(id) {
			return zerr.With(zerr.Wrap(ErrGraphCatalogMismatch, "graph node is not installed"), "identity", id)
		}
		for _, dep := range g.Dependents(id) {
			if !catalog.Has(dep) {
				err := zerr.With(zerr.Wrap(ErrGraphCatalogMismatch, "graph edge points to a package that is not installed"), "identity", id)
				return zerr.With(err, "dependent", dep)
			}
		}
	}
	return nil
}
