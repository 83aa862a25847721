package snapshots

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/vinceaperri/azure-linux-pkg-impact-analyzer/internal/graph"
	"github.com/vinceaperri/azure-linux-pkg-impact-analyzer/internal/output"
)

// Write serializes g to w.
func Write(w io.Writer, g *graph.Graph) error {
	bw := bufio.NewWriter(w)
	for _, id := range g.Nodes() {
		if _, err := fmt.Fprintf(bw, "%s:%s\n", id, strings.Join(g.Dependents(id), " ")); err != nil {
			return fmt.Errorf("failed to write graph record for %s: %w", id, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to flush graph snapshot: %w", err)
	}
	return nil
}

// Save writes g to the snapshot path atomically, creating the parent
// directory if needed. A failed save leaves any previous snapshot intact.
func (m *Manager) Save(g *graph.Graph) error {
	err := output.WriteFileAtomic(m.Path, func(w io.Writer) error {
		return Write(w, g)
	})
	if err != nil {
		return fmt.Errorf("failed to save graph snapshot: %w", err)
	}

	m.logger.Debug("graph snapshot saved", "path", m.Path, "packages", g.Len(), "edges", g.EdgeCount())
	return nil
}
