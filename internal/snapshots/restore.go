package snapshots

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.trai.ch/zerr"

	"github.com/vinceaperri/azure-linux-pkg-impact-analyzer/internal/catalog"
	"github.com/vinceaperri/azure-linux-pkg-impact-analyzer/internal/graph"
)

// Read parses a snapshot. Any malformed line fails the whole read; no
// partial graph is returned.
func Read(r io.Reader) (*graph.Graph, error) {
	g := graph.New()
	br := bufio.NewReader(r)

	for lineNo := 1; ; lineNo++ {
		line, err := br.ReadString('\n')
		if errors.Is(err, io.EOF) {
			if line != "" {
				return nil, malformed(lineNo, "final line is not terminated by a newline")
			}
			return g, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read graph snapshot: %w", err)
		}

		if err := parseRecord(g, strings.TrimSuffix(line, "\n"), lineNo); err != nil {
			return nil, err
		}
	}
}

func parseRecord(g *graph.Graph, line string, lineNo int) error {
	id, deps, ok := strings.Cut(line, ":")
	if !ok {
		return malformed(lineNo, "missing ':' separator")
	}
	if id == "" {
		return malformed(lineNo, "empty identity")
	}
	if err := catalog.ValidateIdentity(id); err != nil {
		return malformed(lineNo, err.Error())
	}
	if g.HasNode(id) {
		return malformed(lineNo, "identity "+id+" appears more than once")
	}

	g.AddNode(id)
	if deps == "" {
		return nil
	}
	for _, dep := range strings.Split(deps, " ") {
		if dep == "" {
			return malformed(lineNo, "empty dependent")
		}
		if err := catalog.ValidateIdentity(dep); err != nil {
			return malformed(lineNo, err.Error())
		}
		g.AddEdge(id, dep)
	}
	return nil
}

func malformed(lineNo int, reason string) error {
	return zerr.With(zerr.Wrap(ErrMalformedGraphRecord, fmt.Sprintf("line %d: %s", lineNo, reason)), "line", lineNo)
}

// Reusable reports whether an existing snapshot should be loaded instead
// of rebuilding the graph: the file exists, is not empty, and refresh was
// not requested.
func (m *Manager) Reusable(refresh bool) bool {
	if refresh || m.Path == "" {
		return false
	}
	info, err := os.Stat(m.Path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Size() > 0
}

// Load reads the snapshot at Path.
func (m *Manager) Load() (*graph.Graph, error) {
	f, err := os.Open(m.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open graph snapshot: %w", err)
	}
	defer f.Close()

	g, err := Read(f)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to load graph snapshot "+m.Path), "path", m.Path)
	}

	m.logger.Debug("graph snapshot loaded", "path", m.Path, "packages", g.Len(), "edges", g.EdgeCount())
	return g, nil
}
