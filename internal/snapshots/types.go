// Package snapshots persists dependency graphs so later runs can skip the
// expensive per-package queries.
//
// A snapshot holds one line per package, sorted by identity:
//
//	identity:dependent1 dependent2
//
// Dependents are sorted and separated by a single space. A package nothing
// requires has an empty list after the colon. Every line, including the
// last, ends with '\n'.
package snapshots

import (
	"github.com/charmbracelet/log"
	"go.trai.ch/zerr"
)

// ErrMalformedGraphRecord is returned when a snapshot line cannot be parsed.
var ErrMalformedGraphRecord = zerr.New("malformed graph record")

// Manager loads and saves the snapshot at Path.
type Manager struct {
	Path   string
	logger *log.Logger
}

// New creates a new snapshot Manager.
func New(path string, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{
		Path:   path,
		logger: logger,
	}
}
