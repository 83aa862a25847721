package store

import "time"

// Graph sources recorded for a run.
const (
	SourceScan     = "scan"
	SourceSnapshot = "snapshot"
)

// Run is one recorded analysis.
type Run struct {
	ID           int64
	StartedAt    time.Time
	Fingerprint  uint64
	PackageCount int
	EdgeCount    int
	GraphSource  string // SourceScan or SourceSnapshot
	SnapshotPath string
	OutputPath   string
}
