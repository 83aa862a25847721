package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.trai.ch/zerr"

	"github.com/vinceaperri/azure-linux-pkg-impact-analyzer/internal/analyzer"
	"github.com/vinceaperri/azure-linux-pkg-impact-analyzer/internal/catalog"
	"github.com/vinceaperri/azure-linux-pkg-impact-analyzer/internal/graph"
)

var (
	// ErrNoRuns is returned when the history is empty.
	ErrNoRuns = zerr.New("no analysis runs recorded")

	// ErrRecordNotFound is returned when a run has no record for a package.
	ErrRecordNotFound = zerr.New("impact record not found")

	// ErrNotInitialized is returned when the database has no schema yet.
	ErrNotInitialized = zerr.New("history database not initialized; run 'pkgimpact analyze --db PATH' first")
)

// classify maps missing-table errors from an uninitialized database to
// ErrNotInitialized.
func classify(err error, msg string) error {
	if strings.Contains(err.Error(), "no such table") {
		return zerr.Wrap(ErrNotInitialized, msg)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Run operations

// RecordRun stores a completed analysis in a single transaction and returns
// the new run ID.
func (s *Store) RecordRun(run *Run, cat *catalog.Catalog, g *graph.Graph, records []analyzer.Record) (id int64, err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	startedAt := run.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
	}

	result, err := tx.Exec(`
		INSERT INTO runs (started_at, fingerprint, package_count, edge_count, graph_source, snapshot_path, output_path)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		startedAt.UTC().Format(time.RFC3339Nano),
		formatFingerprint(run.Fingerprint),
		cat.Len(),
		g.EdgeCount(),
		run.GraphSource,
		run.SnapshotPath,
		run.OutputPath,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	id, err = result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run ID: %w", err)
	}

	if err := insertPackages(tx, id, cat); err != nil {
		return 0, err
	}
	if err := insertDependents(tx, id, g); err != nil {
		return 0, err
	}
	if err := insertRecords(tx, id, records); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}

	run.ID = id
	run.StartedAt = startedAt
	run.PackageCount = cat.Len()
	run.EdgeCount = g.EdgeCount()
	return id, nil
}

func insertPackages(tx *sql.Tx, runID int64, cat *catalog.Catalog) error {
	stmt, err := tx.Prepare(`INSERT INTO packages (run_id, identity, name, size_bytes) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare package insert: %w", err)
	}
	defer stmt.Close()

	for _, id := range cat.Identities() {
		e, _ := cat.Lookup(id)
		if _, err := stmt.Exec(runID, e.Identity, e.Name, e.SizeBytes); err != nil {
			return fmt.Errorf("failed to insert package %s: %w", id, err)
		}
	}
	return nil
}

func insertDependents(tx *sql.Tx, runID int64, g *graph.Graph) error {
	stmt, err := tx.Prepare(`INSERT INTO dependents (run_id, identity, dependent) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare dependent insert: %w", err)
	}
	defer stmt.Close()

	for _, id := range g.Nodes() {
		for _, dep := range g.Dependents(id) {
			if _, err := stmt.Exec(runID, id, dep); err != nil {
				return fmt.Errorf("failed to insert dependency %s -> %s: %w", dep, id, err)
			}
		}
	}
	return nil
}

func insertRecords(tx *sql.Tx, runID int64, records []analyzer.Record) error {
	stmt, err := tx.Prepare(`INSERT INTO impact_records (run_id, identity, total_removal_bytes, co_removed) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare record insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.Exec(runID, r.Identity, r.TotalRemovalBytes, strings.Join(r.CoRemoved, " ")); err != nil {
			return fmt.Errorf("failed to insert impact record %s: %w", r.Identity, err)
		}
	}
	return nil
}

const runColumns = `id, started_at, fingerprint, package_count, edge_count, graph_source, snapshot_path, output_path`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var startedAt, fingerprint string
	var snapshotPath, outputPath sql.NullString

	if err := row.Scan(
		&run.ID,
		&startedAt,
		&fingerprint,
		&run.PackageCount,
		&run.EdgeCount,
		&run.GraphSource,
		&snapshotPath,
		&outputPath,
	); err != nil {
		return nil, err
	}

	var err error
	run.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse started_at for run %d: %w", run.ID, err)
	}
	run.Fingerprint, err = strconv.ParseUint(fingerprint, 16, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse fingerprint for run %d: %w", run.ID, err)
	}
	run.SnapshotPath = snapshotPath.String
	run.OutputPath = outputPath.String

	return &run, nil
}

// LatestRun returns the most recent run.
func (s *Store) LatestRun() (*Run, error) {
	row := s.db.QueryRow(`SELECT ` + runColumns + ` FROM runs ORDER BY id DESC LIMIT 1`)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, zerr.Wrap(ErrNoRuns, "run 'pkgimpact analyze' with --db first")
	}
	if err != nil {
		return nil, classify(err, "failed to get latest run")
	}
	return run, nil
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(id int64) (*Run, error) {
	run, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, zerr.With(zerr.Wrap(ErrNoRuns, fmt.Sprintf("run %d not found", id)), "run_id", id)
	}
	if err != nil {
		return nil, classify(err, fmt.Sprintf("failed to get run %d", id))
	}
	return run, nil
}

// ListRuns returns up to limit runs, newest first. limit <= 0 returns all.
func (s *Store) ListRuns(limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, classify(err, "failed to list runs")
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// PruneRuns deletes all but the newest keep runs and returns how many were
// removed.
func (s *Store) PruneRuns(keep int) (int64, error) {
	result, err := s.db.Exec(`
		DELETE FROM runs
		WHERE id NOT IN (SELECT id FROM runs ORDER BY id DESC LIMIT ?)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned runs: %w", err)
	}
	return n, nil
}

// Record operations

const recordQuery = `
	SELECT p.identity, p.name, p.size_bytes, r.total_removal_bytes, r.co_removed
	FROM impact_records r
	JOIN packages p ON p.run_id = r.run_id AND p.identity = r.identity
	WHERE r.run_id = ?
`

func scanRecords(rows *sql.Rows) ([]analyzer.Record, error) {
	defer rows.Close()

	var records []analyzer.Record
	for rows.Next() {
		var r analyzer.Record
		var coRemoved string
		if err := rows.Scan(&r.Identity, &r.Name, &r.SizeBytes, &r.TotalRemovalBytes, &coRemoved); err != nil {
			return nil, fmt.Errorf("failed to scan impact record: %w", err)
		}
		if coRemoved != "" {
			r.CoRemoved = strings.Split(coRemoved, " ")
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating impact records: %w", err)
	}
	return records, nil
}

// ListRecords returns every record of a run in identity order.
func (s *Store) ListRecords(runID int64) ([]analyzer.Record, error) {
	rows, err := s.db.Query(recordQuery+` ORDER BY p.identity`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list impact records: %w", err)
	}
	return scanRecords(rows)
}

// TopRecords returns the n records of a run with the largest total removal
// size. Ties are ordered by identity.
func (s *Store) TopRecords(runID int64, n int) ([]analyzer.Record, error) {
	rows, err := s.db.Query(recordQuery+` ORDER BY r.total_removal_bytes DESC, p.identity LIMIT ?`, runID, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query top impact records: %w", err)
	}
	return scanRecords(rows)
}

// FindRecords returns the records of a run whose identity or name equals
// query.
func (s *Store) FindRecords(runID int64, query string) ([]analyzer.Record, error) {
	rows, err := s.db.Query(recordQuery+` AND (p.identity = ? OR p.name = ?) ORDER BY p.identity`, runID, query, query)
	if err != nil {
		return nil, fmt.Errorf("failed to find impact records for %s: %w", query, err)
	}
	records, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, zerr.With(zerr.Wrap(ErrRecordNotFound, "no recorded package matches "+query), "query", query)
	}
	return records, nil
}

// Catalog and graph reconstruction

// LoadCatalog rebuilds the catalog recorded for a run.
func (s *Store) LoadCatalog(runID int64) (*catalog.Catalog, error) {
	rows, err := s.db.Query(`SELECT identity, name, size_bytes FROM packages WHERE run_id = ? ORDER BY identity`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list packages for run %d: %w", runID, err)
	}
	defer rows.Close()

	var entries []catalog.Entry
	for rows.Next() {
		var e catalog.Entry
		if err := rows.Scan(&e.Identity, &e.Name, &e.SizeBytes); err != nil {
			return nil, fmt.Errorf("failed to scan package row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating packages: %w", err)
	}

	return catalog.Load(entries)
}

// LoadGraph rebuilds the dependency graph recorded for a run.
func (s *Store) LoadGraph(runID int64) (*graph.Graph, error) {
	g := graph.New()

	nodes, err := s.db.Query(`SELECT identity FROM packages WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list graph nodes for run %d: %w", runID, err)
	}
	defer nodes.Close()
	for nodes.Next() {
		var id string
		if err := nodes.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan graph node: %w", err)
		}
		g.AddNode(id)
	}
	if err := nodes.Err(); err != nil {
		return nil, fmt.Errorf("error iterating graph nodes: %w", err)
	}
	// The single connection must be released before the next query.
	nodes.Close()

	edges, err := s.db.Query(`SELECT identity, dependent FROM dependents WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list graph edges for run %d: %w", runID, err)
	}
	defer edges.Close()
	for edges.Next() {
		var id, dep string
		if err := edges.Scan(&id, &dep); err != nil {
			return nil, fmt.Errorf("failed to scan graph edge: %w", err)
		}
		g.AddEdge(id, dep)
	}
	if err := edges.Err(); err != nil {
		return nil, fmt.Errorf("error iterating graph edges: %w", err)
	}

	return g, nil
}

func formatFingerprint(fp uint64) string {
	return fmt.Sprintf("%016x", fp)
}
