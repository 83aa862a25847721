package app

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/vinceaperri/azure-linux-pkg-impact-analyzer/internal/rpm"
	"github.com/vinceaperri/azure-linux-pkg-impact-analyzer/internal/store"
)

var errNoHistory = errors.New("no run history configured: pass --db or set db in the config file")

// newRPMClient builds an rpm client from the resolved configuration.
func newRPMClient(logger *log.Logger) (*rpm.Client, error) {
	client, err := rpm.NewClient(rpmRunner, rpm.Options{
		Binary:         cfg.RPMPath,
		DBPath:         cfg.RPMDBPath,
		QueryTimeout:   cfg.QueryTimeout,
		Retries:        cfg.QueryRetries,
		ExpandProvides: cfg.ExpandProvides,
		CacheSize:      cfg.CacheSize,
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create rpm client: %w", err)
	}
	return client, nil
}

// openHistory opens the configured run history for writing, creating it and
// its directory when missing.
func openHistory() (*store.Store, error) {
	if cfg.DB == "" {
		return nil, errNoHistory
	}
	if dir := filepath.Dir(cfg.DB); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}
	st, err := store.Open(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to open run history: %w", err)
	}
	return st, nil
}

// readHistory opens an existing run history and returns its latest run.
func readHistory() (*store.Store, *store.Run, error) {
	if cfg.DB == "" {
		return nil, nil, errNoHistory
	}
	if _, err := os.Stat(cfg.DB); err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("run history %s does not exist; run 'pkgimpact --db %s analyze OUTPUT' first", cfg.DB, cfg.DB)
		}
		return nil, nil, fmt.Errorf("failed to access run history: %w", err)
	}

	st, err := store.New(cfg.DB)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open run history: %w", err)
	}
	run, err := st.LatestRun()
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	return st, run, nil
}

// progressWriter returns where progress indicators draw, or nil when they
// are disabled.
func progressWriter(cmd *cobra.Command) io.Writer {
	if quiet {
		return nil
	}
	return cmd.ErrOrStderr()
}
