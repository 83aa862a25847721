package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// Watcher reports settled changes to an rpm database directory.
type Watcher struct {
	dir       string
	window    time.Duration
	logger    *log.Logger
	fsWatcher *fsnotify.Watcher
}

// ChangeFunc is called after the database directory has been quiet for the
// debounce window. paths lists the files touched since the previous call.
type ChangeFunc func(ctx context.Context, paths []string) error

// New starts watching dir. Close releases the watch if Run is never called.
func New(dir string, window time.Duration, logger *log.Logger) (*Watcher, error) {
	if logger == nil {
		logger = log.Default()
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat rpm database directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("rpm database path %s is not a directory", dir)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	return &Watcher{
		dir:       dir,
		window:    window,
		logger:    logger,
		fsWatcher: fsw,
	}, nil
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// Close stops the underlying file watcher.
func (w *Watcher) Close() error {
	return w.fsWatcher.Close()
}

// Run delivers debounced changes to onChange until ctx is cancelled. A
// failing callback is logged and the watch continues, since the database
// may still be mid-transaction. Run closes the watcher before returning.
func (w *Watcher) Run(ctx context.Context, onChange ChangeFunc) error {
	defer w.fsWatcher.Close()

	batches := make(chan []string, 1)
	debouncer := NewDebouncer(w.window, func(paths []string) {
		select {
		case batches <- paths:
		default:
			// A queued batch already triggers the next callback.
		}
	})
	defer debouncer.Stop()

	w.logger.Info("watching rpm database", "dir", w.dir, "debounce", w.window)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			if relevant(event) {
				w.logger.Debug("rpm database event", "file", filepath.Base(event.Name), "op", event.Op.String())
				debouncer.Add(event.Name)
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", "err", err)

		case paths := <-batches:
			w.logger.Debug("rpm database settled", "files", len(paths))
			if err := onChange(ctx, paths); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				w.logger.Error("failed to handle rpm database change", "err", err)
			}
		}
	}
}

// relevant filters out events that readers of the database also cause.
func relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}

	name := filepath.Base(event.Name)
	switch {
	case strings.HasSuffix(name, "-shm"):
		return false
	case strings.HasSuffix(name, ".lock"):
		return false
	case strings.HasPrefix(name, "__db."):
		return false
	}
	return true
}
