// Package watcher follows changes to the rpm database directory.
//
// Package installs and removals touch several files under the database
// directory in quick succession. The Watcher listens for those writes with
// fsnotify, coalesces them through a Debouncer, and calls back once the
// directory has been quiet for the configured window. Callbacks run one at
// a time on the goroutine that called Run.
//
// A PID lock keeps two watchers from rewriting the same report:
//
//	release, err := watcher.AcquireLock(pidFile)
//	if err != nil {
//		return err
//	}
//	defer release()
//
//	w, err := watcher.New("/var/lib/rpm", 2*time.Second, logger)
//	if err != nil {
//		return err
//	}
//	return w.Run(ctx, regenerate)
package watcher
