package watcher_test

import (
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinceaperri/azure-linux-pkg-impact-analyzer/internal/watcher"
)

func TestDebouncer_SinglePath(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var mu sync.Mutex
		var calls int
		var got []string

		d := watcher.NewDebouncer(100*time.Millisecond, func(paths []string) {
			mu.Lock()
			defer mu.Unlock()
			calls++
			got = paths
		})
		snapshot := func() (int, []string) {
			mu.Lock()
			defer mu.Unlock()
			return calls, got
		}

		d.Add("/var/lib/rpm/rpmdb.sqlite")

		time.Sleep(150 * time.Millisecond)
		synctest.Wait()

		n, paths := snapshot()
		require.Equal(t, 1, n)
		assert.Equal(t, []string{"/var/lib/rpm/rpmdb.sqlite"}, paths)
	})
}

func TestDebouncer_CoalescesBurst(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var mu sync.Mutex
		var calls int
		var got []string

		d := watcher.NewDebouncer(100*time.Millisecond, func(paths []string) {
			mu.Lock()
			defer mu.Unlock()
			calls++
			got = paths
		})
		snapshot := func() (int, []string) {
			mu.Lock()
			defer mu.Unlock()
			return calls, got
		}

		d.Add("/var/lib/rpm/rpmdb.sqlite-wal")
		d.Add("/var/lib/rpm/rpmdb.sqlite")
		time.Sleep(60 * time.Millisecond)
		d.Add("/var/lib/rpm/rpmdb.sqlite-wal")
		time.Sleep(60 * time.Millisecond)
		synctest.Wait()

		n, _ := snapshot()
		assert.Equal(t, 0, n, "window restarts on each add")

		time.Sleep(100 * time.Millisecond)
		synctest.Wait()

		n, paths := snapshot()
		require.Equal(t, 1, n)
		assert.Equal(t, []string{"/var/lib/rpm/rpmdb.sqlite", "/var/lib/rpm/rpmdb.sqlite-wal"}, paths)
	})
}

func TestDebouncer_Flush(t *testing.T) {
	var mu sync.Mutex
	var got []string

	d := watcher.NewDebouncer(time.Hour, func(paths []string) {
		mu.Lock()
		defer mu.Unlock()
		got = paths
	})

	d.Add("/var/lib/rpm/Packages")
	assert.Equal(t, 1, d.Pending())

	d.Flush()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"/var/lib/rpm/Packages"}, got)
	assert.Equal(t, 0, d.Pending())
}

func TestDebouncer_FlushEmpty(t *testing.T) {
	called := false
	d := watcher.NewDebouncer(time.Millisecond, func([]string) { called = true })

	d.Flush()
	assert.False(t, called)
}

func TestDebouncer_Stop(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		called := false
		d := watcher.NewDebouncer(50*time.Millisecond, func([]string) { called = true })

		d.Add("/var/lib/rpm/rpmdb.sqlite")
		d.Stop()

		time.Sleep(100 * time.Millisecond)
		synctest.Wait()

		assert.False(t, called)
		assert.Equal(t, 0, d.Pending())
	})
}

func TestDebouncer_NilCallback(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		d := watcher.NewDebouncer(10*time.Millisecond, nil)
		d.Add("/var/lib/rpm/rpmdb.sqlite")

		time.Sleep(20 * time.Millisecond)
		synctest.Wait()

		d.Flush()
	})
}
