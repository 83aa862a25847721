package app

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/vinceaperri/azure-linux-pkg-impact-analyzer/internal/config"
)

type fakeExit int

func (e fakeExit) Error() string { return fmt.Sprintf("exit status %d", int(e)) }
func (e fakeExit) ExitCode() int { return int(e) }

type fakePackage struct {
	name, version string
	size          int64
	requiredBy    []string
}

// fakeRPM answers the rpm queries pkgimpact issues from an in-memory
// package set.
type fakeRPM struct {
	mu       sync.Mutex
	packages []fakePackage
	queries  int
}

func (f *fakeRPM) set(pkgs ...fakePackage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.packages = pkgs
}

func (f *fakeRPM) Run(_ context.Context, _ string, args ...string) ([]byte, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++

	for i, arg := range args {
		switch arg {
		case "-qa":
			var sb strings.Builder
			for _, p := range f.packages {
				fmt.Fprintf(&sb, "%s\t0\t%s\t1.azl3\tx86_64\t%d\n", p.name, p.version, p.size)
			}
			return []byte(sb.String()), nil, nil

		case "--whatrequires":
			name := args[i+1]
			var deps []string
			for _, p := range f.packages {
				if p.name == name {
					deps = append(deps, p.requiredBy...)
				}
			}
			if len(deps) == 0 {
				return []byte("no package requires " + name + "\n"), nil, fakeExit(1)
			}
			return []byte(strings.Join(deps, "\n") + "\n"), nil, nil

		case "--provides":
			return []byte(args[i+1] + "\n"), nil, nil
		}
	}
	return nil, []byte("unexpected query"), fakeExit(2)
}

// chainPackages is a -> b -> c: b requires a and c requires b.
func chainPackages() []fakePackage {
	return []fakePackage{
		{name: "a", version: "1.0", size: 100, requiredBy: []string{"b"}},
		{name: "b", version: "1.0", size: 200, requiredBy: []string{"c"}},
		{name: "c", version: "1.0", size: 50},
	}
}

// setupApp isolates configuration, installs a fake rpm and returns it.
func setupApp(t *testing.T, pkgs ...fakePackage) *fakeRPM {
	t.Helper()

	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	for _, kv := range os.Environ() {
		if name, _, _ := strings.Cut(kv, "="); strings.HasPrefix(name, config.EnvPrefix) {
			t.Setenv(name, "")
			os.Unsetenv(name)
		}
	}

	fake := &fakeRPM{}
	fake.set(pkgs...)

	oldRunner := rpmRunner
	rpmRunner = fake
	t.Cleanup(func() {
		rpmRunner = oldRunner
		cfg = nil
	})
	return fake
}

// resetFlags restores every flag to its default so runs do not leak into
// each other.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

// clearContexts drops contexts left on subcommands by earlier runs. Cobra
// only passes the root context down to a command whose context is nil.
func clearContexts(cmd *cobra.Command) {
	for _, sub := range cmd.Commands() {
		sub.SetContext(nil)
		clearContexts(sub)
	}
}

// executeCommand runs the root command with args and returns its stdout
// and stderr.
func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	resetFlags(RootCmd)

	var stdout, stderr bytes.Buffer
	RootCmd.SetOut(&stdout)
	RootCmd.SetErr(&stderr)
	RootCmd.SetArgs(args)
	t.Cleanup(func() {
		RootCmd.SetOut(nil)
		RootCmd.SetErr(nil)
		RootCmd.SetArgs(nil)
	})

	clearContexts(RootCmd)
	err := RootCmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}
