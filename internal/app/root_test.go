package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"go.trai.ch/zerr"
)

func TestRootCommand(t *testing.T) {
	if RootCmd.Use != "pkgimpact" {
		t.Errorf("expected Use to be 'pkgimpact', got '%s'", RootCmd.Use)
	}
	if RootCmd.Short == "" {
		t.Error("expected Short description to be set")
	}
	if RootCmd.Long == "" {
		t.Error("expected Long description to be set")
	}
}

func TestRootCommandHasSubcommands(t *testing.T) {
	found := make(map[string]bool)
	for _, cmd := range RootCmd.Commands() {
		found[cmd.Name()] = true
	}

	for _, expected := range []string{"analyze", "explain", "top", "history", "watch", "version"} {
		if !found[expected] {
			t.Errorf("expected command '%s' to be registered", expected)
		}
	}
}

func TestRootCommandHasPersistentFlags(t *testing.T) {
	for _, name := range []string{"config", "db", "verbose", "quiet"} {
		flag := RootCmd.PersistentFlags().Lookup(name)
		if flag == nil {
			t.Errorf("expected --%s flag to be registered", name)
			continue
		}
		if flag.Usage == "" {
			t.Errorf("expected --%s flag to have usage text", name)
		}
	}
	if RootCmd.PersistentFlags().ShorthandLookup("v") == nil {
		t.Error("expected -v shorthand for --verbose")
	}
}

func TestVersionCommand(t *testing.T) {
	setupApp(t)
	SetVersion("v1.2.3", "abc123", "")
	t.Cleanup(func() { SetVersion("dev", "none", "unknown") })

	stdout, _, err := executeCommand(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(stdout, "pkgimpact v1.2.3") || !strings.Contains(stdout, "commit: abc123") {
		t.Errorf("unexpected version output %q", stdout)
	}
}

func TestSetup_ConfigFile(t *testing.T) {
	setupApp(t)
	path := filepath.Join(t.TempDir(), "pkgimpact.toml")
	if err := os.WriteFile(path, []byte("workers = 3\ndb = \"/srv/runs.db\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	_, _, err := executeCommand(t, "--config", path, "history")
	if err == nil || !strings.Contains(err.Error(), "/srv/runs.db") {
		t.Fatalf("expected the configured db to be used, got %v", err)
	}
	if cfg.Workers != 3 {
		t.Errorf("Workers = %d, want 3 from the config file", cfg.Workers)
	}
}

func TestSetup_DBFlagOverridesConfig(t *testing.T) {
	setupApp(t)
	t.Setenv("PKGIMPACT_DB", "/from/env.db")
	flagDB := filepath.Join(t.TempDir(), "flag.db")

	_, _, err := executeCommand(t, "--db", flagDB, "history")
	if err == nil || !strings.Contains(err.Error(), flagDB) {
		t.Fatalf("expected --db to win over the environment, got %v", err)
	}
}

func TestSetup_MissingConfig(t *testing.T) {
	setupApp(t)

	_, _, err := executeCommand(t, "--config", filepath.Join(t.TempDir(), "missing.toml"), "history")
	if err == nil || !strings.Contains(err.Error(), "failed to load configuration") {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestLoggerFromContext(t *testing.T) {
	if loggerFromContext(context.Background()) != log.Default() {
		t.Error("expected the default logger for an empty context")
	}

	l := newLogger(&bytes.Buffer{}, log.DebugLevel)
	if loggerFromContext(withLogger(context.Background(), l)) != l {
		t.Error("expected the stored logger")
	}
}

func TestLogErrorDetails(t *testing.T) {
	sentinel := zerr.New("query failed")
	inner := zerr.With(zerr.Wrap(sentinel, "rpm exited with an error"), "exit_code", 1)
	err := zerr.With(fmt.Errorf("dependents of bash: %w", inner), "identity", "bash-0-5.2.15-1.azl3.x86_64")

	var buf bytes.Buffer
	LogErrorDetails(newLogger(&buf, log.DebugLevel), err)

	out := buf.String()
	if !strings.Contains(out, "exit_code=1") || !strings.Contains(out, "identity=bash-0-5.2.15-1.azl3.x86_64") {
		t.Errorf("expected metadata from the whole chain, got %q", out)
	}

	buf.Reset()
	LogErrorDetails(newLogger(&buf, log.DebugLevel), errors.New("plain"))
	if buf.Len() != 0 {
		t.Errorf("expected nothing for a plain error, got %q", buf.String())
	}
}
