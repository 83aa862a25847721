package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// isolate points XDG_CONFIG_HOME at an empty directory and clears every
// PKGIMPACT_* variable for the duration of the test.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	for _, kv := range os.Environ() {
		if name, _, _ := strings.Cut(kv, "="); strings.HasPrefix(name, EnvPrefix) {
			t.Setenv(name, "")
			os.Unsetenv(name)
		}
	}
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestDir_RespectsXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	dir, err := Dir()
	if err != nil {
		t.Fatalf("Dir() failed: %v", err)
	}
	if dir != "/tmp/xdg/pkgimpact" {
		t.Errorf("Dir() = %q, want /tmp/xdg/pkgimpact", dir)
	}
}

func TestLoad_Defaults(t *testing.T) {
	dir := isolate(t)

	cfg, err := Load(LoadOptions{EnvFile: filepath.Join(dir, "missing.env")})
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	def := Default()
	if *cfg != *def {
		t.Errorf("expected defaults, got %+v", cfg)
	}
	if cfg.QueryTimeout != 30*time.Second || cfg.QueryRetries != 3 || cfg.Delimiter != "," {
		t.Errorf("unexpected default values: %+v", cfg)
	}
}

func TestLoad_Precedence(t *testing.T) {
	dir := isolate(t)

	writeFile(t, filepath.Join(dir, "pkgimpact", "config.toml"), `
workers = 2
query_timeout = "10s"
snapshot = "/from/toml"
delimiter = ";"
`)
	envFile := filepath.Join(dir, "test.env")
	writeFile(t, envFile, "PKGIMPACT_SNAPSHOT=/from/dotenv\nPKGIMPACT_QUERY_RETRIES=5\n")
	t.Setenv("PKGIMPACT_QUERY_RETRIES", "7")
	// Registers cleanup for the variable the .env file sets.
	t.Setenv("PKGIMPACT_SNAPSHOT", "")
	os.Unsetenv("PKGIMPACT_SNAPSHOT")

	cfg, err := Load(LoadOptions{EnvFile: envFile})
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Workers != 2 {
		t.Errorf("workers = %d, want 2 from TOML", cfg.Workers)
	}
	if cfg.QueryTimeout != 10*time.Second {
		t.Errorf("query_timeout = %s, want 10s from TOML", cfg.QueryTimeout)
	}
	if cfg.Delimiter != ";" {
		t.Errorf("delimiter = %q, want ; from TOML", cfg.Delimiter)
	}
	if cfg.Snapshot != "/from/dotenv" {
		t.Errorf("snapshot = %q, want .env to override TOML", cfg.Snapshot)
	}
	if cfg.QueryRetries != 7 {
		t.Errorf("query_retries = %d, want process env to win over .env", cfg.QueryRetries)
	}
}

func TestLoad_ExplicitPathMustExist(t *testing.T) {
	dir := isolate(t)

	_, err := Load(LoadOptions{Path: filepath.Join(dir, "nope.toml"), EnvFile: filepath.Join(dir, "missing.env")})
	if err == nil {
		t.Fatal("expected error for missing explicit config")
	}
}

func TestLoad_UnknownKey(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.toml")
	writeFile(t, path, "workers = 2\nworkerz = 3\n")

	_, err := Load(LoadOptions{Path: path, EnvFile: filepath.Join(dir, "missing.env")})
	if err == nil || !strings.Contains(err.Error(), "workerz") {
		t.Errorf("expected unknown key error naming workerz, got %v", err)
	}
}

func TestLoad_InvalidEnv(t *testing.T) {
	dir := isolate(t)
	t.Setenv("PKGIMPACT_QUERY_TIMEOUT", "soon")

	_, err := Load(LoadOptions{EnvFile: filepath.Join(dir, "missing.env")})
	if err == nil || !strings.Contains(err.Error(), "PKGIMPACT_QUERY_TIMEOUT") {
		t.Errorf("expected invalid env error, got %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	env := map[string]string{
		"PKGIMPACT_EXPAND_PROVIDES": "true",
		"PKGIMPACT_RPM_DBPATH":      "/mnt/sysroot/var/lib/rpm",
		"PKGIMPACT_WATCH_DEBOUNCE":  "500ms",
		"PKGIMPACT_CACHE_SIZE":      "128",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	if err := cfg.applyEnv(lookup); err != nil {
		t.Fatalf("applyEnv failed: %v", err)
	}
	if !cfg.ExpandProvides || cfg.RPMDBPath != "/mnt/sysroot/var/lib/rpm" || cfg.WatchDebounce != 500*time.Millisecond || cfg.CacheSize != 128 {
		t.Errorf("env not applied: %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero workers", func(c *Config) { c.Workers = 0 }},
		{"negative timeout", func(c *Config) { c.QueryTimeout = -time.Second }},
		{"zero retries", func(c *Config) { c.QueryRetries = 0 }},
		{"empty rpm path", func(c *Config) { c.RPMPath = "" }},
		{"zero cache", func(c *Config) { c.CacheSize = 0 }},
		{"zero debounce", func(c *Config) { c.WatchDebounce = 0 }},
		{"negative keep", func(c *Config) { c.KeepRuns = -1 }},
	}

	if err := Default().Validate(); err != nil {
		t.Fatalf("defaults should be valid: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestSet(t *testing.T) {
	cfg := Default()

	if err := cfg.Set("query_timeout", " 5s "); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if cfg.QueryTimeout != 5*time.Second {
		t.Errorf("QueryTimeout = %s, want 5s", cfg.QueryTimeout)
	}

	if err := cfg.Set("query_timeout", "soon"); err == nil {
		t.Error("expected error for invalid duration")
	}
	if err := cfg.Set("colour", "blue"); err == nil {
		t.Error("expected error for unknown key")
	}
}
