// Package config loads pkgimpact settings from defaults, a TOML file, a
// .env file and PKGIMPACT_* environment variables, in that order. Command
// flags are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "PKGIMPACT_"

// Config holds every tunable setting.
type Config struct {
	Workers        int           `toml:"workers"`
	QueryTimeout   time.Duration `toml:"query_timeout"`
	QueryRetries   int           `toml:"query_retries"`
	RPMPath        string        `toml:"rpm_path"`
	RPMDBPath      string        `toml:"rpm_dbpath"`
	RPMDBDir       string        `toml:"rpmdb_dir"`
	ExpandProvides bool          `toml:"expand_provides"`
	Snapshot       string        `toml:"snapshot"`
	DB             string        `toml:"db"`
	Delimiter      string        `toml:"delimiter"`
	CacheSize      int           `toml:"cache_size"`
	WatchDebounce  time.Duration `toml:"watch_debounce"`
	KeepRuns       int           `toml:"keep_runs"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Workers:       runtime.NumCPU(),
		QueryTimeout:  30 * time.Second,
		QueryRetries:  3,
		RPMPath:       "rpm",
		RPMDBDir:      "/var/lib/rpm",
		Delimiter:     ",",
		CacheSize:     4096,
		WatchDebounce: 2 * time.Second,
		KeepRuns:      20,
	}
}

// Dir returns the pkgimpact config directory, respecting XDG_CONFIG_HOME.
// Defaults to ~/.config/pkgimpact if XDG_CONFIG_HOME is not set.
func Dir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "pkgimpact"), nil
}

// LoadOptions selects the files Load reads.
type LoadOptions struct {
	// Path is an explicit config file, which must exist. When empty the
	// file in Dir is used if present.
	Path string

	// EnvFile is the dotenv file to read. When empty ".env" in the
	// working directory is used if present.
	EnvFile string
}

// Load resolves the configuration.
func Load(opts LoadOptions) (*Config, error) {
	cfg := Default()

	path, required := opts.Path, true
	if path == "" {
		dir, err := Dir()
		if err == nil {
			path, required = filepath.Join(dir, "config.toml"), false
		}
	}
	if path != "" {
		if err := cfg.loadFile(path, required); err != nil {
			return nil, err
		}
	}

	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	// godotenv never overrides variables that are already set.
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string, required bool) error {
	meta, err := toml.DecodeFile(path, c)
	if err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown keys in config %s: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// applyEnv overlays PKGIMPACT_* variables read through lookup.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	for _, f := range c.fields() {
		raw, ok := lookup(EnvPrefix + strings.ToUpper(f.key))
		if !ok {
			continue
		}
		if err := f.set(strings.TrimSpace(raw)); err != nil {
			return fmt.Errorf("invalid %s%s: %w", EnvPrefix, strings.ToUpper(f.key), err)
		}
	}
	return nil
}

// Set assigns one setting by its config file key.
func (c *Config) Set(key, value string) error {
	for _, f := range c.fields() {
		if f.key == key {
			return f.set(strings.TrimSpace(value))
		}
	}
	return fmt.Errorf("unknown setting %q", key)
}

type field struct {
	key string
	set func(string) error
}

func (c *Config) fields() []field {
	return []field{
		{"workers", intSetter(&c.Workers)},
		{"query_timeout", durationSetter(&c.QueryTimeout)},
		{"query_retries", intSetter(&c.QueryRetries)},
		{"rpm_path", stringSetter(&c.RPMPath)},
		{"rpm_dbpath", stringSetter(&c.RPMDBPath)},
		{"rpmdb_dir", stringSetter(&c.RPMDBDir)},
		{"expand_provides", boolSetter(&c.ExpandProvides)},
		{"snapshot", stringSetter(&c.Snapshot)},
		{"db", stringSetter(&c.DB)},
		{"delimiter", stringSetter(&c.Delimiter)},
		{"cache_size", intSetter(&c.CacheSize)},
		{"watch_debounce", durationSetter(&c.WatchDebounce)},
		{"keep_runs", intSetter(&c.KeepRuns)},
	}
}

func stringSetter(p *string) func(string) error {
	return func(s string) error { *p = s; return nil }
}

func intSetter(p *int) func(string) error {
	return func(s string) error {
		v, err := strconv.Atoi(s)
		if err != nil {
			return err
		}
		*p = v
		return nil
	}
}

func boolSetter(p *bool) func(string) error {
	return func(s string) error {
		v, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}
		*p = v
		return nil
	}
}

func durationSetter(p *time.Duration) func(string) error {
	return func(s string) error {
		v, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		*p = v
		return nil
	}
}

// Validate rejects settings no run could use.
func (c *Config) Validate() error {
	switch {
	case c.Workers < 1:
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	case c.QueryTimeout < 0:
		return fmt.Errorf("query_timeout must not be negative, got %s", c.QueryTimeout)
	case c.QueryRetries < 1:
		return fmt.Errorf("query_retries must be at least 1, got %d", c.QueryRetries)
	case c.RPMPath == "":
		return errors.New("rpm_path must not be empty")
	case c.CacheSize < 1:
		return fmt.Errorf("cache_size must be at least 1, got %d", c.CacheSize)
	case c.WatchDebounce <= 0:
		return fmt.Errorf("watch_debounce must be positive, got %s", c.WatchDebounce)
	case c.KeepRuns < 0:
		return fmt.Errorf("keep_runs must not be negative, got %d", c.KeepRuns)
	}
	return nil
}
