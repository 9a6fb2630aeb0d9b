// Package config loads simlog settings from a TOML file.
//
// Lookup order: an explicit path (--config), then $SIMLOG_CONFIG, then
// <user config dir>/simlog/config.toml. A missing default file yields the
// defaults; a missing explicit file is an error.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// EnvVar names the environment variable holding a config file path.
const EnvVar = "SIMLOG_CONFIG"

// ErrInvalid is wrapped by errors for config files that exist but cannot be used.
var ErrInvalid = errors.New("invalid config")

// Config is the full set of settings.
type Config struct {
	Directories Directories `toml:"directories"`
	Logging     Logging     `toml:"logging"`
	Store       Store       `toml:"store"`

	// Source is the file the config was read from; empty for defaults.
	Source string `toml:"-"`
}

// Directories locates the files simlog manages.
type Directories struct {
	SimulationLog string `toml:"simulation_log"`
	Index         string `toml:"index"`
}

// Logging configures the slog handler.
type Logging struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // text or json
	File   string `toml:"file"`   // empty means stderr
}

// Store configures the record store.
type Store struct {
	Schema        string   `toml:"schema"`
	ConflictCheck bool     `toml:"conflict_check"`
	LockTimeout   Duration `toml:"lock_timeout"`
}

// Duration is a time.Duration written as a string ("5s", "1m30s").
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Dir returns <user config dir>/simlog, or ".simlog" when the user config
// dir is unknown.
func Dir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ".simlog"
	}
	return filepath.Join(base, "simlog")
}

// DefaultPath returns the default config file path.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.toml")
}

// Default returns the built-in settings.
func Default() *Config {
	dir := Dir()
	return &Config{
		Directories: Directories{
			SimulationLog: filepath.Join(dir, "Simlog.json"),
			Index:         filepath.Join(dir, "index.db"),
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
		Store: Store{
			ConflictCheck: true,
			LockTimeout:   Duration{5 * time.Second},
		},
	}
}

// Load reads the config following the lookup order. explicit may be empty.
func Load(explicit string) (*Config, error) {
	path := explicit
	if path == "" {
		path = os.Getenv(EnvVar)
	}
	optional := path == ""
	if optional {
		path = DefaultPath()
	}

	cfg := Default()
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if optional {
				return cfg, nil
			}
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
		return nil, fmt.Errorf("load config %s: %w: %w", path, ErrInvalid, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("load config %s: %w: unknown keys: %s", path, ErrInvalid, strings.Join(keys, ", "))
	}

	cfg.Source = path
	if err := cfg.normalize(); err != nil {
		return nil, fmt.Errorf("load config %s: %w: %w", path, ErrInvalid, err)
	}
	return cfg, nil
}

func (c *Config) normalize() error {
	var err error
	for _, p := range []*string{&c.Directories.SimulationLog, &c.Directories.Index, &c.Logging.File, &c.Store.Schema} {
		if *p, err = ExpandHome(*p); err != nil {
			return err
		}
	}

	if _, err := c.Logging.SlogLevel(); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format)
	}
	if c.Store.LockTimeout.Duration <= 0 {
		return fmt.Errorf("store.lock_timeout must be positive, got %s", c.Store.LockTimeout)
	}
	return nil
}

// SlogLevel parses Level.
func (l Logging) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("logging.level: %w", err)
	}
	return level, nil
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expand %s: %w", path, err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
