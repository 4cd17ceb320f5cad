// Package config loads flowledger settings from an optional YAML or TOML
// file, then applies FLOWLEDGER_* environment overrides.
//
// Precedence, lowest first: Default(), the file, the environment. CLI flags
// are applied by the caller on top of the returned Config.
package config

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/roach88/flowledger/internal/eventlog"
	"github.com/roach88/flowledger/internal/ledger"
	"github.com/roach88/flowledger/internal/store"
)

// DefaultBase is the ledger directory used when none is configured.
const DefaultBase = "./flowledger-data"

// Config holds every tunable of a ledger process.
type Config struct {
	// Base is the ledger root directory.
	Base string `yaml:"base" env:"BASE"`

	// Backend is "badger" or "sqlite".
	Backend string `yaml:"backend" env:"BACKEND"`

	// SyncWrites makes every store commit durable before returning.
	SyncWrites bool `yaml:"sync_writes" env:"SYNC_WRITES"`

	// GCInterval is the badger value log GC period; 0 disables it.
	GCInterval time.Duration `yaml:"gc_interval" env:"GC_INTERVAL"`

	// LogSync is the event log sync mode, "always" or "none".
	LogSync string `yaml:"log_sync" env:"LOG_SYNC"`

	// CentroidBypass lets denied even→odd moves pass through the centroid.
	CentroidBypass bool `yaml:"centroid_bypass" env:"CENTROID_BYPASS"`

	// LogLevel is debug, info, warn or error.
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Base:           DefaultBase,
		Backend:        store.BackendBadger,
		SyncWrites:     true,
		GCInterval:     store.DefaultGCInterval,
		LogSync:        string(eventlog.SyncAlways),
		CentroidBypass: true,
		LogLevel:       "info",
	}
}

// Load builds a Config from Default, the file at path (skipped when path is
// empty) and the environment, then validates it.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "FLOWLEDGER_"}); err != nil {
		return Config{}, fmt.Errorf("config env parse failed: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, out *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(out); err != nil {
			return fmt.Errorf("config parse failed (%s): %w", path, err)
		}
	case ".toml":
		var tf tomlFile
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&tf); err != nil {
			return fmt.Errorf("config parse failed (%s): %w", path, err)
		}
		if err := tf.apply(out); err != nil {
			return fmt.Errorf("config parse failed (%s): %w", path, err)
		}
	default:
		return fmt.Errorf("config load failed (%s): unsupported extension, want .yaml, .yml or .toml", path)
	}
	return nil
}

// tomlFile is the TOML form of Config. TOML has no duration type, so
// gc_interval is a Go duration string ("90s", "5m") as in YAML and the
// environment. Nil fields keep their current value.
type tomlFile struct {
	Base           *string `toml:"base"`
	Backend        *string `toml:"backend"`
	SyncWrites     *bool   `toml:"sync_writes"`
	GCInterval     *string `toml:"gc_interval"`
	LogSync        *string `toml:"log_sync"`
	CentroidBypass *bool   `toml:"centroid_bypass"`
	LogLevel       *string `toml:"log_level"`
}

func (f tomlFile) apply(c *Config) error {
	if f.GCInterval != nil {
		d, err := time.ParseDuration(*f.GCInterval)
		if err != nil {
			return fmt.Errorf("gc_interval: %w", err)
		}
		c.GCInterval = d
	}
	setIf(&c.Base, f.Base)
	setIf(&c.Backend, f.Backend)
	setIf(&c.SyncWrites, f.SyncWrites)
	setIf(&c.LogSync, f.LogSync)
	setIf(&c.CentroidBypass, f.CentroidBypass)
	setIf(&c.LogLevel, f.LogLevel)
	return nil
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// Validate checks every field.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Base) == "" {
		return fmt.Errorf("config missing base")
	}
	switch c.Backend {
	case store.BackendBadger, store.BackendSQLite:
	default:
		return fmt.Errorf("config backend %q: must be %q or %q", c.Backend, store.BackendBadger, store.BackendSQLite)
	}
	if c.GCInterval < 0 {
		return fmt.Errorf("config gc_interval must not be negative")
	}
	if _, err := eventlog.ParseSyncMode(c.LogSync); err != nil {
		return fmt.Errorf("config log_sync: %w", err)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps a level name to its slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("config log_level %q: must be debug, info, warn or error", s)
	}
	return level, nil
}

// Ledger converts c into the ledger open configuration. An invalid LogSync
// maps to eventlog.SyncAlways.
func (c Config) Ledger() ledger.Config {
	storeCfg := store.DefaultConfig("")
	storeCfg.Backend = c.Backend
	storeCfg.SyncWrites = c.SyncWrites
	storeCfg.GCInterval = c.GCInterval

	mode, err := eventlog.ParseSyncMode(c.LogSync)
	if err != nil {
		// Load rejects this; a hand-built Config stays durable.
		mode = eventlog.SyncAlways
	}
	return ledger.Config{
		Base:    c.Base,
		Store:   storeCfg,
		LogSync: mode,
	}
}
