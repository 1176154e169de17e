// Package config loads the YAML settings file the tablecat CLI and any
// embedder of this reader can use to name tables without repeating their
// root path on every invocation, the same role service.Config plays for
// root/upstream wiring.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/colstore/tsreader/calendar"
	"github.com/colstore/tsreader/tstable"
)

// Config is the top-level settings document.
type Config struct {
	Tables map[string]TableConfig `yaml:"tables"`
}

// TableConfig names one table's on-disk location and the reader-tuning
// knobs to open it with. Every field is optional; a bare `path:` entry
// opens with tstable's defaults.
type TableConfig struct {
	Path         string `yaml:"path"`
	PageSize     int    `yaml:"pageSize"`
	MaxRetries   int    `yaml:"maxRetries"`
	Partitioning string `yaml:"partitioning"`
}

// Options converts the table's settings into tstable.Options, resolving
// the Partitioning name into a calendar.Scheme. A table without an
// explicit partitioning override returns options that leave the reader to
// trust the scheme recorded in the table's own _meta file.
func (t TableConfig) Options() (tstable.Options, error) {
	opts := tstable.Options{PageSize: t.PageSize, MaxRetries: t.MaxRetries}
	if t.Partitioning != "" {
		scheme, err := calendar.ParseScheme(t.Partitioning)
		if err != nil {
			return tstable.Options{}, err
		}
		opts.Calendar = &scheme
	}
	return opts, nil
}

// Load reads and parses the YAML file at path, expanding a leading ~.
func Load(path string) (*Config, error) {
	path, err := expandUserPath(path)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &cfg, nil
}

// Resolve returns the root path configured for name, or an error if absent.
func (c *Config) Resolve(name string) (string, error) {
	t, err := c.Table(name)
	if err != nil {
		return "", err
	}
	return t.Path, nil
}

// Table returns the full settings entry for name, or an error if absent.
func (c *Config) Table(name string) (TableConfig, error) {
	t, ok := c.Tables[name]
	if !ok {
		return TableConfig{}, fmt.Errorf("config: no table named %q", name)
	}
	return t, nil
}

func expandUserPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
