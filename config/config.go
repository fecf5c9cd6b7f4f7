// Package config handles the optional p.toml project configuration file:
// default stack/heap sizing for the P-machine and execution-trace
// settings, so a project can pin these without repeating flags on every
// invocation.
//
// Uses a find-upward-from-a-starting-directory Load/FindAndLoad pair,
// applying defaults after parsing rather than relying on struct tags
// for them.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

const fileName = "p.toml"

// DefaultStackSize and DefaultHeapSize mirror machine.DefaultStackSize
// and machine.DefaultHeapSize; duplicated here (rather than imported) so
// this package doesn't need to depend on the machine package just to
// name its own defaults.
const (
	DefaultStackSize = 1024
	DefaultHeapSize  = 3 * 1024
)

// Config is the parsed contents of a p.toml file.
type Config struct {
	Run     Run   `toml:"run"`
	Trace   Trace `toml:"trace"`
	Verbose bool  `toml:"verbose"`

	// Dir is the directory containing the p.toml file (set at load time).
	Dir string `toml:"-"`
}

// Run configures the P-machine's memory sizing.
type Run struct {
	StackSize int `toml:"stack-size"`
	HeapSize  int `toml:"heap-size"`
}

// Trace configures execution-trace recording.
type Trace struct {
	Enabled bool   `toml:"enabled"`
	Output  string `toml:"output"`
}

// Default returns a Config populated with the toolchain's built-in
// defaults, as used when no p.toml is found.
func Default() *Config {
	return &Config{
		Run: Run{StackSize: DefaultStackSize, HeapSize: DefaultHeapSize},
	}
}

// Load parses a p.toml file from the given directory.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, fileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	cfg.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	if cfg.Run.StackSize <= 0 {
		cfg.Run.StackSize = DefaultStackSize
	}
	if cfg.Run.HeapSize <= 0 {
		cfg.Run.HeapSize = DefaultHeapSize
	}

	return cfg, nil
}

// FindAndLoad walks up from startDir to find a p.toml file, then loads
// and returns it. Returns the built-in defaults, not an error, if no
// p.toml is found anywhere above startDir.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, fileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return Default(), nil
		}
		dir = parent
	}
}
