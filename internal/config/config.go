// Package config handles loading and saving the sokodlex driver configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config: ~/.config/sokodlex/config.yaml
//   - Data:   ~/.local/share/sokodlex/ (deadlock stores)
//   - State:  ~/.local/state/sokodlex/ (recent level sets, search progress)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LevelSet registers a directory of XSB level files the driver knows about.
type LevelSet struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

// SearchConfig controls the search/auto-select driver loop.
type SearchConfig struct {
	// StepInterval is the cadence at which the driver loop invokes
	// search_step / auto_select.step when running unattended.
	StepInterval time.Duration `yaml:"step_interval,omitempty"`
	// HeuristicSeed seeds the categorical sampler used by choose_action,
	// kept fixed so runs are reproducible.
	HeuristicSeed uint64 `yaml:"heuristic_seed,omitempty"`
	// MinMove bounds how far search_step is allowed to undo before
	// reporting unsolvable.
	MinMove int `yaml:"min_move,omitempty"`
}

// StoreConfig locates the persisted deadlock store.
type StoreConfig struct {
	Path string `yaml:"path,omitempty"`
}

// Config is the top-level configuration for the sokodlex driver.
type Config struct {
	LevelSets []LevelSet   `yaml:"level_sets,omitempty"`
	Search    SearchConfig `yaml:"search,omitempty"`
	Store     StoreConfig  `yaml:"store,omitempty"`
	// SolutionDir is the root under which solved levels write their move
	// log and action log, one subdirectory per level (var/<levelset>_l<n>/).
	SolutionDir string `yaml:"solution_dir,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Search: SearchConfig{
			StepInterval:  50 * time.Millisecond,
			HeuristicSeed: 1,
			MinMove:       0,
		},
		Store: StoreConfig{
			Path: "deadlocks",
		},
		SolutionDir: ".",
	}
}

// ConfigDir returns the XDG config directory for sokodlex.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "sokodlex")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "sokodlex")
}

// DataDir returns the XDG data directory for sokodlex.
func DataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "sokodlex")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "share", "sokodlex")
}

// StateDir returns the XDG state directory for sokodlex.
func StateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "sokodlex")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "state", "sokodlex")
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads the config file from the XDG config directory.
// Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads config from a specific path.
// Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	for i := range cfg.LevelSets {
		cfg.LevelSets[i].Path = expandHome(cfg.LevelSets[i].Path)
	}
	cfg.Store.Path = expandHome(cfg.Store.Path)
	cfg.SolutionDir = expandHome(cfg.SolutionDir)

	return cfg, nil
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// FindLevelSet returns the level set with the given name, or nil.
func (c Config) FindLevelSet(name string) *LevelSet {
	for i := range c.LevelSets {
		if strings.EqualFold(c.LevelSets[i].Name, name) {
			return &c.LevelSets[i]
		}
	}
	return nil
}

// ResolvedPath returns the level set path with ~ expanded.
func (l LevelSet) ResolvedPath() string {
	return expandHome(l.Path)
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
