// Package config loads the moonlens.toml project file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/gobwas/glob"
)

// FileName is the configuration file looked up in the project root.
const FileName = "moonlens.toml"

const (
	DefaultDB       = ".moonlens/index.db"
	DefaultDebounce = 300 * time.Millisecond
)

type Config struct {
	DB       string            `toml:"db"`
	RulesDir string            `toml:"rules_dir"`
	Exclude  Exclude           `toml:"exclude"`
	Watch    Watch             `toml:"watch"`
	Analysis Analysis          `toml:"analysis"`
	Severity map[string]string `toml:"severity"` // diagnostic code -> severity name
}

type Exclude struct {
	Dirs  []string `toml:"dirs"`
	Files []string `toml:"files"`
}

type Watch struct {
	Debounce time.Duration `toml:"debounce"`
}

type Analysis struct {
	// Prelude is a pointer so an absent key keeps the default of true.
	Prelude *bool             `toml:"prelude"`
	Globals map[string]string `toml:"globals"` // name -> type text
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load decodes the file at path and fills in defaults. Exclude patterns are
// compiled here so a bad glob fails early.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	var cfg Config
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config: %s: unknown key %q", path, undecoded[0].String())
	}
	cfg.applyDefaults()

	if _, err := cfg.Matcher(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	// A relative rules_dir is relative to the config file.
	if cfg.RulesDir != "" && !filepath.IsAbs(cfg.RulesDir) {
		cfg.RulesDir = filepath.Join(filepath.Dir(path), cfg.RulesDir)
	}
	return &cfg, nil
}

// LoadOrDefault loads path, or returns Default when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

func (c *Config) applyDefaults() {
	if c.DB == "" {
		c.DB = DefaultDB
	}
	if c.Watch.Debounce == 0 {
		c.Watch.Debounce = DefaultDebounce
	}
	if c.Analysis.Prelude == nil {
		on := true
		c.Analysis.Prelude = &on
	}
}

// PreludeEnabled reports whether the builtin globals are seeded.
func (c *Config) PreludeEnabled() bool {
	return c.Analysis.Prelude == nil || *c.Analysis.Prelude
}

// Matcher compiles the exclude patterns.
func (c *Config) Matcher() (*Matcher, error) {
	return NewMatcher(c.Exclude.Dirs, c.Exclude.Files)
}

// Matcher tests base names against exclude globs.
type Matcher struct {
	dirs  []glob.Glob
	files []glob.Glob
}

// NewMatcher compiles directory and file patterns.
func NewMatcher(dirs, files []string) (*Matcher, error) {
	m := &Matcher{}
	for _, pattern := range dirs {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("exclude dir pattern %q: %w", pattern, err)
		}
		m.dirs = append(m.dirs, g)
	}
	for _, pattern := range files {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("exclude file pattern %q: %w", pattern, err)
		}
		m.files = append(m.files, g)
	}
	return m, nil
}

// ExcludeDir reports whether the directory at path is skipped.
func (m *Matcher) ExcludeDir(path string) bool {
	if m == nil {
		return false
	}
	base := filepath.Base(path)
	for _, g := range m.dirs {
		if g.Match(base) {
			return true
		}
	}
	return false
}

// ExcludeFile reports whether the file at path is skipped.
func (m *Matcher) ExcludeFile(path string) bool {
	if m == nil {
		return false
	}
	base := filepath.Base(path)
	for _, g := range m.files {
		if g.Match(base) {
			return true
		}
	}
	return false
}
