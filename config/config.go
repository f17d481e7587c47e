// Package config provides configuration loading for spectrace.
//
// Config lives at .config/spectrace/config.yaml relative to the project root.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	// ProjectConfigDir is the directory holding the project config file.
	ProjectConfigDir = ".config/spectrace"
	// ProjectConfigFile is the name of the project config file.
	ProjectConfigFile = "config.yaml"
)

// Config is the root spectrace configuration.
type Config struct {
	// Specs lists the specifications to track coverage against.
	Specs []SpecConfig `yaml:"specs"`
	// Serve configures daemon mode.
	Serve ServeConfig `yaml:"serve"`
}

// SpecConfig configures one tracked specification.
type SpecConfig struct {
	// Name of the spec, for display.
	Name string `yaml:"name"`
	// RulesURL points at a remote _rules.json manifest or spec document.
	RulesURL string `yaml:"rules_url"`
	// RulesFile is a local document path or glob, relative to the config
	// file's directory. Exactly one of RulesURL and RulesFile is set.
	RulesFile string `yaml:"rules_file"`
	// Marker is the rule definition marker in spec documents (default "r").
	Marker string `yaml:"marker"`
	// Include globs select source files to scan (default DefaultInclude).
	Include []string `yaml:"include"`
	// Exclude globs remove files from the scan (default DefaultExclude).
	Exclude []string `yaml:"exclude"`
}

// ServeConfig configures the daemon.
type ServeConfig struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen"`
	// NATSURL enables rebuild-event publishing when set.
	NATSURL string `yaml:"nats_url"`
	// DebounceDelay is how long the file watcher waits for more changes
	// before triggering a rebuild.
	DebounceDelay string `yaml:"debounce_delay"`
}

// DefaultInclude and DefaultExclude apply when a spec config leaves the
// corresponding pattern list empty.
var (
	DefaultInclude = []string{"**/*.go"}
	DefaultExclude = []string{".git/**", "vendor/**", "target/**", "node_modules/**"}
)

// Default returns an empty configuration with serve defaults filled in.
func Default() *Config {
	return &Config{
		Serve: ServeConfig{
			Listen:        "127.0.0.1:7717",
			DebounceDelay: "500ms",
		},
	}
}

// IncludePatterns returns the spec's include globs, or the defaults.
func (s *SpecConfig) IncludePatterns() []string {
	if len(s.Include) == 0 {
		return DefaultInclude
	}
	return s.Include
}

// ExcludePatterns returns the spec's exclude globs, or the defaults.
func (s *SpecConfig) ExcludePatterns() []string {
	if len(s.Exclude) == 0 {
		return DefaultExclude
	}
	return s.Exclude
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	names := make(map[string]bool)
	for i, s := range c.Specs {
		if s.Name == "" {
			return fmt.Errorf("specs[%d]: name is required", i)
		}
		if names[s.Name] {
			return fmt.Errorf("specs[%d]: duplicate spec name %q", i, s.Name)
		}
		names[s.Name] = true
		if s.RulesURL != "" && s.RulesFile != "" {
			return fmt.Errorf("spec %q: rules_url and rules_file are mutually exclusive", s.Name)
		}
		if s.RulesURL == "" && s.RulesFile == "" {
			return fmt.Errorf("spec %q: one of rules_url or rules_file is required", s.Name)
		}
	}
	return nil
}

// ParseError is a malformed configuration file. It is distinguishable from a
// missing file (errors.Is(err, os.ErrNotExist)) and from an unreadable one
// (plain read error) because each demands a different recovery policy.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse config file %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Load reads and decodes the configuration at path. Not-found propagates the
// os.ErrNotExist sentinel through the wrap; malformed content returns a
// *ParseError; other read failures surface as plain read errors.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return cfg, nil
}

// DefaultPath returns the config path under the given project root.
func DefaultPath(root string) string {
	return filepath.Join(root, ProjectConfigDir, ProjectConfigFile)
}

// FindProjectRoot walks up from dir looking for a directory that holds a
// spectrace config or a .git directory. Falls back to dir itself.
func FindProjectRoot(dir string) string {
	cur := dir
	for {
		if _, err := os.Stat(DefaultPath(cur)); err == nil {
			return cur
		}
		if _, err := os.Stat(filepath.Join(cur, ".git")); err == nil {
			return cur
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return dir
		}
		cur = parent
	}
}
