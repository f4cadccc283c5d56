package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/panbanda/c3ms/pkg/classify"
	"github.com/panbanda/c3ms/pkg/codestats"
)

// Config holds all configuration options for c3ms.
type Config struct {
	// Analysis settings
	Analysis AnalysisConfig `koanf:"analysis" toml:"analysis"`

	// Library names recognized as API rather than user code
	API APIConfig `koanf:"api" toml:"api"`

	// File exclusion patterns
	Exclude ExcludeConfig `koanf:"exclude" toml:"exclude"`

	// Cache settings
	Cache CacheConfig `koanf:"cache" toml:"cache"`

	// Output settings
	Output OutputConfig `koanf:"output" toml:"output"`

	// Logging settings
	Log LogConfig `koanf:"log" toml:"log"`
}

// AnalysisConfig selects the reported scopes and how files are processed.
type AnalysisConfig struct {
	FunctionMetrics bool  `koanf:"function_metrics" toml:"function_metrics"`
	FileMetrics     bool  `koanf:"file_metrics" toml:"file_metrics"`
	GlobalMetrics   bool  `koanf:"global_metrics" toml:"global_metrics"`
	PrintFunctions  bool  `koanf:"print_functions" toml:"print_functions"`
	Verbosity       int   `koanf:"verbosity" toml:"verbosity"`
	Workers         int   `koanf:"workers" toml:"workers"`             // 0 = one per CPU
	MaxFileSize     int64 `koanf:"max_file_size" toml:"max_file_size"` // bytes, 0 = unlimited
	Recursive       bool  `koanf:"recursive" toml:"recursive"`
}

// APIEntries lists library names of one provenance.
type APIEntries struct {
	Namespaces []string `koanf:"namespaces" toml:"namespaces"`
	Prefixes   []string `koanf:"prefixes" toml:"prefixes"`
	Functions  []string `koanf:"functions" toml:"functions"`
	Types      []string `koanf:"types" toml:"types"`
	Constants  []string `koanf:"constants" toml:"constants"`
}

// APIConfig extends, or with NoDefaults replaces, the built-in catalog.
type APIConfig struct {
	NoDefaults bool       `koanf:"no_defaults" toml:"no_defaults"`
	High       APIEntries `koanf:"high" toml:"high"`
	Low        APIEntries `koanf:"low" toml:"low"`
}

// Catalog builds the library catalog: the built-in defaults unless
// NoDefaults is set, extended with the configured entries.
func (a APIConfig) Catalog() *classify.Catalog {
	c := classify.NewCatalog()
	if !a.NoDefaults {
		c = classify.DefaultCatalog()
	}
	c.Add(codestats.API, a.High.entries())
	c.Add(codestats.APILow, a.Low.entries())
	return c
}

func (e APIEntries) entries() classify.Entries {
	return classify.Entries{
		Namespaces: e.Namespaces,
		Prefixes:   e.Prefixes,
		Functions:  e.Functions,
		Types:      e.Types,
		Constants:  e.Constants,
	}
}

// ExcludeConfig defines file exclusion patterns.
type ExcludeConfig struct {
	Patterns   []string `koanf:"patterns" toml:"patterns"`
	Extensions []string `koanf:"extensions" toml:"extensions"`
	Dirs       []string `koanf:"dirs" toml:"dirs"`
	Gitignore  bool     `koanf:"gitignore" toml:"gitignore"`
}

// CacheConfig controls caching behavior.
type CacheConfig struct {
	Enabled bool   `koanf:"enabled" toml:"enabled"`
	Dir     string `koanf:"dir" toml:"dir"`
	TTL     int    `koanf:"ttl" toml:"ttl"` // TTL in hours
}

// OutputConfig controls output formatting.
type OutputConfig struct {
	Format string `koanf:"format" toml:"format"` // text, markdown, json, yaml, toon
	Color  bool   `koanf:"color" toml:"color"`
}

// LogConfig controls diagnostic logging on stderr.
type LogConfig struct {
	Level  string `koanf:"level" toml:"level"`   // debug, info, warn, error
	Format string `koanf:"format" toml:"format"` // text, json
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			GlobalMetrics: true,
			Verbosity:     1,
			MaxFileSize:   10 << 20,
		},
		Exclude: ExcludeConfig{
			Patterns: []string{
				"*.pb.cc",
				"*.pb.h",
				"moc_*.cpp",
			},
			Dirs: []string{
				".git",
				".c3ms",
				"build",
				"cmake-build-debug",
				"cmake-build-release",
				"third_party",
			},
			Gitignore: true,
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     ".c3ms/cache",
			TTL:     24,
		},
		Output: OutputConfig{
			Format: "text",
			Color:  true,
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

var (
	validFormats   = []string{"text", "markdown", "json", "yaml", "toon"}
	validLogLevels = []string{"debug", "info", "warn", "error"}
)

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if c.Analysis.Verbosity < 0 || c.Analysis.Verbosity > 3 {
		errs = append(errs, fmt.Errorf("analysis.verbosity must be between 0 and 3, got %d", c.Analysis.Verbosity))
	}
	if c.Analysis.Workers < 0 {
		errs = append(errs, fmt.Errorf("analysis.workers must not be negative, got %d", c.Analysis.Workers))
	}
	if c.Analysis.MaxFileSize < 0 {
		errs = append(errs, fmt.Errorf("analysis.max_file_size must not be negative, got %d", c.Analysis.MaxFileSize))
	}
	if !contains(validFormats, c.Output.Format) {
		errs = append(errs, fmt.Errorf("output.format must be one of %s, got %q", strings.Join(validFormats, ", "), c.Output.Format))
	}
	if !contains(validLogLevels, c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level must be one of %s, got %q", strings.Join(validLogLevels, ", "), c.Log.Level))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, fmt.Errorf("cache.ttl must not be negative, got %d", c.Cache.TTL))
	}
	return errors.Join(errs...)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// Load loads configuration from a file.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	// Determine parser based on extension
	var parser koanf.Parser
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".toml":
		parser = toml.Parser()
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		parser = toml.Parser()
	}

	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// configNames are searched in order in each of searchDirs.
var (
	configNames = []string{
		"c3ms.toml",
		"c3ms.yaml",
		"c3ms.yml",
		"c3ms.json",
		".c3ms.toml",
		".c3ms.yaml",
		".c3ms.yml",
		".c3ms.json",
	}
	searchDirs = []string{".", ".c3ms"}
)

// LoadResult is a loaded configuration and the file it came from. Source
// is empty when defaults were used.
type LoadResult struct {
	Config *Config
	Source string
}

type loadOptions struct {
	path string
}

// LoadOption customizes LoadConfig.
type LoadOption func(*loadOptions)

// WithPath loads exactly this file instead of searching.
func WithPath(path string) LoadOption {
	return func(o *loadOptions) { o.path = path }
}

// LoadConfig loads and validates configuration. An explicit path must
// exist; otherwise the standard locations are searched and defaults are
// used when none is found.
func LoadConfig(opts ...LoadOption) (*LoadResult, error) {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}

	if o.path != "" {
		cfg, err := Load(o.path)
		if err != nil {
			return nil, fmt.Errorf("load config %s: %w", o.path, err)
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config %s: %w", o.path, err)
		}
		return &LoadResult{Config: cfg, Source: o.path}, nil
	}

	if path := find(); path != "" {
		cfg, err := Load(path)
		if err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config %s: %w", path, err)
		}
		return &LoadResult{Config: cfg, Source: path}, nil
	}

	return &LoadResult{Config: DefaultConfig()}, nil
}

func find() string {
	for _, dir := range searchDirs {
		for _, name := range configNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// ShouldExclude checks if a path should be excluded from analysis.
func (c *Config) ShouldExclude(path string) bool {
	for _, dir := range c.Exclude.Dirs {
		if strings.Contains(path, string(filepath.Separator)+dir+string(filepath.Separator)) ||
			strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}

	ext := filepath.Ext(path)
	for _, excludeExt := range c.Exclude.Extensions {
		if ext == excludeExt {
			return true
		}
	}

	base := filepath.Base(path)
	for _, pattern := range c.Exclude.Patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}

	return false
}
