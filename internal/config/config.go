// Package config loads archivesearch configuration.
//
// Precedence, lowest to highest:
//  1. Hardcoded defaults
//  2. User config ($XDG_CONFIG_HOME/archivesearch/config.yaml)
//  3. Project config (archivesearch.yaml in the working directory, or --config)
//  4. Environment variables (ARCHIVESEARCH_*)
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ProjectFileNames are the file names searched for in the working directory.
var ProjectFileNames = []string{"archivesearch.yaml", "archivesearch.yml"}

// Config is the complete archivesearch configuration.
type Config struct {
	Version   int             `yaml:"version"`
	Corpus    CorpusConfig    `yaml:"corpus"`
	Search    SearchConfig    `yaml:"search"`
	Suggest   SuggestConfig   `yaml:"suggest"`
	Server    ServerConfig    `yaml:"server"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// SourceConfig is one JSON snapshot of file records.
type SourceConfig struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
	// IncludePrefix keeps only records whose path starts with it.
	IncludePrefix string `yaml:"include_prefix,omitempty"`
}

// CorpusConfig controls how the corpus is assembled.
type CorpusConfig struct {
	Sources []SourceConfig `yaml:"sources"`
	// TrimPrefix is stripped from record paths to form entry ids.
	TrimPrefix string `yaml:"trim_prefix"`
	// Watch reloads the corpus when a snapshot file changes.
	Watch         bool     `yaml:"watch"`
	WatchDebounce Duration `yaml:"watch_debounce"`
}

// SearchConfig controls ranking.
type SearchConfig struct {
	Threshold    float64 `yaml:"threshold"`
	DefaultLimit int     `yaml:"default_limit"`
	MaxLimit     int     `yaml:"max_limit"`
	// Workers bounds concurrent assisted searches. 0 means GOMAXPROCS.
	Workers int `yaml:"workers"`
}

// SuggestConfig configures the name-suggestion service client.
type SuggestConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Endpoint     string   `yaml:"endpoint"`
	Timeout      Duration `yaml:"timeout"`
	CacheSize    int      `yaml:"cache_size"`
	MaxFailures  int      `yaml:"max_failures"`
	ResetTimeout Duration `yaml:"reset_timeout"`
	MaxRetries   int      `yaml:"max_retries"`
}

// ServerConfig configures the serve command.
type ServerConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Transport string `yaml:"transport"`
	LogLevel  string `yaml:"log_level"`
	DataDir   string `yaml:"data_dir"`
}

// TelemetryConfig configures query telemetry.
type TelemetryConfig struct {
	Enabled bool   `yaml:"enabled"`
	DBPath  string `yaml:"db_path,omitempty"`
}

// Duration is a time.Duration written as "3s" in YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q: %w", node.Line, s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// NewConfig returns a Config with default values.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Corpus: CorpusConfig{
			TrimPrefix:    "合集系列/",
			Watch:         true,
			WatchDebounce: Duration(500 * time.Millisecond),
		},
		Search: SearchConfig{
			Threshold:    0.78,
			DefaultLimit: 100,
			MaxLimit:     1000,
		},
		Suggest: SuggestConfig{
			Enabled:      true,
			Endpoint:     "http://localhost:2998",
			Timeout:      Duration(3 * time.Second),
			CacheSize:    1024,
			MaxFailures:  5,
			ResetTimeout: Duration(30 * time.Second),
		},
		Server: ServerConfig{
			Host:      "127.0.0.1",
			Port:      2999,
			Transport: "http",
			LogLevel:  "info",
		},
		Telemetry: TelemetryConfig{
			Enabled: true,
		},
	}
}

// GetUserConfigPath returns the user configuration path, following XDG.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "archivesearch", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "archivesearch", "config.yaml")
	}
	return filepath.Join(home, ".config", "archivesearch", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists reports whether the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// Load builds the configuration for the working directory dir. A non-empty
// explicitPath replaces the project file lookup and must exist.
func Load(dir, explicitPath string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	projectPath := explicitPath
	if projectPath == "" {
		projectPath = FindProjectFile(dir)
	} else if !fileExists(projectPath) {
		return nil, fmt.Errorf("config file not found: %s", projectPath)
	}
	if projectPath != "" {
		if err := cfg.loadYAML(projectPath); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// FindProjectFile returns the project config path in dir, or "".
func FindProjectFile(dir string) string {
	for _, name := range ProjectFileNames {
		if p := filepath.Join(dir, name); fileExists(p) {
			return p
		}
	}
	return ""
}

// loadYAML decodes path over the current values, so keys absent from the
// file keep their previous layer's value.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies ARCHIVESEARCH_* environment variables.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("ARCHIVESEARCH_SNAPSHOTS"); v != "" {
		c.Corpus.Sources = nil
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				c.Corpus.Sources = append(c.Corpus.Sources, SourceConfig{
					Name: strings.TrimSuffix(filepath.Base(p), filepath.Ext(p)),
					Path: p,
				})
			}
		}
	}
	if v, ok := os.LookupEnv("ARCHIVESEARCH_TRIM_PREFIX"); ok {
		c.Corpus.TrimPrefix = v
	}
	if v := os.Getenv("ARCHIVESEARCH_WATCH"); v != "" {
		c.Corpus.Watch = parseBool(v)
	}

	if v := os.Getenv("ARCHIVESEARCH_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("ARCHIVESEARCH_THRESHOLD: %w", err)
		}
		c.Search.Threshold = f
	}
	if v := os.Getenv("ARCHIVESEARCH_WORKERS"); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("ARCHIVESEARCH_WORKERS: %w", err)
		}
		c.Search.Workers = n
	}

	if v := os.Getenv("ARCHIVESEARCH_SUGGEST_ENDPOINT"); v != "" {
		c.Suggest.Endpoint = v
	}
	if v := os.Getenv("ARCHIVESEARCH_SUGGEST_ENABLED"); v != "" {
		c.Suggest.Enabled = parseBool(v)
	}

	if v := os.Getenv("ARCHIVESEARCH_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("ARCHIVESEARCH_PORT"); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("ARCHIVESEARCH_PORT: %w", err)
		}
		c.Server.Port = n
	}
	if v := os.Getenv("ARCHIVESEARCH_TRANSPORT"); v != "" {
		c.Server.Transport = v
	}
	if v := os.Getenv("ARCHIVESEARCH_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("ARCHIVESEARCH_DATA_DIR"); v != "" {
		c.Server.DataDir = v
	}

	if v := os.Getenv("ARCHIVESEARCH_TELEMETRY"); v != "" {
		c.Telemetry.Enabled = parseBool(v)
	}
	return nil
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	var errs []error

	for i, s := range c.Corpus.Sources {
		if strings.TrimSpace(s.Path) == "" {
			errs = append(errs, fmt.Errorf("corpus.sources[%d].path must not be empty", i))
		}
	}
	if c.Corpus.WatchDebounce < 0 {
		errs = append(errs, fmt.Errorf("corpus.watch_debounce must be non-negative, got %s", c.Corpus.WatchDebounce.Std()))
	}

	if c.Search.Threshold < 0 || c.Search.Threshold > 1 {
		errs = append(errs, fmt.Errorf("search.threshold must be between 0 and 1, got %g", c.Search.Threshold))
	}
	if c.Search.DefaultLimit <= 0 {
		errs = append(errs, fmt.Errorf("search.default_limit must be positive, got %d", c.Search.DefaultLimit))
	}
	if c.Search.MaxLimit < c.Search.DefaultLimit {
		errs = append(errs, fmt.Errorf("search.max_limit (%d) must be >= search.default_limit (%d)", c.Search.MaxLimit, c.Search.DefaultLimit))
	}
	if c.Search.Workers < 0 {
		errs = append(errs, fmt.Errorf("search.workers must be non-negative, got %d", c.Search.Workers))
	}

	if c.Suggest.Enabled {
		if u, err := url.Parse(c.Suggest.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("suggest.endpoint must be an absolute URL, got %q", c.Suggest.Endpoint))
		}
		if c.Suggest.Timeout <= 0 {
			errs = append(errs, fmt.Errorf("suggest.timeout must be positive"))
		}
	}
	if c.Suggest.CacheSize < 0 || c.Suggest.MaxFailures < 0 || c.Suggest.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("suggest.cache_size, max_failures and max_retries must be non-negative"))
	}

	switch strings.ToLower(c.Server.Transport) {
	case "http", "stdio":
	default:
		errs = append(errs, fmt.Errorf("server.transport must be 'http' or 'stdio', got %s", c.Server.Transport))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port))
	}
	switch strings.ToLower(c.Server.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel))
	}

	return errors.Join(errs...)
}

// DataDir returns server.data_dir, defaulting to ~/.archivesearch.
func (c *Config) DataDir() string {
	if c.Server.DataDir != "" {
		return c.Server.DataDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".archivesearch")
	}
	return filepath.Join(home, ".archivesearch")
}

// TelemetryDBPath returns telemetry.db_path, defaulting to the data dir.
func (c *Config) TelemetryDBPath() string {
	if c.Telemetry.DBPath != "" {
		return c.Telemetry.DBPath
	}
	return filepath.Join(c.DataDir(), "telemetry.db")
}

// Addr returns host:port for the HTTP listener.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// WriteYAML writes the configuration to path.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
