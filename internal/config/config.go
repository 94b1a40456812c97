package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Config holds the shelf service configuration.
type Config struct {
	HTTP    HTTPConfig    `yaml:"http"`
	Catalog CatalogConfig `yaml:"catalog"`
	Search  SearchConfig  `yaml:"search"`
	Auth    AuthConfig    `yaml:"auth"`
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// CatalogConfig says where the catalog comes from. Exactly one of Path and URL is set.
type CatalogConfig struct {
	Path            string `yaml:"path"`
	URL             string `yaml:"url"`
	FetchTimeoutSec int    `yaml:"fetch_timeout_sec"`
	Delimiter       string `yaml:"delimiter"` // single character, default ","
}

// WeightsConfig holds per-field relevance weights.
type WeightsConfig struct {
	Title       float64 `yaml:"title"`
	Description float64 `yaml:"description"`
	Tags        float64 `yaml:"tags"`
	Vendor      float64 `yaml:"vendor"`
	ProductType float64 `yaml:"product_type"`
}

// SearchConfig holds matching, ordering and front-end pacing settings.
type SearchConfig struct {
	Weights         *WeightsConfig `yaml:"weights"`
	MaxEdits        *int           `yaml:"max_edits"` // 0..2, 0 = prefix only
	KeepHTML        bool           `yaml:"keep_html"`
	Workers         int            `yaml:"workers"`
	Collation       string         `yaml:"collation"` // BCP 47 tag for name sorting
	DebounceMS      int            `yaml:"debounce_ms"`
	SuggestionCount int            `yaml:"suggestion_count"`
}

// Debounce returns the query quiescence window.
func (s SearchConfig) Debounce() time.Duration {
	return time.Duration(s.DebounceMS) * time.Millisecond
}

// CollationTag returns the parsed collation language.
func (s SearchConfig) CollationTag() language.Tag {
	tag, err := language.Parse(s.Collation)
	if err != nil {
		return language.English
	}
	return tag
}

// Comma returns the catalog field delimiter.
func (c CatalogConfig) Comma() rune {
	r, _ := utf8.DecodeRuneInString(c.Delimiter)
	if r == utf8.RuneError {
		return ','
	}
	return r
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Catalog.FetchTimeoutSec <= 0 {
		c.Catalog.FetchTimeoutSec = 30
	}
	if c.Catalog.Delimiter == "" {
		c.Catalog.Delimiter = ","
	}
	if c.Search.Weights == nil {
		c.Search.Weights = &WeightsConfig{Title: 0.4, Description: 0.3, Tags: 0.3, Vendor: 0.3, ProductType: 0.3}
	}
	if c.Search.MaxEdits == nil {
		edits := 2
		c.Search.MaxEdits = &edits
	}
	if c.Search.Workers <= 0 {
		c.Search.Workers = 4
	}
	if c.Search.Collation == "" {
		c.Search.Collation = "en"
	}
	if c.Search.DebounceMS <= 0 {
		c.Search.DebounceMS = 400
	}
	if c.Search.SuggestionCount <= 0 {
		c.Search.SuggestionCount = 5
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch {
	case c.Catalog.Path == "" && c.Catalog.URL == "":
		return fmt.Errorf("catalog.path or catalog.url is required")
	case c.Catalog.Path != "" && c.Catalog.URL != "":
		return fmt.Errorf("catalog.path and catalog.url are mutually exclusive")
	}
	if utf8.RuneCountInString(c.Catalog.Delimiter) != 1 {
		return fmt.Errorf("catalog.delimiter must be a single character, got %q", c.Catalog.Delimiter)
	}
	if w := c.Search.Weights; w != nil {
		all := []float64{w.Title, w.Description, w.Tags, w.Vendor, w.ProductType}
		positive := false
		for _, v := range all {
			if v < 0 {
				return fmt.Errorf("search.weights must not be negative")
			}
			positive = positive || v > 0
		}
		if !positive {
			return fmt.Errorf("search.weights needs at least one positive weight")
		}
	}
	if e := c.Search.MaxEdits; e != nil && (*e < 0 || *e > 2) {
		return fmt.Errorf("search.max_edits must be between 0 and 2, got %d", *e)
	}
	if _, err := language.Parse(c.Search.Collation); c.Search.Collation != "" && err != nil {
		return fmt.Errorf("search.collation %q is not a language tag: %w", c.Search.Collation, err)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
