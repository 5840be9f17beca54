// Package config loads the server configuration.
//
// Sources, lowest to highest precedence: built-in defaults, an optional
// YAML file (with ${VAR} references expanded), and environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/HendryAvila/confluence-mcp/internal/retry"
)

// Config is the full server configuration.
type Config struct {
	Confluence ConfluenceConfig `yaml:"confluence"`
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
	Cache      CacheConfig      `yaml:"cache"`
	Retry      RetryConfig      `yaml:"retry"`
}

// ConfluenceConfig points at the Confluence site, or at the local store.
type ConfluenceConfig struct {
	URL      string `yaml:"url"       validate:"omitempty,url"`
	Username string `yaml:"username"`
	APIToken string `yaml:"api_token"`
	Local    bool   `yaml:"local"`    // force the local SQLite store
	DataDir  string `yaml:"data_dir"` // local store directory
}

// ServerConfig holds transport settings.
type ServerConfig struct {
	Transport string `yaml:"transport"  validate:"oneof=stdio sse"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"       validate:"min=0,max=65535"`
	APIKey    string `yaml:"api_key"`
	RateLimit int    `yaml:"rate_limit" validate:"min=1"` // requests per minute per client
	Role      string `yaml:"role"       validate:"oneof=reader writer admin"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `yaml:"level" validate:"oneof=debug info warn error"`
	Structured bool   `yaml:"structured"` // JSON instead of colored text
}

// CacheConfig configures the page cache. An empty RedisURL keeps the cache
// in memory; a zero TTL disables caching.
type CacheConfig struct {
	RedisURL   string        `yaml:"redis_url"`
	TTL        time.Duration `yaml:"ttl"         validate:"min=0"`
	MaxEntries int           `yaml:"max_entries" validate:"min=0"`
}

// RetryConfig mirrors retry.Policy.
type RetryConfig struct {
	MaxRetries    int           `yaml:"max_retries"    validate:"min=0,max=10"`
	InitialDelay  time.Duration `yaml:"initial_delay"`
	MaxDelay      time.Duration `yaml:"max_delay"`
	BackoffFactor float64       `yaml:"backoff_factor"`
}

// Policy returns the retry policy described by c.
func (c RetryConfig) Policy() retry.Policy {
	p := retry.DefaultPolicy()
	p.MaxRetries = c.MaxRetries
	p.InitialDelay = c.InitialDelay
	p.MaxDelay = c.MaxDelay
	p.BackoffFactor = c.BackoffFactor
	return p
}

// Default returns the built-in configuration.
func Default() Config {
	home, _ := os.UserHomeDir()
	return Config{
		Confluence: ConfluenceConfig{
			DataDir: filepath.Join(home, ".confluence-mcp"),
		},
		Server: ServerConfig{
			Transport: "stdio",
			Host:      "0.0.0.0",
			Port:      8080,
			RateLimit: 100,
			Role:      "reader",
		},
		Logging: LoggingConfig{Level: "info"},
		Cache: CacheConfig{
			TTL:        5 * time.Minute,
			MaxEntries: 1000,
		},
		Retry: RetryConfig{
			MaxRetries:    retry.DefaultMaxRetries,
			InitialDelay:  retry.DefaultInitialDelay,
			MaxDelay:      retry.DefaultMaxDelay,
			BackoffFactor: retry.DefaultBackoffFactor,
		},
	}
}

// UseLocal reports whether the local store should serve pages: when asked
// to, or when any Confluence credential is missing.
func (c Config) UseLocal() bool {
	cc := c.Confluence
	return cc.Local || cc.URL == "" || cc.Username == "" || cc.APIToken == ""
}

var validate = validator.New()

// Validate checks field bounds and the retry policy.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := c.Retry.Policy().Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LoadDotEnv loads variables from the given .env files (".env" when none
// are named) without overriding ones already set. Missing files are skipped.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

// Load builds the configuration from defaults, the YAML file at path (if
// path is non-empty) and the process environment.
func Load(path string) (*Config, error) {
	return LoadWith(path, os.LookupEnv)
}

// LoadWith is Load with an injectable environment lookup.
func LoadWith(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		expanded := os.Expand(string(data), func(k string) string {
			v, _ := lookup(k)
			return v
		})
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := applyEnv(&cfg, lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	e := envReader{lookup: lookup}

	e.str("CONFLUENCE_URL", &cfg.Confluence.URL)
	e.str("CONFLUENCE_USERNAME", &cfg.Confluence.Username)
	e.str("CONFLUENCE_API_TOKEN", &cfg.Confluence.APIToken)
	e.boolean("CONFLUENCE_LOCAL", &cfg.Confluence.Local)
	e.str("CONFLUENCE_DATA_DIR", &cfg.Confluence.DataDir)

	e.str("MCP_TRANSPORT", &cfg.Server.Transport)
	e.str("MCP_HOST", &cfg.Server.Host)
	e.integer("MCP_PORT", &cfg.Server.Port)
	e.str("MCP_API_KEY", &cfg.Server.APIKey)
	e.integer("MCP_RATE_LIMIT", &cfg.Server.RateLimit)
	e.str("MCP_ROLE", &cfg.Server.Role)

	e.str("LOG_LEVEL", &cfg.Logging.Level)
	e.boolean("LOG_STRUCTURED", &cfg.Logging.Structured)

	e.str("CACHE_REDIS_URL", &cfg.Cache.RedisURL)
	e.duration("CACHE_TTL", &cfg.Cache.TTL)
	e.integer("CACHE_MAX_ENTRIES", &cfg.Cache.MaxEntries)

	e.integer("RETRY_MAX_RETRIES", &cfg.Retry.MaxRetries)
	e.duration("RETRY_INITIAL_DELAY", &cfg.Retry.InitialDelay)
	e.duration("RETRY_MAX_DELAY", &cfg.Retry.MaxDelay)
	e.float("RETRY_BACKOFF_FACTOR", &cfg.Retry.BackoffFactor)

	return errors.Join(e.errs...)
}

// envReader copies set variables into config fields, collecting parse
// errors instead of stopping at the first one.
type envReader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *envReader) get(key string) (string, bool) {
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) integer(key string, dst *int) {
	if v, ok := e.get(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %q is not an integer", key, v))
			return
		}
		*dst = n
	}
}

func (e *envReader) float(key string, dst *float64) {
	if v, ok := e.get(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %q is not a number", key, v))
			return
		}
		*dst = f
	}
}

func (e *envReader) boolean(key string, dst *bool) {
	if v, ok := e.get(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %q is not a boolean", key, v))
			return
		}
		*dst = b
	}
}

// duration accepts Go durations ("1.5s") or plain seconds ("1.5").
func (e *envReader) duration(key string, dst *time.Duration) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	if d, err := time.ParseDuration(v); err == nil {
		*dst = d
		return
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not a duration", key, v))
		return
	}
	*dst = time.Duration(secs * float64(time.Second))
}
