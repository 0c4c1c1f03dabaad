// Package config provides configuration for the search index connection.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	BackendElastic = "elastic"
	BackendMemory  = "memory"
)

// Config holds the search index connection settings.
type Config struct {
	// Backend is "elastic" or "memory". The memory backend keeps indices in
	// process and is meant for development.
	Backend string `yaml:"backend"`

	// BaseURL of the search service. Trailing slashes are trimmed.
	BaseURL string `yaml:"base_url"`

	// IndexPrefix is prepended to every index name as "<prefix>_<table>".
	IndexPrefix string `yaml:"index_prefix"`

	MaxRetries     int           `yaml:"max_retries"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`

	// LogLevel is the minimum level of the client's request log.
	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns the default search index configuration.
func DefaultConfig() Config {
	return Config{
		Backend:        BackendElastic,
		BaseURL:        "http://localhost:9200",
		IndexPrefix:    "collectiveaccess",
		MaxRetries:     3,
		RequestTimeout: 30 * time.Second,
		LogLevel:       "warn",
	}
}

// ApplyDefaults fills in zero values with defaults.
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.Backend == "" {
		c.Backend = d.Backend
	}
	if c.BaseURL == "" {
		c.BaseURL = d.BaseURL
	}
	if c.IndexPrefix == "" {
		c.IndexPrefix = d.IndexPrefix
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = d.RequestTimeout
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
}

// ApplyEnvOverrides applies environment variable overrides. They let several
// instances share one configuration file.
func (c *Config) ApplyEnvOverrides() {
	if val := os.Getenv("SEARCHSYNC_SEARCH_BASE_URL"); val != "" {
		c.BaseURL = strings.TrimRight(val, "/")
	}
	if val := os.Getenv("SEARCHSYNC_SEARCH_INDEX_PREFIX"); val != "" {
		c.IndexPrefix = val
	}
	if val := os.Getenv("SEARCHSYNC_SEARCH_LOG_LEVEL"); val != "" {
		c.LogLevel = val
	}
}

// ResolvePaths resolves relative paths using the given base directory.
func (c *Config) ResolvePaths(_ string) { _ = c }

// Validate returns an error if the configuration is invalid.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendElastic:
		if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
			return fmt.Errorf("search.base_url must be an http(s) URL, got %q", c.BaseURL)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("search.backend must be %q or %q, got %q", BackendElastic, BackendMemory, c.Backend)
	}
	if strings.ContainsAny(c.IndexPrefix, `*?"<>|/\ ,#`) {
		return fmt.Errorf("search.index_prefix contains invalid characters: %q", c.IndexPrefix)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid search.log_level: %s", c.LogLevel)
	}
	return nil
}
