// Package config provides configuration for searches.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// DefaultPageSize is the number of hits per page when none is requested.
const DefaultPageSize = 36

// Config holds the search configuration.
type Config struct {
	DefaultPageSize int `yaml:"default_page_size"`
	// MaxPageSize caps requested page sizes. Exports are not capped.
	MaxPageSize int `yaml:"max_page_size"`
}

// DefaultConfig returns the default search configuration.
func DefaultConfig() Config {
	return Config{
		DefaultPageSize: DefaultPageSize,
		MaxPageSize:     1000,
	}
}

// ApplyDefaults fills in zero values with defaults.
func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()
	if c.DefaultPageSize <= 0 {
		c.DefaultPageSize = defaults.DefaultPageSize
	}
	if c.MaxPageSize <= 0 {
		c.MaxPageSize = defaults.MaxPageSize
	}
}

// ApplyEnvOverrides applies environment variable overrides.
func (c *Config) ApplyEnvOverrides() {
	if val := os.Getenv("SEARCHSYNC_QUERY_MAX_PAGE_SIZE"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.MaxPageSize = n
		}
	}
}

// ResolvePaths resolves relative paths using the given base directory.
// No paths to resolve in query config.
func (c *Config) ResolvePaths(_ string) { _ = c }

// Validate returns an error if the configuration is invalid.
func (c *Config) Validate() error {
	if c.DefaultPageSize > c.MaxPageSize {
		return fmt.Errorf("query.default_page_size (%d) must not exceed query.max_page_size (%d)", c.DefaultPageSize, c.MaxPageSize)
	}
	return nil
}
