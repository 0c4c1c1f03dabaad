// Package config provides configuration for record indexing.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// DefaultMaxBufferSize is the number of pending items that triggers a flush.
const DefaultMaxBufferSize = 250

// Config holds the indexing configuration.
type Config struct {
	// MaxBufferSize is the number of pending inserts, updates and deletes
	// above which a session flushes on its own. Defaults to 250.
	MaxBufferSize int `yaml:"max_buffer_size"`

	// RefreshAfterFlush makes flushed documents searchable immediately.
	// Ignored while reindexing.
	RefreshAfterFlush bool `yaml:"refresh_after_flush"`

	// RecordCacheSize bounds the number of index documents a session keeps
	// between flushes. Defaults to 1024.
	RecordCacheSize int `yaml:"record_cache_size"`
}

// DefaultConfig returns the default indexing configuration.
func DefaultConfig() Config {
	return Config{
		MaxBufferSize:     DefaultMaxBufferSize,
		RefreshAfterFlush: true,
		RecordCacheSize:   1024,
	}
}

// ApplyDefaults fills in zero values with defaults.
func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()
	if c.MaxBufferSize < 1 {
		c.MaxBufferSize = defaults.MaxBufferSize
	}
	if c.RecordCacheSize == 0 {
		c.RecordCacheSize = defaults.RecordCacheSize
	}
}

// ApplyEnvOverrides applies environment variable overrides.
func (c *Config) ApplyEnvOverrides() {
	if val := os.Getenv("SEARCHSYNC_INDEXING_MAX_BUFFER_SIZE"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			c.MaxBufferSize = n
		}
	}
}

// ResolvePaths resolves relative paths using the given base directory.
// No paths to resolve in indexing config.
func (c *Config) ResolvePaths(_ string) { _ = c }

// Validate returns an error if the configuration is invalid.
func (c *Config) Validate() error {
	if c.RecordCacheSize < 0 {
		return fmt.Errorf("indexing.record_cache_size must not be negative")
	}
	return nil
}
