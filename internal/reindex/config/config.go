// Package config provides configuration for full reindexing.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Config holds the reindex configuration.
type Config struct {
	// Workers is the number of concurrent indexing sessions.
	// Default: 4
	Workers int `yaml:"workers"`

	// BatchSize is the number of records fetched per record store scan.
	// Default: 500
	BatchSize int `yaml:"batch_size"`

	// QPSLimit is the max records indexed per second. 0 disables throttling.
	QPSLimit int `yaml:"qps_limit"`

	// ProgressPath is the directory of the checkpoint database. Empty
	// disables resumable reindexing.
	ProgressPath string `yaml:"progress_path"`

	// BlockCacheSize is the size of the checkpoint database block cache in bytes.
	BlockCacheSize int64 `yaml:"block_cache_size"`
}

// DefaultConfig returns the default reindex configuration.
func DefaultConfig() Config {
	return Config{
		Workers:        4,
		BatchSize:      500,
		ProgressPath:   "data/reindex",
		BlockCacheSize: 8 * 1024 * 1024, // 8MB
	}
}

// ApplyDefaults fills in zero values with defaults.
func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()
	if c.Workers <= 0 {
		c.Workers = defaults.Workers
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.BlockCacheSize <= 0 {
		c.BlockCacheSize = defaults.BlockCacheSize
	}
}

// ApplyEnvOverrides applies environment variable overrides.
func (c *Config) ApplyEnvOverrides() {
	if val := os.Getenv("SEARCHSYNC_REINDEX_WORKERS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Workers = n
		}
	}
	if val := os.Getenv("SEARCHSYNC_REINDEX_PROGRESS_PATH"); val != "" {
		c.ProgressPath = val
	}
}

// ResolvePaths resolves relative paths using the given base directory.
func (c *Config) ResolvePaths(baseDir string) {
	if c.ProgressPath != "" && !filepath.IsAbs(c.ProgressPath) {
		c.ProgressPath = filepath.Join(baseDir, c.ProgressPath)
	}
}

// Validate returns an error if the configuration is invalid.
func (c *Config) Validate() error {
	if c.Workers > 64 {
		return fmt.Errorf("reindex.workers must be at most 64, got %d", c.Workers)
	}
	if c.QPSLimit < 0 {
		return fmt.Errorf("reindex.qps_limit must not be negative")
	}
	return nil
}
