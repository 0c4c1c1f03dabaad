// Package config provides configuration for the record store connection.
package config

import (
	"fmt"
	"os"
	"time"
)

// Config holds the MongoDB settings of the record store.
type Config struct {
	URI                 string        `yaml:"uri"`
	Database            string        `yaml:"database"`
	RecordsCollection   string        `yaml:"records_collection"`
	ChangeLogCollection string        `yaml:"change_log_collection"`
	ListItemsCollection string        `yaml:"list_items_collection"`
	Timeout             time.Duration `yaml:"timeout"`
}

// DefaultConfig returns the default record store configuration.
func DefaultConfig() Config {
	return Config{
		URI:                 "mongodb://localhost:27017",
		Database:            "collection",
		RecordsCollection:   "records",
		ChangeLogCollection: "change_log",
		ListItemsCollection: "list_items",
		Timeout:             10 * time.Second,
	}
}

// ApplyDefaults fills in zero values with defaults.
func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()
	if c.URI == "" {
		c.URI = defaults.URI
	}
	if c.Database == "" {
		c.Database = defaults.Database
	}
	if c.RecordsCollection == "" {
		c.RecordsCollection = defaults.RecordsCollection
	}
	if c.ChangeLogCollection == "" {
		c.ChangeLogCollection = defaults.ChangeLogCollection
	}
	if c.ListItemsCollection == "" {
		c.ListItemsCollection = defaults.ListItemsCollection
	}
	if c.Timeout == 0 {
		c.Timeout = defaults.Timeout
	}
}

// ApplyEnvOverrides applies environment variable overrides.
func (c *Config) ApplyEnvOverrides() {
	if val := os.Getenv("SEARCHSYNC_STORAGE_URI"); val != "" {
		c.URI = val
	}
	if val := os.Getenv("SEARCHSYNC_STORAGE_DATABASE"); val != "" {
		c.Database = val
	}
}

// ResolvePaths resolves relative paths using the given base directory.
// No paths to resolve in storage config.
func (c *Config) ResolvePaths(_ string) { _ = c }

// Validate returns an error if the configuration is invalid.
func (c *Config) Validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("storage.timeout must not be negative")
	}
	return nil
}
