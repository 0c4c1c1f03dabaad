// Package config provides configuration for the change log puller.
package config

import (
	"fmt"
	"os"
	"time"
)

// Config holds the puller configuration.
type Config struct {
	// ID names this puller's checkpoint. Pullers sharing an ID resume from
	// the same position.
	ID string `yaml:"id"`

	// CheckpointCollection stores resume tokens.
	CheckpointCollection string `yaml:"checkpoint_collection"`

	// A checkpoint is saved every CheckpointInterval or every
	// CheckpointEvents events, whichever comes first, and on shutdown.
	CheckpointInterval time.Duration `yaml:"checkpoint_interval"`
	CheckpointEvents   int           `yaml:"checkpoint_events"`

	// ReconnectDelay is the pause before reopening a failed change stream.
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
}

// DefaultConfig returns the default puller configuration.
func DefaultConfig() Config {
	return Config{
		ID:                   "searchsync",
		CheckpointCollection: "_searchsync_checkpoints",
		CheckpointInterval:   time.Second,
		CheckpointEvents:     1000,
		ReconnectDelay:       time.Second,
	}
}

// ApplyDefaults fills in zero values with defaults.
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.ID == "" {
		c.ID = d.ID
	}
	if c.CheckpointCollection == "" {
		c.CheckpointCollection = d.CheckpointCollection
	}
	if c.CheckpointInterval <= 0 {
		c.CheckpointInterval = d.CheckpointInterval
	}
	if c.CheckpointEvents <= 0 {
		c.CheckpointEvents = d.CheckpointEvents
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = d.ReconnectDelay
	}
}

// ApplyEnvOverrides applies environment variable overrides.
func (c *Config) ApplyEnvOverrides() {
	if val := os.Getenv("SEARCHSYNC_PULLER_ID"); val != "" {
		c.ID = val
	}
}

// ResolvePaths resolves relative paths using the given base directory.
func (c *Config) ResolvePaths(_ string) {}

// Validate returns an error if the configuration is invalid.
func (c *Config) Validate() error {
	if c.CheckpointEvents > 1_000_000 {
		return fmt.Errorf("puller.checkpoint_events must be at most 1000000, got %d", c.CheckpointEvents)
	}
	return nil
}
