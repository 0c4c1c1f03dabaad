// Package config provides configuration for the change listener.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the change listener configuration.
type Config struct {
	// URL of the NATS server.
	URL string `yaml:"url"`

	// Stream is the JetStream stream record change events are published to.
	Stream string `yaml:"stream"`

	// Subject is the subject prefix of change events. Events are published to
	// <subject>.<table>.<kind>.
	Subject string `yaml:"subject"`

	// Durable is the name of the durable consumer.
	Durable string `yaml:"durable"`

	// Workers is the number of concurrent indexing sessions.
	// Default: 8
	Workers int `yaml:"workers"`

	// ChannelBufferSize is the buffer size of each worker channel.
	ChannelBufferSize int `yaml:"channel_buffer_size"`

	// MaxDeliver is the number of delivery attempts before an event is dropped.
	MaxDeliver int `yaml:"max_deliver"`

	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`

	// ProcessTimeout bounds the handling of one event including its flush.
	ProcessTimeout time.Duration `yaml:"process_timeout"`

	DrainTimeout    time.Duration `yaml:"drain_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DefaultConfig returns the default listener configuration.
func DefaultConfig() Config {
	return Config{
		URL:               "nats://127.0.0.1:4222",
		Stream:            "SEARCHSYNC",
		Subject:           "searchsync.records",
		Durable:           "searchsync-indexer",
		Workers:           8,
		ChannelBufferSize: 100,
		MaxDeliver:        5,
		InitialBackoff:    time.Second,
		MaxBackoff:        30 * time.Second,
		ProcessTimeout:    30 * time.Second,
		DrainTimeout:      5 * time.Second,
		ShutdownTimeout:   30 * time.Second,
	}
}

// ApplyDefaults fills in zero values with defaults.
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.URL == "" {
		c.URL = d.URL
	}
	if c.Stream == "" {
		c.Stream = d.Stream
	}
	if c.Subject == "" {
		c.Subject = d.Subject
	}
	if c.Durable == "" {
		c.Durable = d.Durable
	}
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.ChannelBufferSize <= 0 {
		c.ChannelBufferSize = d.ChannelBufferSize
	}
	if c.MaxDeliver <= 0 {
		c.MaxDeliver = d.MaxDeliver
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = d.InitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = d.MaxBackoff
	}
	if c.ProcessTimeout <= 0 {
		c.ProcessTimeout = d.ProcessTimeout
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = d.DrainTimeout
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
}

// ApplyEnvOverrides applies environment variable overrides.
func (c *Config) ApplyEnvOverrides() {
	if val := os.Getenv("SEARCHSYNC_LISTENER_URL"); val != "" {
		c.URL = val
	}
	if val := os.Getenv("SEARCHSYNC_LISTENER_WORKERS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Workers = n
		}
	}
}

// ResolvePaths resolves relative paths using the given base directory.
// The listener has no file paths.
func (c *Config) ResolvePaths(_ string) {}

// Validate returns an error if the configuration is invalid.
func (c *Config) Validate() error {
	if c.Workers > 256 {
		return fmt.Errorf("listener.workers must be at most 256, got %d", c.Workers)
	}
	if c.MaxBackoff > 0 && c.InitialBackoff > c.MaxBackoff {
		return fmt.Errorf("listener.initial_backoff (%s) exceeds max_backoff (%s)", c.InitialBackoff, c.MaxBackoff)
	}
	return nil
}
