// Package config loads the searchsync configuration file and applies the
// configuration lifecycle to every section.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	indexer "github.com/syntrixbase/searchsync/internal/indexer/config"
	listener "github.com/syntrixbase/searchsync/internal/listener/config"
	puller "github.com/syntrixbase/searchsync/internal/puller/config"
	query "github.com/syntrixbase/searchsync/internal/query/config"
	reindex "github.com/syntrixbase/searchsync/internal/reindex/config"
	search "github.com/syntrixbase/searchsync/internal/searchindex/config"
	storage "github.com/syntrixbase/searchsync/internal/storage/config"
)

// Config holds the application configuration
type Config struct {
	Search   search.Config   `yaml:"search"`
	Indexing indexer.Config  `yaml:"indexing"`
	Query    query.Config    `yaml:"query"`
	Schema   SchemaConfig    `yaml:"schema"`
	Storage  storage.Config  `yaml:"storage"`
	Listener listener.Config `yaml:"listener"`
	Puller   puller.Config   `yaml:"puller"`
	Reindex  reindex.Config  `yaml:"reindex"`
	Logging  LoggingConfig   `yaml:"logging"`
}

// Default returns the configuration used when no file sets a value.
func Default() *Config {
	return &Config{
		Search:   search.DefaultConfig(),
		Indexing: indexer.DefaultConfig(),
		Query:    query.DefaultConfig(),
		Schema:   DefaultSchemaConfig(),
		Storage:  storage.DefaultConfig(),
		Listener: listener.DefaultConfig(),
		Puller:   puller.DefaultConfig(),
		Reindex:  reindex.DefaultConfig(),
		Logging:  DefaultLoggingConfig(),
	}
}

// LoadConfig loads configuration from files in configDir and environment variables.
// Order: defaults -> config.yml -> config.local.yml -> ApplyEnvOverrides -> ResolvePaths -> Validate
//
// Relative paths are resolved against the parent of configDir, so data/ and
// logs/ end up next to config/.
func LoadConfig(configDir string) (*Config, error) {
	// Start with default values so YAML can override them, including bool fields
	cfg := Default()

	for _, name := range []string{"config.yml", "config.local.yml"} {
		if err := loadFile(filepath.Join(configDir, name), cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Apply(filepath.Dir(filepath.Clean(configDir))); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, nil
}

// Apply runs the configuration lifecycle on every section.
func (c *Config) Apply(baseDir string) error {
	return ApplyServiceConfigs(baseDir,
		&c.Search,
		&c.Indexing,
		&c.Query,
		&c.Schema,
		&c.Storage,
		&c.Listener,
		&c.Puller,
		&c.Reindex,
		&c.Logging,
	)
}

func loadFile(filename string, cfg *Config) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", filename, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse %s: %w", filename, err)
	}
	return nil
}
