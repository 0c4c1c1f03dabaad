package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// SchemaConfig locates the data model file.
type SchemaConfig struct {
	Path string `yaml:"path"`
}

func DefaultSchemaConfig() SchemaConfig {
	return SchemaConfig{Path: "config/datamodel.yaml"}
}

func (c *SchemaConfig) ApplyDefaults() {
	if c.Path == "" {
		c.Path = DefaultSchemaConfig().Path
	}
}

func (c *SchemaConfig) ApplyEnvOverrides() {
	if val := os.Getenv("SEARCHSYNC_SCHEMA_PATH"); val != "" {
		c.Path = val
	}
}

func (c *SchemaConfig) ResolvePaths(baseDir string) {
	if !filepath.IsAbs(c.Path) {
		c.Path = filepath.Join(baseDir, c.Path)
	}
}

func (c *SchemaConfig) Validate() error {
	if filepath.Ext(c.Path) != ".yaml" && filepath.Ext(c.Path) != ".yml" {
		return fmt.Errorf("schema.path must be a YAML file: %s", c.Path)
	}
	return nil
}
