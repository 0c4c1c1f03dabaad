package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gopkg.in/yaml.v3"
)

func TestDefaultLoggingConfig(t *testing.T) {
	cfg := DefaultLoggingConfig()

	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "text", cfg.Format)
	assert.Equal(t, "logs", cfg.Dir)
	assert.Equal(t, 100, cfg.Rotation.MaxSize)
	assert.True(t, cfg.Rotation.Compress)
	assert.True(t, cfg.Console.Enabled)
	assert.False(t, cfg.File.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestLoggingConfigYAMLParsing(t *testing.T) {
	yamlData := `
level: "debug"
format: "json"
dir: "/var/log/searchsync"
rotation:
  max_size: 50
  compress: false
console:
  enabled: false
file:
  enabled: true
  level: "warn"
`

	var cfg LoggingConfig
	assert.NoError(t, yaml.Unmarshal([]byte(yamlData), &cfg))
	cfg.ApplyDefaults()

	assert.Equal(t, "debug", cfg.Level)
	assert.Equal(t, "/var/log/searchsync", cfg.Dir)
	assert.Equal(t, 50, cfg.Rotation.MaxSize)
	assert.Equal(t, 10, cfg.Rotation.MaxBackups)
	assert.False(t, cfg.Rotation.Compress)
	assert.False(t, cfg.Console.Enabled)
	assert.Equal(t, "warn", cfg.File.Level)
	assert.Equal(t, "json", cfg.File.Format)
}

func TestLoggingConfigApplyDefaults(t *testing.T) {
	cfg := &LoggingConfig{Level: "warn"}
	cfg.ApplyDefaults()

	assert.Equal(t, "text", cfg.Format)
	assert.True(t, cfg.Console.Enabled)
	assert.Equal(t, "warn", cfg.Console.Level)
	assert.Equal(t, "text", cfg.Console.Format)
	assert.False(t, cfg.File.Enabled)
	assert.Equal(t, "warn", cfg.File.Level)
}

func TestLoggingConfigEnvOverrides(t *testing.T) {
	t.Setenv("SEARCHSYNC_LOG_LEVEL", "debug")
	t.Setenv("SEARCHSYNC_LOG_DIR", "/tmp/logs")

	cfg := DefaultLoggingConfig()
	cfg.ApplyEnvOverrides()

	assert.Equal(t, "debug", cfg.Level)
	assert.Equal(t, "debug", cfg.Console.Level)
	assert.Equal(t, "debug", cfg.File.Level)
	assert.Equal(t, "/tmp/logs", cfg.Dir)
}

func TestLoggingConfigResolvePaths(t *testing.T) {
	tests := []struct {
		dir  string
		want string
	}{
		{"logs", "/srv/logs"},
		{"../logs", "/logs"},
		{"/var/log", "/var/log"},
	}
	for _, tt := range tests {
		t.Run(tt.dir, func(t *testing.T) {
			cfg := LoggingConfig{Dir: tt.dir}
			cfg.ResolvePaths("/srv")
			assert.Equal(t, tt.want, cfg.Dir)
		})
	}
}

func TestLoggingConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*LoggingConfig)
		errMsg string
	}{
		{"valid", func(*LoggingConfig) {}, ""},
		{"bad level", func(c *LoggingConfig) { c.Level = "trace" }, "invalid log level"},
		{"bad format", func(c *LoggingConfig) { c.Format = "xml" }, "invalid log format"},
		{"file without dir", func(c *LoggingConfig) { c.File.Enabled = true; c.Dir = "" }, "log directory cannot be empty"},
		{"bad console level", func(c *LoggingConfig) { c.Console.Level = "verbose" }, "invalid console log level"},
		{"bad file format", func(c *LoggingConfig) { c.File.Enabled = true; c.File.Format = "xml" }, "invalid file log format"},
		{"disabled output not checked", func(c *LoggingConfig) { c.File.Format = "xml" }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultLoggingConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.errMsg)
			}
		})
	}
}
