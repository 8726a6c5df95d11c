package config

import (
	"tablereader/internal/errors"
	"tablereader/internal/read"
	"tablereader/internal/table"
)

// Config is the tablereader configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database" toml:"database" json:"database" yaml:"database"`
	Log      LogConfig      `mapstructure:"log" toml:"log" json:"log" yaml:"log"`
	Reader   ReaderConfig   `mapstructure:"reader" toml:"reader" json:"reader" yaml:"reader"`
	MCP      MCPConfig      `mapstructure:"mcp" toml:"mcp" json:"mcp" yaml:"mcp"`
}

// DatabaseConfig configures the SQLite store holding nodes and connections.
type DatabaseConfig struct {
	Path string `mapstructure:"path" toml:"path" json:"path" yaml:"path"`
}

// LogConfig configures zap.
type LogConfig struct {
	JSON  bool   `mapstructure:"json" toml:"json" json:"json" yaml:"json"`
	Level string `mapstructure:"level" toml:"level" json:"level" yaml:"level"`
}

// ReaderConfig holds the defaults of every table read. Nodes override them
// through their own reader config and flow variables.
type ReaderConfig struct {
	SpecLimit            int    `mapstructure:"spec_limit" toml:"spec_limit" json:"spec_limit" yaml:"spec_limit"` // rows sampled per source, 0 = all
	SpecMergeMode        string `mapstructure:"spec_merge_mode" toml:"spec_merge_mode" json:"spec_merge_mode" yaml:"spec_merge_mode"`
	SkipEmptyColumns     bool   `mapstructure:"skip_empty_columns" toml:"skip_empty_columns" json:"skip_empty_columns" yaml:"skip_empty_columns"`
	FailOnDifferingSpecs bool   `mapstructure:"fail_on_differing_specs" toml:"fail_on_differing_specs" json:"fail_on_differing_specs" yaml:"fail_on_differing_specs"`
	FailOnContentErrors  bool   `mapstructure:"fail_on_content_errors" toml:"fail_on_content_errors" json:"fail_on_content_errors" yaml:"fail_on_content_errors"`
	CheckInterval        int    `mapstructure:"check_interval" toml:"check_interval" json:"check_interval" yaml:"check_interval"` // rows between cancellation checks
}

// MCPConfig configures the MCP stdio server.
type MCPConfig struct {
	Name            string `mapstructure:"name" toml:"name" json:"name" yaml:"name"`
	RequireApproval bool   `mapstructure:"require_approval" toml:"require_approval" json:"require_approval" yaml:"require_approval"`
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.Configurationf("database.path cannot be empty")
	}
	if c.Reader.SpecLimit < 0 {
		return errors.Configurationf("reader.spec_limit must be >= 0, got %d", c.Reader.SpecLimit)
	}
	if c.Reader.CheckInterval <= 0 {
		return errors.Configurationf("reader.check_interval must be > 0, got %d", c.Reader.CheckInterval)
	}
	if _, err := table.ParseSpecMergeMode(c.Reader.SpecMergeMode); err != nil {
		return errors.Wrap(err, "reader.spec_merge_mode")
	}
	return nil
}

// ReadConfig converts the reader section into read settings.
func (c *Config) ReadConfig() (read.Config, error) {
	mode, err := table.ParseSpecMergeMode(c.Reader.SpecMergeMode)
	if err != nil {
		return read.Config{}, errors.Wrap(err, "reader.spec_merge_mode")
	}
	return read.Config{
		SpecLimit:            c.Reader.SpecLimit,
		SpecMergeMode:        mode,
		FailOnDifferingSpecs: c.Reader.FailOnDifferingSpecs,
		SkipEmptyColumns:     c.Reader.SkipEmptyColumns,
		FailOnContentErrors:  c.Reader.FailOnContentErrors,
		CheckInterval:        c.Reader.CheckInterval,
	}, nil
}
