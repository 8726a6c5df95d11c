package read

import (
	"tablereader/internal/table"
	"tablereader/internal/transform"
)

// DefaultCheckInterval is the number of rows between two cancellation
// checks within one source.
const DefaultCheckInterval = 973

// Config holds the settings of a multi-source read.
type Config struct {
	// SpecLimit is the number of rows ReadSpec samples per source, 0 for all.
	SpecLimit            int                 `mapstructure:"spec_limit" json:"spec_limit"`
	SpecMergeMode        table.SpecMergeMode `mapstructure:"spec_merge_mode" json:"spec_merge_mode"`
	FailOnDifferingSpecs bool                `mapstructure:"fail_on_differing_specs" json:"fail_on_differing_specs"`
	SkipEmptyColumns     bool                `mapstructure:"skip_empty_columns" json:"skip_empty_columns"`
	FailOnContentErrors  bool                `mapstructure:"fail_on_content_errors" json:"fail_on_content_errors"`
	CheckInterval        int                 `mapstructure:"check_interval" json:"check_interval"`
	// Options are reader specific, e.g. the CSV delimiter or a SQL query.
	Options map[string]string `mapstructure:"options" json:"options,omitempty"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		SpecLimit:           1000,
		SpecMergeMode:       table.Union,
		FailOnContentErrors: true,
		CheckInterval:       DefaultCheckInterval,
	}
}

// Option returns a reader option or def.
func (c Config) Option(key, def string) string {
	if v, ok := c.Options[key]; ok && v != "" {
		return v
	}
	return def
}

// FailsOnDifferingSpecs reports whether sources must have identical columns.
func (c Config) FailsOnDifferingSpecs() bool {
	return c.FailOnDifferingSpecs || c.SpecMergeMode == table.FailOnDifferingSpecs
}

// TransformationConfig returns the part of c the transformation factory
// depends on.
func (c Config) TransformationConfig() transform.Config {
	return transform.Config{
		SpecMergeMode:    c.SpecMergeMode,
		SkipEmptyColumns: c.SkipEmptyColumns,
	}
}

func (c Config) checkInterval() int {
	if c.CheckInterval <= 0 {
		return DefaultCheckInterval
	}
	return c.CheckInterval
}
