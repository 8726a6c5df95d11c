package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"tablereader/internal/read"
)

// EnvPrefix prefixes every environment override, e.g. TABLEREADER_LOG_LEVEL.
const EnvPrefix = "TABLEREADER"

// DefaultDirPermissions is used for the data and config directories.
const DefaultDirPermissions = 0o750

// DataDir returns ~/.local/share/tablereader.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share", "tablereader")
}

// UserConfigPath returns ~/.config/tablereader/config.toml.
func UserConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "tablereader.toml"
	}
	return filepath.Join(dir, "tablereader", "config.toml")
}

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	rc := read.DefaultConfig()

	v.SetDefault("database.path", filepath.Join(DataDir(), "tablereader.db"))

	v.SetDefault("log.json", false)
	v.SetDefault("log.level", "warn")

	v.SetDefault("reader.spec_limit", rc.SpecLimit)
	v.SetDefault("reader.spec_merge_mode", string(rc.SpecMergeMode))
	v.SetDefault("reader.skip_empty_columns", rc.SkipEmptyColumns)
	v.SetDefault("reader.fail_on_differing_specs", rc.FailOnDifferingSpecs)
	v.SetDefault("reader.fail_on_content_errors", rc.FailOnContentErrors)
	v.SetDefault("reader.check_interval", rc.CheckInterval)

	v.SetDefault("mcp.name", "tablereader")
	v.SetDefault("mcp.require_approval", false)
}

// Defaults returns the configuration used when no file or env var is set.
func Defaults() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := LoadWithViper(v)
	if err != nil {
		panic(err)
	}
	return cfg
}
