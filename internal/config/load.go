package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"tablereader/internal/errors"
)

// ProjectConfigName is searched for from the working directory upwards.
const ProjectConfigName = "tablereader.toml"

// Load reads the configuration. Precedence, lowest first: defaults, user
// config, project config (or path when given), environment.
func Load(path string) (*Config, error) {
	v, err := NewViper(path)
	if err != nil {
		return nil, err
	}
	cfg, err := LoadWithViper(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewViper builds a viper instance with defaults, config files and env
// binding applied.
func NewViper(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if path != "" {
		if err := mergeFile(v, path); err != nil {
			return nil, err
		}
		return v, nil
	}
	for _, p := range []string{UserConfigPath(), findProjectConfig()} {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := mergeFile(v, p); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// LoadWithViper unmarshals a prepared viper instance.
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	return &cfg, nil
}

func mergeFile(v *viper.Viper, path string) error {
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.MergeInConfig(); err != nil {
		return errors.AsConfiguration(errors.Wrapf(err, "failed to read config file %s", path))
	}
	return nil
}

// findProjectConfig walks up from the working directory looking for
// tablereader.toml.
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		p := filepath.Join(dir, ProjectConfigName)
		if _, err := os.Stat(p); err == nil {
			return p
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
