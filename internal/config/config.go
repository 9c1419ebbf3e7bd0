// Package config loads stencil's user configuration: an optional config.yaml
// in the config directory, STENCIL_* environment variables and CLI flags,
// layered by viper.
package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/NielsdaWheelz/stencil/internal/errors"
)

// Config keys.
const (
	KeySourceRepository = "source.repository"
	KeySourcePaths      = "source.paths"
	KeyApplyForce       = "apply.force"
	KeyLogLevel         = "log.level"
	KeyUIColor          = "ui.color"
	KeyCommandsRails    = "commands.rails"
	KeyCommandsBundle   = "commands.bundle"
	KeyCommandsGit      = "commands.git"
)

// EnvPrefix prefixes environment overrides: STENCIL_SOURCE_REPOSITORY etc.
const EnvPrefix = "STENCIL"

// DefaultRepository supplies template files when a recipe does not name its own source.
const DefaultRepository = "https://github.com/significantbit/sigbit-rails-template.git"

// Colour modes for ui.color.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// Config is the resolved configuration.
type Config struct {
	Source   Source   `mapstructure:"source"`
	Apply    Apply    `mapstructure:"apply"`
	Log      Log      `mapstructure:"log"`
	UI       UI       `mapstructure:"ui"`
	Commands Commands `mapstructure:"commands"`

	// File is the config file that was read, empty if none.
	File string `mapstructure:"-"`
}

// Source configures where template files come from.
type Source struct {
	// Repository is cloned when a recipe has no template directory of its own.
	Repository string `mapstructure:"repository"`
	// Paths are extra local template directories, searched after the recipe's own.
	Paths []string `mapstructure:"paths"`
}

type Apply struct {
	Force bool `mapstructure:"force"`
}

type Log struct {
	Level string `mapstructure:"level"`
}

type UI struct {
	Color string `mapstructure:"color"`
}

// Commands are the executables the built-in Rails recipe runs.
type Commands struct {
	Rails  string `mapstructure:"rails"`
	Bundle string `mapstructure:"bundle"`
	Git    string `mapstructure:"git"`
}

// New returns a viper instance with defaults and environment binding set up.
// configFile may be empty; a missing file is not an error at Load time.
func New(configFile string) *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	if configFile != "" {
		v.SetConfigFile(configFile)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeySourceRepository, DefaultRepository)
	v.SetDefault(KeySourcePaths, []string{})
	v.SetDefault(KeyApplyForce, false)
	v.SetDefault(KeyLogLevel, "warn")
	v.SetDefault(KeyUIColor, ColorAuto)
	v.SetDefault(KeyCommandsRails, "bin/rails")
	v.SetDefault(KeyCommandsBundle, "bundle")
	v.SetDefault(KeyCommandsGit, "git")
	return v
}

// Load reads the config file (if present) and decodes the merged settings.
// Returns E_INVALID_CONFIG for unreadable files or invalid values.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	file := v.ConfigFileUsed()
	if file != "" {
		if _, err := os.Stat(file); err == nil {
			if err := v.ReadInConfig(); err != nil {
				return cfg, errors.WrapWithDetails(errors.EInvalidConfig, "failed to read config file", err,
					map[string]string{"file": file})
			}
			cfg.File = file
		} else if !os.IsNotExist(err) {
			return cfg, errors.WrapWithDetails(errors.EInvalidConfig, "failed to stat config file", err,
				map[string]string{"file": file})
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, errors.Wrap(errors.EInvalidConfig, "invalid config: "+err.Error(), err)
	}
	if err := Validate(cfg); err != nil {
		if cfg.File != "" {
			err = errors.WithDetail(err, "file", cfg.File)
		}
		return cfg, err
	}
	return cfg, nil
}
