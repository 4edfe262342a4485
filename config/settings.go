// Package config loads the tool settings and the bnd instruction files that
// drive an analysis.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/dhamidi/bundlegen/analyzer"
	"github.com/dhamidi/bundlegen/clazz"
)

const (
	// SettingsName is the settings file name without extension. Both
	// bundlegen.yaml and bundlegen.toml are found.
	SettingsName = "bundlegen"
	EnvPrefix    = "BUNDLEGEN"
)

// Settings are the tool's own knobs, as opposed to bundle instructions.
type Settings struct {
	Verbosity   int    `mapstructure:"verbosity"`
	LogFile     string `mapstructure:"log_file"`
	Pedantic    bool   `mapstructure:"pedantic"`
	NoUses      bool   `mapstructure:"no_uses"`
	Crawl       string `mapstructure:"crawl"`
	Parallelism int    `mapstructure:"parallelism"`
	Format      string `mapstructure:"format"`

	// Repository and LocalRepository locate jars for classpath entries
	// given as Maven coordinates. Empty means the maven package defaults.
	Repository      string `mapstructure:"repository"`
	LocalRepository string `mapstructure:"local_repository"`
}

func DefaultSettings() Settings {
	return Settings{
		Crawl:  clazz.CrawlAuto.String(),
		Format: "text",
	}
}

// flagKeys maps command line flag names to settings keys.
var flagKeys = map[string]string{
	"verbose":     "verbosity",
	"log-file":    "log_file",
	"pedantic":    "pedantic",
	"no-uses":     "no_uses",
	"crawl":       "crawl",
	"parallelism": "parallelism",
	"format":      "format",
	"repository":  "repository",
}

// LoadOptions tell LoadSettings where to look.
type LoadOptions struct {
	// File is an explicit settings file. It must exist.
	File string
	// Dirs are searched in order for bundlegen.{yaml,toml} when File is
	// empty.
	Dirs []string
	// Flags, when set, override file and environment values for the flags
	// the user changed.
	Flags *pflag.FlagSet
}

// LoadSettings merges defaults, the settings file, BUNDLEGEN_* environment
// variables and flags, in increasing precedence. It returns the settings
// and the file that was read, if any.
func LoadSettings(opts LoadOptions) (Settings, string, error) {
	v := viper.New()

	defaults := DefaultSettings()
	v.SetDefault("verbosity", defaults.Verbosity)
	v.SetDefault("log_file", defaults.LogFile)
	v.SetDefault("pedantic", defaults.Pedantic)
	v.SetDefault("no_uses", defaults.NoUses)
	v.SetDefault("crawl", defaults.Crawl)
	v.SetDefault("parallelism", defaults.Parallelism)
	v.SetDefault("format", defaults.Format)
	v.SetDefault("repository", defaults.Repository)
	v.SetDefault("local_repository", defaults.LocalRepository)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if opts.Flags != nil {
		for name, key := range flagKeys {
			if f := opts.Flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Settings{}, "", fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	if opts.File != "" {
		v.SetConfigFile(opts.File)
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, "", fmt.Errorf("failed to read settings %s: %w", opts.File, err)
		}
	} else if len(opts.Dirs) > 0 {
		v.SetConfigName(SettingsName)
		for _, dir := range opts.Dirs {
			v.AddConfigPath(dir)
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Settings{}, "", fmt.Errorf("failed to read settings: %w", err)
			}
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, "", fmt.Errorf("failed to parse settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, "", err
	}
	return s, v.ConfigFileUsed(), nil
}

func (s Settings) Validate() error {
	if _, err := clazz.ParseCrawlMode(s.Crawl); err != nil {
		return fmt.Errorf("invalid crawl setting: %w", err)
	}
	switch s.Format {
	case "text", "json", "manifest":
	default:
		return fmt.Errorf("invalid format %q (expected text, json or manifest)", s.Format)
	}
	if s.Parallelism < 0 {
		return fmt.Errorf("invalid parallelism %d", s.Parallelism)
	}
	return nil
}

// Apply copies the settings that affect an analysis onto cfg. Switches
// only ever turn on; a bnd file asking for pedantic stays pedantic.
func (s Settings) Apply(cfg *analyzer.Config) error {
	mode, err := clazz.ParseCrawlMode(s.Crawl)
	if err != nil {
		return err
	}
	cfg.Crawl = mode
	cfg.Pedantic = cfg.Pedantic || s.Pedantic
	cfg.NoUses = cfg.NoUses || s.NoUses
	if s.Parallelism > 0 {
		cfg.Parallelism = s.Parallelism
	}
	return nil
}
