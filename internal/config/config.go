// Package config loads displayswitchd's configuration: where the
// persisted display-config snapshot lives, the OS-quirk workarounds to
// apply, and logging verbosity. Layered the way viper does it:
// environment variables override a YAML file under the user's config
// directory, which overrides the built-in defaults below. No
// command-line flags are bound.
package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"displayswitchd/internal/types"
)

const (
	// AppName names the AppData/XDG folder holding persisted state.
	AppName = "displayswitchd"
	// SettingsFile is the persisted display-config snapshot's filename.
	SettingsFile = "display_config_state.json"
	// configFileBase is the YAML config file's name, without extension.
	configFileBase = "config"
)

// Config is the resolved set of tunables the host application reads at
// startup; the engine itself only ever sees types.WinWorkarounds.
type Config struct {
	LogLevel        string `mapstructure:"log_level"`
	HdrBlankDelayMs uint64 `mapstructure:"hdr_blank_delay_ms"`
	HdrBlankEnabled bool   `mapstructure:"hdr_blank_enabled"`
	SettingsPath    string `mapstructure:"settings_path"`
}

func defaults() Config {
	return Config{
		LogLevel:        "info",
		HdrBlankDelayMs: 2500,
		HdrBlankEnabled: true,
	}
}

// Load resolves Config from, in ascending priority: built-in defaults,
// <config dir>/displayswitchd/config.yaml if present, then environment
// variables prefixed DISPLAYSWITCHD_. A missing config file is not an
// error; a malformed one is.
func Load() (*Config, error) {
	dir, err := SettingsDirectory()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	d := defaults()
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("hdr_blank_delay_ms", d.HdrBlankDelayMs)
	v.SetDefault("hdr_blank_enabled", d.HdrBlankEnabled)

	v.SetConfigName(configFileBase)
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	v.SetEnvPrefix("DISPLAYSWITCHD")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if cfg.SettingsPath == "" {
		cfg.SettingsPath = filepath.Join(dir, SettingsFile)
	}
	return &cfg, nil
}

// Workarounds converts the resolved config into the engine-facing
// WinWorkarounds value, honoring the enable flag by collapsing the
// delay to nil.
func (c Config) Workarounds() types.WinWorkarounds {
	if !c.HdrBlankEnabled {
		return types.WinWorkarounds{}
	}
	delay := c.HdrBlankDelayMs
	return types.WinWorkarounds{HdrBlankDelayMillis: &delay}
}

// SettingsDirectory returns (and does not create) the directory holding
// both the YAML config and the persisted display-config snapshot.
func SettingsDirectory() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, AppName), nil
}

// EnsureSettingsDirectory creates the settings directory if missing.
func EnsureSettingsDirectory() (string, error) {
	dir, err := SettingsDirectory()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}
