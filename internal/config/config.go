// Package config handles configuration loading and management for Relay.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// envKeyReplacer maps nested config keys to env var segments,
// e.g. policy.force_complete -> RELAY_POLICY_FORCE_COMPLETE.
var envKeyReplacer = strings.NewReplacer(".", "_")

// Config holds all configuration for Relay.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Board    BoardConfig    `mapstructure:"board"`
	Events   EventsConfig   `mapstructure:"events"`
	Policy   PolicyConfig   `mapstructure:"policy"`
	Debug    DebugConfig    `mapstructure:"debug"`
}

// DatabaseConfig holds board database settings.
type DatabaseConfig struct {
	// Path overrides the default .relay/board.db location.
	Path string `mapstructure:"path"`
}

// BoardConfig holds workflow column settings.
type BoardConfig struct {
	// ReadyColumn is the column tasks are handed out from.
	ReadyColumn string `mapstructure:"ready_column"`
	// DefaultColumn is assigned to new tasks that don't name a column.
	DefaultColumn string `mapstructure:"default_column"`
}

// EventsConfig holds event stream settings.
type EventsConfig struct {
	BufferSize int `mapstructure:"buffer_size"`
}

// PolicyConfig holds completion policy toggles.
type PolicyConfig struct {
	// AllowDirectComplete permits completing an open task without claiming it.
	AllowDirectComplete bool `mapstructure:"allow_direct_complete"`
	// ForceComplete permits completing a task whose dependencies are unmet.
	ForceComplete bool `mapstructure:"force_complete"`
}

// DebugConfig holds debug logging settings.
type DebugConfig struct {
	// LogPath enables file-backed debug logging when non-empty.
	LogPath string `mapstructure:"log_path"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (RELAY_*)
// 2. Project config (.relay/config.yaml in current directory or parent)
// 3. User config (~/.config/relay/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	// Load project config if present
	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			// Merge project config (takes precedence)
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	// Environment variable overrides: RELAY_DATABASE_PATH, RELAY_POLICY_FORCE_COMPLETE, ...
	v.SetEnvPrefix("RELAY")
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Database.Path = os.ExpandEnv(cfg.Database.Path)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Database.Path = os.ExpandEnv(cfg.Database.Path)

	return cfg, nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("database.path", cfg.Database.Path)
	v.Set("board.ready_column", cfg.Board.ReadyColumn)
	v.Set("board.default_column", cfg.Board.DefaultColumn)
	v.Set("events.buffer_size", cfg.Events.BufferSize)
	v.Set("policy.allow_direct_complete", cfg.Policy.AllowDirectComplete)
	v.Set("policy.force_complete", cfg.Policy.ForceComplete)
	v.Set("debug.log_path", cfg.Debug.LogPath)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "")

	v.SetDefault("board.ready_column", "ready")
	v.SetDefault("board.default_column", "backlog")

	v.SetDefault("events.buffer_size", 64)

	v.SetDefault("policy.allow_direct_complete", true)
	v.SetDefault("policy.force_complete", false)

	v.SetDefault("debug.log_path", "")
}

// getUserConfigDir returns the XDG config directory for Relay.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "relay")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "relay")
	}
	return filepath.Join(home, ".config", "relay")
}

// findProjectConfig searches for .relay/config.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".relay", "config.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Board: BoardConfig{
			ReadyColumn:   "ready",
			DefaultColumn: "backlog",
		},
		Events: EventsConfig{
			BufferSize: 64,
		},
		Policy: PolicyConfig{
			AllowDirectComplete: true,
			ForceComplete:       false,
		},
	}
}
