package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/taskrelay/relay/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify Relay configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/relay/config.yaml
Project-specific overrides can be placed in .relay/config.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		case 1:
			displayConfigKey(cfg, args[0])
		default:
			setConfigKey(cfg, args[0], args[1])
		}
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath = "(project default)"
	}

	fmt.Printf("database.path: %s\n", dbPath)
	fmt.Printf("board.ready_column: %s\n", cfg.Board.ReadyColumn)
	fmt.Printf("board.default_column: %s\n", cfg.Board.DefaultColumn)
	fmt.Printf("events.buffer_size: %d\n", cfg.Events.BufferSize)
	fmt.Printf("policy.allow_direct_complete: %t\n", cfg.Policy.AllowDirectComplete)
	fmt.Printf("policy.force_complete: %t\n", cfg.Policy.ForceComplete)
	fmt.Printf("debug.log_path: %s\n", cfg.Debug.LogPath)
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	value, err := getConfigValue(cfg, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(value)
}

// setConfigKey sets a configuration value and saves the config.
func setConfigKey(cfg *config.Config, key, value string) {
	if err := setConfigValue(cfg, key, value); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Set %s = %s\n", key, value)
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "database.path":
		if cfg.Database.Path == "" {
			return "(project default)", nil
		}
		return cfg.Database.Path, nil
	case "board.ready_column":
		return cfg.Board.ReadyColumn, nil
	case "board.default_column":
		return cfg.Board.DefaultColumn, nil
	case "events.buffer_size":
		return strconv.Itoa(cfg.Events.BufferSize), nil
	case "policy.allow_direct_complete":
		return strconv.FormatBool(cfg.Policy.AllowDirectComplete), nil
	case "policy.force_complete":
		return strconv.FormatBool(cfg.Policy.ForceComplete), nil
	case "debug.log_path":
		return cfg.Debug.LogPath, nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "database.path":
		cfg.Database.Path = value
	case "board.ready_column":
		cfg.Board.ReadyColumn = value
	case "board.default_column":
		cfg.Board.DefaultColumn = value
	case "events.buffer_size":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for buffer_size: %w", err)
		}
		cfg.Events.BufferSize = n
	case "policy.allow_direct_complete":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for allow_direct_complete: %w", err)
		}
		cfg.Policy.AllowDirectComplete = b
	case "policy.force_complete":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for force_complete: %w", err)
		}
		cfg.Policy.ForceComplete = b
	case "debug.log_path":
		cfg.Debug.LogPath = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}
