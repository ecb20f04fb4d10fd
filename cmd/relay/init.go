package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/taskrelay/relay/internal/state"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Initialize a Relay board",
	Long: `Initialize a directory for use with Relay.

This command sets up everything needed to run a board:
  - Creates the .relay directory structure
  - Creates and migrates the board database
  - Creates a project config template

The directory argument is optional and defaults to the current directory.

Examples:
  relay init              # Initialize current directory
  relay init ./myproject  # Initialize specific directory
  relay init --force      # Reinitialize even if already set up`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Reinitialize even if already set up")
}

func runInit(cmd *cobra.Command, args []string) error {
	targetDir := "."
	if len(args) > 0 {
		targetDir = args[0]
	}

	absPath, err := filepath.Abs(targetDir)
	if err != nil {
		return fmt.Errorf("resolving absolute path: %w", err)
	}

	if err := os.MkdirAll(absPath, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", absPath, err)
	}

	fmt.Printf("Initializing Relay board in %s...\n\n", absPath)

	relayDir := filepath.Join(absPath, ".relay")
	if _, err := os.Stat(relayDir); err == nil && !initForce {
		fmt.Printf("Directory already initialized. Use --force to reinitialize.\n")
		return nil
	}

	for _, dir := range []string{relayDir, filepath.Join(relayDir, "signals")} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	printStatus("✓", "Created .relay directory structure", color.FgGreen)

	dbPath := state.ProjectDBPath(absPath)
	db, err := state.Open(dbPath)
	if err != nil {
		printStatus("✗", "Failed to create board database", color.FgRed)
		return err
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		printStatus("✗", "Failed to migrate board database", color.FgRed)
		return err
	}
	printStatus("✓", "Created board database", color.FgGreen)

	if err := createProjectConfig(relayDir); err != nil {
		return err
	}
	printStatus("✓", "Created .relay/config.yaml template", color.FgGreen)

	fmt.Println("\nBoard ready. Add your first task with:")
	fmt.Println("  relay add \"Set up CI\" --priority 0")

	return nil
}

// createProjectConfig creates the .relay/config.yaml template.
func createProjectConfig(relayDir string) error {
	configPath := filepath.Join(relayDir, "config.yaml")
	if _, err := os.Stat(configPath); err == nil && !initForce {
		return nil
	}

	template := `# Relay project configuration
# This file overrides defaults from ~/.config/relay/config.yaml

# board:
#   ready_column: ready
#   default_column: backlog

# policy:
#   allow_direct_complete: true
#   force_complete: false

# events:
#   buffer_size: 64

# debug:
#   log_path: .relay/debug.log
`
	return os.WriteFile(configPath, []byte(template), 0644)
}
