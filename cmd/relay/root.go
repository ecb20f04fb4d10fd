package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "relay",
	Short: "Task claiming and dependency engine for autonomous agents",
	Long: `Relay coordinates work distribution among autonomous agents.

Tasks carry priorities, capability requirements, and dependencies.
Agents poll for work and relay hands each one the best-ranked eligible
task, guaranteeing no task is ever handed to two agents.

Core capabilities:
- Ranked claiming (priority, then age) with conflict-free hand-out
- Dependency tracking with cycle rejection
- Automatic unblocking when prerequisites complete
- Capability matching between tasks and agents`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(depCmd)
	rootCmd.AddCommand(claimCmd)
	rootCmd.AddCommand(nextCmd)
	rootCmd.AddCommand(completeCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
