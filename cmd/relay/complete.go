package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/taskrelay/relay/internal/coordinator"
)

var (
	completeAgent string
	completeForce bool
)

var completeCmd = &cobra.Command{
	Use:   "complete <task-id>",
	Short: "Mark a task completed",
	Long: `Mark a task completed and unblock its dependents.

Every dependent whose prerequisites are now all complete moves from
blocked to open and becomes claimable. Completing a task with unmet
dependencies requires --force.

Examples:
  relay complete 3f2a... --agent worker-1
  relay complete 3f2a... --force`,
	Args: cobra.ExactArgs(1),
	RunE: runComplete,
}

func init() {
	completeCmd.Flags().StringVarP(&completeAgent, "agent", "a", "", "Agent completing the task")
	completeCmd.Flags().BoolVar(&completeForce, "force", false, "Complete even if dependencies are unmet")
}

func runComplete(cmd *cobra.Command, args []string) error {
	var extra []coordinator.Option
	if completeForce {
		extra = append(extra, coordinator.WithForceComplete(true))
	}

	b, err := openBoard(extra...)
	if err != nil {
		return err
	}
	defer b.close()

	taskID := args[0]
	if err := b.coord.Complete(taskID, completeAgent); err != nil {
		return fmt.Errorf("complete %s: %w", taskID, err)
	}

	printStatus("✓", fmt.Sprintf("Completed %s", taskID), color.FgGreen)

	// Report tasks the completion just unblocked.
	for {
		select {
		case event := <-b.coord.Events():
			if event.Type == coordinator.EventTaskUnblocked {
				printStatus("→", fmt.Sprintf("Unblocked %s", event.TaskID), color.FgCyan)
			}
		default:
			return nil
		}
	}
}
