package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/taskrelay/relay/pkg/models"
)

var (
	addDescription  string
	addPriority     int
	addColumn       string
	addCapabilities []string
	addDependsOn    []string
)

var addCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a task to the board",
	Long: `Add a task to the board.

Tasks start in the default column (backlog) unless --column says
otherwise; only tasks in the ready column are handed to agents.
A task created with dependencies starts blocked until every
prerequisite completes.

Examples:
  relay add "Set up CI" --priority 0 --column ready
  relay add "Deploy" --dep build --dep test
  relay add "Write parser" --cap code_generation`,
	Args: cobra.ExactArgs(1),
	RunE: runAdd,
}

func init() {
	addCmd.Flags().StringVarP(&addDescription, "desc", "d", "", "Task description")
	addCmd.Flags().IntVarP(&addPriority, "priority", "p", 0, "Task priority (lower is more urgent)")
	addCmd.Flags().StringVarP(&addColumn, "column", "c", "", "Workflow column (defaults to the configured default column)")
	addCmd.Flags().StringSliceVar(&addCapabilities, "cap", nil, "Capability required to work the task (repeatable)")
	addCmd.Flags().StringSliceVar(&addDependsOn, "dep", nil, "Task ID this task depends on (repeatable)")
}

func runAdd(cmd *cobra.Command, args []string) error {
	b, err := openBoard()
	if err != nil {
		return err
	}
	defer b.close()

	task := &models.Task{
		Title:                args[0],
		Description:          addDescription,
		Priority:             addPriority,
		Column:               addColumn,
		RequiredCapabilities: addCapabilities,
		DependsOn:            addDependsOn,
	}

	if err := b.coord.CreateTask(task); err != nil {
		return fmt.Errorf("add task: %w", err)
	}

	printStatus("✓", fmt.Sprintf("Added task %s: %q", task.ID, task.Title), color.FgGreen)
	fmt.Printf("  Status: %s  Column: %s  Priority: %d\n", task.Status, task.Column, task.Priority)
	if len(task.DependsOn) > 0 {
		fmt.Printf("  Depends on: %s\n", strings.Join(task.DependsOn, ", "))
	}
	return nil
}
