package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var depCmd = &cobra.Command{
	Use:   "dep",
	Short: "Manage task dependencies",
	Long: `Manage dependency edges between tasks.

Adding an edge that would create a cycle is rejected and leaves the
board unchanged. Adding a dependency on an incomplete task blocks the
dependent; removing the last unmet dependency reopens it.`,
}

var depAddCmd = &cobra.Command{
	Use:   "add <task-id> <prereq-id>",
	Short: "Make a task depend on a prerequisite",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := openBoard()
		if err != nil {
			return err
		}
		defer b.close()

		if err := b.coord.AddDependency(args[0], args[1]); err != nil {
			return fmt.Errorf("add dependency: %w", err)
		}
		printStatus("✓", fmt.Sprintf("%s now depends on %s", args[0], args[1]), color.FgGreen)
		return nil
	},
}

var depRemoveCmd = &cobra.Command{
	Use:     "remove <task-id> <prereq-id>",
	Aliases: []string{"rm"},
	Short:   "Remove a dependency edge",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := openBoard()
		if err != nil {
			return err
		}
		defer b.close()

		if err := b.coord.RemoveDependency(args[0], args[1]); err != nil {
			return fmt.Errorf("remove dependency: %w", err)
		}
		printStatus("✓", fmt.Sprintf("%s no longer depends on %s", args[0], args[1]), color.FgGreen)
		return nil
	},
}

var depListCmd = &cobra.Command{
	Use:   "list <task-id>",
	Short: "List a task's prerequisites and dependents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := openBoard()
		if err != nil {
			return err
		}
		defer b.close()

		g := b.coord.Graph()
		deps := g.Dependencies(args[0])
		dependents := g.Dependents(args[0])

		if len(deps) == 0 && len(dependents) == 0 {
			fmt.Printf("Task %s has no dependencies or dependents.\n", args[0])
			return nil
		}
		if len(deps) > 0 {
			fmt.Println("Depends on:")
			for _, id := range deps {
				marker := " "
				if g.IsCompleted(id) {
					marker = "✓"
				}
				fmt.Printf("  %s %s\n", marker, id)
			}
		}
		if len(dependents) > 0 {
			fmt.Println("Depended on by:")
			for _, id := range dependents {
				fmt.Printf("    %s\n", id)
			}
		}
		return nil
	},
}

func init() {
	depCmd.AddCommand(depAddCmd)
	depCmd.AddCommand(depRemoveCmd)
	depCmd.AddCommand(depListCmd)
}
