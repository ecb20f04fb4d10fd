package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taskrelay/relay/internal/coordinator"
)

var nextCapabilities []string

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Show the task claim would hand out, without claiming it",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := openBoard()
		if err != nil {
			return err
		}
		defer b.close()

		task, err := b.coord.Peek(nextCapabilities)
		if errors.Is(err, coordinator.ErrNoneAvailable) {
			fmt.Println("No task available.")
			return nil
		}
		if err != nil {
			return fmt.Errorf("peek: %w", err)
		}

		fmt.Printf("Next: %s %q (priority %d)\n", task.ID, task.Title, task.Priority)
		return nil
	},
}

func init() {
	nextCmd.Flags().StringSliceVar(&nextCapabilities, "cap", nil, "Capability the agent holds (repeatable)")
}
