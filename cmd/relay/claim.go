package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/taskrelay/relay/internal/coordinator"
)

var (
	claimAgent        string
	claimCapabilities []string
)

var claimCmd = &cobra.Command{
	Use:   "claim",
	Short: "Claim the best-ranked eligible task",
	Long: `Claim the best-ranked eligible task for an agent.

Eligible tasks are open tasks in the ready column whose dependencies
are all complete and whose required capabilities are a subset of the
agent's. Ranking is by priority (lower first), then creation time
(older first). Exactly one caller wins a given task.

Exits with "no task available" when the board has nothing eligible;
agents are expected to poll.

Examples:
  relay claim --agent worker-1
  relay claim --agent worker-2 --cap code_generation --cap testing`,
	RunE: runClaim,
}

func init() {
	claimCmd.Flags().StringVarP(&claimAgent, "agent", "a", "", "Agent identifier (required)")
	claimCmd.Flags().StringSliceVar(&claimCapabilities, "cap", nil, "Capability the agent holds (repeatable)")
	claimCmd.MarkFlagRequired("agent")
}

func runClaim(cmd *cobra.Command, args []string) error {
	b, err := openBoard()
	if err != nil {
		return err
	}
	defer b.close()

	if b.sig.Halted() {
		fmt.Println("Board is halted. No tasks will be handed out.")
		return nil
	}

	task, err := b.coord.Claim(claimAgent, claimCapabilities)
	if errors.Is(err, coordinator.ErrNoneAvailable) {
		if b.sig.Paused() {
			fmt.Println("Board is paused. Resume with 'relay resume'.")
			return nil
		}
		fmt.Println("No task available.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("claim: %w", err)
	}

	printStatus("✓", fmt.Sprintf("Claimed %s: %q", task.ID, task.Title), color.FgGreen)
	if task.Description != "" {
		fmt.Printf("  %s\n", task.Description)
	}
	fmt.Printf("  Priority: %d  Agent: %s\n", task.Priority, task.ClaimedBy)
	return nil
}
