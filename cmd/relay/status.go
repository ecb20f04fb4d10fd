package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/taskrelay/relay/internal/state"
	"github.com/taskrelay/relay/pkg/models"
)

var statusAll bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the board state",
	Long: `Display the current state of the board.

Shows:
  - Task counts by status
  - Claimed tasks and who holds them
  - Blocked tasks and what they wait on`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusAll, "all", false, "List every task, including completed ones")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	dbPath := state.ProjectDBPath(cwd)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("No board here. Run 'relay init' to create one.")
		return nil
	}

	b, err := openBoard()
	if err != nil {
		return err
	}
	defer b.close()

	tasks, err := b.db.ListTasks(nil)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}

	if len(tasks) == 0 {
		fmt.Println("Board is empty. Add a task with 'relay add'.")
		return nil
	}

	displayCounts(tasks)

	if b.sig.Paused() {
		printStatus("⏸", "Hand-out is paused", color.FgYellow)
	}
	if b.sig.Halted() {
		printStatus("✗", "Board is halted", color.FgRed)
	}

	displayClaimed(tasks)
	displayBlocked(b, tasks)

	if statusAll {
		displayAll(tasks)
	}
	return nil
}

func displayCounts(tasks []models.Task) {
	counts := make(map[models.TaskStatus]int)
	for _, t := range tasks {
		counts[t.Status]++
	}

	fmt.Printf("Board: %d tasks\n", len(tasks))
	fmt.Printf("  %s  %s  %s  %s\n",
		color.GreenString("open: %d", counts[models.TaskStatusOpen]),
		color.YellowString("blocked: %d", counts[models.TaskStatusBlocked]),
		color.CyanString("in progress: %d", counts[models.TaskStatusInProgress]),
		color.WhiteString("completed: %d", counts[models.TaskStatusCompleted]))
}

func displayClaimed(tasks []models.Task) {
	var claimed []models.Task
	for _, t := range tasks {
		if t.Status == models.TaskStatusInProgress {
			claimed = append(claimed, t)
		}
	}
	if len(claimed) == 0 {
		return
	}

	fmt.Println("\nIn progress:")
	for _, t := range claimed {
		held := ""
		if t.ClaimedAt != nil {
			held = fmt.Sprintf(" (%s)", formatDuration(time.Since(*t.ClaimedAt)))
		}
		fmt.Printf("  %s: %q by %s%s\n", t.ID, t.Title, t.ClaimedBy, held)
	}
}

func displayBlocked(b *board, tasks []models.Task) {
	g := b.coord.Graph()

	var blocked []models.Task
	for _, t := range tasks {
		if t.Status == models.TaskStatusBlocked {
			blocked = append(blocked, t)
		}
	}
	if len(blocked) == 0 {
		return
	}

	fmt.Println("\nBlocked:")
	for _, t := range blocked {
		var waiting []string
		for _, dep := range g.Dependencies(t.ID) {
			if !g.IsCompleted(dep) {
				waiting = append(waiting, dep)
			}
		}
		fmt.Printf("  %s: %q waiting on %v\n", t.ID, t.Title, waiting)
	}
}

func displayAll(tasks []models.Task) {
	fmt.Println("\nAll tasks:")
	for _, t := range tasks {
		fmt.Printf("  [%s] %s %q priority=%d column=%s\n", t.Status, t.ID, t.Title, t.Priority, t.Column)
	}
}
