package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/taskrelay/relay/internal/boardfile"
)

var importCmd = &cobra.Command{
	Use:   "import <board.yaml>",
	Short: "Import tasks from a YAML board file",
	Long: `Import a batch of tasks from a YAML board file.

The file is validated as a whole before anything is written: ids must
be unique, every depends_on must reference a task in the file, and the
dependency graph must be acyclic. Tasks are created prerequisites
first, so partially satisfied dependencies never appear mid-import.

Example board file:

  name: release pipeline
  tasks:
    - id: build
      title: Build artifacts
      column: ready
    - id: test
      title: Run test suite
      column: ready
      depends_on: [build]`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	board, err := boardfile.ParseFile(args[0])
	if err != nil {
		return err
	}

	tasks, err := board.ImportOrder()
	if err != nil {
		return err
	}

	b, err := openBoard()
	if err != nil {
		return err
	}
	defer b.close()

	for _, task := range tasks {
		if err := b.coord.CreateTask(task); err != nil {
			return fmt.Errorf("import task %s: %w", task.ID, err)
		}
	}

	printStatus("✓", fmt.Sprintf("Imported %d tasks from %s", len(tasks), args[0]), color.FgGreen)
	return nil
}
