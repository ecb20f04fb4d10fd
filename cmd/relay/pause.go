package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/taskrelay/relay/internal/signals"
)

var pauseHalt bool

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause task hand-out",
	Long: `Pause task hand-out on this board.

While paused, claim requests return no task. In-progress work is not
interrupted. Use --halt to additionally signal polling agents to exit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openSignals()
		if err != nil {
			return err
		}
		defer m.Close()

		if err := m.SendPause(); err != nil {
			return fmt.Errorf("pause: %w", err)
		}
		printStatus("⏸", "Hand-out paused", color.FgYellow)

		if pauseHalt {
			if err := m.SendHalt(); err != nil {
				return fmt.Errorf("halt: %w", err)
			}
			printStatus("✗", "Halt signal sent", color.FgRed)
		}
		return nil
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume task hand-out",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openSignals()
		if err != nil {
			return err
		}
		defer m.Close()

		m.Clear()
		printStatus("✓", "Hand-out resumed", color.FgGreen)
		return nil
	},
}

func init() {
	pauseCmd.Flags().BoolVar(&pauseHalt, "halt", false, "Also signal polling agents to exit")
}

func openSignals() (*signals.Manager, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	return signals.NewManager(cwd)
}
