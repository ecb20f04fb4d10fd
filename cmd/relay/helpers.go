package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"

	"github.com/taskrelay/relay/internal/config"
	"github.com/taskrelay/relay/internal/coordinator"
	"github.com/taskrelay/relay/internal/signals"
	"github.com/taskrelay/relay/internal/state"
)

// board bundles everything a command needs to talk to the task board.
type board struct {
	coord *coordinator.Coordinator
	db    *state.DB
	sig   *signals.Manager
	cfg   *config.Config
}

// openBoard opens the project board in the current directory, applying
// configuration and any extra coordinator options the command needs.
// Extra options are applied last so they win over config-derived ones.
func openBoard(extra ...coordinator.Option) (*board, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath = state.ProjectDBPath(cwd)
	}

	db, err := state.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	sig, err := signals.NewManager(cwd)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init signals: %w", err)
	}

	logger := coordinator.NopLogger()
	if cfg.Debug.LogPath != "" {
		logger, err = coordinator.NewDebugLogger(cfg.Debug.LogPath)
		if err != nil {
			sig.Close()
			db.Close()
			return nil, fmt.Errorf("open debug log: %w", err)
		}
	}

	opts := []coordinator.Option{
		coordinator.WithReadyColumn(cfg.Board.ReadyColumn),
		coordinator.WithDefaultColumn(cfg.Board.DefaultColumn),
		coordinator.WithEventBuffer(cfg.Events.BufferSize),
		coordinator.WithDirectComplete(cfg.Policy.AllowDirectComplete),
		coordinator.WithForceComplete(cfg.Policy.ForceComplete),
		coordinator.WithGate(sig),
		coordinator.WithLogger(logger),
	}
	opts = append(opts, extra...)

	coord, err := coordinator.New(db, opts...)
	if err != nil {
		logger.Close()
		sig.Close()
		db.Close()
		return nil, fmt.Errorf("open board: %w", err)
	}

	return &board{coord: coord, db: db, sig: sig, cfg: cfg}, nil
}

// close releases the board's resources.
func (b *board) close() {
	b.coord.Close()
	b.sig.Close()
	b.db.Close()
}

// printStatus prints a symbol and message with the given color.
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		if m > 0 {
			return fmt.Sprintf("%dh%dm", h, m)
		}
		return fmt.Sprintf("%dh", h)
	}
	days := int(d.Hours()) / 24
	return fmt.Sprintf("%dd", days)
}
