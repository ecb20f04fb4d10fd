// Package boardfile parses YAML board seed files. A board file declares a
// batch of tasks with their dependencies so a whole board can be imported
// in one shot instead of task by task.
package boardfile

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"go.yaml.in/yaml/v3"

	"github.com/taskrelay/relay/internal/graph"
	"github.com/taskrelay/relay/pkg/models"
)

// Board is the top-level structure of a board seed file.
type Board struct {
	// Name labels the board. Informational only.
	Name  string      `yaml:"name"`
	Tasks []TaskEntry `yaml:"tasks"`
}

// TaskEntry is one task declaration in a board file.
type TaskEntry struct {
	ID           string   `yaml:"id"`
	Title        string   `yaml:"title"`
	Description  string   `yaml:"description"`
	Priority     int      `yaml:"priority"`
	Column       string   `yaml:"column"`
	Capabilities []string `yaml:"capabilities"`
	DependsOn    []string `yaml:"depends_on"`
}

// Parse decodes a board file and validates it. Entries without an id get
// a generated one; depends_on references are resolved against the ids in
// the same file.
func Parse(data []byte) (*Board, error) {
	board := &Board{}
	if err := yaml.Unmarshal(data, board); err != nil {
		return nil, fmt.Errorf("parse board file: %w", err)
	}

	if len(board.Tasks) == 0 {
		return nil, fmt.Errorf("board file declares no tasks")
	}

	for i := range board.Tasks {
		if board.Tasks[i].ID == "" {
			board.Tasks[i].ID = uuid.New().String()
		}
		if board.Tasks[i].Title == "" {
			return nil, fmt.Errorf("task %s: missing title", board.Tasks[i].ID)
		}
	}

	if err := validate(board); err != nil {
		return nil, err
	}
	return board, nil
}

// ParseFile reads and parses a board file from disk.
func ParseFile(path string) (*Board, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read board file: %w", err)
	}
	return Parse(data)
}

// validate checks id uniqueness, dependency references, and acyclicity.
func validate(board *Board) error {
	ids := make(map[string]bool, len(board.Tasks))
	for _, t := range board.Tasks {
		if ids[t.ID] {
			return fmt.Errorf("duplicate task id %s", t.ID)
		}
		ids[t.ID] = true
	}

	edges := make(map[string][]string, len(board.Tasks))
	for _, t := range board.Tasks {
		for _, dep := range t.DependsOn {
			if dep == t.ID {
				return fmt.Errorf("task %s: %w", t.ID, graph.ErrSelfDependency)
			}
			if !ids[dep] {
				return fmt.Errorf("task %s depends on unknown task %s", t.ID, dep)
			}
			edges[t.ID] = append(edges[t.ID], dep)
		}
	}

	g := graph.New()
	if err := g.Hydrate(edges, nil); err != nil {
		return fmt.Errorf("board dependencies: %w", err)
	}
	return nil
}

// Tasks converts the board entries into model tasks, in declaration order.
// Dependency-derived status is left to the coordinator at creation time.
func (b *Board) ModelTasks() []*models.Task {
	tasks := make([]*models.Task, 0, len(b.Tasks))
	for _, e := range b.Tasks {
		tasks = append(tasks, &models.Task{
			ID:                   e.ID,
			Title:                e.Title,
			Description:          e.Description,
			Priority:             e.Priority,
			Column:               e.Column,
			RequiredCapabilities: e.Capabilities,
			DependsOn:            e.DependsOn,
		})
	}
	return tasks
}

// ImportOrder returns the tasks ordered so every prerequisite precedes
// its dependents, which lets the coordinator admit edges as it goes.
func (b *Board) ImportOrder() ([]*models.Task, error) {
	byID := make(map[string]*models.Task, len(b.Tasks))
	for _, t := range b.ModelTasks() {
		byID[t.ID] = t
	}

	g := graph.New()
	edges := make(map[string][]string)
	for _, e := range b.Tasks {
		if len(e.DependsOn) > 0 {
			edges[e.ID] = e.DependsOn
		}
	}
	if err := g.Hydrate(edges, nil); err != nil {
		return nil, err
	}

	order, err := g.Validate()
	if err != nil {
		return nil, err
	}

	// Tasks without edges don't appear in the sort; they have no
	// ordering constraints and go first.
	inOrder := make(map[string]bool, len(order))
	for _, id := range order {
		inOrder[id] = true
	}

	tasks := make([]*models.Task, 0, len(b.Tasks))
	for _, e := range b.Tasks {
		if !inOrder[e.ID] {
			tasks = append(tasks, byID[e.ID])
		}
	}
	for _, id := range order {
		if t, ok := byID[id]; ok {
			tasks = append(tasks, t)
		}
	}
	return tasks, nil
}
