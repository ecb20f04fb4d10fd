package boardfile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/taskrelay/relay/internal/graph"
)

const sampleBoard = `
name: release pipeline
tasks:
  - id: build
    title: Build artifacts
    priority: 0
    column: ready
    capabilities: [code_generation]
  - id: test
    title: Run test suite
    priority: 1
    column: ready
    depends_on: [build]
  - id: ship
    title: Publish release
    priority: 2
    column: ready
    depends_on: [build, test]
`

func TestParse_ValidBoard(t *testing.T) {
	board, err := Parse([]byte(sampleBoard))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if board.Name != "release pipeline" {
		t.Errorf("Name = %q", board.Name)
	}
	if len(board.Tasks) != 3 {
		t.Fatalf("got %d tasks, want 3", len(board.Tasks))
	}
	if got := board.Tasks[2].DependsOn; len(got) != 2 {
		t.Errorf("ship depends_on = %v, want 2 entries", got)
	}
	if board.Tasks[0].Capabilities[0] != "code_generation" {
		t.Errorf("capabilities = %v", board.Tasks[0].Capabilities)
	}
}

func TestParse_GeneratesMissingIDs(t *testing.T) {
	board, err := Parse([]byte("tasks:\n  - title: anonymous\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if board.Tasks[0].ID == "" {
		t.Error("expected generated id")
	}
}

func TestParse_Rejections(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty", "name: empty\n"},
		{"missing title", "tasks:\n  - id: a\n"},
		{"duplicate id", "tasks:\n  - id: a\n    title: one\n  - id: a\n    title: two\n"},
		{"unknown dependency", "tasks:\n  - id: a\n    title: one\n    depends_on: [ghost]\n"},
		{"malformed yaml", "tasks: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.yaml)); err == nil {
				t.Error("expected parse error")
			}
		})
	}
}

func TestParse_SelfDependency(t *testing.T) {
	_, err := Parse([]byte("tasks:\n  - id: a\n    title: one\n    depends_on: [a]\n"))
	if !errors.Is(err, graph.ErrSelfDependency) {
		t.Errorf("expected ErrSelfDependency, got %v", err)
	}
}

func TestParse_CycleRejected(t *testing.T) {
	cyclic := `
tasks:
  - id: a
    title: one
    depends_on: [b]
  - id: b
    title: two
    depends_on: [a]
`
	_, err := Parse([]byte(cyclic))
	if !errors.Is(err, graph.ErrCycleDetected) {
		t.Errorf("expected ErrCycleDetected, got %v", err)
	}
}

func TestImportOrder_PrerequisitesFirst(t *testing.T) {
	board, err := Parse([]byte(sampleBoard))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	tasks, err := board.ImportOrder()
	if err != nil {
		t.Fatalf("ImportOrder failed: %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("got %d tasks, want 3", len(tasks))
	}

	pos := make(map[string]int, len(tasks))
	for i, task := range tasks {
		pos[task.ID] = i
	}
	if pos["build"] > pos["test"] || pos["test"] > pos["ship"] || pos["build"] > pos["ship"] {
		t.Errorf("order violates dependencies: %v", pos)
	}
}

func TestImportOrder_IsolatedTasksIncluded(t *testing.T) {
	board, err := Parse([]byte("tasks:\n  - id: solo\n    title: standalone\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	tasks, err := board.ImportOrder()
	if err != nil {
		t.Fatalf("ImportOrder failed: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != "solo" {
		t.Errorf("isolated task missing from import order: %v", tasks)
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.yaml")
	if err := os.WriteFile(path, []byte(sampleBoard), 0644); err != nil {
		t.Fatalf("write board file: %v", err)
	}

	board, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	if len(board.Tasks) != 3 {
		t.Errorf("got %d tasks", len(board.Tasks))
	}

	if _, err := ParseFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
