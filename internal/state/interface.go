// Package state provides durable task storage for Relay.
// The SQLite implementation lives in db.go/tasks.go; an in-memory
// implementation suitable for tests and embedding lives in memory.go.
package state

import (
	"errors"
	"io"
	"time"

	"github.com/taskrelay/relay/pkg/models"
)

// ErrTaskNotFound indicates the requested task does not exist.
var ErrTaskNotFound = errors.New("task not found")

// ErrDuplicateTask indicates a task with the same ID already exists.
var ErrDuplicateTask = errors.New("task already exists")

// TaskReader provides read access to stored tasks.
type TaskReader interface {
	// GetTask retrieves a task by ID, including its dependency list.
	// Returns ErrTaskNotFound if the task does not exist.
	GetTask(id string) (*models.Task, error)

	// ListTasks returns all tasks, optionally filtered by status.
	ListTasks(status *models.TaskStatus) ([]models.Task, error)

	// ListClaimable returns open tasks in the given column, ordered by
	// ascending priority and then ascending creation time. The ordering
	// is the claim-ranking contract, not a presentation detail.
	ListClaimable(column string) ([]models.Task, error)
}

// TaskWriter provides create and conditional-update access to tasks.
// All status updates are compare-and-set: they apply only if the row's
// current status matches the expected value, and report whether they did.
type TaskWriter interface {
	// CreateTask persists a new task together with its declared
	// dependency edges, atomically. Returns ErrDuplicateTask if the ID
	// is already present.
	CreateTask(t *models.Task) error

	// ClaimTask atomically transitions the task from open to
	// in_progress and records the holder. Returns false if the task was
	// not open, which is how concurrent claimants lose the race.
	ClaimTask(id, agentID string, at time.Time) (bool, error)

	// CompleteTask atomically transitions the task from the expected
	// status to completed and records the completion time.
	CompleteTask(id string, from models.TaskStatus, at time.Time) (bool, error)

	// TransitionStatus atomically moves the task from one status to
	// another. Used for blocked <-> open recomputation.
	TransitionStatus(id string, from, to models.TaskStatus) (bool, error)
}

// EdgeStore persists dependency edges. Edges are stored with a reverse
// index so dependents of a completed task can be found without scanning.
type EdgeStore interface {
	// AddEdge records that task depends on prerequisite.
	AddEdge(taskID, prereqID string) error

	// RemoveEdge deletes the edge if present.
	RemoveEdge(taskID, prereqID string) error

	// Edges returns the full edge set keyed by task ID. Used to hydrate
	// the in-memory graph when a board is reopened.
	Edges() (map[string][]string, error)

	// DependentsOf returns the IDs of tasks that depend on the given
	// task, served from the reverse index.
	DependentsOf(taskID string) ([]string, error)
}

// TaskStore is the full storage contract the coordinator depends on.
// The coordinator holds no global state of its own, only a reference to
// a store and a graph owned by the hosting process.
type TaskStore interface {
	io.Closer
	TaskReader
	TaskWriter
	EdgeStore
}

// Compile-time verification that both implementations satisfy the contract.
var (
	_ TaskStore = (*DB)(nil)
	_ TaskStore = (*MemoryStore)(nil)
)
