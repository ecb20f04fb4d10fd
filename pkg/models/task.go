package models

import "time"

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskStatusOpen indicates the task is ready to be claimed.
	TaskStatusOpen TaskStatus = "open"
	// TaskStatusBlocked indicates the task has unmet dependencies.
	TaskStatusBlocked TaskStatus = "blocked"
	// TaskStatusInProgress indicates the task is held by an agent.
	TaskStatusInProgress TaskStatus = "in_progress"
	// TaskStatusCompleted indicates the task finished. Terminal.
	TaskStatusCompleted TaskStatus = "completed"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusOpen, TaskStatusBlocked, TaskStatusInProgress, TaskStatusCompleted:
		return true
	default:
		return false
	}
}

// Terminal returns true if no further transitions are allowed from this status.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted
}

// Workflow columns. Only tasks in ColumnReady are handed out to agents.
const (
	// ColumnBacklog holds tasks not yet groomed for hand-out.
	ColumnBacklog = "backlog"
	// ColumnReady holds tasks eligible for claiming.
	ColumnReady = "ready"
	// ColumnDone holds archived completed tasks.
	ColumnDone = "done"
)

// Task represents a unit of work in the shared backlog.
type Task struct {
	// ID is the unique identifier for this task.
	ID string `json:"id"`
	// Title is the short description of the task.
	Title string `json:"title"`
	// Description provides detailed information about the task.
	Description string `json:"description,omitempty"`
	// Status is the current state of the task.
	Status TaskStatus `json:"status"`
	// Priority orders claim selection. Lower is more urgent; 0 is highest.
	Priority int `json:"priority"`
	// Column is the workflow lane the task sits in.
	Column string `json:"column"`
	// RequiredCapabilities lists capability tags an agent must hold
	// to claim this task. Empty means any agent may claim it.
	RequiredCapabilities []string `json:"required_capabilities,omitempty"`
	// DependsOn lists task IDs that must complete before this task.
	DependsOn []string `json:"depends_on,omitempty"`
	// ClaimedBy is the ID of the agent currently holding the task.
	ClaimedBy string `json:"claimed_by,omitempty"`
	// ClaimedAt is when the task was claimed, if it is held.
	ClaimedAt *time.Time `json:"claimed_at,omitempty"`
	// CreatedAt is when the task was created. Used as the claim tie-breaker.
	CreatedAt time.Time `json:"created_at"`
	// CompletedAt is when the task was completed, if applicable.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Claimable returns true if the task is in a state where an agent
// could be handed it: the ready lane, open, and unheld.
func (t *Task) Claimable() bool {
	return t.Column == ColumnReady && t.Status == TaskStatusOpen && t.ClaimedBy == ""
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	cp := *t
	if t.RequiredCapabilities != nil {
		cp.RequiredCapabilities = append([]string(nil), t.RequiredCapabilities...)
	}
	if t.DependsOn != nil {
		cp.DependsOn = append([]string(nil), t.DependsOn...)
	}
	if t.ClaimedAt != nil {
		at := *t.ClaimedAt
		cp.ClaimedAt = &at
	}
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		cp.CompletedAt = &at
	}
	return &cp
}
