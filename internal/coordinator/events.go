// Package coordinator hands tasks to requesting agents and cascades
// status changes when tasks complete.
package coordinator

import (
	"time"
)

// EventType represents the type of coordinator event.
type EventType string

const (
	// EventTaskCreated indicates a task was added to the board.
	EventTaskCreated EventType = "task_created"
	// EventTaskClaimed indicates a task was handed to an agent.
	EventTaskClaimed EventType = "task_claimed"
	// EventTaskCompleted indicates a task finished.
	EventTaskCompleted EventType = "task_completed"
	// EventTaskUnblocked indicates a task's last unmet dependency completed.
	EventTaskUnblocked EventType = "task_unblocked"
	// EventTaskBlocked indicates a new dependency put a task on hold.
	EventTaskBlocked EventType = "task_blocked"
)

// Event represents a coordinator event. Subscribers (UI, webhooks, logs)
// receive these on the emitter channel; delivery beyond that channel is
// the surrounding layer's responsibility.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// TaskID is the ID of the related task.
	TaskID string
	// AgentID is the ID of the acting agent, if applicable.
	AgentID string
	// Message provides additional context about the event.
	Message string
	// Timestamp is when the event occurred.
	Timestamp time.Time
}
