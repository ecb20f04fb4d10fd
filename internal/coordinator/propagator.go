package coordinator

import (
	"fmt"

	"github.com/taskrelay/relay/pkg/models"
)

// Complete marks a task completed and cascades the unblock to its direct
// dependents.
//
// The transition is conditional on the task's current status:
//
//   - in_progress completes normally;
//   - open completes only when direct completion is allowed (claim-less
//     completion, on by default);
//   - blocked completes only under the force-complete policy, since its
//     dependencies are by definition unmet;
//   - completed is terminal and never transitions again.
//
// Propagation is one hop: each dependent whose prerequisites are now all
// complete moves from blocked to open and a task_unblocked event fires.
// A dependent with another unmet dependency stays blocked. Deeper
// descendants are reached when their own prerequisites complete.
func (c *Coordinator) Complete(taskID, agentID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	task, err := c.store.GetTask(taskID)
	if err != nil {
		return err
	}

	from := task.Status
	switch from {
	case models.TaskStatusInProgress:
		// Normal path.
	case models.TaskStatusOpen:
		if !c.allowDirectComplete {
			return fmt.Errorf("task %s is open and direct completion is disabled: %w", taskID, ErrInvalidTransition)
		}
	case models.TaskStatusBlocked:
		if !c.forceComplete {
			return fmt.Errorf("task %s has unmet dependencies: %w", taskID, ErrInvalidTransition)
		}
	default:
		return fmt.Errorf("task %s is %s: %w", taskID, from, ErrInvalidTransition)
	}

	if !c.forceComplete && !c.graph.IsSatisfied(taskID) && from != models.TaskStatusBlocked {
		// A dependency was added after the task was handed out.
		return fmt.Errorf("task %s has unmet dependencies: %w", taskID, ErrInvalidTransition)
	}

	at := c.now()
	ok, err := c.store.CompleteTask(taskID, from, at)
	if err != nil {
		return fmt.Errorf("complete %s: %w", taskID, err)
	}
	if !ok {
		// Status moved under us between the read and the update.
		return fmt.Errorf("task %s changed status concurrently: %w", taskID, ErrInvalidTransition)
	}

	c.graph.MarkCompleted(taskID)
	c.logger.Log("[coordinator] task %s completed by %s", taskID, agentID)
	c.emitter.Emit(Event{
		Type:      EventTaskCompleted,
		TaskID:    taskID,
		AgentID:   agentID,
		Timestamp: at,
	})

	c.propagateUnblocks(taskID)
	return nil
}

// propagateUnblocks walks the reverse index one hop and reopens every
// dependent whose prerequisites are now all complete. Caller holds c.mu.
func (c *Coordinator) propagateUnblocks(completedID string) {
	for _, depID := range c.graph.Dependents(completedID) {
		if !c.graph.IsSatisfied(depID) {
			// Another prerequisite is still incomplete; partial
			// satisfaction must not transition the dependent.
			continue
		}

		ok, err := c.store.TransitionStatus(depID, models.TaskStatusBlocked, models.TaskStatusOpen)
		if err != nil {
			c.logger.Log("[coordinator] unblock %s failed: %v", depID, err)
			continue
		}
		if !ok {
			// The dependent was not blocked (already open, claimed, or
			// force-completed); nothing to cascade.
			continue
		}

		c.logger.Log("[coordinator] task %s unblocked by completion of %s", depID, completedID)
		c.emitter.Emit(Event{
			Type:      EventTaskUnblocked,
			TaskID:    depID,
			Message:   "unblocked by " + completedID,
			Timestamp: c.now(),
		})
	}
}
