package coordinator

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taskrelay/relay/internal/capability"
	"github.com/taskrelay/relay/internal/graph"
	"github.com/taskrelay/relay/internal/state"
	"github.com/taskrelay/relay/pkg/models"
)

// ErrNoneAvailable indicates no eligible task exists for the requesting
// agent. This is a normal empty result, not a fault: callers poll.
var ErrNoneAvailable = errors.New("no claimable task available")

// ErrInvalidTransition indicates a status change was requested from a
// state that does not permit it.
var ErrInvalidTransition = errors.New("invalid status transition")

// Gate lets the hosting process suspend task hand-out (maintenance,
// drain before shutdown). A nil gate never pauses.
type Gate interface {
	Paused() bool
}

// Coordinator orchestrates claim hand-off and completion cascades over a
// TaskStore and a DependencyGraph. It holds no task state of its own.
//
// Claim and Peek take no coordinator lock: their correctness rests on the
// store's conditional updates, so concurrent claimants never serialize
// behind a single mutex. Graph mutations (task creation, dependency
// edits, completion fan-out) are serialized by mu, which keeps "edge
// added" and "status recomputed" from being observed separately.
type Coordinator struct {
	store   state.TaskStore
	graph   *graph.DependencyGraph
	emitter *EventEmitter
	gate    Gate
	logger  *DebugLogger

	readyColumn         string
	defaultColumn       string
	allowDirectComplete bool
	forceComplete       bool
	now                 func() time.Time

	mu sync.Mutex
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithEventBuffer sets the emitter channel capacity.
func WithEventBuffer(size int) Option {
	return func(c *Coordinator) { c.emitter = NewEventEmitter(size) }
}

// WithReadyColumn sets the workflow lane from which tasks are handed out.
func WithReadyColumn(column string) Option {
	return func(c *Coordinator) { c.readyColumn = column }
}

// WithDefaultColumn sets the lane assigned to new tasks that don't name one.
func WithDefaultColumn(column string) Option {
	return func(c *Coordinator) { c.defaultColumn = column }
}

// WithGate installs a hand-out gate.
func WithGate(g Gate) Option {
	return func(c *Coordinator) { c.gate = g }
}

// WithLogger installs a debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithDirectComplete controls whether an open, unclaimed task may be
// completed without being claimed first.
func WithDirectComplete(allowed bool) Option {
	return func(c *Coordinator) { c.allowDirectComplete = allowed }
}

// WithForceComplete controls whether a task may be completed while it
// still has unmet dependencies. Off by default.
func WithForceComplete(allowed bool) Option {
	return func(c *Coordinator) { c.forceComplete = allowed }
}

// WithClock overrides the time source. Tests use this for deterministic
// claim timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// New creates a Coordinator over the given store and hydrates the
// dependency graph from the store's persisted edges and completed tasks.
func New(store state.TaskStore, opts ...Option) (*Coordinator, error) {
	c := &Coordinator{
		store:               store,
		graph:               graph.New(),
		emitter:             NewEventEmitter(64),
		logger:              NopLogger(),
		readyColumn:         models.ColumnReady,
		defaultColumn:       models.ColumnBacklog,
		allowDirectComplete: true,
		now:                 time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.hydrate(); err != nil {
		return nil, err
	}
	return c, nil
}

// hydrate rebuilds the in-memory graph from persisted state.
func (c *Coordinator) hydrate() error {
	edges, err := c.store.Edges()
	if err != nil {
		return fmt.Errorf("load edges: %w", err)
	}

	completedStatus := models.TaskStatusCompleted
	completed, err := c.store.ListTasks(&completedStatus)
	if err != nil {
		return fmt.Errorf("load completed tasks: %w", err)
	}

	completedIDs := make([]string, len(completed))
	for i, t := range completed {
		completedIDs[i] = t.ID
	}

	if err := c.graph.Hydrate(edges, completedIDs); err != nil {
		return fmt.Errorf("hydrate graph: %w", err)
	}

	c.logger.Log("[coordinator] hydrated graph: %d tasks with edges, %d completed", c.graph.Size(), len(completedIDs))
	return nil
}

// Events returns the channel subscribers read coordinator events from.
func (c *Coordinator) Events() <-chan Event {
	return c.emitter.Events()
}

// Graph exposes the dependency graph for read-only inspection.
func (c *Coordinator) Graph() *graph.DependencyGraph {
	return c.graph
}

// Close shuts down the event channel.
func (c *Coordinator) Close() {
	c.emitter.Close()
}

// CreateTask registers a new task on the board. If the task declares
// dependencies, each is admitted through the graph (with cycle
// rejection) before anything is persisted, and the task's initial status
// is derived from whether those dependencies are already satisfied.
func (c *Coordinator) CreateTask(t *models.Task) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.Column == "" {
		t.Column = c.defaultColumn
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = c.now()
	}

	// Admit edges before persisting; roll back all of them on any failure.
	var added []string
	rollback := func() {
		for _, dep := range added {
			c.graph.RemoveDependency(t.ID, dep)
		}
	}

	for _, dep := range t.DependsOn {
		if _, err := c.store.GetTask(dep); err != nil {
			rollback()
			return fmt.Errorf("dependency %s: %w", dep, err)
		}
		if err := c.graph.AddDependency(t.ID, dep); err != nil {
			rollback()
			return err
		}
		added = append(added, dep)
	}

	if c.graph.IsSatisfied(t.ID) {
		t.Status = models.TaskStatusOpen
	} else {
		t.Status = models.TaskStatusBlocked
	}

	if err := c.store.CreateTask(t); err != nil {
		rollback()
		return err
	}

	c.logger.Log("[coordinator] created task %s status=%s deps=%v", t.ID, t.Status, t.DependsOn)
	c.emitter.Emit(Event{
		Type:      EventTaskCreated,
		TaskID:    t.ID,
		Message:   t.Title,
		Timestamp: c.now(),
	})
	return nil
}

// Claim hands the best-ranked eligible task to the requesting agent.
//
// Candidates are open tasks in the ready lane, ordered by ascending
// priority and then ascending creation time. For each candidate in rank
// order, a conditional claim is attempted against the store; losing the
// compare-and-set to a concurrent claimant just moves the scan to the
// next candidate. Returns ErrNoneAvailable when no candidate wins.
func (c *Coordinator) Claim(agentID string, held []string) (*models.Task, error) {
	if c.gate != nil && c.gate.Paused() {
		c.logger.Log("[coordinator] claim by %s refused: hand-out paused", agentID)
		return nil, ErrNoneAvailable
	}

	candidates, err := c.store.ListClaimable(c.readyColumn)
	if err != nil {
		return nil, fmt.Errorf("list claimable: %w", err)
	}

	for i := range candidates {
		t := &candidates[i]
		if !capability.Satisfies(t.RequiredCapabilities, held) {
			continue
		}
		// Guards against a stale open status observed mid-recompute.
		if !c.graph.IsSatisfied(t.ID) {
			continue
		}

		at := c.now()
		ok, err := c.store.ClaimTask(t.ID, agentID, at)
		if err != nil {
			return nil, fmt.Errorf("claim %s: %w", t.ID, err)
		}
		if !ok {
			// Another agent won the row; try the next candidate.
			c.logger.Log("[coordinator] claim race lost on %s, trying next candidate", t.ID)
			continue
		}

		t.Status = models.TaskStatusInProgress
		t.ClaimedBy = agentID
		t.ClaimedAt = &at

		c.logger.Log("[coordinator] task %s claimed by %s", t.ID, agentID)
		c.emitter.Emit(Event{
			Type:      EventTaskClaimed,
			TaskID:    t.ID,
			AgentID:   agentID,
			Timestamp: at,
		})
		return t, nil
	}

	return nil, ErrNoneAvailable
}

// Peek returns the task Claim would hand out, without claiming it.
func (c *Coordinator) Peek(held []string) (*models.Task, error) {
	if c.gate != nil && c.gate.Paused() {
		return nil, ErrNoneAvailable
	}

	candidates, err := c.store.ListClaimable(c.readyColumn)
	if err != nil {
		return nil, fmt.Errorf("list claimable: %w", err)
	}

	for i := range candidates {
		t := &candidates[i]
		if !capability.Satisfies(t.RequiredCapabilities, held) {
			continue
		}
		if !c.graph.IsSatisfied(t.ID) {
			continue
		}
		return t, nil
	}

	return nil, ErrNoneAvailable
}

// AddDependency records that task depends on prerequisite, rejecting
// self-edges and cycles, and recomputes the task's blocked status in the
// same critical section so no claim can slip through between the two.
func (c *Coordinator) AddDependency(taskID, prereqID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	task, err := c.store.GetTask(taskID)
	if err != nil {
		return err
	}
	if task.Status == models.TaskStatusCompleted {
		return fmt.Errorf("task %s is completed: %w", taskID, ErrInvalidTransition)
	}
	prereq, err := c.store.GetTask(prereqID)
	if err != nil {
		return err
	}

	if err := c.graph.AddDependency(taskID, prereqID); err != nil {
		return err
	}
	if err := c.store.AddEdge(taskID, prereqID); err != nil {
		c.graph.RemoveDependency(taskID, prereqID)
		return fmt.Errorf("persist edge: %w", err)
	}

	if prereq.Status != models.TaskStatusCompleted {
		ok, err := c.store.TransitionStatus(taskID, models.TaskStatusOpen, models.TaskStatusBlocked)
		if err != nil {
			return fmt.Errorf("block %s: %w", taskID, err)
		}
		if ok {
			c.logger.Log("[coordinator] task %s blocked on new dependency %s", taskID, prereqID)
			c.emitter.Emit(Event{
				Type:      EventTaskBlocked,
				TaskID:    taskID,
				Message:   "blocked on " + prereqID,
				Timestamp: c.now(),
			})
		}
	}
	return nil
}

// RemoveDependency deletes the edge and, if the task's remaining
// prerequisites are all satisfied, reopens it.
func (c *Coordinator) RemoveDependency(taskID, prereqID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.graph.RemoveDependency(taskID, prereqID)
	if err := c.store.RemoveEdge(taskID, prereqID); err != nil {
		return fmt.Errorf("remove edge: %w", err)
	}

	if c.graph.IsSatisfied(taskID) {
		ok, err := c.store.TransitionStatus(taskID, models.TaskStatusBlocked, models.TaskStatusOpen)
		if err != nil {
			return fmt.Errorf("unblock %s: %w", taskID, err)
		}
		if ok {
			c.emitter.Emit(Event{
				Type:      EventTaskUnblocked,
				TaskID:    taskID,
				Timestamp: c.now(),
			})
		}
	}
	return nil
}
