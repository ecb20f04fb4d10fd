package state

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/taskrelay/relay/pkg/models"
)

// MemoryStore is an in-memory TaskStore. It backs tests and short-lived
// embedded boards where durability is not needed. All operations are
// guarded by a single mutex, which makes every status update a true
// compare-and-set.
type MemoryStore struct {
	mu    sync.Mutex
	tasks map[string]*models.Task
	// edges maps task ID to prerequisite IDs.
	edges map[string][]string
	// dependents is the reverse index: prerequisite ID to dependent IDs.
	dependents map[string][]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tasks:      make(map[string]*models.Task),
		edges:      make(map[string][]string),
		dependents: make(map[string][]string),
	}
}

// CreateTask stores a new task and its declared dependency edges.
func (m *MemoryStore) CreateTask(t *models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.tasks[t.ID]; exists {
		return fmt.Errorf("task %s: %w", t.ID, ErrDuplicateTask)
	}

	m.tasks[t.ID] = t.Clone()
	for _, dep := range t.DependsOn {
		m.addEdgeLocked(t.ID, dep)
	}
	return nil
}

// GetTask retrieves a task by ID.
func (m *MemoryStore) GetTask(id string) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, ErrTaskNotFound)
	}

	cp := t.Clone()
	cp.DependsOn = append([]string(nil), m.edges[id]...)
	return cp, nil
}

// ListTasks returns all tasks, optionally filtered by status.
func (m *MemoryStore) ListTasks(status *models.TaskStatus) ([]models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var tasks []models.Task
	for _, t := range m.tasks {
		if status != nil && t.Status != *status {
			continue
		}
		tasks = append(tasks, *t.Clone())
	}
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
	return tasks, nil
}

// ListClaimable returns open tasks in the given column in claim-ranking
// order: ascending priority, then ascending creation time.
func (m *MemoryStore) ListClaimable(column string) ([]models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var tasks []models.Task
	for _, t := range m.tasks {
		if t.Column == column && t.Status == models.TaskStatusOpen {
			tasks = append(tasks, *t.Clone())
		}
	}

	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].Priority != tasks[j].Priority {
			return tasks[i].Priority < tasks[j].Priority
		}
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
	return tasks, nil
}

// ClaimTask atomically claims an open task for an agent.
func (m *MemoryStore) ClaimTask(id, agentID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok || t.Status != models.TaskStatusOpen {
		return false, nil
	}

	claimed := at
	t.Status = models.TaskStatusInProgress
	t.ClaimedBy = agentID
	t.ClaimedAt = &claimed
	return true, nil
}

// CompleteTask atomically transitions a task to completed.
func (m *MemoryStore) CompleteTask(id string, from models.TaskStatus, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok || t.Status != from {
		return false, nil
	}

	completed := at
	t.Status = models.TaskStatusCompleted
	t.CompletedAt = &completed
	return true, nil
}

// TransitionStatus atomically moves a task between statuses.
func (m *MemoryStore) TransitionStatus(id string, from, to models.TaskStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok || t.Status != from {
		return false, nil
	}

	t.Status = to
	return true, nil
}

// AddEdge records a dependency edge.
func (m *MemoryStore) AddEdge(taskID, prereqID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addEdgeLocked(taskID, prereqID)
	return nil
}

func (m *MemoryStore) addEdgeLocked(taskID, prereqID string) {
	for _, dep := range m.edges[taskID] {
		if dep == prereqID {
			return
		}
	}
	m.edges[taskID] = append(m.edges[taskID], prereqID)
	m.dependents[prereqID] = append(m.dependents[prereqID], taskID)
}

// RemoveEdge deletes a dependency edge if present.
func (m *MemoryStore) RemoveEdge(taskID, prereqID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.edges[taskID] = removeID(m.edges[taskID], prereqID)
	m.dependents[prereqID] = removeID(m.dependents[prereqID], taskID)
	return nil
}

// Edges returns the full edge set keyed by task ID.
func (m *MemoryStore) Edges() (map[string][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	edges := make(map[string][]string, len(m.edges))
	for id, deps := range m.edges {
		if len(deps) > 0 {
			edges[id] = append([]string(nil), deps...)
		}
	}
	return edges, nil
}

// DependentsOf returns task IDs that depend on the given task.
func (m *MemoryStore) DependentsOf(taskID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.dependents[taskID]...), nil
}

// Close releases nothing; it exists to satisfy the TaskStore contract.
func (m *MemoryStore) Close() error {
	return nil
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
