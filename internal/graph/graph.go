// Package graph maintains the directed dependency graph between tasks.
//
// The graph is the single gate on adding a dependency edge: an edge that
// would close a cycle is rejected before anything is committed, so readers
// computing blocked status never observe a transiently cyclic graph.
package graph

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gammazero/toposort"
)

// ErrCycleDetected indicates the requested edge would close a cycle.
var ErrCycleDetected = errors.New("circular dependency detected")

// ErrSelfDependency indicates a task was asked to depend on itself.
var ErrSelfDependency = errors.New("task cannot depend on itself")

// DependencyGraph tracks edges task -> prerequisite along with a reverse
// index prerequisite -> dependents, so completion fan-out stays
// O(dependents) as the graph grows. Nodes are task IDs; the graph never
// dereferences task records.
type DependencyGraph struct {
	mu sync.RWMutex
	// edges maps task ID to the IDs of its prerequisites.
	edges map[string][]string
	// dependents maps prerequisite ID to the IDs of tasks that depend on it.
	dependents map[string][]string
	// completed tracks which tasks have been marked complete.
	completed map[string]bool
}

// New creates an empty dependency graph.
func New() *DependencyGraph {
	return &DependencyGraph{
		edges:      make(map[string][]string),
		dependents: make(map[string][]string),
		completed:  make(map[string]bool),
	}
}

// AddDependency admits the edge task -> prerequisite.
// Returns ErrSelfDependency if the two IDs are equal, and ErrCycleDetected
// if the prerequisite already depends, transitively, on the task. On
// rejection the graph is unchanged.
func (g *DependencyGraph) AddDependency(taskID, prereqID string) error {
	if taskID == prereqID {
		return ErrSelfDependency
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	for _, dep := range g.edges[taskID] {
		if dep == prereqID {
			return nil // Edge already present.
		}
	}

	// Reachability walk over the existing edge set, before commit.
	if g.reachableLocked(prereqID, taskID) {
		return fmt.Errorf("%w: %s already depends on %s", ErrCycleDetected, prereqID, taskID)
	}

	g.edges[taskID] = append(g.edges[taskID], prereqID)
	g.dependents[prereqID] = append(g.dependents[prereqID], taskID)
	return nil
}

// RemoveDependency removes the edge task -> prerequisite.
// Removing an edge that does not exist is a no-op.
func (g *DependencyGraph) RemoveDependency(taskID, prereqID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.edges[taskID] = remove(g.edges[taskID], prereqID)
	g.dependents[prereqID] = remove(g.dependents[prereqID], taskID)
}

// reachableLocked returns true if `to` is reachable from `from` by
// following dependency edges. Caller must hold the lock.
func (g *DependencyGraph) reachableLocked(from, to string) bool {
	if from == to {
		return true
	}

	seen := map[string]bool{from: true}
	stack := []string{from}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, dep := range g.edges[id] {
			if dep == to {
				return true
			}
			if !seen[dep] {
				seen[dep] = true
				stack = append(stack, dep)
			}
		}
	}
	return false
}

// IsSatisfied returns true if every prerequisite of the task has been
// marked complete. A task with no prerequisites is always satisfied.
func (g *DependencyGraph) IsSatisfied(taskID string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, dep := range g.edges[taskID] {
		if !g.completed[dep] {
			return false
		}
	}
	return true
}

// Dependents returns the IDs of tasks that depend directly on the given
// task. Served from the reverse index.
func (g *DependencyGraph) Dependents(taskID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.dependents[taskID]...)
}

// Dependencies returns the IDs of the task's direct prerequisites.
func (g *DependencyGraph) Dependencies(taskID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.edges[taskID]...)
}

// MarkCompleted records that a task has completed. Completion is
// terminal; there is no way to un-complete a task.
func (g *DependencyGraph) MarkCompleted(taskID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.completed[taskID] = true
}

// IsCompleted returns true if the task has been marked complete.
func (g *DependencyGraph) IsCompleted(taskID string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.completed[taskID]
}

// Hydrate replaces the graph's contents from persisted state: the full
// edge set keyed by task ID, plus the IDs of completed tasks. Used when
// the coordinator reopens an existing board.
func (g *DependencyGraph) Hydrate(edges map[string][]string, completedIDs []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.edges = make(map[string][]string, len(edges))
	g.dependents = make(map[string][]string)
	g.completed = make(map[string]bool, len(completedIDs))

	for taskID, deps := range edges {
		for _, dep := range deps {
			if dep == taskID {
				return fmt.Errorf("edge %s -> %s: %w", taskID, dep, ErrSelfDependency)
			}
			g.edges[taskID] = append(g.edges[taskID], dep)
			g.dependents[dep] = append(g.dependents[dep], taskID)
		}
	}

	if _, err := g.orderLocked(); err != nil {
		return err
	}

	for _, id := range completedIDs {
		g.completed[id] = true
	}
	return nil
}

// Validate runs a topological sort over the whole edge set and returns
// task IDs in an order where prerequisites come before their dependents.
// Returns ErrCycleDetected if the edge set is cyclic. Incremental
// admission keeps the graph acyclic, so this only fires on bulk loads
// from external data.
func (g *DependencyGraph) Validate() ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.orderLocked()
}

func (g *DependencyGraph) orderLocked() ([]string, error) {
	var tedges []toposort.Edge
	for taskID, deps := range g.edges {
		if len(deps) == 0 {
			tedges = append(tedges, toposort.Edge{nil, taskID})
			continue
		}
		for _, dep := range deps {
			// Edge (dep, taskID): dep must come before taskID.
			tedges = append(tedges, toposort.Edge{dep, taskID})
		}
	}

	sorted, err := toposort.Toposort(tedges)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCycleDetected, err)
	}

	order := make([]string, 0, len(sorted))
	for _, id := range sorted {
		if id != nil {
			order = append(order, id.(string))
		}
	}
	return order, nil
}

// Size returns the number of tasks with at least one edge.
func (g *DependencyGraph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.edges)
}

func remove(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
