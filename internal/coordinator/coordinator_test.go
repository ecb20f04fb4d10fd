package coordinator

import (
	"errors"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/taskrelay/relay/internal/graph"
	"github.com/taskrelay/relay/internal/state"
	"github.com/taskrelay/relay/pkg/models"
)

func newTestCoordinator(t *testing.T, opts ...Option) (*Coordinator, *state.MemoryStore) {
	t.Helper()
	store := state.NewMemoryStore()
	c, err := New(store, opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(c.Close)
	return c, store
}

func readyTask(id string, priority int, created time.Time) *models.Task {
	return &models.Task{
		ID:        id,
		Title:     "task " + id,
		Priority:  priority,
		Column:    models.ColumnReady,
		CreatedAt: created,
	}
}

// drainEvents collects everything currently buffered on the emitter.
func drainEvents(c *Coordinator) []Event {
	var events []Event
	for {
		select {
		case e := <-c.Events():
			events = append(events, e)
		default:
			return events
		}
	}
}

func countEvents(events []Event, typ EventType, taskID string) int {
	n := 0
	for _, e := range events {
		if e.Type == typ && (taskID == "" || e.TaskID == taskID) {
			n++
		}
	}
	return n
}

func TestCreateTask_OpenWhenNoDependencies(t *testing.T) {
	c, store := newTestCoordinator(t)

	if err := c.CreateTask(readyTask("A", 0, time.Now())); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	got, err := store.GetTask("A")
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if got.Status != models.TaskStatusOpen {
		t.Errorf("Status = %q, want open", got.Status)
	}
}

func TestCreateTask_BlockedWhenDependencyIncomplete(t *testing.T) {
	c, store := newTestCoordinator(t)

	if err := c.CreateTask(readyTask("A", 0, time.Now())); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	b := readyTask("B", 0, time.Now())
	b.DependsOn = []string{"A"}
	if err := c.CreateTask(b); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	got, _ := store.GetTask("B")
	if got.Status != models.TaskStatusBlocked {
		t.Errorf("Status = %q, want blocked", got.Status)
	}
}

func TestCreateTask_OpenWhenDependencyAlreadyCompleted(t *testing.T) {
	c, store := newTestCoordinator(t)

	if err := c.CreateTask(readyTask("A", 0, time.Now())); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if _, err := c.Claim("agent-1", nil); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if err := c.Complete("A", "agent-1"); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	b := readyTask("B", 0, time.Now())
	b.DependsOn = []string{"A"}
	if err := c.CreateTask(b); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	got, _ := store.GetTask("B")
	if got.Status != models.TaskStatusOpen {
		t.Errorf("Status = %q, want open (dependency already completed)", got.Status)
	}
}

func TestCreateTask_UnknownDependency(t *testing.T) {
	c, _ := newTestCoordinator(t)

	b := readyTask("B", 0, time.Now())
	b.DependsOn = []string{"nope"}
	err := c.CreateTask(b)
	if !errors.Is(err, state.ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound, got %v", err)
	}

	// Rejected creation must not leave edges behind.
	if deps := c.Graph().Dependents("nope"); len(deps) != 0 {
		t.Errorf("expected no dependents after failed create, got %v", deps)
	}
}

func TestCreateTask_GeneratesID(t *testing.T) {
	c, _ := newTestCoordinator(t)

	task := &models.Task{Title: "untitled", Column: models.ColumnReady}
	if err := c.CreateTask(task); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if task.ID == "" {
		t.Error("expected generated ID")
	}
	if task.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
}

func TestClaim_RankingOrder(t *testing.T) {
	c, _ := newTestCoordinator(t)

	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Minute)
	t2 := t1.Add(time.Minute)

	// A(priority=1, created=t1), B(priority=0, created=t2), C(priority=0, created=t0).
	for _, task := range []*models.Task{
		readyTask("A", 1, t1),
		readyTask("B", 0, t2),
		readyTask("C", 0, t0),
	} {
		if err := c.CreateTask(task); err != nil {
			t.Fatalf("CreateTask failed: %v", err)
		}
	}

	// Sequential claims must return C, then B, then A.
	for _, want := range []string{"C", "B", "A"} {
		got, err := c.Claim("agent-1", nil)
		if err != nil {
			t.Fatalf("Claim failed: %v", err)
		}
		if got.ID != want {
			t.Errorf("claimed %s, want %s", got.ID, want)
		}
	}

	if _, err := c.Claim("agent-1", nil); !errors.Is(err, ErrNoneAvailable) {
		t.Errorf("expected ErrNoneAvailable after pool drained, got %v", err)
	}
}

func TestClaim_CapabilityFiltering(t *testing.T) {
	c, _ := newTestCoordinator(t)

	task := readyTask("A", 0, time.Now())
	task.RequiredCapabilities = []string{"code_generation"}
	if err := c.CreateTask(task); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	// An agent with no capabilities never matches.
	if _, err := c.Claim("agent-1", nil); !errors.Is(err, ErrNoneAvailable) {
		t.Fatalf("expected ErrNoneAvailable for capability mismatch, got %v", err)
	}

	// A superset of the requirement matches.
	got, err := c.Claim("agent-2", []string{"code_generation", "testing"})
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if got.ID != "A" {
		t.Errorf("claimed %s, want A", got.ID)
	}
	if got.ClaimedBy != "agent-2" {
		t.Errorf("ClaimedBy = %q, want agent-2", got.ClaimedBy)
	}
}

func TestClaim_SkipsBlockedTasks(t *testing.T) {
	c, _ := newTestCoordinator(t)

	if err := c.CreateTask(readyTask("A", 5, time.Now())); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	b := readyTask("B", 0, time.Now())
	b.DependsOn = []string{"A"}
	if err := c.CreateTask(b); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	// B outranks A on priority but is blocked; A must be handed out.
	got, err := c.Claim("agent-1", nil)
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if got.ID != "A" {
		t.Errorf("claimed %s, want A", got.ID)
	}
}

func TestClaim_SetsClaimFieldsTogether(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c, store := newTestCoordinator(t, WithClock(func() time.Time { return now }))

	if err := c.CreateTask(readyTask("A", 0, now)); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	got, err := c.Claim("agent-1", nil)
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if got.ClaimedBy != "agent-1" || got.ClaimedAt == nil || !got.ClaimedAt.Equal(now) {
		t.Errorf("claim fields not set together: by=%q at=%v", got.ClaimedBy, got.ClaimedAt)
	}

	stored, _ := store.GetTask("A")
	if stored.Status != models.TaskStatusInProgress {
		t.Errorf("stored status = %q, want in_progress", stored.Status)
	}
	if stored.ClaimedBy != "agent-1" || stored.ClaimedAt == nil {
		t.Error("claim fields not persisted")
	}
}

func TestClaim_ConcurrentSingleWinner(t *testing.T) {
	c, _ := newTestCoordinator(t, WithEventBuffer(256))

	if err := c.CreateTask(readyTask("A", 0, time.Now())); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	const claimants = 50
	winners := make(chan string, claimants)

	var g errgroup.Group
	for i := 0; i < claimants; i++ {
		g.Go(func() error {
			task, err := c.Claim("agent", nil)
			if errors.Is(err, ErrNoneAvailable) {
				return nil
			}
			if err != nil {
				return err
			}
			winners <- task.ID
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent claim failed: %v", err)
	}
	close(winners)

	count := 0
	for range winners {
		count++
	}
	if count != 1 {
		t.Errorf("expected exactly 1 successful claim, got %d", count)
	}
}

func TestClaim_ConcurrentDistinctTasks(t *testing.T) {
	c, _ := newTestCoordinator(t, WithEventBuffer(256))

	const n = 20
	base := time.Now()
	for i := 0; i < n; i++ {
		if err := c.CreateTask(readyTask(string(rune('a'+i)), 0, base.Add(time.Duration(i)*time.Millisecond))); err != nil {
			t.Fatalf("CreateTask failed: %v", err)
		}
	}

	claimed := make(chan string, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			task, err := c.Claim("agent", nil)
			if err != nil {
				return err
			}
			claimed <- task.ID
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent claim failed: %v", err)
	}
	close(claimed)

	seen := make(map[string]bool)
	for id := range claimed {
		if seen[id] {
			t.Errorf("task %s handed to two claimants", id)
		}
		seen[id] = true
	}
	if len(seen) != n {
		t.Errorf("expected %d distinct claims, got %d", n, len(seen))
	}
}

// lossyStore forces the first claim attempt to lose, simulating a
// concurrent claimant winning the row between the scan and the update.
type lossyStore struct {
	*state.MemoryStore
	stolen bool
}

func (s *lossyStore) ClaimTask(id, agentID string, at time.Time) (bool, error) {
	if !s.stolen {
		s.stolen = true
		return false, nil
	}
	return s.MemoryStore.ClaimTask(id, agentID, at)
}

func TestClaim_LostRaceFallsThroughToNextCandidate(t *testing.T) {
	store := &lossyStore{MemoryStore: state.NewMemoryStore()}
	c, err := New(store)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer c.Close()

	t0 := time.Now()
	if err := c.CreateTask(readyTask("first", 0, t0)); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if err := c.CreateTask(readyTask("second", 0, t0.Add(time.Second))); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	got, err := c.Claim("agent-1", nil)
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if got.ID != "second" {
		t.Errorf("claimed %s, want second (first was lost to a racer)", got.ID)
	}
}

func TestPeek_DoesNotMutate(t *testing.T) {
	c, store := newTestCoordinator(t)

	if err := c.CreateTask(readyTask("A", 0, time.Now())); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	got, err := c.Peek(nil)
	if err != nil {
		t.Fatalf("Peek failed: %v", err)
	}
	if got.ID != "A" {
		t.Errorf("peeked %s, want A", got.ID)
	}

	stored, _ := store.GetTask("A")
	if stored.Status != models.TaskStatusOpen || stored.ClaimedBy != "" {
		t.Errorf("Peek mutated the task: %+v", stored)
	}

	// Peek again returns the same task.
	again, err := c.Peek(nil)
	if err != nil {
		t.Fatalf("second Peek failed: %v", err)
	}
	if again.ID != "A" {
		t.Errorf("second peek = %s, want A", again.ID)
	}
}

func TestPeek_Empty(t *testing.T) {
	c, _ := newTestCoordinator(t)
	if _, err := c.Peek(nil); !errors.Is(err, ErrNoneAvailable) {
		t.Errorf("expected ErrNoneAvailable, got %v", err)
	}
}

type stubGate struct{ paused bool }

func (g *stubGate) Paused() bool { return g.paused }

func TestClaim_GatePausesHandOut(t *testing.T) {
	gate := &stubGate{}
	c, _ := newTestCoordinator(t, WithGate(gate))

	if err := c.CreateTask(readyTask("A", 0, time.Now())); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	gate.paused = true
	if _, err := c.Claim("agent-1", nil); !errors.Is(err, ErrNoneAvailable) {
		t.Errorf("expected ErrNoneAvailable while paused, got %v", err)
	}
	if _, err := c.Peek(nil); !errors.Is(err, ErrNoneAvailable) {
		t.Errorf("expected Peek to respect the gate, got %v", err)
	}

	gate.paused = false
	if _, err := c.Claim("agent-1", nil); err != nil {
		t.Errorf("expected claim to succeed after unpause, got %v", err)
	}
}

func TestAddDependency_CycleRejectedAndStateUnchanged(t *testing.T) {
	c, store := newTestCoordinator(t)

	if err := c.CreateTask(readyTask("A", 0, time.Now())); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	b := readyTask("B", 0, time.Now())
	b.DependsOn = []string{"A"}
	if err := c.CreateTask(b); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	err := c.AddDependency("A", "B")
	if !errors.Is(err, graph.ErrCycleDetected) {
		t.Fatalf("expected ErrCycleDetected, got %v", err)
	}

	// Neither the edge set nor any status changed.
	edges, _ := store.Edges()
	if len(edges["A"]) != 0 {
		t.Errorf("edge persisted despite rejection: %v", edges["A"])
	}
	a, _ := store.GetTask("A")
	if a.Status != models.TaskStatusOpen {
		t.Errorf("A status = %q, want open", a.Status)
	}
}

func TestAddDependency_SelfRejected(t *testing.T) {
	c, _ := newTestCoordinator(t)

	if err := c.CreateTask(readyTask("A", 0, time.Now())); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	if err := c.AddDependency("A", "A"); !errors.Is(err, graph.ErrSelfDependency) {
		t.Errorf("expected ErrSelfDependency, got %v", err)
	}
}

func TestAddDependency_BlocksOpenTask(t *testing.T) {
	c, store := newTestCoordinator(t)

	if err := c.CreateTask(readyTask("A", 0, time.Now())); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if err := c.CreateTask(readyTask("B", 0, time.Now())); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	if err := c.AddDependency("B", "A"); err != nil {
		t.Fatalf("AddDependency failed: %v", err)
	}

	got, _ := store.GetTask("B")
	if got.Status != models.TaskStatusBlocked {
		t.Errorf("B status = %q, want blocked", got.Status)
	}

	events := drainEvents(c)
	if countEvents(events, EventTaskBlocked, "B") != 1 {
		t.Errorf("expected one task_blocked event for B, got %d", countEvents(events, EventTaskBlocked, "B"))
	}
}

func TestAddDependency_OnCompletedPrereqKeepsTaskOpen(t *testing.T) {
	c, store := newTestCoordinator(t)

	if err := c.CreateTask(readyTask("A", 0, time.Now())); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if _, err := c.Claim("agent-1", nil); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if err := c.Complete("A", "agent-1"); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if err := c.CreateTask(readyTask("B", 0, time.Now())); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	if err := c.AddDependency("B", "A"); err != nil {
		t.Fatalf("AddDependency failed: %v", err)
	}

	got, _ := store.GetTask("B")
	if got.Status != models.TaskStatusOpen {
		t.Errorf("B status = %q, want open (prerequisite already completed)", got.Status)
	}
}

func TestAddDependency_ToCompletedTaskRejected(t *testing.T) {
	c, _ := newTestCoordinator(t)

	if err := c.CreateTask(readyTask("A", 0, time.Now())); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if err := c.CreateTask(readyTask("B", 0, time.Now())); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if _, err := c.Claim("agent-1", nil); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if err := c.Complete("A", "agent-1"); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if err := c.AddDependency("A", "B"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestRemoveDependency_ReopensTask(t *testing.T) {
	c, store := newTestCoordinator(t)

	if err := c.CreateTask(readyTask("A", 0, time.Now())); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	b := readyTask("B", 0, time.Now())
	b.DependsOn = []string{"A"}
	if err := c.CreateTask(b); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	if err := c.RemoveDependency("B", "A"); err != nil {
		t.Fatalf("RemoveDependency failed: %v", err)
	}

	got, _ := store.GetTask("B")
	if got.Status != models.TaskStatusOpen {
		t.Errorf("B status = %q, want open after dependency removal", got.Status)
	}
}

func TestHydration_RestoresGraphFromStore(t *testing.T) {
	store := state.NewMemoryStore()

	// Seed the store directly, as if a previous process wrote it.
	completed := time.Now()
	a := readyTask("A", 0, time.Now())
	a.Status = models.TaskStatusCompleted
	a.CompletedAt = &completed
	if err := store.CreateTask(a); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	b := readyTask("B", 0, time.Now())
	b.Status = models.TaskStatusOpen
	b.DependsOn = []string{"A"}
	if err := store.CreateTask(b); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	x := readyTask("X", 0, time.Now())
	x.Status = models.TaskStatusBlocked
	x.DependsOn = []string{"B"}
	if err := store.CreateTask(x); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	c, err := New(store)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer c.Close()

	// B's dependency (A) is completed, so B is claimable; X is not.
	got, err := c.Claim("agent-1", nil)
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if got.ID != "B" {
		t.Errorf("claimed %s, want B", got.ID)
	}
	if _, err := c.Claim("agent-1", nil); !errors.Is(err, ErrNoneAvailable) {
		t.Errorf("X should not be claimable, got %v", err)
	}
}
