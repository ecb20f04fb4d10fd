package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/taskrelay/relay/pkg/models"
)

const taskColumns = `id, title, description, status, priority, lane,
	required_capabilities, claimed_by, claimed_at, created_at, completed_at`

// CreateTask persists a new task and its declared dependency edges in a
// single transaction.
func (db *DB) CreateTask(t *models.Task) error {
	caps, err := marshalTags(t.RequiredCapabilities)
	if err != nil {
		return fmt.Errorf("encode capabilities: %w", err)
	}

	return db.Transaction(func(tx *sql.Tx) error {
		var exists int
		row := tx.QueryRow("SELECT COUNT(*) FROM tasks WHERE id = ?", t.ID)
		if err := row.Scan(&exists); err != nil {
			return fmt.Errorf("check task id: %w", err)
		}
		if exists > 0 {
			return fmt.Errorf("task %s: %w", t.ID, ErrDuplicateTask)
		}

		_, err := tx.Exec(`
			INSERT INTO tasks (id, title, description, status, priority, lane,
				required_capabilities, claimed_by, claimed_at, created_at, completed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, t.ID, t.Title, t.Description, string(t.Status), t.Priority, t.Column,
			caps, nullableString(t.ClaimedBy), nullableTime(t.ClaimedAt),
			t.CreatedAt.UnixNano(), nullableTime(t.CompletedAt))
		if err != nil {
			return fmt.Errorf("insert task: %w", err)
		}

		for _, dep := range t.DependsOn {
			if _, err := tx.Exec(`
				INSERT OR IGNORE INTO task_deps (task_id, prereq_id) VALUES (?, ?)
			`, t.ID, dep); err != nil {
				return fmt.Errorf("insert edge %s -> %s: %w", t.ID, dep, err)
			}
		}
		return nil
	})
}

// GetTask retrieves a task by ID, including its dependency list.
func (db *DB) GetTask(id string) (*models.Task, error) {
	row := db.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)

	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("task %s: %w", id, ErrTaskNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}

	deps, err := db.dependenciesOf(id)
	if err != nil {
		return nil, err
	}
	t.DependsOn = deps
	return t, nil
}

// ListTasks returns all tasks, optionally filtered by status.
// Dependency lists are not populated; callers that need edges use the
// EdgeStore methods.
func (db *DB) ListTasks(status *models.TaskStatus) ([]models.Task, error) {
	var rows *sql.Rows
	var err error

	if status != nil {
		rows, err = db.Query(`
			SELECT `+taskColumns+` FROM tasks WHERE status = ? ORDER BY created_at ASC
		`, string(*status))
	} else {
		rows, err = db.Query(`
			SELECT ` + taskColumns + ` FROM tasks ORDER BY created_at ASC
		`)
	}
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	return collectTasks(rows)
}

// ListClaimable returns open tasks in the given column in claim-ranking
// order: ascending priority, then ascending creation time.
func (db *DB) ListClaimable(column string) ([]models.Task, error) {
	rows, err := db.Query(`
		SELECT `+taskColumns+` FROM tasks
		WHERE lane = ? AND status = ?
		ORDER BY priority ASC, created_at ASC
	`, column, string(models.TaskStatusOpen))
	if err != nil {
		return nil, fmt.Errorf("list claimable: %w", err)
	}
	defer rows.Close()

	return collectTasks(rows)
}

// ClaimTask performs the conditional claim update. The WHERE clause on
// status is what makes concurrent claims safe: of N racing agents,
// exactly one UPDATE matches the open row.
func (db *DB) ClaimTask(id, agentID string, at time.Time) (bool, error) {
	res, err := db.Exec(`
		UPDATE tasks
		SET status = ?, claimed_by = ?, claimed_at = ?
		WHERE id = ? AND status = ?
	`, string(models.TaskStatusInProgress), agentID, formatTime(at),
		id, string(models.TaskStatusOpen))
	if err != nil {
		return false, fmt.Errorf("claim task: %w", err)
	}
	return oneRowChanged(res)
}

// CompleteTask conditionally transitions the task to completed.
func (db *DB) CompleteTask(id string, from models.TaskStatus, at time.Time) (bool, error) {
	res, err := db.Exec(`
		UPDATE tasks
		SET status = ?, completed_at = ?
		WHERE id = ? AND status = ?
	`, string(models.TaskStatusCompleted), formatTime(at), id, string(from))
	if err != nil {
		return false, fmt.Errorf("complete task: %w", err)
	}
	return oneRowChanged(res)
}

// TransitionStatus conditionally moves the task between statuses.
func (db *DB) TransitionStatus(id string, from, to models.TaskStatus) (bool, error) {
	res, err := db.Exec(`
		UPDATE tasks SET status = ? WHERE id = ? AND status = ?
	`, string(to), id, string(from))
	if err != nil {
		return false, fmt.Errorf("transition status: %w", err)
	}
	return oneRowChanged(res)
}

// AddEdge records a dependency edge.
func (db *DB) AddEdge(taskID, prereqID string) error {
	_, err := db.Exec(`
		INSERT OR IGNORE INTO task_deps (task_id, prereq_id) VALUES (?, ?)
	`, taskID, prereqID)
	if err != nil {
		return fmt.Errorf("add edge: %w", err)
	}
	return nil
}

// RemoveEdge deletes a dependency edge if present.
func (db *DB) RemoveEdge(taskID, prereqID string) error {
	_, err := db.Exec(`
		DELETE FROM task_deps WHERE task_id = ? AND prereq_id = ?
	`, taskID, prereqID)
	if err != nil {
		return fmt.Errorf("remove edge: %w", err)
	}
	return nil
}

// Edges returns the full edge set keyed by task ID.
func (db *DB) Edges() (map[string][]string, error) {
	rows, err := db.Query("SELECT task_id, prereq_id FROM task_deps")
	if err != nil {
		return nil, fmt.Errorf("list edges: %w", err)
	}
	defer rows.Close()

	edges := make(map[string][]string)
	for rows.Next() {
		var taskID, prereqID string
		if err := rows.Scan(&taskID, &prereqID); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		edges[taskID] = append(edges[taskID], prereqID)
	}
	return edges, rows.Err()
}

// DependentsOf returns task IDs that depend on the given task.
// Served by the index on prereq_id.
func (db *DB) DependentsOf(taskID string) ([]string, error) {
	rows, err := db.Query("SELECT task_id FROM task_deps WHERE prereq_id = ?", taskID)
	if err != nil {
		return nil, fmt.Errorf("list dependents: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan dependent: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// dependenciesOf returns the prerequisite IDs of a task.
func (db *DB) dependenciesOf(taskID string) ([]string, error) {
	rows, err := db.Query("SELECT prereq_id FROM task_deps WHERE task_id = ?", taskID)
	if err != nil {
		return nil, fmt.Errorf("list dependencies: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan dependency: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// scanner abstracts *sql.Row and *sql.Rows for scanTask.
type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (*models.Task, error) {
	var t models.Task
	var description, caps, claimedBy sql.NullString
	var claimedAt, completedAt sql.NullString
	var createdAt int64

	err := row.Scan(&t.ID, &t.Title, &description, &t.Status, &t.Priority,
		&t.Column, &caps, &claimedBy, &claimedAt, &createdAt, &completedAt)
	if err != nil {
		return nil, err
	}

	t.Description = description.String
	t.ClaimedBy = claimedBy.String
	t.ClaimedAt = parseNullableTime(claimedAt)
	t.CreatedAt = time.Unix(0, createdAt).UTC()
	t.CompletedAt = parseNullableTime(completedAt)

	if caps.Valid && caps.String != "" {
		if err := json.Unmarshal([]byte(caps.String), &t.RequiredCapabilities); err != nil {
			return nil, fmt.Errorf("decode capabilities: %w", err)
		}
	}
	return &t, nil
}

func collectTasks(rows *sql.Rows) ([]models.Task, error) {
	var tasks []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

func marshalTags(tags []string) (string, error) {
	if len(tags) == 0 {
		return "", nil
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func oneRowChanged(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	return n == 1, nil
}
