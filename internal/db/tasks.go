package db

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/ldi/tasker/pkg/models"
)

const taskColumns = `t.id, t.title, t.description, t.category, t.priority, t.status,
		       t.deadline, t.created_at, t.completed_at, t.estimated_hours, t.actual_hours`

// CreateTask inserts a new task and its tags in one transaction.
// On success t.ID, t.CreatedAt and the defaulted fields are filled in.
func (db *DB) CreateTask(ctx context.Context, t *models.Task) error {
	return db.WithTx(ctx, func(tx *Tx) error {
		return tx.CreateTask(ctx, t)
	})
}

// GetTask retrieves a task and its tags by ID.
func (db *DB) GetTask(ctx context.Context, id int64) (*models.Task, error) {
	return getTask(ctx, db.DB, id)
}

// ListTasks returns tasks matching the filter ordered by priority, then
// deadline with undated tasks last.
func (db *DB) ListTasks(ctx context.Context, filter models.TaskFilter) ([]*models.Task, error) {
	var tasks []*models.Task
	err := db.View(ctx, func(tx *Tx) error {
		var err error
		tasks, err = tx.ListTasks(ctx, filter)
		return err
	})
	return tasks, err
}

// UpdateTask writes the non-nil fields of u.
func (db *DB) UpdateTask(ctx context.Context, id int64, u models.TaskUpdate) error {
	if err := updateTask(ctx, db.DB, id, u); err != nil {
		return err
	}

	db.triggerChange(ctx)
	return nil
}

// DeleteTask removes a task and its tags. History rows are kept.
func (db *DB) DeleteTask(ctx context.Context, id int64) error {
	return db.WithTx(ctx, func(tx *Tx) error {
		return tx.DeleteTask(ctx, id)
	})
}

func (tx *Tx) CreateTask(ctx context.Context, t *models.Task) error {
	return createTask(ctx, tx.exec, t)
}

func (tx *Tx) GetTask(ctx context.Context, id int64) (*models.Task, error) {
	return getTask(ctx, tx.exec, id)
}

func (tx *Tx) ListTasks(ctx context.Context, filter models.TaskFilter) ([]*models.Task, error) {
	return listTasks(ctx, tx.exec, filter)
}

func (tx *Tx) UpdateTask(ctx context.Context, id int64, u models.TaskUpdate) error {
	return updateTask(ctx, tx.exec, id, u)
}

// MarkCompleted moves a task to completed. completedAt is only written
// when the task has no completion time yet; actualHours only when non-nil.
func (tx *Tx) MarkCompleted(ctx context.Context, id int64, completedAt time.Time, actualHours *float64) error {
	query := `
		UPDATE tasks
		SET status = 'completed',
		    completed_at = COALESCE(completed_at, ?),
		    actual_hours = COALESCE(?, actual_hours)
		WHERE id = ?
	`
	res, err := tx.exec.ExecContext(ctx, query, completedAt.UTC(), nullFloat(actualHours), id)
	if err != nil {
		return models.StorageErr("failed to complete task", err)
	}
	return requireRow(res, id)
}

func (tx *Tx) DeleteTask(ctx context.Context, id int64) error {
	// tags cascade through the foreign key; the explicit delete keeps the
	// behavior independent of the foreign_keys pragma.
	if _, err := tx.exec.ExecContext(ctx, `DELETE FROM tags WHERE task_id = ?`, id); err != nil {
		return models.StorageErr("failed to delete tags", err)
	}

	res, err := tx.exec.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return models.StorageErr("failed to delete task", err)
	}
	return requireRow(res, id)
}

func createTask(ctx context.Context, exec executor, t *models.Task) error {
	if strings.TrimSpace(t.Title) == "" {
		return models.Invalidf("title must not be empty")
	}
	if t.Category == "" {
		t.Category = models.DefaultCategory
	}
	if t.Priority == 0 {
		t.Priority = models.DefaultPriority
	}
	if t.Status == "" {
		t.Status = models.TaskStatusPending
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	t.CreatedAt = t.CreatedAt.UTC()

	query := `
		INSERT INTO tasks (title, description, category, priority, status, deadline,
		                   created_at, completed_at, estimated_hours, actual_hours)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	res, err := exec.ExecContext(ctx, query,
		t.Title, t.Description, t.Category, t.Priority, t.Status, nullTime(t.Deadline),
		t.CreatedAt, nullTime(t.CompletedAt), nullFloat(t.EstimatedHours), nullFloat(t.ActualHours),
	)
	if err != nil {
		return models.StorageErr("failed to create task", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return models.StorageErr("failed to read task id", err)
	}
	t.ID = id

	if t.Tags == nil {
		t.Tags = []string{}
	}
	for _, tag := range t.Tags {
		if _, err := exec.ExecContext(ctx, `INSERT INTO tags (task_id, tag) VALUES (?, ?)`, id, tag); err != nil {
			return models.StorageErr("failed to add tag", err)
		}
	}
	return nil
}

func getTask(ctx context.Context, exec executor, id int64) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks t WHERE t.id = ?`
	t, err := scanTask(exec.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, models.TaskNotFound(id)
	}
	if err != nil {
		return nil, models.StorageErr("failed to get task", err)
	}

	rows, err := exec.QueryContext(ctx, `SELECT tag FROM tags WHERE task_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, models.StorageErr("failed to get tags", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, models.StorageErr("failed to scan tag", err)
		}
		t.Tags = append(t.Tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, models.StorageErr("rows error", err)
	}
	return t, nil
}

func listTasks(ctx context.Context, exec executor, filter models.TaskFilter) ([]*models.Task, error) {
	where := " WHERE 1=1"
	args := []any{}

	if filter.Status != nil {
		where += " AND t.status = ?"
		args = append(args, *filter.Status)
	}

	if filter.Category != nil {
		where += " AND t.category = ?"
		args = append(args, *filter.Category)
	}

	query := `SELECT ` + taskColumns + ` FROM tasks t` + where +
		` ORDER BY t.priority ASC, t.deadline IS NULL, t.deadline ASC, t.id ASC`

	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, models.StorageErr("failed to list tasks", err)
	}
	defer rows.Close()

	tasks := []*models.Task{}
	byID := make(map[int64]*models.Task)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, models.StorageErr("failed to scan task", err)
		}
		tasks = append(tasks, t)
		byID[t.ID] = t
	}
	if err := rows.Err(); err != nil {
		return nil, models.StorageErr("rows error", err)
	}
	rows.Close()

	tagRows, err := exec.QueryContext(ctx,
		`SELECT g.task_id, g.tag FROM tags g JOIN tasks t ON t.id = g.task_id`+where+` ORDER BY g.id`, args...)
	if err != nil {
		return nil, models.StorageErr("failed to list tags", err)
	}
	defer tagRows.Close()

	for tagRows.Next() {
		var taskID int64
		var tag string
		if err := tagRows.Scan(&taskID, &tag); err != nil {
			return nil, models.StorageErr("failed to scan tag", err)
		}
		if t, ok := byID[taskID]; ok {
			t.Tags = append(t.Tags, tag)
		}
	}
	if err := tagRows.Err(); err != nil {
		return nil, models.StorageErr("rows error", err)
	}

	return tasks, nil
}

func updateTask(ctx context.Context, exec executor, id int64, u models.TaskUpdate) error {
	var sets []string
	var args []any

	if u.Title != nil {
		if strings.TrimSpace(*u.Title) == "" {
			return models.Invalidf("title must not be empty")
		}
		sets = append(sets, "title = ?")
		args = append(args, *u.Title)
	}
	if u.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *u.Description)
	}
	if u.Category != nil {
		sets = append(sets, "category = ?")
		args = append(args, *u.Category)
	}
	if u.Priority != nil {
		sets = append(sets, "priority = ?")
		args = append(args, *u.Priority)
	}
	if u.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *u.Status)
	}
	if u.Deadline != nil {
		sets = append(sets, "deadline = ?")
		args = append(args, u.Deadline.UTC())
	} else if u.ClearDeadline {
		sets = append(sets, "deadline = NULL")
	}
	if u.EstimatedHours != nil {
		sets = append(sets, "estimated_hours = ?")
		args = append(args, *u.EstimatedHours)
	}
	if u.ActualHours != nil {
		sets = append(sets, "actual_hours = ?")
		args = append(args, *u.ActualHours)
	}

	if len(sets) == 0 {
		// Nothing to write, but a missing task is still an error.
		_, err := getTask(ctx, exec, id)
		return err
	}

	query := "UPDATE tasks SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	args = append(args, id)

	res, err := exec.ExecContext(ctx, query, args...)
	if err != nil {
		return models.StorageErr("failed to update task", err)
	}
	return requireRow(res, id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	t := &models.Task{Tags: []string{}}
	err := row.Scan(
		&t.ID, &t.Title, &t.Description, &t.Category, &t.Priority, &t.Status,
		&t.Deadline, &t.CreatedAt, &t.CompletedAt, &t.EstimatedHours, &t.ActualHours,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func requireRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return models.StorageErr("failed to get rows affected", err)
	}
	if n == 0 {
		return models.TaskNotFound(id)
	}
	return nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
