package db

import (
	"context"

	"github.com/ldi/tasker/pkg/models"
)

const historyColumns = `id, task_id, category, estimated_hours, actual_hours, days_to_deadline, completion_time_hours`

// AppendHistory inserts a completion record. Records are never updated.
func (db *DB) AppendHistory(ctx context.Context, r *models.HistoryRecord) error {
	if err := appendHistory(ctx, db.DB, r); err != nil {
		return err
	}

	db.triggerChange(ctx)
	return nil
}

// QueryHistory returns every history record for a category.
func (db *DB) QueryHistory(ctx context.Context, category string) ([]*models.HistoryRecord, error) {
	return queryHistory(ctx, db.DB, `SELECT `+historyColumns+` FROM task_history WHERE category = ? ORDER BY id`, category)
}

// ListHistory returns every history record, oldest first.
func (db *DB) ListHistory(ctx context.Context) ([]*models.HistoryRecord, error) {
	return queryHistory(ctx, db.DB, `SELECT `+historyColumns+` FROM task_history ORDER BY id`)
}

func (tx *Tx) AppendHistory(ctx context.Context, r *models.HistoryRecord) error {
	return appendHistory(ctx, tx.exec, r)
}

func (tx *Tx) QueryHistory(ctx context.Context, category string) ([]*models.HistoryRecord, error) {
	return queryHistory(ctx, tx.exec, `SELECT `+historyColumns+` FROM task_history WHERE category = ? ORDER BY id`, category)
}

func (tx *Tx) ListHistory(ctx context.Context) ([]*models.HistoryRecord, error) {
	return queryHistory(ctx, tx.exec, `SELECT `+historyColumns+` FROM task_history ORDER BY id`)
}

// CountHistory returns the number of history records for a task.
func (tx *Tx) CountHistory(ctx context.Context, taskID int64) (int, error) {
	var n int
	err := tx.exec.QueryRowContext(ctx, `SELECT COUNT(*) FROM task_history WHERE task_id = ?`, taskID).Scan(&n)
	if err != nil {
		return 0, models.StorageErr("failed to count history", err)
	}
	return n, nil
}

func appendHistory(ctx context.Context, exec executor, r *models.HistoryRecord) error {
	var days any
	if r.DaysToDeadline != nil {
		days = *r.DaysToDeadline
	}

	query := `
		INSERT INTO task_history (task_id, category, estimated_hours, actual_hours,
		                          days_to_deadline, completion_time_hours)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	res, err := exec.ExecContext(ctx, query,
		r.TaskID, r.Category, nullFloat(r.EstimatedHours), nullFloat(r.ActualHours), days, r.CompletionTimeHours,
	)
	if err != nil {
		return models.StorageErr("failed to append history", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return models.StorageErr("failed to read history id", err)
	}
	r.ID = id
	return nil
}

func queryHistory(ctx context.Context, exec executor, query string, args ...any) ([]*models.HistoryRecord, error) {
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, models.StorageErr("failed to query history", err)
	}
	defer rows.Close()

	records := []*models.HistoryRecord{}
	for rows.Next() {
		r := &models.HistoryRecord{}
		err := rows.Scan(
			&r.ID, &r.TaskID, &r.Category, &r.EstimatedHours, &r.ActualHours,
			&r.DaysToDeadline, &r.CompletionTimeHours,
		)
		if err != nil {
			return nil, models.StorageErr("failed to scan history", err)
		}
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, models.StorageErr("rows error", err)
	}

	return records, nil
}
