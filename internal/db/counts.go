package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/ldi/tasker/pkg/models"
)

// CountTasksByStatus groups tasks by status.
func (tx *Tx) CountTasksByStatus(ctx context.Context) (map[models.TaskStatus]int, error) {
	counts := make(map[models.TaskStatus]int)
	err := tx.groupCount(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`, func(key string, n int) {
		counts[models.TaskStatus(key)] = n
	})
	return counts, err
}

// CountTasksByCategory groups tasks by category.
func (tx *Tx) CountTasksByCategory(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int)
	err := tx.groupCount(ctx, `SELECT category, COUNT(*) FROM tasks GROUP BY category`, func(key string, n int) {
		counts[key] = n
	})
	return counts, err
}

// AverageCompletionHours averages completion_time_hours over all history.
// It returns 0 when there is no history.
func (tx *Tx) AverageCompletionHours(ctx context.Context) (float64, error) {
	var avg sql.NullFloat64
	err := tx.exec.QueryRowContext(ctx, `SELECT AVG(completion_time_hours) FROM task_history`).Scan(&avg)
	if err != nil {
		return 0, models.StorageErr("failed to average completion time", err)
	}
	return avg.Float64, nil
}

// CountOverdue counts unfinished tasks whose deadline is strictly before now.
func (tx *Tx) CountOverdue(ctx context.Context, now time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM tasks
		WHERE deadline IS NOT NULL AND deadline < ? AND status != 'completed'
	`
	var n int
	if err := tx.exec.QueryRowContext(ctx, query, now.UTC()).Scan(&n); err != nil {
		return 0, models.StorageErr("failed to count overdue tasks", err)
	}
	return n, nil
}

func (tx *Tx) groupCount(ctx context.Context, query string, add func(key string, n int)) error {
	rows, err := tx.exec.QueryContext(ctx, query)
	if err != nil {
		return models.StorageErr("failed to count tasks", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return models.StorageErr("failed to scan count", err)
		}
		add(key, n)
	}

	if err := rows.Err(); err != nil {
		return models.StorageErr("rows error", err)
	}
	return nil
}
