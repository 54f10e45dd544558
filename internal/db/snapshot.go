package db

import (
	"context"

	"github.com/ldi/tasker/internal/exchange"
	"github.com/ldi/tasker/pkg/models"
)

// EnableAutoSnapshot sets up a hook that exports every task as JSON to
// path after each successful write. Export failures are passed to onErr
// (which may be nil); the write itself has already committed.
func (db *DB) EnableAutoSnapshot(path string, onErr func(error)) {
	db.SetOnChange(func(ctx context.Context) {
		if err := db.ExportSnapshot(ctx, path); err != nil && onErr != nil {
			onErr(err)
		}
	})
}

// ExportSnapshot writes the full task list to path in the export JSON format.
func (db *DB) ExportSnapshot(ctx context.Context, path string) error {
	tasks, err := db.ListTasks(ctx, models.TaskFilter{})
	if err != nil {
		return err
	}
	return exchange.WriteFile(path, exchange.FormatJSON, tasks)
}
