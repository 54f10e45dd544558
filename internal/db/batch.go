package db

import (
	"context"
	"fmt"

	"github.com/ldi/tasker/pkg/models"
)

// CommitBatch writes every task staged under sessionID in one transaction
// and returns the new IDs in staging order. If any insert fails nothing is
// written and the staged tasks are dropped.
func (db *DB) CommitBatch(ctx context.Context, sessionID string) ([]int64, error) {
	items := db.Staging.GetAndClear(sessionID)
	if len(items.Tasks) == 0 {
		return []int64{}, nil
	}

	ids := make([]int64, 0, len(items.Tasks))
	err := db.WithTx(ctx, func(tx *Tx) error {
		for i, t := range items.Tasks {
			if err := tx.CreateTask(ctx, t); err != nil {
				return fmt.Errorf("failed to create staged task %d (%q): %w", i+1, t.Title, err)
			}
			ids = append(ids, t.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return ids, nil
}

// StagedTasks returns the tasks currently staged under sessionID.
func (db *DB) StagedTasks(sessionID string) []*models.Task {
	return db.Staging.Peek(sessionID).Tasks
}
