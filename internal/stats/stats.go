// Package stats computes summary statistics over the task store.
package stats

import (
	"context"
	"math"
	"time"

	"github.com/ldi/tasker/internal/db"
	"github.com/ldi/tasker/pkg/models"
)

type Aggregator struct {
	db  *db.DB
	now func() time.Time
}

func New(database *db.DB) *Aggregator {
	return &Aggregator{db: database, now: time.Now}
}

// WithClock replaces the time source used for the overdue cutoff.
func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	a.now = now
	return a
}

// Compute reads every figure from one transaction so the counts and the
// overdue cutoff agree with each other.
func (a *Aggregator) Compute(ctx context.Context) (*models.Stats, error) {
	now := a.now()
	st := &models.Stats{
		ByStatus:   make(map[models.TaskStatus]int),
		ByCategory: make(map[string]int),
	}
	for _, s := range models.Statuses {
		st.ByStatus[s] = 0
	}

	err := a.db.View(ctx, func(tx *db.Tx) error {
		byStatus, err := tx.CountTasksByStatus(ctx)
		if err != nil {
			return err
		}
		for s, n := range byStatus {
			st.ByStatus[s] = n
		}

		if st.ByCategory, err = tx.CountTasksByCategory(ctx); err != nil {
			return err
		}

		avg, err := tx.AverageCompletionHours(ctx)
		if err != nil {
			return err
		}
		st.AvgCompletionHours = math.Round(avg*100) / 100

		st.OverdueCount, err = tx.CountOverdue(ctx, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	return st, nil
}
