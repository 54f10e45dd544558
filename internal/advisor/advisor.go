// Package advisor suggests a priority for a new task from the completion
// history of its category.
package advisor

import (
	"context"
	"math"

	"github.com/ldi/tasker/pkg/models"
)

// HistorySource is the read access the advisor needs.
type HistorySource interface {
	QueryHistory(ctx context.Context, category string) ([]*models.HistoryRecord, error)
}

type Basis string

const (
	// BasisHeuristic means the category had no history.
	BasisHeuristic Basis = "heuristic"
	// BasisHistory means at least one completed task exists in the category.
	BasisHistory Basis = "history"
)

// Suggestion is a suggested priority together with the figures it was
// derived from.
type Suggestion struct {
	Priority   int   `json:"priority"`
	Basis      Basis `json:"basis"`
	SampleSize int   `json:"sample_size"`

	// Mean absolute difference between past estimates and the given
	// estimate. Nil when no record could be compared.
	EstimateDeviation *float64 `json:"estimate_deviation,omitempty"`
	// Mean absolute difference between past deadline windows and the given
	// one. Nil when no record could be compared.
	DeadlineDeviation *float64 `json:"deadline_deviation,omitempty"`
}

type Advisor struct {
	history HistorySource
}

func New(history HistorySource) *Advisor {
	return &Advisor{history: history}
}

// Suggest returns a priority in [1, 5] for a task in category.
// deadlineDays is the number of days until the deadline, nil if none.
func (a *Advisor) Suggest(ctx context.Context, category string, estimatedHours float64, deadlineDays *int) (int, error) {
	s, err := a.Explain(ctx, category, estimatedHours, deadlineDays)
	if err != nil {
		return 0, err
	}
	return s.Priority, nil
}

// Explain is Suggest plus the history aggregates behind the answer.
func (a *Advisor) Explain(ctx context.Context, category string, estimatedHours float64, deadlineDays *int) (*Suggestion, error) {
	records, err := a.history.QueryHistory(ctx, category)
	if err != nil {
		return nil, err
	}

	if len(records) == 0 {
		return &Suggestion{
			Priority: clamp(heuristicPriority(estimatedHours, deadlineDays)),
			Basis:    BasisHeuristic,
		}, nil
	}

	s := &Suggestion{
		Priority:   clamp(historyPriority(estimatedHours, deadlineDays)),
		Basis:      BasisHistory,
		SampleSize: len(records),
	}

	var estSum, dlSum float64
	var estN, dlN int
	for _, r := range records {
		if r.EstimatedHours != nil && estimatedHours > 0 {
			estSum += math.Abs(*r.EstimatedHours - estimatedHours)
			estN++
		}
		if r.DaysToDeadline != nil && deadlineDays != nil {
			dlSum += math.Abs(float64(*r.DaysToDeadline - *deadlineDays))
			dlN++
		}
	}
	if estN > 0 {
		v := estSum / float64(estN)
		s.EstimateDeviation = &v
	}
	if dlN > 0 {
		v := dlSum / float64(dlN)
		s.DeadlineDeviation = &v
	}

	return s, nil
}

// heuristicPriority is used when a category has no history yet.
func heuristicPriority(estimatedHours float64, deadlineDays *int) int {
	switch {
	case deadlineDays != nil && *deadlineDays <= 3:
		return 1
	case deadlineDays != nil && *deadlineDays <= 7:
		return 2
	case estimatedHours > 15:
		return 2
	case estimatedHours > 5:
		return 3
	default:
		return 4
	}
}

// historyPriority widens the deadline windows once a category has history.
func historyPriority(estimatedHours float64, deadlineDays *int) int {
	switch {
	case deadlineDays != nil && *deadlineDays <= 7:
		return 1
	case deadlineDays != nil && *deadlineDays <= 14:
		return 2
	case estimatedHours > 20:
		return 2
	case estimatedHours > 10:
		return 3
	default:
		return 4
	}
}

func clamp(p int) int {
	return max(models.MinPriority, min(models.MaxPriority, p))
}
