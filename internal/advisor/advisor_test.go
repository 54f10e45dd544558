package advisor

import (
	"context"
	"errors"
	"testing"

	"github.com/ldi/tasker/pkg/models"
)

type fakeHistory map[string][]*models.HistoryRecord

func (f fakeHistory) QueryHistory(ctx context.Context, category string) ([]*models.HistoryRecord, error) {
	return f[category], nil
}

type failingHistory struct{}

func (failingHistory) QueryHistory(ctx context.Context, category string) ([]*models.HistoryRecord, error) {
	return nil, models.StorageErr("query failed", errors.New("disk gone"))
}

func ptr[T any](v T) *T { return &v }

func TestSuggestHeuristic(t *testing.T) {
	a := New(fakeHistory{})
	ctx := context.Background()

	tests := []struct {
		name     string
		hours    float64
		deadline *int
		want     int
	}{
		{"deadline in two days", 0, ptr(2), 1},
		{"deadline in three days", 40, ptr(3), 1},
		{"deadline today", 0, ptr(0), 1},
		{"deadline passed", 0, ptr(-4), 1},
		{"deadline in a week", 0, ptr(7), 2},
		{"far deadline large task", 20, ptr(30), 2},
		{"no deadline large task", 20, nil, 2},
		{"no deadline medium task", 10, nil, 3},
		{"exactly five hours", 5, nil, 4},
		{"no deadline small task", 3, nil, 4},
		{"nothing known", 0, nil, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := a.Suggest(ctx, "work", tt.hours, tt.deadline)
			if err != nil {
				t.Fatalf("Suggest failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestSuggestWithHistory(t *testing.T) {
	a := New(fakeHistory{
		"work": {
			{Category: "work", EstimatedHours: ptr(4.0), DaysToDeadline: ptr(10), CompletionTimeHours: 12},
			{Category: "work", EstimatedHours: ptr(8.0), CompletionTimeHours: 30},
		},
	})
	ctx := context.Background()

	tests := []struct {
		name     string
		hours    float64
		deadline *int
		want     int
	}{
		{"deadline in a week", 0, ptr(7), 1},
		{"deadline in two weeks", 0, ptr(14), 2},
		{"very large task", 25, nil, 2},
		{"large task", 15, nil, 3},
		{"medium task", 10, ptr(30), 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := a.Suggest(ctx, "work", tt.hours, tt.deadline)
			if err != nil {
				t.Fatalf("Suggest failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestExplain(t *testing.T) {
	a := New(fakeHistory{
		"work": {
			{Category: "work", EstimatedHours: ptr(4.0), DaysToDeadline: ptr(10), CompletionTimeHours: 12},
			{Category: "work", EstimatedHours: ptr(8.0), CompletionTimeHours: 30},
		},
	})
	ctx := context.Background()

	s, err := a.Explain(ctx, "work", 6, ptr(4))
	if err != nil {
		t.Fatalf("Explain failed: %v", err)
	}
	if s.Basis != BasisHistory || s.SampleSize != 2 {
		t.Errorf("unexpected basis %s / sample size %d", s.Basis, s.SampleSize)
	}
	if s.EstimateDeviation == nil || *s.EstimateDeviation != 2 {
		t.Errorf("expected estimate deviation 2, got %v", s.EstimateDeviation)
	}
	if s.DeadlineDeviation == nil || *s.DeadlineDeviation != 6 {
		t.Errorf("expected deadline deviation 6, got %v", s.DeadlineDeviation)
	}

	s, err = a.Explain(ctx, "work", 0, nil)
	if err != nil {
		t.Fatalf("Explain failed: %v", err)
	}
	if s.EstimateDeviation != nil || s.DeadlineDeviation != nil {
		t.Errorf("expected no deviations without inputs, got %+v", s)
	}

	s, err = a.Explain(ctx, "home", 6, ptr(4))
	if err != nil {
		t.Fatalf("Explain failed: %v", err)
	}
	if s.Basis != BasisHeuristic || s.SampleSize != 0 {
		t.Errorf("expected heuristic basis for unknown category, got %+v", s)
	}
}

func TestSuggestPropagatesErrors(t *testing.T) {
	a := New(failingHistory{})
	if _, err := a.Suggest(context.Background(), "work", 1, nil); !errors.Is(err, models.ErrStorage) {
		t.Errorf("expected ErrStorage, got %v", err)
	}
}

func TestClamp(t *testing.T) {
	for in, want := range map[int]int{-3: 1, 0: 1, 1: 1, 3: 3, 5: 5, 9: 5} {
		if got := clamp(in); got != want {
			t.Errorf("clamp(%d) = %d, want %d", in, got, want)
		}
	}
}
