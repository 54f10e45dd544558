package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ldi/tasker/pkg/models"
)

func ptr[T any](v T) *T { return &v }

func TestTaskCRUD(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	deadline := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	task := &models.Task{
		Title:          "Write report",
		Description:    "quarterly",
		Category:       "work",
		Priority:       2,
		Deadline:       &deadline,
		EstimatedHours: ptr(3.5),
		Tags:           []string{"finance", "urgent"},
	}

	t.Run("Create", func(t *testing.T) {
		if err := db.CreateTask(ctx, task); err != nil {
			t.Fatalf("CreateTask failed: %v", err)
		}
		if task.ID == 0 {
			t.Error("expected ID to be set")
		}
		if task.Status != models.TaskStatusPending {
			t.Errorf("expected pending status, got %s", task.Status)
		}
		if task.CreatedAt.IsZero() || task.CreatedAt.Location() != time.UTC {
			t.Errorf("expected UTC created_at, got %v", task.CreatedAt)
		}
	})

	t.Run("Get", func(t *testing.T) {
		got, err := db.GetTask(ctx, task.ID)
		if err != nil {
			t.Fatalf("GetTask failed: %v", err)
		}
		if got.Title != task.Title || got.Category != "work" || got.Priority != 2 {
			t.Errorf("unexpected task: %+v", got)
		}
		if got.Deadline == nil || !got.Deadline.Equal(deadline) {
			t.Errorf("expected deadline %v, got %v", deadline, got.Deadline)
		}
		if got.EstimatedHours == nil || *got.EstimatedHours != 3.5 {
			t.Errorf("expected estimated 3.5, got %v", got.EstimatedHours)
		}
		if got.ActualHours != nil || got.CompletedAt != nil {
			t.Errorf("expected nil actual hours and completed_at")
		}
		if len(got.Tags) != 2 || got.Tags[0] != "finance" || got.Tags[1] != "urgent" {
			t.Errorf("expected tags [finance urgent], got %v", got.Tags)
		}
	})

	t.Run("Update", func(t *testing.T) {
		u := models.TaskUpdate{
			Title:         ptr("Write final report"),
			Status:        ptr(models.TaskStatusInProgress),
			ClearDeadline: true,
		}
		if err := db.UpdateTask(ctx, task.ID, u); err != nil {
			t.Fatalf("UpdateTask failed: %v", err)
		}

		got, _ := db.GetTask(ctx, task.ID)
		if got.Title != "Write final report" || got.Status != models.TaskStatusInProgress {
			t.Errorf("update not applied: %+v", got)
		}
		if got.Deadline != nil {
			t.Errorf("expected deadline cleared, got %v", got.Deadline)
		}
		if got.Description != "quarterly" {
			t.Errorf("untouched field changed: %q", got.Description)
		}
	})

	t.Run("UpdateMissing", func(t *testing.T) {
		err := db.UpdateTask(ctx, 999, models.TaskUpdate{Title: ptr("x")})
		if !errors.Is(err, models.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		err = db.UpdateTask(ctx, 999, models.TaskUpdate{})
		if !errors.Is(err, models.ErrNotFound) {
			t.Errorf("expected ErrNotFound for empty update, got %v", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := db.DeleteTask(ctx, task.ID); err != nil {
			t.Fatalf("DeleteTask failed: %v", err)
		}
		if _, err := db.GetTask(ctx, task.ID); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}

		var n int
		db.QueryRow("SELECT COUNT(*) FROM tags WHERE task_id = ?", task.ID).Scan(&n)
		if n != 0 {
			t.Errorf("expected tags removed, got %d", n)
		}

		if err := db.DeleteTask(ctx, task.ID); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("expected ErrNotFound on second delete, got %v", err)
		}
	})
}

func TestCreateTaskRejectsEmptyTitle(t *testing.T) {
	db := newTestDB(t)
	err := db.CreateTask(context.Background(), &models.Task{Title: "   "})
	if !errors.Is(err, models.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestListTasksOrderAndFilter(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	early := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	create := func(title, category string, priority int, deadline *time.Time, tags ...string) *models.Task {
		task := &models.Task{Title: title, Category: category, Priority: priority, Deadline: deadline, Tags: tags}
		if err := db.CreateTask(ctx, task); err != nil {
			t.Fatalf("CreateTask(%s) failed: %v", title, err)
		}
		return task
	}

	create("p2-undated", "work", 2, nil)
	create("p1-late", "home", 1, &late, "a")
	create("p2-early", "work", 2, &early, "b", "c")
	create("p1-early", "work", 1, &early)

	tasks, err := db.ListTasks(ctx, models.TaskFilter{})
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}

	want := []string{"p1-early", "p1-late", "p2-early", "p2-undated"}
	if len(tasks) != len(want) {
		t.Fatalf("expected %d tasks, got %d", len(want), len(tasks))
	}
	for i, title := range want {
		if tasks[i].Title != title {
			t.Errorf("position %d: expected %s, got %s", i, title, tasks[i].Title)
		}
	}
	if len(tasks[2].Tags) != 2 || tasks[2].Tags[0] != "b" {
		t.Errorf("expected tags loaded for p2-early, got %v", tasks[2].Tags)
	}
	if tasks[3].Tags == nil || len(tasks[3].Tags) != 0 {
		t.Errorf("expected empty non-nil tags, got %#v", tasks[3].Tags)
	}

	work, err := db.ListTasks(ctx, models.TaskFilter{Category: ptr("work")})
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if len(work) != 3 {
		t.Errorf("expected 3 work tasks, got %d", len(work))
	}
	for _, task := range work {
		if task.Category == "home" {
			t.Errorf("category filter leaked %s", task.Title)
		}
	}

	inProgress, err := db.ListTasks(ctx, models.TaskFilter{Status: ptr(models.TaskStatusInProgress)})
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if len(inProgress) != 0 {
		t.Errorf("expected no in-progress tasks, got %d", len(inProgress))
	}
}

func TestMarkCompleted(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	task := &models.Task{Title: "finish", ActualHours: nil}
	if err := db.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	first := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	err := db.WithTx(ctx, func(tx *Tx) error {
		return tx.MarkCompleted(ctx, task.ID, first, ptr(2.0))
	})
	if err != nil {
		t.Fatalf("MarkCompleted failed: %v", err)
	}

	second := first.Add(24 * time.Hour)
	err = db.WithTx(ctx, func(tx *Tx) error {
		return tx.MarkCompleted(ctx, task.ID, second, nil)
	})
	if err != nil {
		t.Fatalf("second MarkCompleted failed: %v", err)
	}

	got, _ := db.GetTask(ctx, task.ID)
	if got.Status != models.TaskStatusCompleted {
		t.Errorf("expected completed, got %s", got.Status)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(first) {
		t.Errorf("expected first completion time kept, got %v", got.CompletedAt)
	}
	if got.ActualHours == nil || *got.ActualHours != 2.0 {
		t.Errorf("expected actual hours kept at 2, got %v", got.ActualHours)
	}

	err = db.WithTx(ctx, func(tx *Tx) error {
		return tx.MarkCompleted(ctx, 42, first, nil)
	})
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
