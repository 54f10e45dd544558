package db

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ldi/tasker/pkg/models"
)

func TestStagingManager(t *testing.T) {
	sm := NewStagingManager()
	sessionID := "test-session"

	sm.AddTask(sessionID, &models.Task{Title: "Task 1"})
	sm.AddTask(sessionID, &models.Task{Title: "Task 2"})

	peeked := sm.Peek(sessionID)
	if len(peeked.Tasks) != 2 {
		t.Fatalf("expected 2 peeked tasks, got %d", len(peeked.Tasks))
	}
	peeked.Tasks[0] = nil
	if sm.Peek(sessionID).Tasks[0] == nil {
		t.Error("Peek should return a copy")
	}

	staged := sm.GetAndClear(sessionID)
	if len(staged.Tasks) != 2 || staged.Tasks[0].Title != "Task 1" {
		t.Errorf("expected tasks in staging order, got %v", staged.Tasks)
	}

	staged2 := sm.GetAndClear(sessionID)
	if len(staged2.Tasks) != 0 {
		t.Errorf("expected empty staged items after GetAndClear, got %v", staged2)
	}
}

func TestStagingManagerMultipleSessions(t *testing.T) {
	sm := NewStagingManager()
	sm.AddTask("s1", &models.Task{Title: "one"})
	sm.AddTask("s2", &models.Task{Title: "two"})

	sm.Discard("s1")
	if len(sm.Peek("s1").Tasks) != 0 {
		t.Error("expected s1 to be discarded")
	}
	if got := sm.Peek("s2").Tasks; len(got) != 1 || got[0].Title != "two" {
		t.Errorf("expected s2 untouched, got %v", got)
	}
}

func TestCommitBatch(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	db.Staging.AddTask("s", &models.Task{Title: "first", Tags: []string{"x"}})
	db.Staging.AddTask("s", &models.Task{Title: "second"})

	if got := db.StagedTasks("s"); len(got) != 2 {
		t.Fatalf("expected 2 staged tasks, got %d", len(got))
	}

	ids, err := db.CommitBatch(ctx, "s")
	if err != nil {
		t.Fatalf("CommitBatch failed: %v", err)
	}
	if len(ids) != 2 || ids[0] >= ids[1] {
		t.Errorf("expected two ascending ids, got %v", ids)
	}

	got, err := db.GetTask(ctx, ids[0])
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if got.Title != "first" || len(got.Tags) != 1 {
		t.Errorf("unexpected committed task: %+v", got)
	}

	if len(db.StagedTasks("s")) != 0 {
		t.Error("expected session cleared after commit")
	}

	ids, err = db.CommitBatch(ctx, "empty")
	if err != nil || len(ids) != 0 {
		t.Errorf("expected empty commit to succeed with no ids, got %v, %v", ids, err)
	}
}

func TestCommitBatchIsAllOrNothing(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	db.Staging.AddTask("s", &models.Task{Title: "good"})
	db.Staging.AddTask("s", &models.Task{Title: " "})

	if _, err := db.CommitBatch(ctx, "s"); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	tasks, _ := db.ListTasks(ctx, models.TaskFilter{})
	if len(tasks) != 0 {
		t.Errorf("expected no tasks after failed batch, got %d", len(tasks))
	}
}

func TestAutoSnapshot(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	snapshotPath := filepath.Join(t.TempDir(), "snapshot.json")
	var snapErr error
	db.EnableAutoSnapshot(snapshotPath, func(err error) { snapErr = err })

	task := &models.Task{Title: "Auto Task", Tags: []string{"snap"}}
	if err := db.CreateTask(ctx, task); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	readSnapshot := func() string {
		data, err := os.ReadFile(snapshotPath)
		if err != nil {
			t.Fatalf("failed to read snapshot: %v", err)
		}
		return string(data)
	}

	if s := readSnapshot(); !strings.Contains(s, `"Auto Task"`) || !strings.Contains(s, `"snap"`) {
		t.Errorf("snapshot missing task: %s", s)
	}

	if err := db.UpdateTask(ctx, task.ID, models.TaskUpdate{Title: ptr("Renamed")}); err != nil {
		t.Fatalf("UpdateTask failed: %v", err)
	}
	if s := readSnapshot(); !strings.Contains(s, `"Renamed"`) {
		t.Errorf("snapshot not refreshed after update: %s", s)
	}

	if err := db.DeleteTask(ctx, task.ID); err != nil {
		t.Fatalf("DeleteTask failed: %v", err)
	}
	if s := strings.TrimSpace(readSnapshot()); s != "[]" {
		t.Errorf("expected empty snapshot after delete, got %s", s)
	}

	if snapErr != nil {
		t.Errorf("unexpected snapshot error: %v", snapErr)
	}
}

func TestAutoSnapshotReportsErrors(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	dir := t.TempDir()
	var snapErr error
	// A directory cannot be replaced by the snapshot file.
	db.EnableAutoSnapshot(dir, func(err error) { snapErr = err })

	if err := db.CreateTask(ctx, &models.Task{Title: "x"}); err != nil {
		t.Fatalf("write should succeed even if the snapshot fails: %v", err)
	}
	if snapErr == nil {
		t.Error("expected snapshot error to be reported")
	}
}
