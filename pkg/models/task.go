package models

import "time"

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
)

// DefaultCategory is used when a task is created without a category.
const DefaultCategory = "general"

// DefaultPriority is used when a task is created with priority 0.
const DefaultPriority = 3

const (
	MinPriority = 1
	MaxPriority = 5
)

// Statuses lists every valid status in display order.
var Statuses = []TaskStatus{TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted}

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted:
		return true
	}
	return false
}

type Task struct {
	ID             int64      `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Category       string     `json:"category"`
	Priority       int        `json:"priority"`
	Status         TaskStatus `json:"status"`
	Deadline       *time.Time `json:"deadline"`
	CreatedAt      time.Time  `json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at"`
	EstimatedHours *float64   `json:"estimated_hours"`
	ActualHours    *float64   `json:"actual_hours"`
	Tags           []string   `json:"tags"`
}

// IsOverdue reports whether the task is unfinished and its deadline is before now.
func (t *Task) IsOverdue(now time.Time) bool {
	return t.Status != TaskStatusCompleted && t.Deadline != nil && t.Deadline.Before(now)
}

// TaskFilter narrows ListTasks. Nil fields match everything.
type TaskFilter struct {
	Status   *TaskStatus
	Category *string
}

// TaskUpdate is a partial update. Only non-nil fields are written.
type TaskUpdate struct {
	Title          *string
	Description    *string
	Category       *string
	Priority       *int
	Status         *TaskStatus
	Deadline       *time.Time
	ClearDeadline  bool
	EstimatedHours *float64
	ActualHours    *float64
}

// Empty reports whether the update would change nothing.
func (u TaskUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.Category == nil && u.Priority == nil &&
		u.Status == nil && u.Deadline == nil && !u.ClearDeadline && u.EstimatedHours == nil && u.ActualHours == nil
}
