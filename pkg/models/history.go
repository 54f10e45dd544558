package models

// HistoryRecord is written once per completion event and never modified.
// TaskID is a plain reference; the task may since have been deleted.
type HistoryRecord struct {
	ID                  int64    `json:"id"`
	TaskID              int64    `json:"task_id"`
	Category            string   `json:"category"`
	EstimatedHours      *float64 `json:"estimated_hours"`
	ActualHours         *float64 `json:"actual_hours"`
	DaysToDeadline      *int     `json:"days_to_deadline"`
	CompletionTimeHours float64  `json:"completion_time_hours"`
}
