package models

type Stats struct {
	ByStatus           map[TaskStatus]int `json:"by_status"`
	ByCategory         map[string]int     `json:"by_category"`
	AvgCompletionHours float64            `json:"avg_completion_hours"`
	OverdueCount       int                `json:"overdue"`
}
