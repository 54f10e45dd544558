package components

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/ldi/tasker/internal/advisor"
	"github.com/ldi/tasker/pkg/models"
)

var (
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("45")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1)

	subTitleStyle = lipgloss.NewStyle().
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	placeholderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240")).
				Italic(true).
				Padding(0, 1)

	statusLabels = map[models.TaskStatus]string{
		models.TaskStatusPending:    "Pending",
		models.TaskStatusInProgress: "In Progress",
		models.TaskStatusCompleted:  "Completed",
	}
)

type StatsPanel struct {
	Stats *models.Stats
	Width int
	Title string
}

func NewStatsPanel(st *models.Stats, width int) *StatsPanel {
	return &StatsPanel{
		Stats: st,
		Width: width,
		Title: "Task Statistics",
	}
}

func (p *StatsPanel) View() string {
	st := p.Stats
	var lines []string

	lines = append(lines, subTitleStyle.Render("Status Breakdown"))
	for _, s := range models.Statuses {
		lines = append(lines, fmt.Sprintf("  %-12s %s", statusLabels[s]+":", humanize.Comma(int64(st.ByStatus[s]))))
	}

	lines = append(lines, "", subTitleStyle.Render("Category Breakdown"))
	if len(st.ByCategory) == 0 {
		lines = append(lines, placeholderStyle.Render("No tasks yet"))
	}
	categories := make([]string, 0, len(st.ByCategory))
	for c := range st.ByCategory {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	for _, c := range categories {
		lines = append(lines, fmt.Sprintf("  %s: %s", c, humanize.Comma(int64(st.ByCategory[c]))))
	}

	lines = append(lines, "", subTitleStyle.Render("Performance Metrics"))
	lines = append(lines, fmt.Sprintf("  Average Completion Time: %s hours", humanize.FtoaWithDigits(st.AvgCompletionHours, 2)))
	overdue := fmt.Sprintf("  Overdue Tasks: %d", st.OverdueCount)
	if st.OverdueCount > 0 {
		overdue = warnStyle.Render(overdue)
	}
	lines = append(lines, overdue)

	body := panelStyle.Width(p.Width).Render(strings.Join(lines, "\n"))
	if p.Title == "" {
		return body
	}
	return headerStyle.Render(p.Title) + "\n" + body
}

// SuggestionView renders a priority suggestion and the history behind it.
func SuggestionView(s *advisor.Suggestion) string {
	lines := []string{
		subTitleStyle.Render(fmt.Sprintf("Suggested Priority: %d", s.Priority)),
	}
	if s.Basis == advisor.BasisHeuristic {
		lines = append(lines, "  No history for this category yet; using defaults.")
		return strings.Join(lines, "\n")
	}

	lines = append(lines, fmt.Sprintf("  Based on %d completed task(s).", s.SampleSize))
	if s.EstimateDeviation != nil {
		lines = append(lines, fmt.Sprintf("  Estimates differ from past tasks by %s hours on average.", humanize.FtoaWithDigits(*s.EstimateDeviation, 1)))
	}
	if s.DeadlineDeviation != nil {
		lines = append(lines, fmt.Sprintf("  Deadline window differs by %s days on average.", humanize.FtoaWithDigits(*s.DeadlineDeviation, 1)))
	}
	return strings.Join(lines, "\n")
}

// HistoryTable renders completion records one per line.
func HistoryTable(records []*models.HistoryRecord) string {
	if len(records) == 0 {
		return placeholderStyle.Render("No completed tasks yet")
	}

	lines := []string{fmt.Sprintf("%-6s %-8s %-15s %-10s %-10s %-10s %s", "ID", "TASK", "CATEGORY", "EST", "ACTUAL", "DEADLINE", "HOURS")}
	for _, r := range records {
		days := "-"
		if r.DaysToDeadline != nil {
			days = fmt.Sprintf("%dd", *r.DaysToDeadline)
		}
		lines = append(lines, fmt.Sprintf("%-6d %-8d %-15s %-10s %-10s %-10s %s",
			r.ID, r.TaskID, r.Category, optional(r.EstimatedHours), optional(r.ActualHours), days,
			humanize.FtoaWithDigits(r.CompletionTimeHours, 2)))
	}
	return strings.Join(lines, "\n")
}

func optional(f *float64) string {
	if f == nil {
		return "-"
	}
	return humanize.Ftoa(*f)
}
