package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/ldi/tasker/pkg/models"
)

// DueSoonDays is the window in which an upcoming deadline is highlighted.
const DueSoonDays = 3

var (
	priorityColors = map[int]lipgloss.Color{
		1: lipgloss.Color("196"),
		2: lipgloss.Color("214"),
		3: lipgloss.Color("45"),
		4: lipgloss.Color("42"),
		5: lipgloss.Color("33"),
	}

	titleStyle   = lipgloss.NewStyle().Bold(true)
	metaStyle    = lipgloss.NewStyle().PaddingLeft(2).Foreground(lipgloss.Color("250"))
	overdueStyle = lipgloss.NewStyle().PaddingLeft(2).Foreground(lipgloss.Color("196")).Bold(true)
	dueSoonStyle = lipgloss.NewStyle().PaddingLeft(2).Foreground(lipgloss.Color("214"))
	detailStyle  = lipgloss.NewStyle().PaddingLeft(2)
)

// TaskCard renders a single task as a few lines of text.
type TaskCard struct {
	Task  *models.Task
	Index int // 1-based position in a list, 0 to omit
	Now   time.Time
}

func (c TaskCard) View() string {
	t := c.Task
	var lines []string

	prefix := ""
	if c.Index > 0 {
		prefix = fmt.Sprintf("%d. ", c.Index)
	}
	style := titleStyle
	if color, ok := priorityColors[t.Priority]; ok {
		style = style.Foreground(color)
	}
	lines = append(lines, style.Render(prefix+t.Title))

	lines = append(lines, metaStyle.Render(fmt.Sprintf("ID: %d | Category: %s | Priority: %d | Status: %s",
		t.ID, t.Category, t.Priority, t.Status)))

	if t.Description != "" {
		lines = append(lines, detailStyle.Render("Description: "+t.Description))
	}

	if t.Deadline != nil {
		lines = append(lines, c.deadlineLine())
	}

	if t.EstimatedHours != nil || t.ActualHours != nil {
		lines = append(lines, detailStyle.Render("Hours: "+formatHours(t.EstimatedHours, t.ActualHours)))
	}

	if len(t.Tags) > 0 {
		lines = append(lines, detailStyle.Render("Tags: "+strings.Join(t.Tags, ", ")))
	}

	return strings.Join(lines, "\n")
}

func (c TaskCard) deadlineLine() string {
	d := *c.Task.Deadline
	date := d.Format("2006-01-02")
	rel := humanize.RelTime(d, c.Now, "ago", "from now")

	switch {
	case c.Task.Status == models.TaskStatusCompleted:
		return detailStyle.Render(fmt.Sprintf("Deadline: %s", date))
	case c.Task.IsOverdue(c.Now):
		return overdueStyle.Render(fmt.Sprintf("⚠ OVERDUE: %s (%s)", date, rel))
	case d.Sub(c.Now) <= DueSoonDays*24*time.Hour:
		return dueSoonStyle.Render(fmt.Sprintf("⏰ Deadline: %s (%s)", date, rel))
	default:
		return detailStyle.Render(fmt.Sprintf("Deadline: %s (%s)", date, rel))
	}
}

func formatHours(estimated, actual *float64) string {
	est, act := "-", "-"
	if estimated != nil {
		est = humanize.Ftoa(*estimated)
	}
	if actual != nil {
		act = humanize.Ftoa(*actual)
	}
	return fmt.Sprintf("estimated %s, actual %s", est, act)
}

// TaskList renders cards separated by blank lines, or a placeholder.
func TaskList(tasks []*models.Task, now time.Time) string {
	if len(tasks) == 0 {
		return placeholderStyle.Render("No tasks found")
	}

	cards := make([]string, 0, len(tasks))
	for i, t := range tasks {
		cards = append(cards, TaskCard{Task: t, Index: i + 1, Now: now}.View())
	}
	return strings.Join(cards, "\n\n")
}
