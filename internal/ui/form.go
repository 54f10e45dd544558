package ui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/ldi/tasker/internal/exchange"
	"github.com/ldi/tasker/internal/manager"
)

var (
	labelStyle      = lipgloss.NewStyle().Width(18)
	focusedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("45")).Bold(true)
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	suggestionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

const (
	fieldTitle = iota
	fieldDescription
	fieldCategory
	fieldHours
	fieldDeadline
	fieldTags
	fieldPriority
	fieldCount
)

var fieldLabels = [fieldCount]string{
	"Title",
	"Description",
	"Category",
	"Estimated hours",
	"Deadline",
	"Tags",
	"Priority",
}

// SuggestFunc returns the priority the advisor would pick for the given
// inputs. deadline is nil when none was entered.
type SuggestFunc func(category string, hours float64, deadline *time.Time) (int, error)

// AddFormModel collects the fields of a new task. The priority field is
// prefilled with the suggestion until the user edits it.
type AddFormModel struct {
	inputs    [fieldCount]textinput.Model
	focus     int
	suggest   SuggestFunc
	suggested int
	edited    bool // priority typed by the user
	err       string
	submitted bool
	cancelled bool
}

func NewAddFormModel(defaultCategory string, suggest SuggestFunc) AddFormModel {
	m := AddFormModel{suggest: suggest}
	placeholders := [fieldCount]string{
		"What needs doing",
		"optional",
		defaultCategory,
		"e.g. 2.5",
		"YYYY-MM-DD",
		"comma separated",
		"1 (highest) to 5",
	}
	for i := range m.inputs {
		ti := textinput.New()
		ti.Placeholder = placeholders[i]
		ti.CharLimit = 256
		ti.Width = 40
		ti.Prompt = ""
		m.inputs[i] = ti
	}
	m.inputs[fieldTitle].Focus()
	m.refreshSuggestion()
	return m
}

func (m AddFormModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m AddFormModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "ctrl+c", "esc":
		m.cancelled = true
		return m, tea.Quit

	case "tab", "down":
		return m.moveFocus(1), nil

	case "shift+tab", "up":
		return m.moveFocus(-1), nil

	case "enter":
		if m.focus < fieldCount-1 {
			return m.moveFocus(1), nil
		}
		if _, err := m.Task(); err != nil {
			m.err = err.Error()
			return m, nil
		}
		m.submitted = true
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	m.err = ""
	switch m.focus {
	case fieldPriority:
		m.edited = true
	case fieldCategory, fieldHours, fieldDeadline:
		m.refreshSuggestion()
	}
	return m, cmd
}

func (m AddFormModel) moveFocus(delta int) AddFormModel {
	m.inputs[m.focus].Blur()
	m.focus = (m.focus + delta + fieldCount) % fieldCount
	m.inputs[m.focus].Focus()
	return m
}

// refreshSuggestion recomputes the suggested priority from the current
// category, hours and deadline. Unparsable fields count as absent.
func (m *AddFormModel) refreshSuggestion() {
	if m.suggest == nil {
		return
	}

	hours, _ := strconv.ParseFloat(strings.TrimSpace(m.inputs[fieldHours].Value()), 64)
	var deadline *time.Time
	if d, err := exchange.ParseDeadline(m.inputs[fieldDeadline].Value()); err == nil {
		deadline = &d
	}

	p, err := m.suggest(strings.TrimSpace(m.inputs[fieldCategory].Value()), hours, deadline)
	if err != nil {
		return
	}
	m.suggested = p
	if !m.edited {
		m.inputs[fieldPriority].SetValue(strconv.Itoa(p))
	}
}

func (m AddFormModel) View() string {
	if m.cancelled {
		return ""
	}

	var s strings.Builder
	s.WriteString(focusedStyle.Render("New task"))
	s.WriteString("\n\n")

	for i, in := range m.inputs {
		label := labelStyle.Render(fieldLabels[i] + ":")
		if i == m.focus {
			label = focusedStyle.Inherit(labelStyle).Render(fieldLabels[i] + ":")
		}
		s.WriteString(label + in.View() + "\n")
	}

	if m.suggested > 0 {
		s.WriteString("\n" + suggestionStyle.Render(fmt.Sprintf("Suggested priority: %d", m.suggested)) + "\n")
	}
	if m.err != "" {
		s.WriteString("\n" + errorStyle.Render(m.err) + "\n")
	}

	s.WriteString("\n(tab/shift+tab to move, enter on the last field to save, esc to cancel)\n")
	return s.String()
}

func (m AddFormModel) Submitted() bool {
	return m.submitted
}

// Task converts the form fields into a task to create.
func (m AddFormModel) Task() (manager.NewTask, error) {
	nt := manager.NewTask{
		Title:       strings.TrimSpace(m.inputs[fieldTitle].Value()),
		Description: strings.TrimSpace(m.inputs[fieldDescription].Value()),
		Category:    strings.TrimSpace(m.inputs[fieldCategory].Value()),
	}
	if nt.Title == "" {
		return nt, fmt.Errorf("title must not be empty")
	}

	if v := strings.TrimSpace(m.inputs[fieldHours].Value()); v != "" {
		hours, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nt, fmt.Errorf("estimated hours %q is not a number", v)
		}
		nt.EstimatedHours = &hours
	}

	if v := strings.TrimSpace(m.inputs[fieldDeadline].Value()); v != "" {
		d, err := exchange.ParseDeadline(v)
		if err != nil {
			return nt, err
		}
		nt.Deadline = &d
	}

	for _, tag := range strings.Split(m.inputs[fieldTags].Value(), ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			nt.Tags = append(nt.Tags, tag)
		}
	}

	if v := strings.TrimSpace(m.inputs[fieldPriority].Value()); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return nt, fmt.Errorf("priority %q is not a number", v)
		}
		nt.Priority = p
	}

	return nt, nil
}

// RunAddForm shows the form and returns the entered task. ok is false when
// the user cancelled.
func RunAddForm(defaultCategory string, suggest SuggestFunc) (nt manager.NewTask, ok bool, err error) {
	p := tea.NewProgram(NewAddFormModel(defaultCategory, suggest))
	finalModel, err := p.Run()
	if err != nil {
		return manager.NewTask{}, false, err
	}
	form := finalModel.(AddFormModel)
	if !form.Submitted() {
		return manager.NewTask{}, false, nil
	}
	nt, err = form.Task()
	return nt, err == nil, err
}
