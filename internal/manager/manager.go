// Package manager is the entry point for every task operation. It
// validates input, keeps tasks, tags and completion history consistent, and
// delegates persistence to the db package.
package manager

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ldi/tasker/internal/advisor"
	"github.com/ldi/tasker/internal/db"
	"github.com/ldi/tasker/internal/exchange"
	"github.com/ldi/tasker/internal/stats"
	"github.com/ldi/tasker/pkg/models"
)

type Options struct {
	// DefaultCategory replaces an empty category. Defaults to "general".
	DefaultCategory string
	// RelogCompletion makes completing an already completed task append
	// another history record. When false such a call changes nothing.
	RelogCompletion bool
	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

type Manager struct {
	db      *db.DB
	advisor *advisor.Advisor
	stats   *stats.Aggregator
	opts    Options
}

// NewTask holds the caller supplied fields of a task to create.
type NewTask struct {
	Title          string
	Description    string
	Category       string
	Priority       int // 0 means unspecified
	Deadline       *time.Time
	EstimatedHours *float64
	Tags           []string
}

func New(database *db.DB, opts Options) *Manager {
	if opts.DefaultCategory == "" {
		opts.DefaultCategory = models.DefaultCategory
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		db:      database,
		advisor: advisor.New(database),
		stats:   stats.New(database).WithClock(opts.Now),
		opts:    opts,
	}
}

func (m *Manager) now() time.Time {
	return m.opts.Now().UTC()
}

// AddTask validates and stores a new task with its tags.
func (m *Manager) AddTask(ctx context.Context, nt NewTask) (int64, error) {
	t, err := m.buildTask(nt)
	if err != nil {
		return 0, err
	}
	if err := m.db.CreateTask(ctx, t); err != nil {
		return 0, err
	}
	return t.ID, nil
}

func (m *Manager) GetTask(ctx context.Context, id int64) (*models.Task, error) {
	return m.db.GetTask(ctx, id)
}

func (m *Manager) ListTasks(ctx context.Context, filter models.TaskFilter) ([]*models.Task, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, models.Invalidf("unknown status %q", *filter.Status)
	}
	return m.db.ListTasks(ctx, filter)
}

// Search returns tasks whose title, description, category or any tag
// contains keyword, ignoring case. An empty keyword matches everything.
func (m *Manager) Search(ctx context.Context, keyword string) ([]*models.Task, error) {
	tasks, err := m.db.ListTasks(ctx, models.TaskFilter{})
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(strings.TrimSpace(keyword))
	matches := []*models.Task{}
	for _, t := range tasks {
		if matchesKeyword(t, needle) {
			matches = append(matches, t)
		}
	}
	return matches, nil
}

func matchesKeyword(t *models.Task, needle string) bool {
	if strings.Contains(strings.ToLower(t.Title), needle) ||
		strings.Contains(strings.ToLower(t.Description), needle) ||
		strings.Contains(strings.ToLower(t.Category), needle) {
		return true
	}
	for _, tag := range t.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}

// UpdateTask applies a partial update. Setting the status to completed
// goes through the completion path so history is recorded. A completed
// task cannot be moved back to another status.
func (m *Manager) UpdateTask(ctx context.Context, id int64, u models.TaskUpdate) error {
	if err := validateUpdate(u); err != nil {
		return err
	}

	return m.db.WithTx(ctx, func(tx *db.Tx) error {
		current, err := tx.GetTask(ctx, id)
		if err != nil {
			return err
		}

		completing := u.Status != nil && *u.Status == models.TaskStatusCompleted
		if u.Status != nil && !completing && current.Status == models.TaskStatusCompleted {
			return models.Invalidf("task %d is completed and cannot move to %s", id, *u.Status)
		}

		fields := u
		actual := u.ActualHours
		if completing {
			fields.Status = nil
			fields.ActualHours = nil
		}
		if !fields.Empty() {
			if err := tx.UpdateTask(ctx, id, fields); err != nil {
				return err
			}
		}

		if completing {
			_, err := m.complete(ctx, tx, id, actual)
			return err
		}
		return nil
	})
}

// CompleteTask marks a task completed and appends a history record. It
// returns the appended record, or nil when the task was already completed
// and RelogCompletion is off.
func (m *Manager) CompleteTask(ctx context.Context, id int64, actualHours *float64) (*models.HistoryRecord, error) {
	if actualHours != nil && *actualHours < 0 {
		return nil, models.Invalidf("actual hours must not be negative")
	}

	var rec *models.HistoryRecord
	err := m.db.WithTx(ctx, func(tx *db.Tx) error {
		var err error
		rec, err = m.complete(ctx, tx, id, actualHours)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (m *Manager) complete(ctx context.Context, tx *db.Tx, id int64, actualHours *float64) (*models.HistoryRecord, error) {
	t, err := tx.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	if t.Status == models.TaskStatusCompleted && !m.opts.RelogCompletion {
		return nil, nil
	}

	completedAt := m.now()
	if t.CompletedAt != nil {
		completedAt = *t.CompletedAt
	}

	if err := tx.MarkCompleted(ctx, id, completedAt, actualHours); err != nil {
		return nil, err
	}

	rec := &models.HistoryRecord{
		TaskID:              t.ID,
		Category:            t.Category,
		EstimatedHours:      t.EstimatedHours,
		ActualHours:         actualHours,
		CompletionTimeHours: completedAt.Sub(t.CreatedAt).Hours(),
	}
	if t.Deadline != nil {
		days := DaysBetween(t.CreatedAt, *t.Deadline)
		rec.DaysToDeadline = &days
	}

	if err := tx.AppendHistory(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// DeleteTask removes a task and its tags. History referring to it stays.
func (m *Manager) DeleteTask(ctx context.Context, id int64) error {
	return m.db.DeleteTask(ctx, id)
}

// SuggestPriority asks the advisor for a priority. deadlineDays is the
// number of days until the deadline, nil if there is none.
func (m *Manager) SuggestPriority(ctx context.Context, category string, estimatedHours float64, deadlineDays *int) (*advisor.Suggestion, error) {
	if category == "" {
		category = m.opts.DefaultCategory
	}
	return m.advisor.Explain(ctx, category, estimatedHours, deadlineDays)
}

// SuggestForTask suggests a priority from the task's own category, estimate
// and deadline. A task without an estimate counts as zero hours.
func (m *Manager) SuggestForTask(ctx context.Context, nt NewTask) (*advisor.Suggestion, error) {
	var hours float64
	if nt.EstimatedHours != nil {
		hours = *nt.EstimatedHours
	}
	var days *int
	if nt.Deadline != nil {
		d := m.DaysUntil(*nt.Deadline)
		days = &d
	}
	return m.SuggestPriority(ctx, strings.TrimSpace(nt.Category), hours, days)
}

// DaysUntil returns the whole days from now until deadline.
func (m *Manager) DaysUntil(deadline time.Time) int {
	return DaysBetween(m.now(), deadline)
}

func (m *Manager) Stats(ctx context.Context) (*models.Stats, error) {
	return m.stats.Compute(ctx)
}

func (m *Manager) History(ctx context.Context) ([]*models.HistoryRecord, error) {
	return m.db.ListHistory(ctx)
}

// Export writes every task to path and returns how many were written.
func (m *Manager) Export(ctx context.Context, path string, format exchange.Format) (int, error) {
	tasks, err := m.db.ListTasks(ctx, models.TaskFilter{})
	if err != nil {
		return 0, err
	}
	if err := exchange.WriteFile(path, format, tasks); err != nil {
		return 0, err
	}
	return len(tasks), nil
}

// Import reads a JSON export and adds every task in it as a new pending
// task. Either all tasks are added or none are.
func (m *Manager) Import(ctx context.Context, path string) ([]int64, error) {
	parsed, err := exchange.ReadFile(path)
	if err != nil {
		return nil, err
	}

	sessionID := uuid.New().String()
	for _, p := range parsed {
		err := m.StageTask(sessionID, NewTask{
			Title:          p.Title,
			Description:    p.Description,
			Category:       p.Category,
			Priority:       p.Priority,
			Deadline:       p.Deadline,
			EstimatedHours: p.EstimatedHours,
			Tags:           p.Tags,
		})
		if err != nil {
			m.db.Staging.Discard(sessionID)
			return nil, err
		}
	}

	return m.db.CommitBatch(ctx, sessionID)
}

// StageTask validates a task and holds it under sessionID until
// CommitStaged is called.
func (m *Manager) StageTask(sessionID string, nt NewTask) error {
	t, err := m.buildTask(nt)
	if err != nil {
		return err
	}
	m.db.Staging.AddTask(sessionID, t)
	return nil
}

func (m *Manager) StagedTasks(sessionID string) []*models.Task {
	return m.db.StagedTasks(sessionID)
}

// CommitStaged writes every task staged under sessionID in one transaction.
func (m *Manager) CommitStaged(ctx context.Context, sessionID string) ([]int64, error) {
	return m.db.CommitBatch(ctx, sessionID)
}

func (m *Manager) buildTask(nt NewTask) (*models.Task, error) {
	title := strings.TrimSpace(nt.Title)
	if title == "" {
		return nil, models.Invalidf("title must not be empty")
	}

	priority := nt.Priority
	if priority == 0 {
		priority = models.DefaultPriority
	}
	if err := validatePriority(priority); err != nil {
		return nil, err
	}

	if nt.EstimatedHours != nil && *nt.EstimatedHours < 0 {
		return nil, models.Invalidf("estimated hours must not be negative")
	}

	category := strings.TrimSpace(nt.Category)
	if category == "" {
		category = m.opts.DefaultCategory
	}

	tags := make([]string, 0, len(nt.Tags))
	for _, tag := range nt.Tags {
		tags = append(tags, strings.TrimSpace(tag))
	}

	t := &models.Task{
		Title:          title,
		Description:    nt.Description,
		Category:       category,
		Priority:       priority,
		Status:         models.TaskStatusPending,
		CreatedAt:      m.now(),
		EstimatedHours: nt.EstimatedHours,
		Tags:           tags,
	}
	if nt.Deadline != nil {
		d := nt.Deadline.UTC()
		t.Deadline = &d
	}
	return t, nil
}

func validateUpdate(u models.TaskUpdate) error {
	if u.Title != nil && strings.TrimSpace(*u.Title) == "" {
		return models.Invalidf("title must not be empty")
	}
	if u.Priority != nil {
		if err := validatePriority(*u.Priority); err != nil {
			return err
		}
	}
	if u.Status != nil && !u.Status.Valid() {
		return models.Invalidf("unknown status %q", *u.Status)
	}
	if u.EstimatedHours != nil && *u.EstimatedHours < 0 {
		return models.Invalidf("estimated hours must not be negative")
	}
	if u.ActualHours != nil && *u.ActualHours < 0 {
		return models.Invalidf("actual hours must not be negative")
	}
	return nil
}

func validatePriority(p int) error {
	if p < models.MinPriority || p > models.MaxPriority {
		return models.Invalidf("priority %d out of range %d-%d", p, models.MinPriority, models.MaxPriority)
	}
	return nil
}

// DaysBetween returns the whole days from `from` to `to`, rounded down.
// The result is negative when to precedes from.
func DaysBetween(from, to time.Time) int {
	return int(math.Floor(to.Sub(from).Hours() / 24))
}
