package main

import (
	"context"
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ldi/tasker/internal/exchange"
	"github.com/ldi/tasker/internal/manager"
	"github.com/ldi/tasker/internal/ui"
	"github.com/ldi/tasker/internal/ui/components"
	"github.com/ldi/tasker/pkg/models"
)

func runAdd(args []string) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	title := fs.String("title", "", "Task title")
	description := fs.String("description", "", "Task description")
	category := fs.String("category", "", "Task category")
	priority := fs.Int("priority", 0, "Priority 1 (highest) to 5; suggested when omitted")
	deadline := fs.String("deadline", "", "Deadline (YYYY-MM-DD or RFC 3339)")
	hours := fs.Float64("hours", -1, "Estimated hours")
	tags := fs.String("tags", "", "Comma separated tags")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *title == "" && fs.NArg() > 0 {
		*title = strings.Join(fs.Args(), " ")
	}

	ctx := context.Background()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	var nt manager.NewTask
	if *title == "" {
		var ok bool
		nt, ok, err = ui.RunAddForm(a.cfg.DefaultCategory, formSuggester(ctx, a.manager))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Cancelled")
			return nil
		}
	} else {
		nt = manager.NewTask{
			Title:       *title,
			Description: *description,
			Category:    *category,
			Priority:    *priority,
			Tags:        splitTags(*tags),
		}
		if *hours >= 0 {
			nt.EstimatedHours = hours
		}
		if *deadline != "" {
			d, err := exchange.ParseDeadline(*deadline)
			if err != nil {
				return models.Invalidf("%v", err)
			}
			nt.Deadline = &d
		}
	}

	if nt.Priority == 0 {
		s, err := a.manager.SuggestForTask(ctx, nt)
		if err != nil {
			return err
		}
		nt.Priority = s.Priority
		logf("using suggested priority %d (%s)", s.Priority, s.Basis)
	}

	id, err := a.manager.AddTask(ctx, nt)
	if err != nil {
		return err
	}
	fmt.Printf("✓ Added task %d (priority %d)\n", id, nt.Priority)
	return nil
}

func formSuggester(ctx context.Context, m *manager.Manager) ui.SuggestFunc {
	return func(category string, hours float64, deadline *time.Time) (int, error) {
		s, err := m.SuggestForTask(ctx, manager.NewTask{Category: category, EstimatedHours: &hours, Deadline: deadline})
		if err != nil {
			return 0, err
		}
		return s.Priority, nil
	}
}

func runList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	status := fs.String("status", "", "Filter by status (pending, in_progress, completed)")
	category := fs.String("category", "", "Filter by category")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var filter models.TaskFilter
	if *status != "" {
		s := models.TaskStatus(*status)
		filter.Status = &s
	}
	if *category != "" {
		filter.Category = category
	}

	ctx := context.Background()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	tasks, err := a.manager.ListTasks(ctx, filter)
	if err != nil {
		return err
	}
	fmt.Println(components.TaskList(tasks, now()))
	return nil
}

func runGet(args []string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	t, err := a.manager.GetTask(ctx, id)
	if err != nil {
		return err
	}
	fmt.Println(components.TaskCard{Task: t, Now: now()}.View())
	return nil
}

func runUpdate(args []string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("update", flag.ContinueOnError)
	title := fs.String("title", "", "New title")
	description := fs.String("description", "", "New description")
	category := fs.String("category", "", "New category")
	priority := fs.Int("priority", 0, "New priority 1 to 5")
	status := fs.String("status", "", "New status (pending, in_progress, completed)")
	deadline := fs.String("deadline", "", "New deadline, or \"none\" to clear it")
	hours := fs.Float64("hours", 0, "New estimated hours")
	actual := fs.Float64("actual", 0, "Actual hours")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	var u models.TaskUpdate
	var parseErr error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "title":
			u.Title = title
		case "description":
			u.Description = description
		case "category":
			u.Category = category
		case "priority":
			u.Priority = priority
		case "status":
			s := models.TaskStatus(*status)
			u.Status = &s
		case "deadline":
			if strings.EqualFold(*deadline, "none") {
				u.ClearDeadline = true
				return
			}
			d, err := exchange.ParseDeadline(*deadline)
			if err != nil {
				parseErr = models.Invalidf("%v", err)
				return
			}
			u.Deadline = &d
		case "hours":
			u.EstimatedHours = hours
		case "actual":
			u.ActualHours = actual
		}
	})
	if parseErr != nil {
		return parseErr
	}
	if u.Empty() {
		return models.Invalidf("nothing to update")
	}

	ctx := context.Background()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.manager.UpdateTask(ctx, id, u); err != nil {
		return err
	}
	fmt.Printf("✓ Updated task %d\n", id)
	return nil
}

func runComplete(args []string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("complete", flag.ContinueOnError)
	actual := fs.Float64("actual", -1, "Actual hours spent")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	var actualHours *float64
	if *actual >= 0 {
		actualHours = actual
	}

	ctx := context.Background()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	rec, err := a.manager.CompleteTask(ctx, id, actualHours)
	if err != nil {
		return err
	}
	if rec == nil {
		fmt.Printf("Task %d is already completed\n", id)
		return nil
	}
	fmt.Printf("✓ Completed task %d after %.2f hours\n", id, rec.CompletionTimeHours)
	return nil
}

func runDelete(args []string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.manager.DeleteTask(ctx, id); err != nil {
		return err
	}
	fmt.Printf("✓ Deleted task %d\n", id)
	return nil
}

func runSearch(args []string) error {
	if len(args) == 0 {
		return models.Invalidf("usage: tasker search <keyword>")
	}

	ctx := context.Background()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	tasks, err := a.manager.Search(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	fmt.Println(components.TaskList(tasks, now()))
	return nil
}

func runStats(args []string) error {
	ctx := context.Background()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	st, err := a.manager.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Println(components.NewStatsPanel(st, 50).View())
	return nil
}

func runSuggest(args []string) error {
	fs := flag.NewFlagSet("suggest", flag.ContinueOnError)
	category := fs.String("category", "", "Task category")
	hours := fs.Float64("hours", 0, "Estimated hours")
	deadline := fs.String("deadline", "", "Deadline (YYYY-MM-DD or RFC 3339)")
	days := fs.Int("days", -1, "Days until the deadline, instead of -deadline")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	var deadlineDays *int
	switch {
	case *deadline != "":
		d, err := exchange.ParseDeadline(*deadline)
		if err != nil {
			return models.Invalidf("%v", err)
		}
		n := a.manager.DaysUntil(d)
		deadlineDays = &n
	case *days >= 0:
		deadlineDays = days
	}

	s, err := a.manager.SuggestPriority(ctx, *category, *hours, deadlineDays)
	if err != nil {
		return err
	}
	fmt.Println(components.SuggestionView(s))
	return nil
}

func runHistory(args []string) error {
	ctx := context.Background()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	records, err := a.manager.History(ctx)
	if err != nil {
		return err
	}
	fmt.Println(components.HistoryTable(records))
	return nil
}

func runExport(args []string) error {
	if len(args) == 0 {
		return models.Invalidf("usage: tasker export <file> [-format json|csv]")
	}
	path := args[0]

	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	formatName := fs.String("format", "", "Output format (json or csv); guessed from the file name when omitted")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	format := exchange.FormatFromPath(path)
	if *formatName != "" {
		var err error
		if format, err = exchange.ParseFormat(*formatName); err != nil {
			return err
		}
	}

	ctx := context.Background()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	n, err := a.manager.Export(ctx, path, format)
	if err != nil {
		return err
	}
	fmt.Printf("✓ Exported %d tasks to %s\n", n, path)
	return nil
}

func runImport(args []string) error {
	if len(args) == 0 {
		return models.Invalidf("usage: tasker import <file>")
	}

	ctx := context.Background()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	ids, err := a.manager.Import(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("✓ Imported %d tasks from %s\n", len(ids), args[0])
	return nil
}

func parseID(args []string) (int64, error) {
	if len(args) == 0 {
		return 0, models.Invalidf("missing task id")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, models.Invalidf("invalid task id %q", args[0])
	}
	return id, nil
}

// splitTags splits a comma separated list, dropping empty entries.
func splitTags(s string) []string {
	tags := []string{}
	for _, tag := range strings.Split(s, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
