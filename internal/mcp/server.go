package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ldi/tasker/internal/exchange"
	"github.com/ldi/tasker/internal/manager"
	"github.com/ldi/tasker/pkg/models"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewServer creates a new MCP server exposing the task manager as tools.
func NewServer(m *manager.Manager) *server.MCPServer {
	s := server.NewMCPServer("Tasker", "0.1.0")

	// Task Management
	s.AddTool(mcp.NewTool("add_task",
		mcp.WithDescription("Create a task. Priority defaults to the suggested priority when omitted."),
		mcp.WithString("title", mcp.Description("Task title"), mcp.Required()),
		mcp.WithString("description", mcp.Description("Task description")),
		mcp.WithString("category", mcp.Description("Category (defaults to 'general')")),
		mcp.WithNumber("priority", mcp.Description("Priority 1-5, 1 is most urgent")),
		mcp.WithString("deadline", mcp.Description("Deadline as YYYY-MM-DD or RFC 3339")),
		mcp.WithNumber("estimated_hours", mcp.Description("Estimated effort in hours")),
		mcp.WithString("tags", mcp.Description("Comma-separated tags")),
	), addTaskHandler(m))

	s.AddTool(mcp.NewTool("get_task",
		mcp.WithDescription("Get a single task by ID."),
		mcp.WithNumber("id", mcp.Description("Task ID"), mcp.Required()),
	), getTaskHandler(m))

	s.AddTool(mcp.NewTool("list_tasks",
		mcp.WithDescription("List tasks with optional filters, most urgent first."),
		mcp.WithString("status", mcp.Description("Filter by status (pending|in_progress|completed)")),
		mcp.WithString("category", mcp.Description("Filter by category")),
	), listTasksHandler(m))

	s.AddTool(mcp.NewTool("search_tasks",
		mcp.WithDescription("Case-insensitive keyword search over title, description, category and tags."),
		mcp.WithString("keyword", mcp.Description("Keyword to look for"), mcp.Required()),
	), searchTasksHandler(m))

	s.AddTool(mcp.NewTool("update_task",
		mcp.WithDescription("Update fields of an existing task. Omitted fields are left unchanged."),
		mcp.WithNumber("id", mcp.Description("Task ID"), mcp.Required()),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("description", mcp.Description("New description")),
		mcp.WithString("category", mcp.Description("New category")),
		mcp.WithNumber("priority", mcp.Description("New priority")),
		mcp.WithString("status", mcp.Description("New status (pending|in_progress|completed)")),
		mcp.WithString("deadline", mcp.Description("New deadline, or 'none' to clear it")),
		mcp.WithNumber("estimated_hours", mcp.Description("New estimate in hours")),
		mcp.WithNumber("actual_hours", mcp.Description("Actual hours spent")),
	), updateTaskHandler(m))

	s.AddTool(mcp.NewTool("complete_task",
		mcp.WithDescription("Mark a task as completed and record it in the completion history."),
		mcp.WithNumber("id", mcp.Description("Task ID"), mcp.Required()),
		mcp.WithNumber("actual_hours", mcp.Description("Actual hours spent")),
	), completeTaskHandler(m))

	s.AddTool(mcp.NewTool("delete_task",
		mcp.WithDescription("Delete a task and its tags. Completion history is kept."),
		mcp.WithNumber("id", mcp.Description("Task ID"), mcp.Required()),
	), deleteTaskHandler(m))

	// Insights
	s.AddTool(mcp.NewTool("suggest_priority",
		mcp.WithDescription("Suggest a priority for a new task from the category's completion history."),
		mcp.WithString("category", mcp.Description("Category (defaults to 'general')")),
		mcp.WithNumber("estimated_hours", mcp.Description("Estimated effort in hours")),
		mcp.WithString("deadline", mcp.Description("Deadline as YYYY-MM-DD or RFC 3339")),
	), suggestPriorityHandler(m))

	s.AddTool(mcp.NewTool("get_stats",
		mcp.WithDescription("Task counts by status and category, average completion time and overdue count."),
	), getStatsHandler(m))

	s.AddTool(mcp.NewTool("list_history",
		mcp.WithDescription("List all completion history records."),
	), listHistoryHandler(m))

	// Import / Export
	s.AddTool(mcp.NewTool("export_tasks",
		mcp.WithDescription("Export all tasks to a file."),
		mcp.WithString("path", mcp.Description("Destination file"), mcp.Required()),
		mcp.WithString("format", mcp.Description("json or csv (defaults to the file extension)")),
	), exportTasksHandler(m))

	s.AddTool(mcp.NewTool("import_tasks",
		mcp.WithDescription("Import tasks from a JSON export. All tasks are added or none are."),
		mcp.WithString("path", mcp.Description("Source file"), mcp.Required()),
	), importTasksHandler(m))

	// Staging Management
	s.AddTool(mcp.NewTool("stage_task",
		mcp.WithDescription("Propose a new task. Changes are staged and must be committed to take effect."),
		mcp.WithString("title", mcp.Description("Task title"), mcp.Required()),
		mcp.WithString("description", mcp.Description("Task description")),
		mcp.WithString("category", mcp.Description("Category (defaults to 'general')")),
		mcp.WithNumber("priority", mcp.Description("Priority 1-5")),
		mcp.WithString("deadline", mcp.Description("Deadline as YYYY-MM-DD or RFC 3339")),
		mcp.WithNumber("estimated_hours", mcp.Description("Estimated effort in hours")),
		mcp.WithString("tags", mcp.Description("Comma-separated tags")),
		mcp.WithString("session_id", mcp.Description("Session ID for staging changes (defaults to 'default').")),
	), stageTaskHandler(m))

	s.AddTool(mcp.NewTool("commit_staged_tasks",
		mcp.WithDescription("Commit all staged tasks for a session in one transaction."),
		mcp.WithString("session_id", mcp.Description("Session ID (defaults to 'default').")),
	), commitStagedTasksHandler(m))

	s.AddTool(mcp.NewTool("list_staged_tasks",
		mcp.WithDescription("List the tasks staged for a session. Use this to review a plan before committing."),
		mcp.WithString("session_id", mcp.Description("Session ID (defaults to 'default').")),
	), listStagedTasksHandler(m))

	return s
}

// Serve starts the MCP server on stdio.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func addTaskHandler(m *manager.Manager) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		nt, err := parseNewTask(request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		if nt.Priority == 0 {
			suggestion, err := m.SuggestForTask(ctx, nt)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			nt.Priority = suggestion.Priority
		}

		id, err := m.AddTask(ctx, nt)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		return jsonResult(map[string]any{"id": id, "priority": nt.Priority})
	}
}

func getTaskHandler(m *manager.Manager) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		t, err := m.GetTask(ctx, parseID(request))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(t)
	}
}

func listTasksHandler(m *manager.Manager) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		var filter models.TaskFilter
		if s, ok := args["status"].(string); ok && s != "" {
			ts := models.TaskStatus(s)
			filter.Status = &ts
		}
		if c, ok := args["category"].(string); ok && c != "" {
			filter.Category = &c
		}

		tasks, err := m.ListTasks(ctx, filter)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		return jsonResult(map[string]any{"tasks": tasks})
	}
}

func searchTasksHandler(m *manager.Manager) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		keyword := mcp.ParseString(request, "keyword", "")

		tasks, err := m.Search(ctx, keyword)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		return jsonResult(map[string]any{"tasks": tasks})
	}
}

func updateTaskHandler(m *manager.Manager) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := parseID(request)
		args := request.GetArguments()

		var u models.TaskUpdate
		if title, ok := args["title"].(string); ok {
			u.Title = &title
		}
		if description, ok := args["description"].(string); ok {
			u.Description = &description
		}
		if category, ok := args["category"].(string); ok {
			u.Category = &category
		}
		if priority, ok := args["priority"].(float64); ok {
			p := int(priority)
			u.Priority = &p
		}
		if status, ok := args["status"].(string); ok {
			ts := models.TaskStatus(status)
			u.Status = &ts
		}
		if deadline, ok := args["deadline"].(string); ok {
			if strings.EqualFold(deadline, "none") || deadline == "" {
				u.ClearDeadline = true
			} else {
				d, err := exchange.ParseDeadline(deadline)
				if err != nil {
					return mcp.NewToolResultError(err.Error()), nil
				}
				u.Deadline = &d
			}
		}
		u.EstimatedHours = optionalFloat(args, "estimated_hours")
		u.ActualHours = optionalFloat(args, "actual_hours")

		if err := m.UpdateTask(ctx, id, u); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		return mcp.NewToolResultText("Task updated successfully"), nil
	}
}

func completeTaskHandler(m *manager.Manager) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := parseID(request)
		actual := optionalFloat(request.GetArguments(), "actual_hours")

		rec, err := m.CompleteTask(ctx, id, actual)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if rec == nil {
			return mcp.NewToolResultText(fmt.Sprintf("Task %d was already completed", id)), nil
		}

		return jsonResult(map[string]any{"history": rec})
	}
}

func deleteTaskHandler(m *manager.Manager) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if err := m.DeleteTask(ctx, parseID(request)); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		return mcp.NewToolResultText("Task deleted successfully"), nil
	}
}

func suggestPriorityHandler(m *manager.Manager) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		category := mcp.ParseString(request, "category", "")
		hours := mcp.ParseFloat64(request, "estimated_hours", 0)

		var days *int
		if deadline := mcp.ParseString(request, "deadline", ""); deadline != "" {
			d, err := exchange.ParseDeadline(deadline)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			n := m.DaysUntil(d)
			days = &n
		}

		suggestion, err := m.SuggestPriority(ctx, category, hours, days)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		return jsonResult(suggestion)
	}
}

func getStatsHandler(m *manager.Manager) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		st, err := m.Stats(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(st)
	}
}

func listHistoryHandler(m *manager.Manager) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		records, err := m.History(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(map[string]any{"history": records})
	}
}

func exportTasksHandler(m *manager.Manager) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path := mcp.ParseString(request, "path", "")
		if path == "" {
			return mcp.NewToolResultError("path is required"), nil
		}

		format := exchange.FormatFromPath(path)
		if f := mcp.ParseString(request, "format", ""); f != "" {
			var err error
			if format, err = exchange.ParseFormat(f); err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
		}

		n, err := m.Export(ctx, path, format)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf("Exported %d task(s) to %s", n, path)), nil
	}
}

func importTasksHandler(m *manager.Manager) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path := mcp.ParseString(request, "path", "")
		if path == "" {
			return mcp.NewToolResultError("path is required"), nil
		}

		ids, err := m.Import(ctx, path)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		return jsonResult(map[string]any{"ids": ids})
	}
}

func stageTaskHandler(m *manager.Manager) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID := mcp.ParseString(request, "session_id", "default")

		nt, err := parseNewTask(request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		if err := m.StageTask(sessionID, nt); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf("Task '%s' staged for session '%s'. Propose another or call 'commit_staged_tasks' to apply.", nt.Title, sessionID)), nil
	}
}

func commitStagedTasksHandler(m *manager.Manager) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID := mcp.ParseString(request, "session_id", "default")

		ids, err := m.CommitStaged(ctx, sessionID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		return jsonResult(map[string]any{"session_id": sessionID, "ids": ids})
	}
}

func listStagedTasksHandler(m *manager.Manager) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID := mcp.ParseString(request, "session_id", "default")
		return jsonResult(map[string]any{"tasks": m.StagedTasks(sessionID)})
	}
}

func parseNewTask(request mcp.CallToolRequest) (manager.NewTask, error) {
	args := request.GetArguments()
	nt := manager.NewTask{
		Title:          mcp.ParseString(request, "title", ""),
		Description:    mcp.ParseString(request, "description", ""),
		Category:       mcp.ParseString(request, "category", ""),
		Priority:       mcp.ParseInt(request, "priority", 0),
		EstimatedHours: optionalFloat(args, "estimated_hours"),
		Tags:           splitTags(mcp.ParseString(request, "tags", "")),
	}

	if deadline := mcp.ParseString(request, "deadline", ""); deadline != "" {
		d, err := exchange.ParseDeadline(deadline)
		if err != nil {
			return nt, err
		}
		nt.Deadline = &d
	}
	return nt, nil
}

func parseID(request mcp.CallToolRequest) int64 {
	return int64(mcp.ParseInt(request, "id", 0))
}

func optionalFloat(args map[string]any, key string) *float64 {
	if v, ok := args[key].(float64); ok {
		return &v
	}
	return nil
}

// splitTags splits a comma-separated list, dropping empty entries.
func splitTags(s string) []string {
	tags := []string{}
	for _, tag := range strings.Split(s, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
