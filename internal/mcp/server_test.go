package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ldi/tasker/internal/db"
	"github.com/ldi/tasker/internal/manager"
	"github.com/ldi/tasker/pkg/models"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func newTestServer(t *testing.T) (*server.MCPServer, *db.DB) {
	t.Helper()
	database, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := database.Init(context.Background()); err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}

	return NewServer(manager.New(database, manager.Options{})), database
}

func callTool(t *testing.T, s *server.MCPServer, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	tool := s.GetTool(name)
	if tool == nil {
		t.Fatalf("Tool %s not found", name)
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	result, err := tool.Handler(context.Background(), req)
	if err != nil {
		t.Fatalf("Handler %s failed: %v", name, err)
	}
	return result
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("empty tool result")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", result.Content[0])
	}
	return text.Text
}

func decodeResult(t *testing.T, result *mcp.CallToolResult, v any) {
	t.Helper()
	if result.IsError {
		t.Fatalf("Tool returned error: %s", resultText(t, result))
	}
	if err := json.Unmarshal([]byte(resultText(t, result)), v); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
}

func TestServerInitialization(t *testing.T) {
	s, _ := newTestServer(t)
	stdio := server.NewStdioServer(s)

	r, w := io.Pipe()
	stdout := &bytes.Buffer{}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- stdio.Listen(ctx, r, stdout)
	}()

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}

	rawReq := map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "initialize",
		"params":  initReq.Params,
	}

	data, err := json.Marshal(rawReq)
	if err != nil {
		t.Fatalf("Failed to marshal request: %v", err)
	}
	w.Write(data)
	w.Write([]byte("\n"))

	time.Sleep(200 * time.Millisecond)

	if stdout.Len() == 0 {
		t.Fatal("Expected response from server, got none")
	}

	var resp struct {
		ID     int `json:"id"`
		Result struct {
			ServerInfo struct {
				Name string `json:"name"`
			} `json:"serverInfo"`
		} `json:"result"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v\nOutput: %s", err, stdout.String())
	}

	if resp.ID != 1 {
		t.Errorf("Expected id 1, got %v", resp.ID)
	}
	if resp.Result.ServerInfo.Name != "Tasker" {
		t.Errorf("Expected server name Tasker, got %v", resp.Result.ServerInfo.Name)
	}
}

func TestToolHandlers(t *testing.T) {
	s, database := newTestServer(t)
	ctx := context.Background()

	var firstID int64

	t.Run("add_task", func(t *testing.T) {
		var resp struct {
			ID       int64 `json:"id"`
			Priority int   `json:"priority"`
		}
		decodeResult(t, callTool(t, s, "add_task", map[string]any{
			"title":    "Write report",
			"category": "work",
			"priority": float64(2),
			"tags":     "finance, urgent,",
		}), &resp)

		if resp.ID == 0 || resp.Priority != 2 {
			t.Errorf("unexpected response %+v", resp)
		}
		firstID = resp.ID

		task, err := database.GetTask(ctx, resp.ID)
		if err != nil {
			t.Fatalf("Failed to get task: %v", err)
		}
		if len(task.Tags) != 2 || task.Tags[1] != "urgent" {
			t.Errorf("expected tags [finance urgent], got %v", task.Tags)
		}
	})

	t.Run("add_task uses suggestion", func(t *testing.T) {
		var resp struct {
			Priority int `json:"priority"`
		}
		decodeResult(t, callTool(t, s, "add_task", map[string]any{
			"title":           "Big job",
			"estimated_hours": float64(20),
		}), &resp)
		if resp.Priority != 2 {
			t.Errorf("expected suggested priority 2, got %d", resp.Priority)
		}
	})

	t.Run("add_task rejects bad input", func(t *testing.T) {
		result := callTool(t, s, "add_task", map[string]any{"title": "x", "priority": float64(7)})
		if !result.IsError {
			t.Error("expected error for out of range priority")
		}
		result = callTool(t, s, "add_task", map[string]any{"title": "x", "deadline": "soonish"})
		if !result.IsError {
			t.Error("expected error for bad deadline")
		}
	})

	t.Run("list_tasks", func(t *testing.T) {
		var resp struct {
			Tasks []struct {
				Title string `json:"title"`
			} `json:"tasks"`
		}
		decodeResult(t, callTool(t, s, "list_tasks", map[string]any{"category": "work"}), &resp)
		if len(resp.Tasks) != 1 || resp.Tasks[0].Title != "Write report" {
			t.Errorf("unexpected tasks %+v", resp.Tasks)
		}

		result := callTool(t, s, "list_tasks", map[string]any{"status": "blocked"})
		if !result.IsError {
			t.Error("expected error for unknown status")
		}
	})

	t.Run("search_tasks", func(t *testing.T) {
		var resp struct {
			Tasks []struct {
				Title string `json:"title"`
			} `json:"tasks"`
		}
		decodeResult(t, callTool(t, s, "search_tasks", map[string]any{"keyword": "FINANCE"}), &resp)
		if len(resp.Tasks) != 1 {
			t.Errorf("expected 1 match, got %d", len(resp.Tasks))
		}
	})

	t.Run("update_task", func(t *testing.T) {
		result := callTool(t, s, "update_task", map[string]any{
			"id":       float64(firstID),
			"title":    "Write final report",
			"status":   "in_progress",
			"deadline": "2030-01-01",
		})
		if result.IsError {
			t.Fatalf("Tool returned error: %s", resultText(t, result))
		}

		task, _ := database.GetTask(ctx, firstID)
		if task.Title != "Write final report" || task.Status != "in_progress" || task.Deadline == nil {
			t.Errorf("update not applied: %+v", task)
		}

		callTool(t, s, "update_task", map[string]any{"id": float64(firstID), "deadline": "none"})
		task, _ = database.GetTask(ctx, firstID)
		if task.Deadline != nil {
			t.Errorf("expected deadline cleared, got %v", task.Deadline)
		}

		result = callTool(t, s, "update_task", map[string]any{"id": float64(999), "title": "x"})
		if !result.IsError || !strings.Contains(resultText(t, result), "not found") {
			t.Errorf("expected not found error, got %s", resultText(t, result))
		}
	})

	t.Run("get_task", func(t *testing.T) {
		var task struct {
			ID    int64  `json:"id"`
			Title string `json:"title"`
		}
		decodeResult(t, callTool(t, s, "get_task", map[string]any{"id": float64(firstID)}), &task)
		if task.ID != firstID {
			t.Errorf("expected id %d, got %d", firstID, task.ID)
		}
	})

	t.Run("complete_task", func(t *testing.T) {
		var resp struct {
			History struct {
				TaskID      int64    `json:"task_id"`
				ActualHours *float64 `json:"actual_hours"`
			} `json:"history"`
		}
		decodeResult(t, callTool(t, s, "complete_task", map[string]any{
			"id":           float64(firstID),
			"actual_hours": 1.5,
		}), &resp)
		if resp.History.TaskID != firstID || resp.History.ActualHours == nil || *resp.History.ActualHours != 1.5 {
			t.Errorf("unexpected history %+v", resp.History)
		}

		result := callTool(t, s, "complete_task", map[string]any{"id": float64(firstID)})
		if result.IsError || !strings.Contains(resultText(t, result), "already completed") {
			t.Errorf("expected already completed message, got %s", resultText(t, result))
		}
	})

	t.Run("list_history", func(t *testing.T) {
		var resp struct {
			History []any `json:"history"`
		}
		decodeResult(t, callTool(t, s, "list_history", map[string]any{}), &resp)
		if len(resp.History) != 1 {
			t.Errorf("expected 1 record, got %d", len(resp.History))
		}
	})

	t.Run("suggest_priority", func(t *testing.T) {
		var resp struct {
			Priority   int    `json:"priority"`
			Basis      string `json:"basis"`
			SampleSize int    `json:"sample_size"`
		}
		decodeResult(t, callTool(t, s, "suggest_priority", map[string]any{
			"category":        "work",
			"estimated_hours": float64(15),
		}), &resp)
		if resp.Priority != 3 || resp.Basis != "history" || resp.SampleSize != 1 {
			t.Errorf("unexpected suggestion %+v", resp)
		}
	})

	t.Run("get_stats", func(t *testing.T) {
		var resp struct {
			ByStatus   map[string]int `json:"by_status"`
			ByCategory map[string]int `json:"by_category"`
		}
		decodeResult(t, callTool(t, s, "get_stats", map[string]any{}), &resp)
		if resp.ByStatus["completed"] != 1 || resp.ByStatus["pending"] != 1 {
			t.Errorf("unexpected status counts %v", resp.ByStatus)
		}
		if resp.ByCategory["work"] != 1 || resp.ByCategory["general"] != 1 {
			t.Errorf("unexpected category counts %v", resp.ByCategory)
		}
	})

	t.Run("export_and_import", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tasks.json")
		result := callTool(t, s, "export_tasks", map[string]any{"path": path})
		if result.IsError || !strings.Contains(resultText(t, result), "Exported 2 task(s)") {
			t.Fatalf("unexpected export result: %s", resultText(t, result))
		}

		var resp struct {
			IDs []int64 `json:"ids"`
		}
		decodeResult(t, callTool(t, s, "import_tasks", map[string]any{"path": path}), &resp)
		if len(resp.IDs) != 2 {
			t.Errorf("expected 2 imported ids, got %v", resp.IDs)
		}

		result = callTool(t, s, "export_tasks", map[string]any{"path": path, "format": "xml"})
		if !result.IsError {
			t.Error("expected error for unknown format")
		}
	})

	t.Run("delete_task", func(t *testing.T) {
		result := callTool(t, s, "delete_task", map[string]any{"id": float64(firstID)})
		if result.IsError {
			t.Fatalf("Tool returned error: %s", resultText(t, result))
		}
		result = callTool(t, s, "delete_task", map[string]any{"id": float64(firstID)})
		if !result.IsError {
			t.Error("expected error deleting a missing task")
		}
	})
}

func TestStagingTools(t *testing.T) {
	s, database := newTestServer(t)
	ctx := context.Background()

	for _, title := range []string{"plan a", "plan b"} {
		result := callTool(t, s, "stage_task", map[string]any{"title": title, "session_id": "plan"})
		if result.IsError {
			t.Fatalf("stage_task failed: %s", resultText(t, result))
		}
	}

	result := callTool(t, s, "stage_task", map[string]any{"title": "", "session_id": "plan"})
	if !result.IsError {
		t.Error("expected staging an untitled task to fail")
	}

	var staged struct {
		Tasks []struct {
			Title string `json:"title"`
		} `json:"tasks"`
	}
	decodeResult(t, callTool(t, s, "list_staged_tasks", map[string]any{"session_id": "plan"}), &staged)
	if len(staged.Tasks) != 2 {
		t.Fatalf("expected 2 staged tasks, got %d", len(staged.Tasks))
	}

	tasks, _ := database.ListTasks(ctx, models.TaskFilter{})
	if len(tasks) != 0 {
		t.Errorf("expected nothing written before commit, got %d", len(tasks))
	}

	var committed struct {
		SessionID string  `json:"session_id"`
		IDs       []int64 `json:"ids"`
	}
	decodeResult(t, callTool(t, s, "commit_staged_tasks", map[string]any{"session_id": "plan"}), &committed)
	if committed.SessionID != "plan" || len(committed.IDs) != 2 {
		t.Errorf("unexpected commit response %+v", committed)
	}

	tasks, _ = database.ListTasks(ctx, models.TaskFilter{})
	if len(tasks) != 2 {
		t.Errorf("expected 2 tasks after commit, got %d", len(tasks))
	}
}
