// Package exchange converts task lists to and from the JSON and CSV
// interchange formats.
package exchange

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ldi/tasker/pkg/models"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// TagSeparator joins tags inside a single CSV cell.
const TagSeparator = ";"

// Columns is the field order shared by the JSON objects and the CSV header.
var Columns = []string{
	"id", "title", "description", "category", "priority", "status", "deadline",
	"created_at", "completed_at", "estimated_hours", "actual_hours", "tags",
}

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatCSV:
		return f, nil
	}
	return "", models.Invalidf("unsupported format %q (want json or csv)", s)
}

// FormatFromPath picks a format from the file extension, defaulting to JSON.
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return FormatCSV
	}
	return FormatJSON
}

// Encode writes tasks in the given format.
func Encode(w io.Writer, format Format, tasks []*models.Task) error {
	switch format {
	case FormatJSON:
		return EncodeJSON(w, tasks)
	case FormatCSV:
		return EncodeCSV(w, tasks)
	}
	return models.Invalidf("unsupported format %q", format)
}

// EncodeJSON writes tasks as an indented JSON array.
func EncodeJSON(w io.Writer, tasks []*models.Task) error {
	if tasks == nil {
		tasks = []*models.Task{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(tasks); err != nil {
		return models.SerializationErr("failed to encode tasks as json", err)
	}
	return nil
}

// EncodeCSV writes a header row followed by one row per task.
func EncodeCSV(w io.Writer, tasks []*models.Task) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return models.SerializationErr("failed to write csv header", err)
	}

	for _, t := range tasks {
		row := []string{
			strconv.FormatInt(t.ID, 10),
			t.Title,
			t.Description,
			t.Category,
			strconv.Itoa(t.Priority),
			string(t.Status),
			formatTime(t.Deadline),
			t.CreatedAt.Format(time.RFC3339),
			formatTime(t.CompletedAt),
			formatFloat(t.EstimatedHours),
			formatFloat(t.ActualHours),
			strings.Join(t.Tags, TagSeparator),
		}
		if err := cw.Write(row); err != nil {
			return models.SerializationErr("failed to write csv row", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return models.SerializationErr("failed to flush csv", err)
	}
	return nil
}

// importRecord mirrors the exported task object. id, status, created_at,
// completed_at and actual_hours are accepted but discarded so imported
// tasks start fresh.
type importRecord struct {
	Title          *string   `json:"title"`
	Description    string    `json:"description"`
	Category       string    `json:"category"`
	Priority       *int      `json:"priority"`
	Deadline       *Deadline `json:"deadline"`
	EstimatedHours *float64  `json:"estimated_hours"`
	Tags           []string  `json:"tags"`
}

// DecodeJSON reads an exported JSON array into new, unsaved tasks.
func DecodeJSON(r io.Reader) ([]*models.Task, error) {
	var records []importRecord
	dec := json.NewDecoder(r)
	if err := dec.Decode(&records); err != nil {
		return nil, models.SerializationErr("malformed task file", err)
	}

	tasks := make([]*models.Task, 0, len(records))
	for i, rec := range records {
		if rec.Title == nil {
			return nil, models.SerializationErr(fmt.Sprintf("record %d has no title", i+1), nil)
		}
		t := &models.Task{
			Title:          *rec.Title,
			Description:    rec.Description,
			Category:       rec.Category,
			EstimatedHours: rec.EstimatedHours,
			Tags:           rec.Tags,
		}
		if rec.Priority != nil {
			t.Priority = *rec.Priority
		}
		if rec.Deadline != nil {
			d := rec.Deadline.Time
			t.Deadline = &d
		}
		if t.Tags == nil {
			t.Tags = []string{}
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// deadlineLayouts are tried in order when reading a deadline. Besides
// RFC 3339 they cover naive ISO timestamps and plain dates.
var deadlineLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Deadline is a time that unmarshals from any of deadlineLayouts.
// Layouts without a zone are read as UTC.
type Deadline struct {
	time.Time
}

func (d *Deadline) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	t, err := ParseDeadline(s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// ParseDeadline parses a user or file supplied deadline.
func ParseDeadline(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range deadlineLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized deadline %q (want YYYY-MM-DD or RFC 3339)", s)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

func formatFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}
