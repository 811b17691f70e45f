package util

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/harrisonrobin/kanban/pkg/mirror"
	"github.com/harrisonrobin/kanban/pkg/model"
	"google.golang.org/api/calendar/v3"
)

func float(v float64) *float64 { return &v }

func TestConvertTaskToCalendarEvent(t *testing.T) {
	now := time.Date(2024, 4, 10, 9, 0, 0, 0, time.UTC)
	due := time.Date(2024, 4, 9, 12, 0, 0, 0, time.UTC)
	task := &model.Task{
		ID:             1712736000000,
		Title:          "Test Task",
		Description:    "Note 1",
		Column:         model.NextUp,
		Priority:       model.High,
		Tags:           []string{"buy", "food"},
		DueDate:        model.NewTimestamp(due),
		EstimatedHours: float(1.5),
	}

	event, err := ConvertTaskToCalendarEvent(task, now)
	if err != nil {
		t.Fatalf("ConvertTaskToCalendarEvent failed: %v", err)
	}

	if event.ExtendedProperties == nil || event.ExtendedProperties.Private == nil {
		t.Fatal("ExtendedProperties or Private map is nil")
	}
	if val := event.ExtendedProperties.Private[TaskIDProperty]; val != "1712736000000" {
		t.Errorf("Expected %s 1712736000000, got %v", TaskIDProperty, val)
	}
	if event.Summary != "! Test Task" {
		t.Errorf("Expected overdue summary, got %q", event.Summary)
	}
	if event.ColorId != "6" {
		t.Errorf("Expected color 6 for high priority, got %s", event.ColorId)
	}
	if event.Start.DateTime != "2024-04-09T12:00:00Z" || event.End.DateTime != "2024-04-09T13:30:00Z" {
		t.Errorf("Unexpected window %s - %s", event.Start.DateTime, event.End.DateTime)
	}
	for _, want := range []string{"#buy #food", "Note 1", "Accounting:", "• estimated: 1h30m0s", "ID: 1712736000000"} {
		if !strings.Contains(event.Description, want) {
			t.Errorf("Expected description to contain %q, got: %s", want, event.Description)
		}
	}
	if id, ok := GetTaskIDFromEventDescription(event.Description); !ok || id != task.ID {
		t.Errorf("Expected id parsed back from description, got %d %v", id, ok)
	}
}

func TestConvertDoneTask(t *testing.T) {
	end := time.Date(2024, 4, 10, 11, 0, 0, 0, time.UTC)
	task := &model.Task{
		ID:             2,
		Title:          "Shipped",
		Column:         model.Done,
		Priority:       model.Critical,
		StartTime:      model.NewTimestamp(end.Add(-2 * time.Hour)),
		EndTime:        model.NewTimestamp(end),
		EstimatedHours: float(1),
		ActualHours:    float(2),
	}
	event, err := ConvertTaskToCalendarEvent(task, end.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if event.Summary != "✓ Shipped" || event.ColorId != "8" {
		t.Errorf("Unexpected summary/color %q %s", event.Summary, event.ColorId)
	}
	if event.Start.DateTime != "2024-04-10T09:00:00Z" || event.End.DateTime != "2024-04-10T11:00:00Z" {
		t.Errorf("Unexpected window %s - %s", event.Start.DateTime, event.End.DateTime)
	}
	if !strings.Contains(event.Description, "• over estimate by: 1h0m0s") {
		t.Errorf("Expected over estimate line, got: %s", event.Description)
	}
}

func TestConvertInProgressTask(t *testing.T) {
	start := time.Date(2024, 4, 10, 9, 0, 0, 0, time.UTC)
	task := &model.Task{ID: 3, Title: "Busy", Column: model.Progress, Priority: model.Low, StartTime: model.NewTimestamp(start)}
	event, err := ConvertTaskToCalendarEvent(task, start)
	if err != nil {
		t.Fatal(err)
	}
	if event.Summary != "‣ Busy" || event.ColorId != "2" {
		t.Errorf("Unexpected summary/color %q %s", event.Summary, event.ColorId)
	}
	if event.End.DateTime != "2024-04-10T09:30:00Z" {
		t.Errorf("Expected default 30m window, got end %s", event.End.DateTime)
	}
}

func TestConvertUnscheduledTaskIsSkipped(t *testing.T) {
	task := &model.Task{ID: 4, Title: "Someday", Column: model.Backlog, Priority: model.Med}
	_, err := ConvertTaskToCalendarEvent(task, time.Now())
	if !errors.Is(err, ErrNoSchedule) || !mirror.IsSkipped(err) {
		t.Errorf("Expected skipped error, got %v", err)
	}
}

func TestEventNeedsUpdate(t *testing.T) {
	existing := &calendar.Event{
		Summary: "Task",
		ColorId: "5",
		Start:   &calendar.EventDateTime{DateTime: "2024-04-10T09:00:00Z"},
		End:     &calendar.EventDateTime{DateTime: "2024-04-10T09:30:00Z"},
	}
	same := &calendar.Event{
		Summary: "Task",
		ColorId: "5",
		Start:   &calendar.EventDateTime{DateTime: "2024-04-10T11:00:00+02:00"},
		End:     &calendar.EventDateTime{DateTime: "2024-04-10T09:30:00Z"},
	}
	patch, err := EventNeedsUpdate(existing, same)
	if err != nil || patch != nil {
		t.Fatalf("Expected no patch, got %+v, %v", patch, err)
	}

	moved := &calendar.Event{
		Summary: "! Task",
		ColorId: "5",
		Start:   &calendar.EventDateTime{DateTime: "2024-04-10T10:00:00Z"},
		End:     &calendar.EventDateTime{DateTime: "2024-04-10T10:30:00Z"},
	}
	patch, err = EventNeedsUpdate(existing, moved)
	if err != nil {
		t.Fatal(err)
	}
	if patch == nil || patch.Summary != "! Task" || patch.Start == nil || patch.ColorId != "" {
		t.Errorf("Unexpected patch %+v", patch)
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"", 0, false},
		{"PT1H30M", 90 * time.Minute, false},
		{"PT45S", 45 * time.Second, false},
		{"P1D", 0, true},
		{"1h", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseDuration(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDuration(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDuration(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
