package taskwarrior

import (
	"strings"
	"testing"
	"time"
)

func TestParseTask(t *testing.T) {
	input := `{
		"uuid": "f45a05b3-c12e-42e5-9c9c-333333333333",
		"description": "Buy milk",
		"status": "pending",
		"due": "20230101T120000Z",
		"priority": "H",
		"project": "Groceries",
		"tags": ["buy", "food"],
		"est": "PT1H30M",
		"annotations": [
			{"entry": "20230101T120500Z", "description": "Don't forget almond milk"}
		]
	}`

	client := NewClient()
	task, err := client.ParseTask(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseTask failed: %v", err)
	}

	if task.UUID != "f45a05b3-c12e-42e5-9c9c-333333333333" {
		t.Errorf("Expected UUID f45a05b3-c12e-42e5-9c9c-333333333333, got %s", task.UUID)
	}
	if len(task.Annotations) != 1 {
		t.Errorf("Expected 1 annotation, got %d", len(task.Annotations))
	}
	expectedDue, _ := time.Parse(time.RFC3339, "2023-01-01T12:00:00Z")
	if !task.Due.Time.Equal(expectedDue) {
		t.Errorf("Expected Due %v, got %v", expectedDue, task.Due.Time)
	}

	nt, ok := task.NewTask()
	if !ok {
		t.Fatal("Expected pending task to be importable")
	}
	if nt.Title != "Buy milk" || nt.Column != "backlog" || nt.Priority != "high" {
		t.Errorf("Unexpected task request %+v", nt)
	}
	if nt.Description != "Don't forget almond milk" {
		t.Errorf("Expected annotation as description, got %q", nt.Description)
	}
	if len(nt.Tags) != 3 || nt.Tags[2] != "project:Groceries" {
		t.Errorf("Unexpected tags %v", nt.Tags)
	}
	if nt.DueDate == nil || !nt.DueDate.Equal(expectedDue) {
		t.Errorf("Unexpected due %v", nt.DueDate)
	}
	if nt.EstimatedHours == nil || *nt.EstimatedHours != 1.5 {
		t.Errorf("Expected 1.5h estimate, got %v", nt.EstimatedHours)
	}
}

func TestParseTasksFormats(t *testing.T) {
	client := NewClient()

	array := `[{"uuid":"a","description":"one","status":"completed"},
	           {"uuid":"b","description":"two","status":"pending","start":"20240410T090000Z"}]`
	tasks, err := client.ParseTasks(strings.NewReader(array))
	if err != nil {
		t.Fatalf("ParseTasks array failed: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("Expected 2 tasks, got %d", len(tasks))
	}
	if tasks[0].Column() != "done" || tasks[1].Column() != "progress" {
		t.Errorf("Unexpected columns %s, %s", tasks[0].Column(), tasks[1].Column())
	}

	lines := "{\"uuid\":\"c\",\"description\":\"three\",\"status\":\"deleted\"}\n{\"uuid\":\"d\",\"description\":\"four\",\"status\":\"waiting\",\"priority\":\"L\"}\n"
	tasks, err = client.ParseTasks(strings.NewReader(lines))
	if err != nil {
		t.Fatalf("ParseTasks lines failed: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("Expected 2 tasks, got %d", len(tasks))
	}
	if _, ok := tasks[0].NewTask(); ok {
		t.Error("Expected deleted task to be skipped")
	}
	if nt, ok := tasks[1].NewTask(); !ok || nt.Priority != "low" || nt.Column != "backlog" {
		t.Errorf("Unexpected waiting task %+v", nt)
	}

	if tasks, err := client.ParseTasks(strings.NewReader("  \n")); err != nil || len(tasks) != 0 {
		t.Errorf("Expected empty input to yield nothing, got %v, %v", tasks, err)
	}
}
