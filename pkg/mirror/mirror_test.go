package mirror

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/harrisonrobin/kanban/pkg/model"
	"github.com/harrisonrobin/kanban/pkg/supermemory"
)

func TestRender(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	task := model.Task{
		ID:          1717243200000,
		Title:       "Fix login bug",
		Description: "Users get logged out",
		Column:      model.Progress,
		Priority:    model.High,
		Tags:        []string{"auth", "web"},
		StartTime:   model.NewTimestamp(now.Add(-90 * time.Minute)),
	}

	doc := Render(task, now, "")

	wantContent := strings.Join([]string{
		"Task: Fix login bug",
		"ID: 1717243200000",
		"Column: progress",
		"Priority: high",
		"Description: Users get logged out",
		"Status: In progress (1.5h)",
	}, "\n")
	if doc.Content != wantContent {
		t.Errorf("Content mismatch:\n%s\nwant:\n%s", doc.Content, wantContent)
	}

	wantLabels := []string{"project-kanban", "task", "col-progress", "priority-high", "task-1717243200000", "auth", "web"}
	if diff := cmp.Diff(wantLabels, doc.Labels); diff != "" {
		t.Errorf("Labels mismatch (-want +got):\n%s", diff)
	}

	if got := Render(task, now, "project-home").Labels[0]; got != "project-home" {
		t.Errorf("Expected custom project label, got %s", got)
	}
}

func TestStatusPhrase(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	hours := 2.0
	tests := []struct {
		name string
		task model.Task
		want string
	}{
		{"done with hours", model.Task{Column: model.Done, ActualHours: &hours}, "Completed in 2h"},
		{"done without hours", model.Task{Column: model.Done}, "Completed"},
		{"progress without start", model.Task{Column: model.Progress}, "In progress"},
		{"next up", model.Task{Column: model.NextUp}, "Next up"},
		{"backlog", model.Task{Column: model.Backlog}, "Backlog"},
	}
	for _, tt := range tests {
		if got := StatusPhrase(tt.task, now); got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, got, tt.want)
		}
	}
}

type fakeStore struct {
	content string
	tags    []string
	err     error
}

func (f *fakeStore) Store(_ context.Context, content string, tags []string) (*supermemory.Document, error) {
	f.content, f.tags = content, tags
	if f.err != nil {
		return nil, f.err
	}
	return &supermemory.Document{ID: "doc-1"}, nil
}

func TestMemoryNotify(t *testing.T) {
	fs := &fakeStore{}
	m := &Memory{Client: fs, Project: "project-x", Clock: func() time.Time { return time.Unix(0, 0) }}
	task := model.Task{ID: 42, Title: "t", Column: model.Backlog, Priority: model.Low}
	if err := m.Notify(context.Background(), task); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	if !strings.Contains(fs.content, "Task: t") || fs.tags[0] != "project-x" {
		t.Errorf("Unexpected stored document: %q %v", fs.content, fs.tags)
	}

	fs.err = errors.New("boom")
	if err := m.Notify(context.Background(), task); err == nil {
		t.Error("Expected error from failing store")
	}
}

type recorder struct {
	notified  int
	forgotten []int64
	err       error
}

func (r *recorder) Notify(context.Context, model.Task) error {
	r.notified++
	return r.err
}

func (r *recorder) Forget(_ context.Context, id int64) error {
	r.forgotten = append(r.forgotten, id)
	return nil
}

func TestFanout(t *testing.T) {
	ok := &recorder{}
	bad := &recorder{err: errors.New("unreachable")}
	f := Fanout{ok, bad, Nop{}}

	err := f.Notify(context.Background(), model.Task{ID: 1})
	if err == nil || !strings.Contains(err.Error(), "unreachable") {
		t.Errorf("Expected joined error, got %v", err)
	}
	if ok.notified != 1 || bad.notified != 1 {
		t.Errorf("Expected every notifier called once, got %d and %d", ok.notified, bad.notified)
	}

	if err := f.Forget(context.Background(), 7); err != nil {
		t.Fatalf("Forget failed: %v", err)
	}
	if len(ok.forgotten) != 1 || ok.forgotten[0] != 7 {
		t.Errorf("Expected forget forwarded, got %v", ok.forgotten)
	}

	skipping := Fanout{&recorder{err: ErrSkipped}}
	if err := skipping.Notify(context.Background(), model.Task{}); !IsSkipped(err) {
		t.Errorf("Expected ErrSkipped when every mirror skips, got %v", err)
	}
}
