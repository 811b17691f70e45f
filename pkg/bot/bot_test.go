package bot

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harrisonrobin/kanban/pkg/kanban"
	"github.com/harrisonrobin/kanban/pkg/model"
	"github.com/harrisonrobin/kanban/pkg/store"
)

func newHandler(t *testing.T, now *time.Time) (*Handler, *kanban.Board) {
	t.Helper()
	clock := func() time.Time { return *now }
	b, err := kanban.Open(kanban.Options{
		Store:  store.New(filepath.Join(t.TempDir(), "tasks.json")),
		Clock:  clock,
		Logger: log.New(io.Discard),
	})
	if err != nil {
		t.Fatal(err)
	}
	return &Handler{Board: b, BoardURL: "https://board.example", Clock: clock}, b
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in   string
		cmd  string
		args []string
	}{
		{"/kanban status", "status", []string{}},
		{"/kanban", "", nil},
		{"  /kanban@kanbot MOVE TASK-019 progress ", "move", []string{"TASK-019", "progress"}},
		{"add Fix login bug", "add", []string{"Fix", "login", "bug"}},
	}
	for _, tt := range tests {
		cmd, args := ParseCommand(tt.in)
		if cmd != tt.cmd || strings.Join(args, "|") != strings.Join(tt.args, "|") {
			t.Errorf("ParseCommand(%q) = %q %v, want %q %v", tt.in, cmd, args, tt.cmd, tt.args)
		}
	}
}

func TestAddAndMove(t *testing.T) {
	now := time.Date(2024, 4, 10, 9, 0, 0, 0, time.UTC)
	h, b := newHandler(t, &now)
	ctx := context.Background()

	if got := h.HandleText(ctx, `/kanban add "Fix login bug"`); !strings.HasPrefix(got, "✅ Added task **TASK-") {
		t.Fatalf("Unexpected add reply %q", got)
	}
	if got := h.Handle(ctx, "add", []string{"ab"}); !strings.Contains(got, "too short") {
		t.Errorf("Expected short title rejected, got %q", got)
	}
	tasks := b.Tasks()
	if len(tasks) != 1 || tasks[0].Column != model.Backlog || tasks[0].Priority != model.Med {
		t.Fatalf("Unexpected tasks %+v", tasks)
	}

	short := ShortID(tasks[0].ID)
	if got := h.Handle(ctx, "move", []string{short, "progress"}); got != "✅ Moved **Fix login bug** to **progress**" {
		t.Errorf("Unexpected move reply %q", got)
	}
	task, _ := b.FindByID(tasks[0].ID)
	if task.Column != model.Progress || !task.StartTime.IsSet() {
		t.Errorf("Expected task started, got %+v", task)
	}

	if got := h.Handle(ctx, "move", []string{short, "doing"}); !strings.HasPrefix(got, "❌ Invalid column") {
		t.Errorf("Expected invalid column reply, got %q", got)
	}
	if got := h.Handle(ctx, "move", []string{"TASK-abc", "done"}); got != "❌ Invalid task ID: TASK-abc" {
		t.Errorf("Expected invalid id reply, got %q", got)
	}
	if got := h.Handle(ctx, "move", []string{"999999", "done"}); got != "❌ Task 999999 not found" {
		t.Errorf("Expected not found reply, got %q", got)
	}
}

func TestMoveAmbiguousShortID(t *testing.T) {
	now := time.Date(2024, 4, 10, 9, 0, 0, 0, time.UTC)
	h, b := newHandler(t, &now)
	ctx := context.Background()

	first, err := b.Create(ctx, kanban.NewTask{Title: "first"})
	if err != nil {
		t.Fatal(err)
	}
	now = now.Add(time.Second)
	if _, err := b.Create(ctx, kanban.NewTask{Title: "second"}); err != nil {
		t.Fatal(err)
	}

	// Both ids end in 000 one second apart.
	if got := h.Handle(ctx, "move", []string{"TASK-000", "done"}); !strings.Contains(got, "ambiguous") {
		t.Errorf("Expected ambiguous reply, got %q", got)
	}
	ref := ShortID(first.ID)
	if ref != "TASK-000" {
		t.Fatalf("Unexpected short id %s", ref)
	}
}

func TestStatusMessage(t *testing.T) {
	now := time.Date(2024, 4, 10, 9, 0, 0, 0, time.UTC)
	h, b := newHandler(t, &now)
	ctx := context.Background()

	yesterday := now.Add(-24 * time.Hour)
	tonight := now.Add(6 * time.Hour)
	for i := 0; i < 6; i++ {
		if _, err := b.Create(ctx, kanban.NewTask{Title: "work", Column: "progress"}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := b.Create(ctx, kanban.NewTask{Title: "late", Column: "next-up", DueDate: &yesterday}); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Create(ctx, kanban.NewTask{Title: "tonight", DueDate: &tonight}); err != nil {
		t.Fatal(err)
	}

	got := h.Handle(ctx, "status", nil)
	for _, want := range []string{
		"📊 **Kanban Status** - Apr 10, 09:00 AM",
		"**In Progress** (6):",
		"_...and 1 more_",
		"**Next Up** (1):",
		"**Backlog:** 1 tasks",
		"**Done:** 0 tasks",
		"🔴 **Overdue:** 1 tasks",
		"⚠️ **Due today:** 1 task(s)",
		"🔗 View board: https://board.example",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("Expected status to contain %q, got:\n%s", want, got)
		}
	}

	overdue := h.Handle(ctx, "overdue", nil)
	if !strings.Contains(overdue, "Due: Apr 09 (1 days ago)") || !strings.Contains(overdue, "Column: next-up") {
		t.Errorf("Unexpected overdue reply:\n%s", overdue)
	}
}

func TestListReplies(t *testing.T) {
	now := time.Date(2024, 4, 10, 9, 0, 0, 0, time.UTC)
	h, b := newHandler(t, &now)
	ctx := context.Background()

	if got := h.Handle(ctx, "progress", nil); got != "✅ No tasks in progress" {
		t.Errorf("Unexpected empty progress reply %q", got)
	}
	if got := h.Handle(ctx, "next", nil); got != "📭 No tasks in Next Up" {
		t.Errorf("Unexpected empty next reply %q", got)
	}
	if got := h.Handle(ctx, "overdue", nil); got != "✅ No overdue tasks!" {
		t.Errorf("Unexpected empty overdue reply %q", got)
	}

	task, err := b.Create(ctx, kanban.NewTask{Title: "urgent", Priority: "critical"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Move(ctx, task.ID, "progress"); err != nil {
		t.Fatal(err)
	}
	now = now.Add(3 * time.Hour)
	got := h.Handle(ctx, "progress", nil)
	if !strings.Contains(got, "⏱ started 3h ago") || !strings.Contains(got, "🔴 Critical") {
		t.Errorf("Unexpected progress reply:\n%s", got)
	}

	if got := h.Handle(ctx, "bogus", nil); !strings.HasPrefix(got, "❓ Unknown command") {
		t.Errorf("Unexpected unknown reply %q", got)
	}
	if got := h.Handle(ctx, "help", nil); !strings.Contains(got, "/kanban move TASK-019 progress") {
		t.Errorf("Unexpected help %q", got)
	}
}
