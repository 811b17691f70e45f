package ui

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/harrisonrobin/kanban/pkg/kanban"
	"github.com/harrisonrobin/kanban/pkg/model"
	"github.com/harrisonrobin/kanban/pkg/store"
)

var fixedNow = time.Date(2024, 4, 10, 9, 0, 0, 0, time.UTC)

func newBoard(t *testing.T, tasks ...kanban.NewTask) *kanban.Board {
	t.Helper()
	b, err := kanban.Open(kanban.Options{
		Store:  store.New(filepath.Join(t.TempDir(), "tasks.json")),
		Clock:  func() time.Time { return fixedNow },
		Logger: log.New(io.Discard),
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, in := range tasks {
		if _, err := b.Create(context.Background(), in); err != nil {
			t.Fatal(err)
		}
	}
	return b
}

func press(t *testing.T, m Model, key tea.KeyMsg) Model {
	t.Helper()
	next, cmd := m.Update(key)
	m = next.(Model)
	if cmd != nil {
		if msg := cmd(); msg != nil {
			next, _ = m.Update(msg)
			m = next.(Model)
		}
	}
	return m
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestNavigation(t *testing.T) {
	b := newBoard(t,
		kanban.NewTask{Title: "first"},
		kanban.NewTask{Title: "second"},
		kanban.NewTask{Title: "doing", Column: "progress"},
	)
	m := NewModel(context.Background(), b, func() time.Time { return fixedNow })

	if task, ok := m.Selected(); !ok || task.Title != "first" {
		t.Fatalf("Expected first backlog task selected, got %v %v", task, ok)
	}
	m = press(t, m, tea.KeyMsg{Type: tea.KeyDown})
	if task, _ := m.Selected(); task.Title != "second" {
		t.Errorf("Expected second after down, got %q", task.Title)
	}
	m = press(t, m, tea.KeyMsg{Type: tea.KeyDown})
	if task, _ := m.Selected(); task.Title != "second" {
		t.Errorf("Expected cursor to stop at the last task, got %q", task.Title)
	}

	m = press(t, m, tea.KeyMsg{Type: tea.KeyRight})
	if _, ok := m.Selected(); ok {
		t.Error("Expected empty next-up column")
	}
	m = press(t, m, tea.KeyMsg{Type: tea.KeyRight})
	if task, ok := m.Selected(); !ok || task.Title != "doing" {
		t.Errorf("Expected in-progress task, got %v %v", task, ok)
	}
}

func TestShiftMovesTask(t *testing.T) {
	b := newBoard(t, kanban.NewTask{Title: "ship it"})
	m := NewModel(context.Background(), b, func() time.Time { return fixedNow })

	m = press(t, m, runes(">"))
	m = press(t, m, runes(">"))
	got := b.ListByColumn(model.Progress)
	if len(got) != 1 || got[0].Title != "ship it" {
		t.Fatalf("Expected task in progress, got %+v", got)
	}
	if !got[0].StartTime.IsSet() {
		t.Error("Expected start time to be set by the move")
	}
	if task, _ := m.Selected(); task.Column != model.Progress {
		t.Errorf("Expected cursor to follow the task, got column %s", task.Column)
	}

	m = press(t, m, runes("<"))
	if len(b.ListByColumn(model.NextUp)) != 1 {
		t.Error("Expected task moved back to next-up")
	}

	m = press(t, m, tea.KeyMsg{Type: tea.KeyLeft})
	if _, cmd := m.Update(runes("<")); cmd != nil {
		t.Error("Expected no move from an empty column")
	}
}

func TestViewAndQuit(t *testing.T) {
	late := fixedNow.Add(-time.Hour)
	b := newBoard(t,
		kanban.NewTask{Title: "late task", Column: "next-up", DueDate: &late},
		kanban.NewTask{Title: "fresh"},
	)
	m := NewModel(context.Background(), b, func() time.Time { return fixedNow })

	view := m.View()
	for _, want := range []string{"Backlog (1)", "Next Up (1)", "In Progress (0)", "late task", "fresh", "q quit"} {
		if !strings.Contains(view, want) {
			t.Errorf("Expected view to contain %q:\n%s", want, view)
		}
	}

	_, cmd := m.Update(runes("q"))
	if cmd == nil {
		t.Fatal("Expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("Expected tea.QuitMsg")
	}
}
