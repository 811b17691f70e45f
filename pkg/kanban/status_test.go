package kanban

import (
	"context"
	"testing"
	"time"

	"github.com/harrisonrobin/kanban/pkg/model"
)

func dueTask(id int64, col model.Column, due time.Time) model.Task {
	return model.Task{ID: id, Title: "t", Column: col, Priority: model.Med, DueDate: model.NewTimestamp(due)}
}

func ids(tasks []model.Task) []int64 {
	out := make([]int64, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSummarize(t *testing.T) {
	now := time.Date(2024, 4, 10, 15, 0, 0, 0, time.UTC)
	tasks := []model.Task{
		{ID: 1, Title: "no due", Column: model.Backlog, Priority: model.Low},
		dueTask(2, model.NextUp, now.Add(-48*time.Hour)),                // overdue
		dueTask(3, model.Progress, now.Add(-time.Hour)),                 // overdue, earlier today
		dueTask(4, model.Progress, now.Add(2*time.Hour)),                // due today
		dueTask(5, model.Done, now.Add(-2*time.Hour)),                   // done, due earlier today
		dueTask(6, model.Done, now.Add(-72*time.Hour)),                  // done, long ago
		dueTask(7, model.Backlog, now.Add(10*time.Hour)),                // tomorrow
		dueTask(8, model.Backlog, now.Add(8*time.Hour+59*time.Minute)), // 23:59 today
	}

	s := Summarize(tasks, now)

	if s.Total != 8 {
		t.Errorf("Expected total 8, got %d", s.Total)
	}
	sum := 0
	for _, c := range model.Columns {
		if _, ok := s.ByColumn[c]; !ok {
			t.Errorf("Expected column %s present", c)
		}
		sum += s.ByColumn[c]
	}
	if sum != s.Total {
		t.Errorf("Column counts sum to %d, want %d", sum, s.Total)
	}
	if s.ByColumn[model.Backlog] != 3 || s.ByColumn[model.Done] != 2 {
		t.Errorf("Unexpected counts %v", s.ByColumn)
	}
	if got := ids(s.InProgress); !equalIDs(got, []int64{3, 4}) {
		t.Errorf("InProgress = %v", got)
	}
	if got := ids(s.Overdue); !equalIDs(got, []int64{2, 3}) {
		t.Errorf("Overdue = %v", got)
	}
	if got := ids(s.DueToday); !equalIDs(got, []int64{4, 5, 8}) {
		t.Errorf("DueToday = %v", got)
	}
	if !s.Timestamp.Equal(now) {
		t.Errorf("Expected timestamp %v, got %v", now, s.Timestamp)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil, time.Now())
	if s.Total != 0 || len(s.ByColumn) != 4 || s.Overdue == nil || s.DueToday == nil || s.InProgress == nil {
		t.Errorf("Unexpected empty status %+v", s)
	}
}

func TestOverdueClearsWhenDone(t *testing.T) {
	b, clock, _, _ := newTestBoard(t)
	due := clock.now.Add(-24 * time.Hour)
	task := mustCreate(t, b, NewTask{Title: "late", DueDate: &due})

	if got := ids(b.Status().Overdue); !equalIDs(got, []int64{task.ID}) {
		t.Fatalf("Expected task overdue, got %v", got)
	}
	mustMove(t, b, task.ID, "done")
	if got := b.Status().Overdue; len(got) != 0 {
		t.Errorf("Expected no overdue tasks after done, got %v", ids(got))
	}
}

func TestStatusUsesBoardClock(t *testing.T) {
	b, clock, _, _ := newTestBoard(t)
	due := clock.now.Add(time.Hour)
	if _, err := b.Create(context.Background(), NewTask{Title: "soon", DueDate: &due}); err != nil {
		t.Fatal(err)
	}
	if s := b.Status(); len(s.DueToday) != 1 || len(s.Overdue) != 0 {
		t.Errorf("Expected due today, got %+v", s)
	}
	clock.Advance(2 * time.Hour)
	if s := b.Status(); len(s.Overdue) != 1 || len(s.DueToday) != 0 {
		t.Errorf("Expected overdue after the clock passes the due date, got %+v", s)
	}
}
