package kanban

import (
	"time"

	"github.com/harrisonrobin/kanban/pkg/model"
)

// Status summarizes the board at a single instant.
type Status struct {
	Total      int                  `json:"total"`
	ByColumn   map[model.Column]int `json:"byColumn"`
	InProgress []model.Task         `json:"inProgress"`
	Overdue    []model.Task         `json:"overdue"`
	DueToday   []model.Task         `json:"dueToday"`
	Timestamp  time.Time            `json:"timestamp"`
}

// Status computes the summary against one reading of the clock.
func (b *Board) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Summarize(b.tasks, b.now())
}

// Summarize buckets tasks relative to now. Overdue and DueToday are disjoint:
// a task due before now is overdue unless it is done; otherwise it is due
// today when its due date falls on now's UTC calendar day.
func Summarize(tasks []model.Task, now time.Time) Status {
	now = now.UTC()
	s := Status{
		Total:      len(tasks),
		ByColumn:   make(map[model.Column]int, len(model.Columns)),
		InProgress: []model.Task{},
		Overdue:    []model.Task{},
		DueToday:   []model.Task{},
		Timestamp:  now,
	}
	for _, c := range model.Columns {
		s.ByColumn[c] = 0
	}

	for _, t := range tasks {
		s.ByColumn[t.Column]++
		if t.Column == model.Progress {
			s.InProgress = append(s.InProgress, t.Clone())
		}
		if !t.DueDate.IsSet() {
			continue
		}
		due := t.DueDate.Time.UTC()
		if due.Before(now) && t.Column != model.Done {
			s.Overdue = append(s.Overdue, t.Clone())
		} else if sameDay(due, now) {
			s.DueToday = append(s.DueToday, t.Clone())
		}
	}
	return s
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
