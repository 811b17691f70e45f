package google

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harrisonrobin/kanban/pkg/mirror"
	"github.com/harrisonrobin/kanban/pkg/model"
	"github.com/harrisonrobin/kanban/pkg/overdue"
	"google.golang.org/api/calendar/v3"
)

// Mirror keeps dated tasks on a calendar. It implements mirror.Notifier and
// mirror.Forgetter.
type Mirror struct {
	Client  *CalendarClient
	Overdue *overdue.Table
	Clock   func() time.Time
	Logger  *log.Logger
}

func (m *Mirror) now() time.Time {
	if m.Clock != nil {
		return m.Clock()
	}
	return time.Now()
}

func (m *Mirror) logger() *log.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return log.Default()
}

func (m *Mirror) Notify(ctx context.Context, task model.Task) error {
	now := m.now()
	event, err := m.Client.SyncTask(ctx, task, now)
	if err != nil {
		if mirror.IsSkipped(err) && m.Client.index != nil && m.Client.index.Get(task.ID) != "" {
			// A task that lost its dates keeps no event behind.
			if ferr := m.Forget(ctx, task.ID); ferr != nil {
				return ferr
			}
		}
		return fmt.Errorf("sync task %d to calendar: %w", task.ID, err)
	}

	if m.Overdue != nil {
		if (task.Column == model.Backlog || task.Column == model.NextUp) && task.DueDate.IsSet() {
			m.Overdue.Update(task.ID, event.Id, task.Title, task.DueDate.Time, now)
		} else {
			m.Overdue.Remove(task.ID)
		}
	}
	return m.save()
}

func (m *Mirror) Forget(ctx context.Context, id int64) error {
	ev, err := m.Client.lookup(ctx, id)
	if err != nil {
		return err
	}
	if ev != nil {
		if err := m.Client.DeleteEvent(ctx, ev.Id); err != nil {
			return fmt.Errorf("delete event for task %d: %w", id, err)
		}
		m.logger().Debug("deleted calendar event", "id", id, "event", ev.Id)
	}
	if m.Client.index != nil {
		m.Client.index.Remove(id)
	}
	if m.Overdue != nil {
		m.Overdue.Remove(id)
	}
	return m.save()
}

// Sweep marks events whose due date passed since they were last synced and
// returns how many were patched.
func (m *Mirror) Sweep(ctx context.Context) (int, error) {
	if m.Overdue == nil {
		return 0, nil
	}
	var errs []error
	patched := 0
	for _, entry := range m.Overdue.Sweep(m.now()) {
		patch := &calendar.Event{Summary: "! " + entry.Title}
		if _, err := m.Client.PatchEvent(ctx, entry.EventID, patch); err != nil {
			errs = append(errs, fmt.Errorf("mark task %d overdue: %w", entry.TaskID, err))
			continue
		}
		patched++
		m.logger().Info("marked overdue", "id", entry.TaskID, "title", entry.Title)
	}
	if err := m.save(); err != nil {
		errs = append(errs, err)
	}
	return patched, errors.Join(errs...)
}

func (m *Mirror) save() error {
	if m.Client.index != nil {
		if err := m.Client.index.Save(); err != nil {
			return fmt.Errorf("save event index: %w", err)
		}
	}
	if m.Overdue != nil {
		if err := m.Overdue.Save(); err != nil {
			return fmt.Errorf("save overdue table: %w", err)
		}
	}
	return nil
}
