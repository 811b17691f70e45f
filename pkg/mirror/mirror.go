// Package mirror forwards tasks to external stores after each mutation.
// Mirrors never hold local state hostage: the board logs and drops their errors.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/harrisonrobin/kanban/pkg/model"
	"github.com/harrisonrobin/kanban/pkg/supermemory"
)

// DefaultProject is the fixed label attached to every mirrored task.
const DefaultProject = "project-kanban"

// ErrSkipped marks a task the mirror intentionally did not forward.
var ErrSkipped = errors.New("mirror: task skipped")

// IsSkipped reports whether err means the task was deliberately not mirrored.
func IsSkipped(err error) bool {
	return errors.Is(err, ErrSkipped)
}

// Notifier receives a task after it was created or updated.
type Notifier interface {
	Notify(ctx context.Context, task model.Task) error
}

// Forgetter is implemented by mirrors that can drop a deleted task.
type Forgetter interface {
	Forget(ctx context.Context, id int64) error
}

// Nop discards every task.
type Nop struct{}

func (Nop) Notify(context.Context, model.Task) error { return nil }

// Fanout sends each task to every notifier and joins their errors.
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, task model.Task) error {
	var errs []error
	skipped := 0
	for _, n := range f {
		err := n.Notify(ctx, task)
		switch {
		case err == nil:
		case IsSkipped(err):
			skipped++
		default:
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 && len(f) > 0 && skipped == len(f) {
		return ErrSkipped
	}
	return errors.Join(errs...)
}

func (f Fanout) Forget(ctx context.Context, id int64) error {
	var errs []error
	for _, n := range f {
		if fg, ok := n.(Forgetter); ok {
			if err := fg.Forget(ctx, id); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Document is the denormalized text and label form of a task.
type Document struct {
	Content string
	Labels  []string
}

// Render builds the searchable document for task. project overrides the
// fixed project label when non-empty.
func Render(task model.Task, now time.Time, project string) Document {
	if project == "" {
		project = DefaultProject
	}
	content := strings.Join([]string{
		"Task: " + task.Title,
		"ID: " + strconv.FormatInt(task.ID, 10),
		"Column: " + string(task.Column),
		"Priority: " + string(task.Priority),
		"Description: " + task.Description,
		"Status: " + StatusPhrase(task, now),
	}, "\n")

	labels := []string{
		project,
		"task",
		"col-" + string(task.Column),
		"priority-" + string(task.Priority),
		fmt.Sprintf("task-%d", task.ID),
	}
	labels = append(labels, task.Tags...)
	return Document{Content: content, Labels: labels}
}

// StatusPhrase describes where a task stands, including elapsed hours.
func StatusPhrase(task model.Task, now time.Time) string {
	switch task.Column {
	case model.Done:
		if task.ActualHours != nil && *task.ActualHours > 0 {
			return fmt.Sprintf("Completed in %sh", strconv.FormatFloat(*task.ActualHours, 'f', -1, 64))
		}
		return "Completed"
	case model.Progress:
		if task.StartTime.IsSet() {
			return fmt.Sprintf("In progress (%.1fh)", now.Sub(task.StartTime.Time).Hours())
		}
		return "In progress"
	case model.NextUp:
		return "Next up"
	default:
		return "Backlog"
	}
}

// MemoryStore is the subset of the semantic memory client used for mirroring.
type MemoryStore interface {
	Store(ctx context.Context, content string, tags []string) (*supermemory.Document, error)
}

// Memory mirrors tasks into the semantic memory store.
type Memory struct {
	Client  MemoryStore
	Project string
	Clock   func() time.Time
}

func (m *Memory) Notify(ctx context.Context, task model.Task) error {
	now := time.Now()
	if m.Clock != nil {
		now = m.Clock()
	}
	doc := Render(task, now, m.Project)
	if _, err := m.Client.Store(ctx, doc.Content, doc.Labels); err != nil {
		return fmt.Errorf("sync task %d to memory store: %w", task.ID, err)
	}
	return nil
}
