// Package kanban implements the task lifecycle: creation, column moves with
// time-tracking derivation, deletion and board status summaries.
package kanban

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/harrisonrobin/kanban/pkg/mirror"
	"github.com/harrisonrobin/kanban/pkg/model"
	"github.com/harrisonrobin/kanban/pkg/store"
)

// Clock returns the current instant.
type Clock func() time.Time

// Options configures a Board.
type Options struct {
	Store    *store.Store
	Clock    Clock
	Notifier mirror.Notifier
	Logger   *log.Logger
}

// Board owns the in-memory task collection and keeps it in step with the
// task file. Every mutation is persisted before it becomes visible.
type Board struct {
	mu       sync.Mutex
	store    *store.Store
	tasks    []model.Task
	now      Clock
	notifier mirror.Notifier
	logger   *log.Logger
}

// Open loads the collection from opts.Store. A corrupt file aborts.
func Open(opts Options) (*Board, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("kanban: store is required")
	}
	b := &Board{
		store:    opts.Store,
		now:      opts.Clock,
		notifier: opts.Notifier,
		logger:   opts.Logger,
	}
	if b.now == nil {
		b.now = time.Now
	}
	if b.notifier == nil {
		b.notifier = mirror.Nop{}
	}
	if b.logger == nil {
		b.logger = log.Default()
	}

	tasks, existed, err := b.store.Load()
	if err != nil {
		return nil, err
	}
	if !existed {
		b.logger.Info("no existing task file, starting empty", "path", b.store.Path)
	} else {
		b.logger.Debug("loaded tasks", "count", len(tasks), "path", b.store.Path)
	}
	b.tasks = tasks
	return b, nil
}

// NewTask holds the caller-supplied fields for Create.
type NewTask struct {
	Title          string
	Description    string
	Column         string
	Priority       string
	Tags           []string
	DueDate        *time.Time
	EstimatedHours *float64
}

// Create validates and appends a new task, persists it, then mirrors it.
// Mirroring runs after the lock is released.
func (b *Board) Create(ctx context.Context, in NewTask) (model.Task, error) {
	col, err := model.ParseColumn(in.Column)
	if err != nil {
		return model.Task{}, err
	}
	prio, err := model.ParsePriority(in.Priority)
	if err != nil {
		return model.Task{}, err
	}

	task, err := b.insert(in, col, prio)
	if err != nil {
		return model.Task{}, err
	}
	b.notify(ctx, task.Clone())
	return task, nil
}

func (b *Board) insert(in NewTask, col model.Column, prio model.Priority) (model.Task, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.now().UnixMilli()
	order := 0
	for _, t := range b.tasks {
		if t.ID >= id {
			id = t.ID + 1
		}
		if t.Column == col {
			order++
		}
	}

	task := model.Task{
		ID:          id,
		Title:       in.Title,
		Description: in.Description,
		Column:      col,
		Priority:    prio,
		Tags:        append([]string{}, in.Tags...),
		Created:     id,
		Order:       order,
	}
	if in.DueDate != nil {
		task.DueDate = model.NewTimestamp(*in.DueDate)
	}
	if in.EstimatedHours != nil {
		est := *in.EstimatedHours
		task.EstimatedHours = &est
	}
	if err := task.Validate(); err != nil {
		return model.Task{}, err
	}

	staged := append(b.cloneTasks(), task)
	if err := b.commit(staged); err != nil {
		return model.Task{}, err
	}
	b.logger.Info("created task", "id", task.ID, "column", task.Column, "title", task.Title)
	return task.Clone(), nil
}

// FindByID returns the task with id, or false when it does not exist.
func (b *Board) FindByID(id int64) (model.Task, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i := b.indexOf(id); i >= 0 {
		return b.tasks[i].Clone(), true
	}
	return model.Task{}, false
}

// ListByColumn returns the tasks in col in insertion order.
func (b *Board) ListByColumn(col model.Column) []model.Task {
	return b.Filter(Filter{Column: col})
}

// Filter narrows the collection. Zero-valued fields match everything.
type Filter struct {
	Column   model.Column
	Priority model.Priority
	Tag      string
}

func (f Filter) matches(t *model.Task) bool {
	if f.Column != "" && t.Column != f.Column {
		return false
	}
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	if f.Tag != "" && !t.HasTag(f.Tag) {
		return false
	}
	return true
}

// Filter returns matching tasks in insertion order.
func (b *Board) Filter(f Filter) []model.Task {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []model.Task{}
	for i := range b.tasks {
		if f.matches(&b.tasks[i]) {
			out = append(out, b.tasks[i].Clone())
		}
	}
	return out
}

// Tasks returns the whole collection in insertion order.
func (b *Board) Tasks() []model.Task {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cloneTasks()
}

// Changes lists the caller-settable fields for Update. Nil fields are left
// untouched; the Clear flags null out the optional fields.
type Changes struct {
	Title          *string
	Description    *string
	Column         *string
	Priority       *string
	Tags           []string
	SetTags        bool
	DueDate        *time.Time
	ClearDueDate   bool
	EstimatedHours *float64
	ClearEstimate  bool
}

// Update applies changes to the task with id and derives time tracking from
// the column transition. It returns nil, nil when no such task exists.
func (b *Board) Update(ctx context.Context, id int64, ch Changes) (*model.Task, error) {
	var col model.Column
	if ch.Column != nil {
		c, err := parseRequired(*ch.Column, model.ErrInvalidColumn, model.ParseColumn)
		if err != nil {
			return nil, err
		}
		col = c
	}
	var prio model.Priority
	if ch.Priority != nil {
		p, err := parseRequired(*ch.Priority, model.ErrInvalidPriority, model.ParsePriority)
		if err != nil {
			return nil, err
		}
		prio = p
	}

	updated, err := b.apply(id, ch, col, prio)
	if err != nil || updated == nil {
		return nil, err
	}
	b.notify(ctx, updated.Clone())
	return updated, nil
}

func (b *Board) apply(id int64, ch Changes, col model.Column, prio model.Priority) (*model.Task, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	i := b.indexOf(id)
	if i < 0 {
		return nil, nil
	}

	staged := b.cloneTasks()
	task := &staged[i]
	oldCol := task.Column

	if ch.Title != nil {
		task.Title = *ch.Title
	}
	if ch.Description != nil {
		task.Description = *ch.Description
	}
	if col != "" {
		task.Column = col
	}
	if prio != "" {
		task.Priority = prio
	}
	if ch.SetTags {
		task.Tags = append([]string{}, ch.Tags...)
	}
	if ch.ClearDueDate {
		task.DueDate = nil
	} else if ch.DueDate != nil {
		task.DueDate = model.NewTimestamp(*ch.DueDate)
	}
	if ch.ClearEstimate {
		task.EstimatedHours = nil
	} else if ch.EstimatedHours != nil {
		est := *ch.EstimatedHours
		task.EstimatedHours = &est
	}
	if err := task.Validate(); err != nil {
		return nil, err
	}

	applyTransition(task, oldCol, b.now())

	if err := b.commit(staged); err != nil {
		return nil, err
	}
	updated := staged[i].Clone()
	if oldCol != updated.Column {
		b.logger.Info("moved task", "id", id, "from", oldCol, "to", updated.Column)
	} else {
		b.logger.Info("updated task", "id", id)
	}
	return &updated, nil
}

// parseRequired rejects the empty string that the parsers treat as "default".
func parseRequired[T any](s string, empty error, parse func(string) (T, error)) (T, error) {
	if strings.TrimSpace(s) == "" {
		var zero T
		return zero, fmt.Errorf("%w %q", empty, s)
	}
	return parse(s)
}

// Move changes only the column of the task with id.
func (b *Board) Move(ctx context.Context, id int64, column string) (*model.Task, error) {
	return b.Update(ctx, id, Changes{Column: &column})
}

// Delete removes the task with id. It reports whether a task was removed.
func (b *Board) Delete(ctx context.Context, id int64) (bool, error) {
	removed, err := b.remove(id)
	if err != nil || !removed {
		return false, err
	}
	if f, ok := b.notifier.(mirror.Forgetter); ok {
		if err := f.Forget(ctx, id); err != nil {
			b.logger.Warn("sync failed", "id", id, "op", "forget", "err", err)
		}
	}
	return true, nil
}

func (b *Board) remove(id int64) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	i := b.indexOf(id)
	if i < 0 {
		return false, nil
	}
	staged := make([]model.Task, 0, len(b.tasks)-1)
	staged = append(staged, b.tasks[:i]...)
	staged = append(staged, b.tasks[i+1:]...)
	if err := b.commit(staged); err != nil {
		return false, err
	}
	b.logger.Info("deleted task", "id", id)
	return true, nil
}

// MirrorAll re-sends every task to the notifier.
func (b *Board) MirrorAll(ctx context.Context) (synced, failed int) {
	tasks := b.Tasks()
	for i, t := range tasks {
		if err := b.notifier.Notify(ctx, t); err != nil {
			if mirror.IsSkipped(err) {
				continue
			}
			failed++
			b.logger.Warn("sync failed", "id", t.ID, "err", err)
			continue
		}
		synced++
		b.logger.Info("synced task", "n", i+1, "of", len(tasks), "id", t.ID)
	}
	return synced, failed
}

// applyTransition derives start/end times and actual hours when the column
// changes. Each field is set the first time only.
func applyTransition(task *model.Task, oldCol model.Column, now time.Time) {
	newCol := task.Column
	if oldCol != model.Progress && newCol == model.Progress && !task.StartTime.IsSet() {
		task.StartTime = model.NewTimestamp(now)
	}
	if oldCol != model.Done && newCol == model.Done && !task.EndTime.IsSet() {
		task.EndTime = model.NewTimestamp(now)
		if task.StartTime.IsSet() {
			hours := roundHours(task.EndTime.Sub(task.StartTime.Time).Hours())
			task.ActualHours = &hours
		}
	}
}

func roundHours(h float64) float64 {
	return math.Round(h*100) / 100
}

// commit persists staged and swaps it in only on success.
func (b *Board) commit(staged []model.Task) error {
	if err := b.store.Save(staged); err != nil {
		return fmt.Errorf("persist tasks: %w", err)
	}
	b.tasks = staged
	return nil
}

func (b *Board) notify(ctx context.Context, task model.Task) {
	if err := b.notifier.Notify(ctx, task); err != nil && !mirror.IsSkipped(err) {
		b.logger.Warn("sync failed", "id", task.ID, "err", err)
	}
}

func (b *Board) indexOf(id int64) int {
	for i := range b.tasks {
		if b.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func (b *Board) cloneTasks() []model.Task {
	out := make([]model.Task, len(b.tasks))
	for i, t := range b.tasks {
		out[i] = t.Clone()
	}
	return out
}
