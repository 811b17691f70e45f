// Package overdue tracks mirrored events whose due date has not passed yet,
// so a sweep can mark them once it does.
package overdue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"
)

// FileName is the table file kept next to the config.
const FileName = "pending_tasks.json"

type Entry struct {
	TaskID  int64     `json:"task_id"`
	EventID string    `json:"event_id"`
	Title   string    `json:"title"`
	Due     time.Time `json:"due"`
}

type Table struct {
	Entries map[string]Entry `json:"entries"`
	Path    string           `json:"-"`
	mu      sync.Mutex
	dirty   bool
}

// New opens the table stored at path. A missing file yields an empty table.
func New(path string) (*Table, error) {
	t := &Table{
		Path:    path,
		Entries: make(map[string]Entry),
	}
	if _, err := os.Stat(path); err == nil {
		if err := t.Load(); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *Table) Load() error {
	f, err := os.Open(t.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	t.mu.Lock()
	defer t.mu.Unlock()
	if err := json.NewDecoder(f).Decode(t); err != nil {
		return err
	}
	if t.Entries == nil {
		t.Entries = make(map[string]Entry)
	}
	return nil
}

// Save writes the table if it changed since the last save.
func (t *Table) Save() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.dirty {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(t.Path), 0700); err != nil {
		return err
	}

	f, err := os.Create(t.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(t); err != nil {
		return err
	}
	t.dirty = false
	return nil
}

// Update tracks a task whose due date is still ahead of now. Tasks without a
// future due date are dropped from the table.
func (t *Table) Update(taskID int64, eventID, title string, due, now time.Time) {
	if due.IsZero() || !due.After(now) {
		t.Remove(taskID)
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	k := strconv.FormatInt(taskID, 10)
	old, exists := t.Entries[k]
	if !exists || !old.Due.Equal(due) || old.EventID != eventID || old.Title != title {
		t.Entries[k] = Entry{TaskID: taskID, EventID: eventID, Title: title, Due: due}
		t.dirty = true
	}
}

func (t *Table) Remove(taskID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := strconv.FormatInt(taskID, 10)
	if _, exists := t.Entries[k]; exists {
		delete(t.Entries, k)
		t.dirty = true
	}
}

// Sweep returns entries that have become overdue (Due < now), oldest first,
// and removes them.
func (t *Table) Sweep(now time.Time) []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	var swept []Entry
	for k, entry := range t.Entries {
		if entry.Due.Before(now) {
			swept = append(swept, entry)
			delete(t.Entries, k)
			t.dirty = true
		}
	}
	sort.Slice(swept, func(i, j int) bool { return swept[i].Due.Before(swept[j].Due) })
	return swept
}
