// Package store persists the task collection to a local JSON file.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/harrisonrobin/kanban/pkg/model"
)

// ErrCorruptStore is returned when the task file exists but cannot be trusted.
var ErrCorruptStore = errors.New("corrupt task store")

// Store reads and writes the full task collection at Path.
type Store struct {
	Path string
}

func New(path string) *Store {
	return &Store{Path: path}
}

// Load reads the collection. A missing file yields an empty collection and
// existed == false.
func (s *Store) Load() (tasks []model.Task, existed bool, err error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return []model.Task{}, false, nil
		}
		return nil, false, fmt.Errorf("read task file: %w", err)
	}

	if err := validateDocument(data); err != nil {
		return nil, true, fmt.Errorf("%w: %s: %v", ErrCorruptStore, s.Path, err)
	}

	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, true, fmt.Errorf("%w: %s: %v", ErrCorruptStore, s.Path, err)
	}

	seen := make(map[int64]bool, len(tasks))
	for i := range tasks {
		if err := tasks[i].Validate(); err != nil {
			return nil, true, fmt.Errorf("%w: %s: tasks[%d]: %v", ErrCorruptStore, s.Path, i, err)
		}
		if seen[tasks[i].ID] {
			return nil, true, fmt.Errorf("%w: %s: duplicate id %d", ErrCorruptStore, s.Path, tasks[i].ID)
		}
		seen[tasks[i].ID] = true
		if tasks[i].Tags == nil {
			tasks[i].Tags = []string{}
		}
		// Empty strings decode to the zero instant; keep them unset.
		unsetZero(&tasks[i].StartTime)
		unsetZero(&tasks[i].EndTime)
		unsetZero(&tasks[i].DueDate)
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	return tasks, true, nil
}

func unsetZero(ts **model.Timestamp) {
	if !(*ts).IsSet() {
		*ts = nil
	}
}

// Save overwrites the task file via a temp file and rename, so readers never
// see a partial write.
func (s *Store) Save(tasks []model.Task) error {
	out := make([]model.Task, len(tasks))
	for i, t := range tasks {
		if t.Tags == nil {
			t.Tags = []string{}
		}
		out[i] = t
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal task file: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create task directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp task file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write task file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync task file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close task file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod task file: %w", err)
	}
	if err := os.Rename(tmpPath, s.Path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename task file: %w", err)
	}
	return nil
}
