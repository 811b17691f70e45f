// Package index remembers which calendar event mirrors which task.
package index

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// FileName is the index file kept next to the config.
const FileName = "events.json"

type EventIndex struct {
	Mappings map[string]string `json:"mappings"`
	Path     string            `json:"-"`
	mu       sync.RWMutex
	dirty    bool
}

// New opens the index stored at path. A missing file yields an empty index.
func New(path string) (*EventIndex, error) {
	idx := &EventIndex{
		Mappings: make(map[string]string),
		Path:     path,
	}
	if _, err := os.Stat(path); err == nil {
		if err := idx.Load(); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

func (idx *EventIndex) Load() error {
	f, err := os.Open(idx.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if err := json.NewDecoder(f).Decode(&idx.Mappings); err != nil {
		return err
	}
	if idx.Mappings == nil {
		idx.Mappings = make(map[string]string)
	}
	return nil
}

// Save writes the index if it changed since the last save.
func (idx *EventIndex) Save() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if !idx.dirty {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(idx.Path), 0700); err != nil {
		return err
	}
	f, err := os.Create(idx.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(idx.Mappings); err != nil {
		return err
	}
	idx.dirty = false
	return nil
}

func key(taskID int64) string {
	return strconv.FormatInt(taskID, 10)
}

// Get returns the event id for taskID, or "" when unknown.
func (idx *EventIndex) Get(taskID int64) string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.Mappings[key(taskID)]
}

func (idx *EventIndex) Set(taskID int64, eventID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	k := key(taskID)
	if idx.Mappings[k] != eventID {
		idx.Mappings[k] = eventID
		idx.dirty = true
	}
}

func (idx *EventIndex) Remove(taskID int64) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	k := key(taskID)
	if _, exists := idx.Mappings[k]; exists {
		delete(idx.Mappings, k)
		idx.dirty = true
	}
}
