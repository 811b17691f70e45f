// Package export renders the board as a standalone HTML page with the task
// collection embedded as JSON.
package export

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/harrisonrobin/kanban/pkg/model"
)

//go:embed templates/board.html.tmpl
var templates embed.FS

const defaultTemplate = "templates/board.html.tmpl"

var columnNames = map[model.Column]string{
	model.Backlog:  "Backlog",
	model.NextUp:   "Next Up",
	model.Progress: "In Progress",
	model.Done:     "Done",
}

type column struct {
	ID   model.Column
	Name string
}

type page struct {
	Title     string
	Count     int
	Generated string
	Columns   []column
	Tasks     template.JS
}

// Renderer fills an HTML template with the task collection.
type Renderer struct {
	Title string
	tmpl  *template.Template
}

// New parses the template at path, or the built-in one when path is empty.
func New(path string) (*Renderer, error) {
	var (
		tmpl *template.Template
		err  error
	)
	if path == "" {
		tmpl, err = template.ParseFS(templates, defaultTemplate)
	} else {
		tmpl, err = template.ParseFiles(path)
	}
	if err != nil {
		return nil, fmt.Errorf("parse export template: %w", err)
	}
	return &Renderer{Title: "Kanban Board", tmpl: tmpl}, nil
}

// Render writes the page for tasks, in their stored order, to w.
func (r *Renderer) Render(w io.Writer, tasks []model.Task, now time.Time) error {
	if tasks == nil {
		tasks = []model.Task{}
	}
	data, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return fmt.Errorf("encode tasks: %w", err)
	}

	cols := make([]column, len(model.Columns))
	for i, c := range model.Columns {
		cols[i] = column{ID: c, Name: columnNames[c]}
	}
	return r.tmpl.Execute(w, page{
		Title:     r.Title,
		Count:     len(tasks),
		Generated: now.UTC().Format("2006-01-02 15:04 MST"),
		Columns:   cols,
		Tasks:     template.JS(data),
	})
}

// WriteFile renders into path, replacing it only once rendering succeeded.
func (r *Renderer) WriteFile(path string, tasks []model.Task, now time.Time) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := r.Render(tmp, tasks, now); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
