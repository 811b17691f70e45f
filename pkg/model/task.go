package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidColumn   = errors.New("invalid column")
	ErrInvalidPriority = errors.New("invalid priority")
	ErrEmptyTitle      = errors.New("task title is empty")
)

// Column is a workflow stage a task occupies.
type Column string

const (
	Backlog  Column = "backlog"
	NextUp   Column = "next-up"
	Progress Column = "progress"
	Done     Column = "done"
)

// Columns lists every column in board order.
var Columns = []Column{Backlog, NextUp, Progress, Done}

// Valid reports whether c is one of the four board columns.
func (c Column) Valid() bool {
	switch c {
	case Backlog, NextUp, Progress, Done:
		return true
	}
	return false
}

// ParseColumn converts s into a Column. An empty string yields the backlog.
func ParseColumn(s string) (Column, error) {
	if s == "" {
		return Backlog, nil
	}
	c := Column(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w %q, must be one of: %s", ErrInvalidColumn, s, joinColumns())
	}
	return c, nil
}

func joinColumns() string {
	names := make([]string, len(Columns))
	for i, c := range Columns {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}

// Priority ranks how urgent a task is.
type Priority string

const (
	Critical Priority = "critical"
	High     Priority = "high"
	Med      Priority = "med"
	Low      Priority = "low"
)

// Priorities lists every priority from most to least urgent.
var Priorities = []Priority{Critical, High, Med, Low}

// Valid reports whether p is one of the four priorities.
func (p Priority) Valid() bool {
	switch p {
	case Critical, High, Med, Low:
		return true
	}
	return false
}

// ParsePriority converts s into a Priority. An empty string yields med.
func ParsePriority(s string) (Priority, error) {
	if s == "" {
		return Med, nil
	}
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("%w %q, must be one of: critical, high, med, low", ErrInvalidPriority, s)
	}
	return p, nil
}

// Task is a single card on the board.
type Task struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Column      Column   `json:"col"`
	Priority    Priority `json:"priority"`
	Tags        []string `json:"tags"`
	Created     int64    `json:"created"`
	Order       int      `json:"order"`
	// Time tracking, derived on column transitions.
	StartTime      *Timestamp `json:"startTime"`
	EndTime        *Timestamp `json:"endTime"`
	EstimatedHours *float64   `json:"estimatedHours"`
	ActualHours    *float64   `json:"actualHours"`
	DueDate        *Timestamp `json:"dueDate"`
}

// Validate checks the title and the enumerated fields.
func (t *Task) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return ErrEmptyTitle
	}
	if !t.Column.Valid() {
		return fmt.Errorf("%w %q", ErrInvalidColumn, t.Column)
	}
	if !t.Priority.Valid() {
		return fmt.Errorf("%w %q", ErrInvalidPriority, t.Priority)
	}
	return nil
}

// HasTag reports whether the task carries tag.
func (t *Task) HasTag(tag string) bool {
	for _, tt := range t.Tags {
		if tt == tag {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers never share pointer fields with the board.
func (t Task) Clone() Task {
	c := t
	c.Tags = append([]string{}, t.Tags...)
	c.StartTime = t.StartTime.clone()
	c.EndTime = t.EndTime.clone()
	c.DueDate = t.DueDate.clone()
	if t.EstimatedHours != nil {
		v := *t.EstimatedHours
		c.EstimatedHours = &v
	}
	if t.ActualHours != nil {
		v := *t.ActualHours
		c.ActualHours = &v
	}
	return c
}
