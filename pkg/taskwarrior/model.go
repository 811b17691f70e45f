package taskwarrior

import (
	"fmt"
	"strings"
	"time"

	"github.com/harrisonrobin/kanban/pkg/kanban"
	"github.com/harrisonrobin/kanban/pkg/model"
	"github.com/harrisonrobin/kanban/pkg/util"
)

const (
	PENDING   = "pending"
	COMPLETED = "completed"
	WAITING   = "waiting"
	DELETED   = "deleted"
	RECURRING = "recurring"
)

type CustomTime struct {
	time.Time
}

const taskwarriorTimeLayout = "20060102T150405Z" // YYYYMMDDTHHMMSSZ, 'Z' indicates UTC

// UnmarshalJSON implements the json.Unmarshaler interface for CustomTime.
func (ct *CustomTime) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "0" || s == "null" {
		ct.Time = time.Time{}
		return nil
	}

	t, err := time.Parse(taskwarriorTimeLayout, s)
	if err != nil {
		return fmt.Errorf("failed to parse Taskwarrior time string '%s': %w", s, err)
	}
	ct.Time = t
	return nil
}

// MarshalJSON implements the json.Marshaler interface for CustomTime.
func (ct CustomTime) MarshalJSON() ([]byte, error) {
	if ct.Time.IsZero() {
		return []byte(`""`), nil
	}
	return []byte(`"` + ct.Time.Format(taskwarriorTimeLayout) + `"`), nil
}

func (ct *CustomTime) set() bool {
	return ct != nil && !ct.IsZero()
}

type Annotation struct {
	Description string      `json:"description"`
	Entry       *CustomTime `json:"entry"`
}

type Task struct {
	UUID        string       `json:"uuid"`
	Description string       `json:"description"`
	Due         *CustomTime  `json:"due,omitempty"`
	Scheduled   *CustomTime  `json:"scheduled,omitempty"`
	Status      string       `json:"status"`
	Priority    string       `json:"priority,omitempty"`
	Project     string       `json:"project,omitempty"`
	Tags        []string     `json:"tags,omitempty"`
	Annotations []Annotation `json:"annotations,omitempty"`
	Start       *CustomTime  `json:"start,omitempty"`
	End         *CustomTime  `json:"end,omitempty"`
	// Est is the estimate UDA as an ISO 8601 duration (PT1H30M).
	Est string `json:"est,omitempty"`
}

// Column places the task on the board: completed tasks are done, started
// ones are in progress, everything else waits in the backlog.
func (t *Task) Column() model.Column {
	switch {
	case t.Status == COMPLETED:
		return model.Done
	case t.Start.set():
		return model.Progress
	default:
		return model.Backlog
	}
}

// BoardPriority maps H/M/L onto board priorities.
func (t *Task) BoardPriority() model.Priority {
	switch strings.ToUpper(t.Priority) {
	case "H":
		return model.High
	case "L":
		return model.Low
	default:
		return model.Med
	}
}

// NewTask converts the task into a board task request. Deleted and recurring
// template tasks are not imported.
func (t *Task) NewTask() (kanban.NewTask, bool) {
	if t.Status == DELETED || t.Status == RECURRING || strings.TrimSpace(t.Description) == "" {
		return kanban.NewTask{}, false
	}

	var notes []string
	for _, ann := range t.Annotations {
		notes = append(notes, ann.Description)
	}
	tags := append([]string{}, t.Tags...)
	if t.Project != "" {
		tags = append(tags, "project:"+t.Project)
	}

	nt := kanban.NewTask{
		Title:       t.Description,
		Description: strings.Join(notes, "\n"),
		Column:      string(t.Column()),
		Priority:    string(t.BoardPriority()),
		Tags:        tags,
	}
	if t.Due.set() {
		d := t.Due.Time
		nt.DueDate = &d
	}
	if est, err := util.ParseDuration(t.Est); err == nil && est > 0 {
		h := est.Hours()
		nt.EstimatedHours = &h
	}
	return nt, true
}
