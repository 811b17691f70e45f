package util

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/harrisonrobin/kanban/pkg/mirror"
	"github.com/harrisonrobin/kanban/pkg/model"
	"google.golang.org/api/calendar/v3"
)

// TaskIDProperty is the private extended property holding the kanban task id.
const TaskIDProperty = "kanban_id"

const defaultDuration = 30 * time.Minute

// ErrNoSchedule is returned for tasks with nothing to place on a calendar.
// It wraps mirror.ErrSkipped so the board does not report it as a failure.
var ErrNoSchedule = fmt.Errorf("task has no due date, start or end: %w", mirror.ErrSkipped)

var durationRe = regexp.MustCompile(`(\d+)([HMS])`)

// ParseDuration parses ISO 8601 duration format (PT1H30M) from Taskwarrior JSON export
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	if len(s) < 2 || s[0] != 'P' {
		return 0, fmt.Errorf("invalid ISO 8601 duration format: %s", s)
	}

	s = s[1:]
	if len(s) == 0 || s[0] != 'T' {
		return 0, fmt.Errorf("invalid ISO 8601 duration (missing T): P%s", s)
	}
	s = s[1:]

	var total time.Duration
	for _, match := range durationRe.FindAllStringSubmatch(s, -1) {
		value, _ := strconv.Atoi(match[1])
		switch match[2] {
		case "H":
			total += time.Duration(value) * time.Hour
		case "M":
			total += time.Duration(value) * time.Minute
		case "S":
			total += time.Duration(value) * time.Second
		}
	}

	if total == 0 {
		return 0, fmt.Errorf("invalid ISO 8601 duration: PT%s", s)
	}
	return total, nil
}

func hoursDuration(h *float64) time.Duration {
	if h == nil || *h <= 0 {
		return 0
	}
	return time.Duration(*h * float64(time.Hour))
}

// ColorForTask picks a Google Calendar color id from the task's priority.
// Completed tasks are always graphite.
func ColorForTask(task *model.Task) string {
	if task.Column == model.Done {
		return "8"
	}
	switch task.Priority {
	case model.Critical:
		return "11"
	case model.High:
		return "6"
	case model.Low:
		return "2"
	default:
		return "5"
	}
}

// IsOverdue reports whether a not-done task is past its due date.
func IsOverdue(task *model.Task, now time.Time) bool {
	return task.Column != model.Done && task.DueDate.IsSet() && task.DueDate.Before(now)
}

// EventNeedsUpdate returns a patch event if the fields shared between a task's
// target event and the existing calendar event differ, or nil when they match.
func EventNeedsUpdate(existingEvent *calendar.Event, targetEvent *calendar.Event) (*calendar.Event, error) {
	patch := &calendar.Event{}
	needsUpdate := false

	if existingEvent.Summary != targetEvent.Summary {
		patch.Summary = targetEvent.Summary
		needsUpdate = true
	}
	if existingEvent.Description != targetEvent.Description {
		patch.Description = targetEvent.Description
		needsUpdate = true
	}
	if existingEvent.ColorId != targetEvent.ColorId {
		patch.ColorId = targetEvent.ColorId
		needsUpdate = true
	}

	if existingEvent.Start == nil || existingEvent.End == nil {
		return nil, errors.New("existing event has no start or end")
	}
	existingStart, err := time.Parse(time.RFC3339, existingEvent.Start.DateTime)
	if err != nil {
		return nil, err
	}
	targetStart, err := time.Parse(time.RFC3339, targetEvent.Start.DateTime)
	if err != nil {
		return nil, err
	}
	existingEnd, err := time.Parse(time.RFC3339, existingEvent.End.DateTime)
	if err != nil {
		return nil, err
	}
	targetEnd, err := time.Parse(time.RFC3339, targetEvent.End.DateTime)
	if err != nil {
		return nil, err
	}

	if !existingStart.Equal(targetStart) || !existingEnd.Equal(targetEnd) {
		patch.Start = targetEvent.Start
		patch.End = targetEvent.End
		needsUpdate = true
	}

	if needsUpdate {
		return patch, nil
	}
	return nil, nil
}

// EventWindow places a task on the calendar. Done tasks end at their end time
// and span the actual or estimated hours. Started tasks begin at their start
// time. Everything else sits at the due date.
func EventWindow(task *model.Task, now time.Time) (start, end time.Time, err error) {
	est := hoursDuration(task.EstimatedHours)
	act := hoursDuration(task.ActualHours)

	span := defaultDuration
	if est > 0 {
		span = est
	}

	switch {
	case task.Column == model.Done && (task.EndTime.IsSet() || task.DueDate.IsSet()):
		end = now
		if task.EndTime.IsSet() {
			end = task.EndTime.Time
		}
		d := defaultDuration
		if act > 0 {
			d = act
		} else if est > 0 {
			d = est
		}
		start = end.Add(-d)
	case task.StartTime.IsSet():
		start = task.StartTime.Time
		end = start.Add(span)
	case task.DueDate.IsSet():
		start = task.DueDate.Time
		end = start.Add(span)
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("task %d: %w", task.ID, ErrNoSchedule)
	}
	return start, end, nil
}

// ConvertTaskToCalendarEvent builds the calendar event mirroring task.
func ConvertTaskToCalendarEvent(task *model.Task, now time.Time) (*calendar.Event, error) {
	if task == nil {
		return nil, errors.New("could not convert nil task")
	}

	start, end, err := EventWindow(task, now)
	if err != nil {
		return nil, err
	}

	event := &calendar.Event{
		Summary:     Summary(task, now),
		ColorId:     ColorForTask(task),
		Description: describe(task),
		Start: &calendar.EventDateTime{
			DateTime: start.UTC().Format(time.RFC3339),
		},
		End: &calendar.EventDateTime{
			DateTime: end.UTC().Format(time.RFC3339),
		},
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{
				TaskIDProperty: strconv.FormatInt(task.ID, 10),
			},
		},
	}
	return event, nil
}

// Summary is the event title: the task title with a state marker.
func Summary(task *model.Task, now time.Time) string {
	prefix := ""
	switch {
	case task.Column == model.Done:
		prefix = "✓"
	case task.Column == model.Progress:
		prefix = "‣"
	case IsOverdue(task, now):
		prefix = "!"
	}
	if prefix == "" {
		return task.Title
	}
	return prefix + " " + task.Title
}

func describe(task *model.Task) string {
	var b strings.Builder

	if len(task.Tags) > 0 {
		for _, tag := range task.Tags {
			fmt.Fprintf(&b, "#%s ", tag)
		}
		b.WriteString("\n\n")
	}
	if task.Description != "" {
		b.WriteString(task.Description)
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "Column: %s\n", task.Column)
	fmt.Fprintf(&b, "Priority: %s\n", task.Priority)
	fmt.Fprintf(&b, "ID: %d\n", task.ID)

	b.WriteString("\nAccounting:\n")
	est := hoursDuration(task.EstimatedHours)
	if est > 0 {
		fmt.Fprintf(&b, "• estimated: %s\n", est)
	}
	if task.StartTime.IsSet() && task.DueDate.IsSet() {
		diff := task.StartTime.Sub(task.DueDate.Time)
		if diff > time.Minute {
			fmt.Fprintf(&b, "• started after due by: %s\n", diff.Round(time.Minute))
		}
	}
	if task.Column == model.Done && task.ActualHours != nil {
		spent := hoursDuration(task.ActualHours)
		fmt.Fprintf(&b, "• spent: %s\n", spent.Round(time.Minute))
		if est > 0 {
			diff := spent - est
			if diff > 0 {
				fmt.Fprintf(&b, "• over estimate by: %s\n", diff.Round(time.Minute))
			} else if diff < 0 {
				fmt.Fprintf(&b, "• under estimate by: %s\n", (-diff).Round(time.Minute))
			}
		}
	}
	return b.String()
}

var idRe = regexp.MustCompile(`ID: (\d+)`)

// GetTaskIDFromEventDescription parses the task ID from the event description.
func GetTaskIDFromEventDescription(description string) (int64, bool) {
	matches := idRe.FindStringSubmatch(description)
	if len(matches) < 2 {
		return 0, false
	}
	id, err := strconv.ParseInt(matches[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
