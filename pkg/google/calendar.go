package google

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harrisonrobin/kanban/pkg/index"
	"github.com/harrisonrobin/kanban/pkg/model"
	"github.com/harrisonrobin/kanban/pkg/util"
	"google.golang.org/api/calendar/v3"
)

// CalendarClient is a Google Calendar API client.
type CalendarClient struct {
	srv        *calendar.Service
	calendarID string
	index      *index.EventIndex
	logger     *log.Logger
}

// NewCalendarClient creates a new Google Calendar client.
func NewCalendarClient(srv *calendar.Service, calendarID string, idx *index.EventIndex, logger *log.Logger) *CalendarClient {
	if logger == nil {
		logger = log.Default()
	}
	return &CalendarClient{srv: srv, calendarID: calendarID, index: idx, logger: logger}
}

// SyncTask creates the event mirroring task or patches the existing one.
func (c *CalendarClient) SyncTask(ctx context.Context, task model.Task, now time.Time) (*calendar.Event, error) {
	event, err := util.ConvertTaskToCalendarEvent(&task, now)
	if err != nil {
		return nil, err
	}

	existingEvent, err := c.lookup(ctx, task.ID)
	if err != nil {
		return nil, err
	}

	if existingEvent != nil {
		patch, err := util.EventNeedsUpdate(existingEvent, event)
		if err != nil {
			c.logger.Warn("could not compare task with its calendar event", "id", task.ID, "err", err)
			return nil, err
		}
		if patch == nil {
			c.remember(task.ID, existingEvent.Id)
			return existingEvent, nil
		}
		updatedEvent, err := c.PatchEvent(ctx, existingEvent.Id, patch)
		if err != nil {
			return nil, err
		}
		c.remember(task.ID, updatedEvent.Id)
		return updatedEvent, nil
	}

	createdEvent, err := c.srv.Events.Insert(c.calendarID, event).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	c.remember(task.ID, createdEvent.Id)
	return createdEvent, nil
}

// lookup finds the event for a task through the local index, falling back to
// an extended property search. It returns nil, nil when there is none.
func (c *CalendarClient) lookup(ctx context.Context, taskID int64) (*calendar.Event, error) {
	if c.index != nil {
		if eventID := c.index.Get(taskID); eventID != "" {
			ev, err := c.srv.Events.Get(c.calendarID, eventID).Context(ctx).Do()
			if err == nil && ev.Status != "cancelled" {
				return ev, nil
			}
			c.index.Remove(taskID)
		}
	}
	ev, err := c.GetEventByTaskID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("error searching for event: %w", err)
	}
	return ev, nil
}

func (c *CalendarClient) remember(taskID int64, eventID string) {
	if c.index != nil {
		c.index.Set(taskID, eventID)
	}
}

// PatchEvent performs a partial update on an event.
func (c *CalendarClient) PatchEvent(ctx context.Context, eventID string, patch *calendar.Event) (*calendar.Event, error) {
	return c.srv.Events.Patch(c.calendarID, eventID, patch).Context(ctx).Do()
}

// DeleteEvent deletes an event from the calendar.
func (c *CalendarClient) DeleteEvent(ctx context.Context, eventID string) error {
	return c.srv.Events.Delete(c.calendarID, eventID).Context(ctx).Do()
}

// ListEvents fetches events from the calendar starting at timeMin.
func (c *CalendarClient) ListEvents(ctx context.Context, timeMin time.Time) ([]*calendar.Event, error) {
	events, err := c.srv.Events.List(c.calendarID).TimeMin(timeMin.Format(time.RFC3339)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve events from calendar: %w", err)
	}
	return events.Items, nil
}

// GetEventByTaskID searches for an event with the given task id in extended properties.
func (c *CalendarClient) GetEventByTaskID(ctx context.Context, taskID int64) (*calendar.Event, error) {
	events, err := c.srv.Events.List(c.calendarID).
		PrivateExtendedProperty(fmt.Sprintf("%s=%s", util.TaskIDProperty, strconv.FormatInt(taskID, 10))).
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	if len(events.Items) > 0 {
		return events.Items[0], nil
	}
	return nil, nil
}
