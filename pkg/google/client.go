package google

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/harrisonrobin/kanban/pkg/auth"
	"github.com/harrisonrobin/kanban/pkg/index"
	"google.golang.org/api/calendar/v3"
)

// NewClient authorizes through flow and resolves calendarName to its id.
// "primary" is used as is.
func NewClient(ctx context.Context, flow *auth.Flow, calendarName string, idx *index.EventIndex, logger *log.Logger) (*CalendarClient, error) {
	srv, err := flow.CalendarService(ctx)
	if err != nil {
		return nil, err
	}

	calendarID, err := ResolveCalendarID(ctx, srv, calendarName)
	if err != nil {
		return nil, err
	}
	return NewCalendarClient(srv, calendarID, idx, logger), nil
}

// ResolveCalendarID finds the calendar whose summary matches name.
func ResolveCalendarID(ctx context.Context, srv *calendar.Service, name string) (string, error) {
	if name == "primary" {
		return name, nil
	}
	calendarList, err := srv.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to retrieve calendar list: %w", err)
	}
	for _, item := range calendarList.Items {
		if item.Summary == name || item.Id == name {
			return item.Id, nil
		}
	}
	return "", fmt.Errorf("calendar '%s' not found", name)
}
