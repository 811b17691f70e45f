// Package orgmode reads TODO headlines from Org-mode files so they can be
// imported as board tasks.
package orgmode

import (
	"bufio"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/harrisonrobin/kanban/pkg/kanban"
	"github.com/harrisonrobin/kanban/pkg/model"
)

// Item is one TODO or DONE headline.
type Item struct {
	Title    string
	Done     bool
	Priority string // Org priority cookie letter, "" when absent
	Tags     []string
	Deadline time.Time
	Body     []string
	Source   string
}

var (
	headlineRegex = regexp.MustCompile(`^\*+\s+(TODO|DONE)\b\s*(?:\[#([A-Z])\])?\s*(.*?)(?:\s+(:(?:[\w@]+:)+))?\s*$`)
	anyHeadline   = regexp.MustCompile(`^\*+\s`)
	deadlineRegex = regexp.MustCompile(`DEADLINE:\s+<(\d{4}-\d{2}-\d{2})(?:\s+[A-Za-z]{2,3})?(?:\s+(\d{2}:\d{2}))?[^>]*>`)
)

// ParseFile parses the Org-mode file at path.
func ParseFile(path string, loc *time.Location) ([]Item, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return Parse(file, path, loc)
}

// ParseFiles parses multiple Org-mode files.
func ParseFiles(paths []string, loc *time.Location) ([]Item, error) {
	var all []Item
	for _, path := range paths {
		items, err := ParseFile(path, loc)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
	}
	return all, nil
}

// Parse reads TODO and DONE headlines from r. Deadlines without a time are
// placed at the end of the day in loc.
func Parse(r io.Reader, source string, loc *time.Location) ([]Item, error) {
	if loc == nil {
		loc = time.Local
	}
	scanner := bufio.NewScanner(r)
	var items []Item
	var current *Item

	flush := func() {
		if current != nil && current.Title != "" {
			items = append(items, *current)
		}
		current = nil
	}

	for scanner.Scan() {
		raw := scanner.Text()
		line := strings.TrimSpace(raw)

		if anyHeadline.MatchString(raw) {
			flush()
			if m := headlineRegex.FindStringSubmatch(raw); m != nil {
				current = &Item{
					Title:    strings.TrimSpace(m[3]),
					Done:     m[1] == "DONE",
					Priority: m[2],
					Source:   source,
				}
				if m[4] != "" {
					current.Tags = strings.Split(strings.Trim(m[4], ":"), ":")
				}
			}
			continue
		}
		if current == nil {
			continue
		}

		if m := deadlineRegex.FindStringSubmatch(line); m != nil {
			if d, ok := parseDeadline(m[1], m[2], loc); ok {
				current.Deadline = d
			}
			continue
		}
		if strings.HasPrefix(line, ":") || strings.HasPrefix(line, "SCHEDULED:") || strings.HasPrefix(line, "CLOSED:") {
			continue
		}
		if line != "" {
			current.Body = append(current.Body, line)
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func parseDeadline(date, clock string, loc *time.Location) (time.Time, bool) {
	if clock == "" {
		d, err := time.ParseInLocation("2006-01-02", date, loc)
		if err != nil {
			return time.Time{}, false
		}
		return d.Add(24*time.Hour - time.Second), true
	}
	d, err := time.ParseInLocation("2006-01-02 15:04", date+" "+clock, loc)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// FilterItems keeps the items carrying tag.
func FilterItems(items []Item, tag string) []Item {
	var filtered []Item
	for _, item := range items {
		for _, t := range item.Tags {
			if t == tag {
				filtered = append(filtered, item)
				break
			}
		}
	}
	return filtered
}

// PriorityFor maps Org priority cookies onto board priorities.
func PriorityFor(cookie string) model.Priority {
	switch cookie {
	case "A":
		return model.Critical
	case "B":
		return model.High
	case "C":
		return model.Low
	default:
		return model.Med
	}
}

// NewTask converts the headline into a board task request.
func (i Item) NewTask() kanban.NewTask {
	col := model.Backlog
	if i.Done {
		col = model.Done
	}
	nt := kanban.NewTask{
		Title:       i.Title,
		Description: strings.Join(i.Body, "\n"),
		Column:      string(col),
		Priority:    string(PriorityFor(i.Priority)),
		Tags:        i.Tags,
	}
	if !i.Deadline.IsZero() {
		d := i.Deadline.UTC()
		nt.DueDate = &d
	}
	return nt
}
