// Package mcpserver exposes the board to agents as Model Context Protocol
// tools over stdio.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harrisonrobin/kanban/pkg/bot"
	"github.com/harrisonrobin/kanban/pkg/kanban"
	"github.com/harrisonrobin/kanban/pkg/model"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// TaskView is the flattened task shape returned by every tool.
type TaskView struct {
	ID             string   `json:"id" jsonschema:"task id"`
	Title          string   `json:"title"`
	Description    string   `json:"description,omitempty"`
	Column         string   `json:"col" jsonschema:"backlog, next-up, progress or done"`
	Priority       string   `json:"priority"`
	Tags           []string `json:"tags,omitempty"`
	StartTime      string   `json:"startTime,omitempty"`
	EndTime        string   `json:"endTime,omitempty"`
	DueDate        string   `json:"dueDate,omitempty"`
	EstimatedHours float64  `json:"estimatedHours,omitempty"`
	ActualHours    float64  `json:"actualHours,omitempty"`
}

func viewOf(t model.Task) TaskView {
	v := TaskView{
		ID:          strconv.FormatInt(t.ID, 10),
		Title:       t.Title,
		Description: t.Description,
		Column:      string(t.Column),
		Priority:    string(t.Priority),
		Tags:        t.Tags,
	}
	if t.StartTime.IsSet() {
		v.StartTime = t.StartTime.String()
	}
	if t.EndTime.IsSet() {
		v.EndTime = t.EndTime.String()
	}
	if t.DueDate.IsSet() {
		v.DueDate = t.DueDate.String()
	}
	if t.EstimatedHours != nil {
		v.EstimatedHours = *t.EstimatedHours
	}
	if t.ActualHours != nil {
		v.ActualHours = *t.ActualHours
	}
	return v
}

func viewsOf(tasks []model.Task) []TaskView {
	out := make([]TaskView, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, viewOf(t))
	}
	return out
}

type StatusInput struct{}

type StatusOutput struct {
	Total      int            `json:"total"`
	ByColumn   map[string]int `json:"byColumn"`
	InProgress []TaskView     `json:"inProgress"`
	Overdue    []TaskView     `json:"overdue"`
	DueToday   []TaskView     `json:"dueToday"`
	Timestamp  string         `json:"timestamp"`
}

type ListInput struct {
	Column   string `json:"col,omitempty" jsonschema:"only tasks in this column"`
	Priority string `json:"priority,omitempty" jsonschema:"only tasks with this priority"`
	Tag      string `json:"tag,omitempty" jsonschema:"only tasks carrying this tag"`
}

type ListOutput struct {
	Tasks []TaskView `json:"tasks"`
}

type AddInput struct {
	Title          string   `json:"title" jsonschema:"task title"`
	Description    string   `json:"description,omitempty"`
	Column         string   `json:"col,omitempty" jsonschema:"starting column, backlog by default"`
	Priority       string   `json:"priority,omitempty" jsonschema:"critical, high, med or low; med by default"`
	Tags           []string `json:"tags,omitempty"`
	DueDate        string   `json:"dueDate,omitempty" jsonschema:"RFC 3339 timestamp or YYYY-MM-DD"`
	EstimatedHours float64  `json:"estimatedHours,omitempty"`
}

type MoveInput struct {
	ID     string `json:"id" jsonschema:"task id"`
	Column string `json:"col" jsonschema:"target column"`
}

type DeleteInput struct {
	ID string `json:"id" jsonschema:"task id"`
}

type DeleteOutput struct {
	Deleted bool `json:"deleted"`
}

type CommandInput struct {
	Text string `json:"text" jsonschema:"a /kanban chat command, e.g. 'status' or 'move TASK-019 done'"`
}

type CommandOutput struct {
	Reply string `json:"reply"`
}

// Tools binds the MCP tool handlers to a board.
type Tools struct {
	Board  *kanban.Board
	Bot    *bot.Handler
	Logger *log.Logger
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid task id %q", s)
	}
	return id, nil
}

func (t *Tools) Status(ctx context.Context, req *mcp.CallToolRequest, in StatusInput) (*mcp.CallToolResult, StatusOutput, error) {
	s := t.Board.Status()
	by := make(map[string]int, len(s.ByColumn))
	for c, n := range s.ByColumn {
		by[string(c)] = n
	}
	return nil, StatusOutput{
		Total:      s.Total,
		ByColumn:   by,
		InProgress: viewsOf(s.InProgress),
		Overdue:    viewsOf(s.Overdue),
		DueToday:   viewsOf(s.DueToday),
		Timestamp:  s.Timestamp.UTC().Format(time.RFC3339),
	}, nil
}

func (t *Tools) List(ctx context.Context, req *mcp.CallToolRequest, in ListInput) (*mcp.CallToolResult, ListOutput, error) {
	var f kanban.Filter
	if in.Column != "" {
		col, err := model.ParseColumn(in.Column)
		if err != nil {
			return nil, ListOutput{}, err
		}
		f.Column = col
	}
	if in.Priority != "" {
		p, err := model.ParsePriority(in.Priority)
		if err != nil {
			return nil, ListOutput{}, err
		}
		f.Priority = p
	}
	f.Tag = in.Tag
	return nil, ListOutput{Tasks: viewsOf(t.Board.Filter(f))}, nil
}

func (t *Tools) Add(ctx context.Context, req *mcp.CallToolRequest, in AddInput) (*mcp.CallToolResult, TaskView, error) {
	nt := kanban.NewTask{
		Title:       in.Title,
		Description: in.Description,
		Column:      in.Column,
		Priority:    in.Priority,
		Tags:        in.Tags,
	}
	if in.DueDate != "" {
		ts, err := model.ParseTimestamp(in.DueDate)
		if err != nil {
			return nil, TaskView{}, fmt.Errorf("invalid dueDate: %w", err)
		}
		due := ts.Time
		nt.DueDate = &due
	}
	if in.EstimatedHours > 0 {
		est := in.EstimatedHours
		nt.EstimatedHours = &est
	}
	task, err := t.Board.Create(ctx, nt)
	if err != nil {
		return nil, TaskView{}, err
	}
	return nil, viewOf(task), nil
}

func (t *Tools) Move(ctx context.Context, req *mcp.CallToolRequest, in MoveInput) (*mcp.CallToolResult, TaskView, error) {
	id, err := parseID(in.ID)
	if err != nil {
		return nil, TaskView{}, err
	}
	task, err := t.Board.Move(ctx, id, in.Column)
	if err != nil {
		return nil, TaskView{}, err
	}
	if task == nil {
		return nil, TaskView{}, fmt.Errorf("task %d not found", id)
	}
	return nil, viewOf(*task), nil
}

func (t *Tools) Delete(ctx context.Context, req *mcp.CallToolRequest, in DeleteInput) (*mcp.CallToolResult, DeleteOutput, error) {
	id, err := parseID(in.ID)
	if err != nil {
		return nil, DeleteOutput{}, err
	}
	ok, err := t.Board.Delete(ctx, id)
	if err != nil {
		return nil, DeleteOutput{}, err
	}
	return nil, DeleteOutput{Deleted: ok}, nil
}

func (t *Tools) Command(ctx context.Context, req *mcp.CallToolRequest, in CommandInput) (*mcp.CallToolResult, CommandOutput, error) {
	if t.Bot == nil {
		return nil, CommandOutput{}, errors.New("command dispatcher not configured")
	}
	return nil, CommandOutput{Reply: t.Bot.HandleText(ctx, in.Text)}, nil
}

// NewServer registers every kanban tool on a new MCP server.
func NewServer(version string, tools *Tools) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "kanban", Version: version}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "kanban_status",
		Description: "Board summary: counts per column, in-progress, overdue and due-today tasks.",
	}, tools.Status)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "kanban_list",
		Description: "List tasks in board order, optionally filtered by column, priority or tag.",
	}, tools.List)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "kanban_add",
		Description: "Create a task. Column defaults to backlog and priority to med.",
	}, tools.Add)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "kanban_move",
		Description: "Move a task to another column. Entering progress starts the clock, entering done stops it.",
	}, tools.Move)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "kanban_delete",
		Description: "Delete a task by id.",
	}, tools.Delete)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "kanban_command",
		Description: "Run a /kanban chat command and return the formatted reply.",
	}, tools.Command)

	return server
}

// Run serves the tools over stdin/stdout until ctx is cancelled or the
// client disconnects.
func Run(ctx context.Context, version string, tools *Tools) error {
	if tools.Logger != nil {
		tools.Logger.Info("serving MCP over stdio")
	}
	return NewServer(version, tools).Run(ctx, &mcp.StdioTransport{})
}
