// Package ui provides the interactive terminal board.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/harrisonrobin/kanban/pkg/model"
)

// Board is the part of the kanban board the terminal view drives.
type Board interface {
	ListByColumn(col model.Column) []model.Task
	Move(ctx context.Context, id int64, column string) (*model.Task, error)
}

var columnTitles = map[model.Column]string{
	model.Backlog:  "Backlog",
	model.NextUp:   "Next Up",
	model.Progress: "In Progress",
	model.Done:     "Done",
}

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("4")).Padding(0, 1)
	columnStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("8")).Padding(0, 1)
	activeStyle   = columnStyle.BorderForeground(lipgloss.Color("12"))
	selectedStyle = lipgloss.NewStyle().Reverse(true)
	overdueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	helpStyle     = lipgloss.NewStyle().Faint(true)

	priorityStyles = map[model.Priority]lipgloss.Style{
		model.Critical: lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true),
		model.High:     lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
		model.Med:      lipgloss.NewStyle().Foreground(lipgloss.Color("5")),
		model.Low:      lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
	}
)

type movedMsg struct {
	task *model.Task
	err  error
}

// Model is the bubbletea model for the board view.
type Model struct {
	board  Board
	ctx    context.Context
	now    func() time.Time
	lists  [][]model.Task
	col    int
	row    int
	width  int
	status string
}

func NewModel(ctx context.Context, board Board, clock func() time.Time) Model {
	if clock == nil {
		clock = time.Now
	}
	m := Model{board: board, ctx: ctx, now: clock}
	m.reload()
	return m
}

func (m *Model) reload() {
	m.lists = make([][]model.Task, len(model.Columns))
	for i, c := range model.Columns {
		m.lists[i] = m.board.ListByColumn(c)
	}
	m.clampRow()
}

func (m *Model) clampRow() {
	n := len(m.lists[m.col])
	if m.row >= n {
		m.row = n - 1
	}
	if m.row < 0 {
		m.row = 0
	}
}

// Selected returns the task under the cursor.
func (m Model) Selected() (model.Task, bool) {
	list := m.lists[m.col]
	if len(list) == 0 {
		return model.Task{}, false
	}
	return list[m.row], true
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case movedMsg:
		if msg.err != nil {
			m.status = "move failed: " + msg.err.Error()
		} else if msg.task != nil {
			m.status = fmt.Sprintf("moved %q to %s", msg.task.Title, msg.task.Column)
			m.reload()
			m.follow(msg.task.ID)
		}
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "left", "h":
			if m.col > 0 {
				m.col--
				m.clampRow()
			}
		case "right", "l":
			if m.col < len(model.Columns)-1 {
				m.col++
				m.clampRow()
			}
		case "up", "k":
			if m.row > 0 {
				m.row--
			}
		case "down", "j":
			if m.row < len(m.lists[m.col])-1 {
				m.row++
			}
		case "shift+left", "H", "<":
			return m, m.shift(-1)
		case "shift+right", "L", ">", "enter":
			return m, m.shift(1)
		case "r":
			m.reload()
			m.status = "reloaded"
		}
	}
	return m, nil
}

// shift moves the selected task one column left or right.
func (m Model) shift(dir int) tea.Cmd {
	task, ok := m.Selected()
	if !ok {
		return nil
	}
	target := m.col + dir
	if target < 0 || target >= len(model.Columns) {
		return nil
	}
	board, ctx, col := m.board, m.ctx, model.Columns[target]
	return func() tea.Msg {
		moved, err := board.Move(ctx, task.ID, string(col))
		return movedMsg{task: moved, err: err}
	}
}

// follow puts the cursor on the task with id.
func (m *Model) follow(id int64) {
	for c, list := range m.lists {
		for r, t := range list {
			if t.ID == id {
				m.col, m.row = c, r
				return
			}
		}
	}
}

func (m Model) View() string {
	now := m.now()
	colWidth := 28
	if m.width > 0 {
		if w := m.width/len(model.Columns) - 4; w > 12 {
			colWidth = w
		}
	}

	cols := make([]string, len(model.Columns))
	for i, c := range model.Columns {
		var b strings.Builder
		fmt.Fprintf(&b, "%s (%d)\n", columnTitles[c], len(m.lists[i]))
		if len(m.lists[i]) == 0 {
			b.WriteString(helpStyle.Render("empty"))
		}
		for r, t := range m.lists[i] {
			line := card(t, now, colWidth)
			if i == m.col && r == m.row {
				line = selectedStyle.Render(line)
			}
			b.WriteString(line)
			if r < len(m.lists[i])-1 {
				b.WriteString("\n")
			}
		}
		style := columnStyle
		if i == m.col {
			style = activeStyle
		}
		cols[i] = style.Width(colWidth).Render(b.String())
	}

	var out strings.Builder
	out.WriteString(headerStyle.Render("Kanban") + "\n")
	out.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cols...) + "\n")
	if m.status != "" {
		out.WriteString(m.status + "\n")
	}
	out.WriteString(helpStyle.Render("←/→ column  ↑/↓ task  </> move task  r reload  q quit"))
	return out.String()
}

func card(t model.Task, now time.Time, width int) string {
	mark := priorityStyles[t.Priority].Render("●")
	title := t.Title
	if limit := width - 4; limit > 1 && len([]rune(title)) > limit {
		title = string([]rune(title)[:limit-1]) + "…"
	}
	line := mark + " " + title
	if t.DueDate.IsSet() && t.Column != model.Done && t.DueDate.Time.Before(now) {
		line += overdueStyle.Render(" !")
	}
	return line
}

// Run opens the board in the terminal until the user quits.
func Run(ctx context.Context, board Board) error {
	p := tea.NewProgram(NewModel(ctx, board, nil), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
