// Package bot answers /kanban chat commands with short markdown messages.
package bot

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harrisonrobin/kanban/pkg/kanban"
	"github.com/harrisonrobin/kanban/pkg/model"
)

const (
	progressPreview = 5
	nextUpPreview   = 3
	minTitleLength  = 3
)

// Board is the part of the kanban board the dispatcher needs.
type Board interface {
	Status() kanban.Status
	ListByColumn(col model.Column) []model.Task
	Tasks() []model.Task
	Create(ctx context.Context, in kanban.NewTask) (model.Task, error)
	Move(ctx context.Context, id int64, column string) (*model.Task, error)
}

// Handler dispatches chat commands against a board.
type Handler struct {
	Board    Board
	BoardURL string
	Clock    func() time.Time
	Logger   *log.Logger
}

func (h *Handler) now() time.Time {
	if h.Clock != nil {
		return h.Clock()
	}
	return time.Now()
}

// ParseCommand splits a chat message into a lowercase command and its
// arguments, dropping a leading /kanban.
func ParseCommand(text string) (string, []string) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) > 0 && (fields[0] == "/kanban" || strings.HasPrefix(fields[0], "/kanban@")) {
		fields = fields[1:]
	}
	if len(fields) == 0 {
		return "", nil
	}
	return strings.ToLower(fields[0]), append([]string{}, fields[1:]...)
}

// Handle runs one command and returns the reply text.
func (h *Handler) Handle(ctx context.Context, command string, args []string) string {
	switch {
	case command == "" || command == "status":
		return h.status()
	case command == "progress":
		return h.progress()
	case command == "next":
		return h.nextUp()
	case command == "overdue":
		return h.overdue()
	case command == "add" && len(args) > 0:
		return h.add(ctx, strings.Trim(strings.Join(args, " "), `"'`))
	case command == "move" && len(args) >= 2:
		return h.move(ctx, args[0], args[1])
	case command == "help":
		return helpText
	default:
		return "❓ Unknown command. Use /kanban help for usage."
	}
}

// HandleText parses and runs a full chat message.
func (h *Handler) HandleText(ctx context.Context, text string) string {
	cmd, args := ParseCommand(text)
	return h.Handle(ctx, cmd, args)
}

func (h *Handler) status() string {
	s := h.Board.Status()
	counts := s.ByColumn

	var b strings.Builder
	fmt.Fprintf(&b, "📊 **Kanban Status** - %s\n\n", s.Timestamp.UTC().Format("Jan 02, 03:04 PM"))

	fmt.Fprintf(&b, "**In Progress** (%d):\n", counts[model.Progress])
	for i, task := range s.InProgress {
		if i == progressPreview {
			break
		}
		fmt.Fprintf(&b, "• %s: %s", ShortID(task.ID), truncate(task.Title, 50))
		if hours := startedAgo(task, s.Timestamp); hours != "" {
			fmt.Fprintf(&b, " (%s)", hours)
		}
		b.WriteString("\n")
	}
	if n := counts[model.Progress]; n > progressPreview {
		fmt.Fprintf(&b, "  _...and %d more_\n", n-progressPreview)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "**Next Up** (%d):\n", counts[model.NextUp])
	for i, task := range h.Board.ListByColumn(model.NextUp) {
		if i == nextUpPreview {
			break
		}
		fmt.Fprintf(&b, "• %s: %s\n", ShortID(task.ID), truncate(task.Title, 50))
	}
	if n := counts[model.NextUp]; n > nextUpPreview {
		fmt.Fprintf(&b, "  _...and %d more_\n", n-nextUpPreview)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "**Backlog:** %d tasks\n", counts[model.Backlog])
	fmt.Fprintf(&b, "**Done:** %d tasks\n\n", counts[model.Done])

	if len(s.Overdue) > 0 {
		fmt.Fprintf(&b, "🔴 **Overdue:** %d tasks\n", len(s.Overdue))
	}
	if len(s.DueToday) > 0 {
		fmt.Fprintf(&b, "⚠️ **Due today:** %d task(s)\n", len(s.DueToday))
	}
	if h.BoardURL != "" {
		fmt.Fprintf(&b, "\n🔗 View board: %s", h.BoardURL)
	}
	return b.String()
}

func (h *Handler) progress() string {
	tasks := h.Board.ListByColumn(model.Progress)
	if len(tasks) == 0 {
		return "✅ No tasks in progress"
	}
	now := h.now()

	var b strings.Builder
	fmt.Fprintf(&b, "🚀 **In Progress** (%d tasks):\n\n", len(tasks))
	for _, task := range tasks {
		fmt.Fprintf(&b, "**%s:** %s\n", ShortID(task.ID), task.Title)
		if hours := startedAgo(task, now); hours != "" {
			fmt.Fprintf(&b, "  ⏱ %s\n", hours)
		}
		if task.Priority == model.Critical {
			b.WriteString("  🔴 Critical\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (h *Handler) nextUp() string {
	tasks := h.Board.ListByColumn(model.NextUp)
	if len(tasks) == 0 {
		return "📭 No tasks in Next Up"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📋 **Next Up** (%d tasks):\n\n", len(tasks))
	for _, task := range tasks {
		fmt.Fprintf(&b, "**%s:** %s\n", ShortID(task.ID), task.Title)
		if task.Priority == model.Critical || task.Priority == model.High {
			fmt.Fprintf(&b, "  Priority: %s\n", task.Priority)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (h *Handler) overdue() string {
	s := h.Board.Status()
	if len(s.Overdue) == 0 {
		return "✅ No overdue tasks!"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🔴 **Overdue Tasks** (%d):\n\n", len(s.Overdue))
	for _, task := range s.Overdue {
		days := int(s.Timestamp.Sub(task.DueDate.Time).Hours() / 24)
		fmt.Fprintf(&b, "**%s:** %s\n", ShortID(task.ID), task.Title)
		fmt.Fprintf(&b, "  Due: %s (%d days ago)\n", task.DueDate.UTC().Format("Jan 02"), days)
		fmt.Fprintf(&b, "  Column: %s\n\n", task.Column)
	}
	return b.String()
}

func (h *Handler) add(ctx context.Context, title string) string {
	if len(strings.TrimSpace(title)) < minTitleLength {
		return "❌ Task title too short. Provide a meaningful title."
	}
	task, err := h.Board.Create(ctx, kanban.NewTask{Title: title, Column: string(model.Backlog), Priority: string(model.Med)})
	if err != nil {
		h.logError("add", err)
		return fmt.Sprintf("❌ Could not add task: %v", err)
	}
	return fmt.Sprintf("✅ Added task **%s**: %s", ShortID(task.ID), title)
}

func (h *Handler) move(ctx context.Context, ref, column string) string {
	col, err := model.ParseColumn(column)
	if err != nil {
		return fmt.Sprintf("❌ Invalid column. Use one of: %s", columnList())
	}

	id, err := h.resolve(ref)
	if errors.Is(err, errInvalidID) {
		return fmt.Sprintf("❌ Invalid task ID: %s", ref)
	}
	if err != nil {
		return "❌ " + err.Error()
	}

	task, err := h.Board.Move(ctx, id, string(col))
	if err != nil {
		h.logError("move", err)
		return fmt.Sprintf("❌ Could not move task: %v", err)
	}
	if task == nil {
		return fmt.Sprintf("❌ Task %d not found", id)
	}
	return fmt.Sprintf("✅ Moved **%s** to **%s**", truncate(task.Title, 40), col)
}

var (
	errInvalidID = errors.New("invalid task id")
	errAmbiguous = errors.New("ambiguous task id")
)

// resolve accepts a full id or a TASK-nnn short id. Short ids match the
// unique task whose id ends in the given digits.
func (h *Handler) resolve(ref string) (int64, error) {
	digits := ref
	if strings.HasPrefix(strings.ToUpper(ref), "TASK-") {
		digits = ref[len("TASK-"):]
	}
	id, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || id < 0 {
		return 0, errInvalidID
	}

	var matches []int64
	for _, task := range h.Board.Tasks() {
		if task.ID == id {
			return id, nil
		}
		if strings.HasSuffix(strconv.FormatInt(task.ID, 10), digits) {
			matches = append(matches, task.ID)
		}
	}
	switch len(matches) {
	case 0:
		return id, nil
	case 1:
		return matches[0], nil
	default:
		return 0, fmt.Errorf("%w TASK-%s matches %d tasks, use the full id", errAmbiguous, digits, len(matches))
	}
}

func (h *Handler) logError(op string, err error) {
	if h.Logger != nil {
		h.Logger.Error("bot command failed", "op", op, "err", err)
	}
}

// ShortID formats the last three digits of id as TASK-nnn.
func ShortID(id int64) string {
	s := strconv.FormatInt(id, 10)
	if len(s) > 3 {
		s = s[len(s)-3:]
	}
	return "TASK-" + s
}

func startedAgo(task model.Task, now time.Time) string {
	if !task.StartTime.IsSet() {
		return ""
	}
	hours := now.Sub(task.StartTime.Time).Hours()
	switch {
	case hours < 1:
		return "started <1h ago"
	case hours < 24:
		return fmt.Sprintf("started %dh ago", int(math.Round(hours)))
	default:
		return fmt.Sprintf("started %dd ago", int(math.Round(hours/24)))
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func columnList() string {
	names := make([]string, len(model.Columns))
	for i, c := range model.Columns {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}

const helpText = "📚 **Kanban Bot Commands**\n\n" +
	"**/kanban status** - Overview of board\n" +
	"**/kanban progress** - Show in-progress tasks\n" +
	"**/kanban next** - Show next-up tasks\n" +
	"**/kanban overdue** - Show overdue tasks\n" +
	"**/kanban add \"Title\"** - Add task to backlog\n" +
	"**/kanban move TASK-019 progress** - Move task to column\n\n" +
	"**Columns:** backlog, next-up, progress, done\n\n" +
	"**Example:**\n" +
	"```\n" +
	"/kanban add \"Fix login bug\"\n" +
	"/kanban move 1234 progress\n" +
	"```"
