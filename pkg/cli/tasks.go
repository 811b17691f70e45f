package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/harrisonrobin/kanban/pkg/kanban"
	"github.com/harrisonrobin/kanban/pkg/model"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const titleWidth = 60

// parseDue reads a --due value. A bare date means the end of that day in UTC.
func parseDue(s string) (*time.Time, error) {
	if d, err := time.Parse("2006-01-02", strings.TrimSpace(s)); err == nil {
		end := d.Add(24*time.Hour - time.Second)
		return &end, nil
	}
	ts, err := model.ParseTimestamp(s)
	if err != nil {
		return nil, err
	}
	t := ts.Time
	return &t, nil
}

func parseTaskID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid task id %q", s)
	}
	return id, nil
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show board status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			board, err := a.openBoard(cmd.Context())
			if err != nil {
				return err
			}
			printStatus(cmd.OutOrStdout(), board.Status())
			return nil
		},
	}
}

func printStatus(w io.Writer, s kanban.Status) {
	fmt.Fprintf(w, "\n📊 Kanban Board Status\n")
	fmt.Fprintln(w, strings.Repeat("=", 50))
	fmt.Fprintf(w, "Total tasks: %d\n", s.Total)
	fmt.Fprintf(w, "\nBy column:\n")
	for _, c := range model.Columns {
		fmt.Fprintf(w, "  %-12s %3d tasks\n", c, s.ByColumn[c])
	}
	if len(s.InProgress) > 0 {
		fmt.Fprintf(w, "\n🚀 In Progress:\n")
		for i, t := range s.InProgress {
			if i == 5 {
				break
			}
			fmt.Fprintf(w, "  • %s\n", clip(t.Title, titleWidth))
		}
	}
	if len(s.Overdue) > 0 {
		fmt.Fprintf(w, "\n🔴 Overdue (%d):\n", len(s.Overdue))
		for i, t := range s.Overdue {
			if i == 3 {
				break
			}
			fmt.Fprintf(w, "  • %s\n", clip(t.Title, titleWidth))
		}
	}
	if len(s.DueToday) > 0 {
		fmt.Fprintf(w, "\n📅 Due today (%d):\n", len(s.DueToday))
		for _, t := range s.DueToday {
			fmt.Fprintf(w, "  • %s\n", clip(t.Title, titleWidth))
		}
	}
	fmt.Fprintln(w)
}

func newAddCmd(a *app) *cobra.Command {
	var (
		in       kanban.NewTask
		due      string
		estimate float64
	)
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a new task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Title = strings.Join(args, " ")
			if due != "" {
				d, err := parseDue(due)
				if err != nil {
					return err
				}
				in.DueDate = d
			}
			if cmd.Flags().Changed("estimate") {
				in.EstimatedHours = &estimate
			}
			board, err := a.openBoard(cmd.Context())
			if err != nil {
				return err
			}
			task, err := board.Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ Added task %d: %s\n", task.ID, task.Title)
			return nil
		},
	}
	cmd.Flags().StringVarP(&in.Description, "description", "d", "", "task description")
	cmd.Flags().StringVarP(&in.Column, "column", "c", string(model.Backlog), "backlog, next-up, progress or done")
	cmd.Flags().StringVarP(&in.Priority, "priority", "p", string(model.Med), "critical, high, med or low")
	cmd.Flags().StringSliceVarP(&in.Tags, "tags", "t", nil, "comma separated tags")
	cmd.Flags().StringVar(&due, "due", "", "due date, YYYY-MM-DD or RFC 3339")
	cmd.Flags().Float64Var(&estimate, "estimate", 0, "estimated hours")
	return cmd
}

func newMoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "move <task-id> <column>",
		Short: "Move a task to another column",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			board, err := a.openBoard(cmd.Context())
			if err != nil {
				return err
			}
			task, err := board.Move(cmd.Context(), id, args[1])
			if err != nil {
				return err
			}
			if task == nil {
				return fmt.Errorf("task %d not found", id)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ Moved task %d to %s\n", task.ID, task.Column)
			if task.Column == model.Done && task.ActualHours != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "⏱  %.2fh spent\n", *task.ActualHours)
			}
			return nil
		},
	}
}

func newUpdateCmd(a *app) *cobra.Command {
	var (
		title, description, column, priority, due string
		tags                                       []string
		estimate                                   float64
		clearDue, clearEstimate                    bool
	)
	cmd := &cobra.Command{
		Use:   "update <task-id>",
		Short: "Change fields of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			var ch kanban.Changes
			flags := cmd.Flags()
			if flags.Changed("title") {
				ch.Title = &title
			}
			if flags.Changed("description") {
				ch.Description = &description
			}
			if flags.Changed("column") {
				ch.Column = &column
			}
			if flags.Changed("priority") {
				ch.Priority = &priority
			}
			if flags.Changed("tags") {
				ch.Tags, ch.SetTags = tags, true
			}
			if flags.Changed("due") {
				d, err := parseDue(due)
				if err != nil {
					return err
				}
				ch.DueDate = d
			}
			if flags.Changed("estimate") {
				ch.EstimatedHours = &estimate
			}
			ch.ClearDueDate = clearDue
			ch.ClearEstimate = clearEstimate

			board, err := a.openBoard(cmd.Context())
			if err != nil {
				return err
			}
			task, err := board.Update(cmd.Context(), id, ch)
			if err != nil {
				return err
			}
			if task == nil {
				return fmt.Errorf("task %d not found", id)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ Updated task %d: %s\n", task.ID, task.Title)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVarP(&description, "description", "d", "", "new description")
	cmd.Flags().StringVarP(&column, "column", "c", "", "new column")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "new priority")
	cmd.Flags().StringSliceVarP(&tags, "tags", "t", nil, "replace tags")
	cmd.Flags().StringVar(&due, "due", "", "new due date")
	cmd.Flags().Float64Var(&estimate, "estimate", 0, "new estimated hours")
	cmd.Flags().BoolVar(&clearDue, "clear-due", false, "remove the due date")
	cmd.Flags().BoolVar(&clearEstimate, "clear-estimate", false, "remove the estimate")
	cmd.MarkFlagsMutuallyExclusive("due", "clear-due")
	cmd.MarkFlagsMutuallyExclusive("estimate", "clear-estimate")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <task-id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			board, err := a.openBoard(cmd.Context())
			if err != nil {
				return err
			}
			ok, err := board.Delete(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("task %d not found", id)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "🗑  Deleted task %d\n", id)
			return nil
		},
	}
}

// taskRow is the list --output yaml shape.
type taskRow struct {
	ID             int64    `yaml:"id"`
	Title          string   `yaml:"title"`
	Description    string   `yaml:"description,omitempty"`
	Column         string   `yaml:"col"`
	Priority       string   `yaml:"priority"`
	Tags           []string `yaml:"tags,omitempty"`
	DueDate        string   `yaml:"dueDate,omitempty"`
	StartTime      string   `yaml:"startTime,omitempty"`
	EndTime        string   `yaml:"endTime,omitempty"`
	EstimatedHours *float64 `yaml:"estimatedHours,omitempty"`
	ActualHours    *float64 `yaml:"actualHours,omitempty"`
}

func rowOf(t model.Task) taskRow {
	r := taskRow{
		ID:             t.ID,
		Title:          t.Title,
		Description:    t.Description,
		Column:         string(t.Column),
		Priority:       string(t.Priority),
		Tags:           t.Tags,
		EstimatedHours: t.EstimatedHours,
		ActualHours:    t.ActualHours,
	}
	if t.DueDate.IsSet() {
		r.DueDate = t.DueDate.String()
	}
	if t.StartTime.IsSet() {
		r.StartTime = t.StartTime.String()
	}
	if t.EndTime.IsSet() {
		r.EndTime = t.EndTime.String()
	}
	return r
}

func newListCmd(a *app) *cobra.Command {
	var column, priority, tag, output string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var f kanban.Filter
			if column != "" {
				c, err := model.ParseColumn(column)
				if err != nil {
					return err
				}
				f.Column = c
			}
			if priority != "" {
				p, err := model.ParsePriority(priority)
				if err != nil {
					return err
				}
				f.Priority = p
			}
			f.Tag = tag

			board, err := a.openBoard(cmd.Context())
			if err != nil {
				return err
			}
			return writeTasks(cmd.OutOrStdout(), board.Filter(f), output)
		},
	}
	cmd.Flags().StringVarP(&column, "column", "c", "", "filter by column")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "filter by priority")
	cmd.Flags().StringVar(&tag, "tag", "", "filter by tag")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "table, json or yaml")
	return cmd
}

func writeTasks(w io.Writer, tasks []model.Task, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(tasks)
	case "yaml":
		rows := make([]taskRow, 0, len(tasks))
		for _, t := range tasks {
			rows = append(rows, rowOf(t))
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rows); err != nil {
			return err
		}
		return enc.Close()
	case "table", "":
		fmt.Fprintf(w, "\n📋 Tasks (%d):\n", len(tasks))
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tCOLUMN\tPRIORITY\tDUE\tTITLE")
		for _, t := range tasks {
			due := "-"
			if t.DueDate.IsSet() {
				due = t.DueDate.Time.UTC().Format("2006-01-02")
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", t.ID, t.Column, t.Priority, due, clip(t.Title, titleWidth))
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown output format %q, use table, json or yaml", format)
	}
}
