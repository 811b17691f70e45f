package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/harrisonrobin/kanban/pkg/kanban"
	"github.com/harrisonrobin/kanban/pkg/orgmode"
	"github.com/harrisonrobin/kanban/pkg/taskwarrior"
	"github.com/spf13/cobra"
)

func newImportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Create tasks from other task sources",
	}
	cmd.AddCommand(newImportOrgCmd(a), newImportTaskwarriorCmd(a))
	return cmd
}

// importTasks creates every task whose title is not already on the board.
func importTasks(ctx context.Context, board *kanban.Board, in []kanban.NewTask, w io.Writer) error {
	seen := make(map[string]bool)
	for _, t := range board.Tasks() {
		seen[t.Title] = true
	}
	added, skipped := 0, 0
	for _, nt := range in {
		if seen[nt.Title] {
			skipped++
			continue
		}
		task, err := board.Create(ctx, nt)
		if err != nil {
			return fmt.Errorf("import %q: %w", nt.Title, err)
		}
		seen[task.Title] = true
		added++
	}
	fmt.Fprintf(w, "📥 Imported %d tasks, skipped %d already on the board\n", added, skipped)
	return nil
}

func newImportOrgCmd(a *app) *cobra.Command {
	var tag string
	var skipDone bool
	cmd := &cobra.Command{
		Use:   "org <file>...",
		Short: "Import TODO and DONE headlines from Org files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := orgmode.ParseFiles(args, time.Local)
			if err != nil {
				return err
			}
			if tag != "" {
				items = orgmode.FilterItems(items, tag)
			}
			var in []kanban.NewTask
			for _, item := range items {
				if skipDone && item.Done {
					continue
				}
				in = append(in, item.NewTask())
			}
			board, err := a.openBoard(cmd.Context())
			if err != nil {
				return err
			}
			return importTasks(cmd.Context(), board, in, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&tag, "tag", "", "only headlines carrying this tag")
	cmd.Flags().BoolVar(&skipDone, "skip-done", false, "leave DONE headlines out")
	return cmd
}

func newImportTaskwarriorCmd(a *app) *cobra.Command {
	var file, binary string
	cmd := &cobra.Command{
		Use:   "taskwarrior [filter...]",
		Short: "Import tasks from `task export`",
		Long: `Runs "task <filter> export" and imports the result. With --input, reads
export JSON from that file instead ("-" for stdin).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := &taskwarrior.Client{Binary: binary}
			var tasks []taskwarrior.Task
			var err error
			switch file {
			case "":
				tasks, err = client.GetTasks(cmd.Context(), args)
			case "-":
				tasks, err = client.ParseTasks(cmd.InOrStdin())
			default:
				f, ferr := os.Open(file)
				if ferr != nil {
					return ferr
				}
				defer f.Close()
				tasks, err = client.ParseTasks(f)
			}
			if err != nil {
				return err
			}

			var in []kanban.NewTask
			for i := range tasks {
				if nt, ok := tasks[i].NewTask(); ok {
					in = append(in, nt)
				}
			}
			board, err := a.openBoard(cmd.Context())
			if err != nil {
				return err
			}
			return importTasks(cmd.Context(), board, in, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&file, "input", "i", "", "read export JSON from a file instead of running task")
	cmd.Flags().StringVar(&binary, "task-bin", "task", "taskwarrior executable")
	return cmd
}
