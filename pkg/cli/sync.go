package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/harrisonrobin/kanban/pkg/bot"
	"github.com/harrisonrobin/kanban/pkg/export"
	"github.com/harrisonrobin/kanban/pkg/supermemory"
	"github.com/spf13/cobra"
)

func newGenerateCmd(a *app) *cobra.Command {
	var output, template string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Render the board as a static HTML page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				output = a.cfg.Resolve(a.cfg.Export.Output)
			}
			if template == "" {
				template = a.cfg.Resolve(a.cfg.Export.Template)
			}
			board, err := a.openBoard(cmd.Context())
			if err != nil {
				return err
			}
			r, err := export.New(template)
			if err != nil {
				return err
			}
			if err := r.WriteFile(output, board.Tasks(), a.now()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "📄 Generated: %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default export.output)")
	cmd.Flags().StringVar(&template, "template", "", "HTML template (default export.template or the built-in page)")
	return cmd
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Mirror every task to the configured stores",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n := a.notifiers(cmd.Context())
			if len(n) == 0 {
				return errors.New("no mirror configured, set SUPERMEMORY_API_KEY or a calendar")
			}
			board, err := a.boardWith(n)
			if err != nil {
				return err
			}
			synced, failed := board.MirrorAll(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "🔄 Mirrored %d tasks", synced)
			if failed > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), ", %d failed", failed)
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
}

func newRecallCmd(a *app) *cobra.Command {
	var limit int
	var all bool
	cmd := &cobra.Command{
		Use:   "recall <query>",
		Short: "Search mirrored tasks in the memory store",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sm := a.cfg.Supermemory
			client, err := supermemory.NewClient(cmd.Context(), sm.APIKey, supermemory.WithBaseURL(sm.BaseURL), supermemory.WithSpace(sm.Space))
			if err != nil {
				return err
			}
			opts := supermemory.SearchOptions{Limit: limit}
			if !all {
				opts.Tags = []string{a.cfg.ProjectLabel}
			}
			docs, err := client.Search(cmd.Context(), strings.Join(args, " "), opts)
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}

			w := cmd.OutOrStdout()
			if len(docs) == 0 {
				fmt.Fprintln(w, "No results found.")
				return nil
			}
			fmt.Fprintf(w, "Found %d results:\n\n", len(docs))
			for _, d := range docs {
				fmt.Fprintf(w, "[%s] score %.2f\n", d.ID, d.Score)
				for _, line := range strings.Split(clip(strings.TrimSpace(d.Content), 300), "\n") {
					fmt.Fprintf(w, "  %s\n", line)
				}
				fmt.Fprintln(w)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum results")
	cmd.Flags().BoolVar(&all, "all", false, "search beyond this board's project label")
	return cmd
}

func newTelegramCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "telegram [command] [args...]",
		Short: "Run a chat command and print the reply",
		Long: `Runs one /kanban chat command (status, progress, next, overdue, add,
move, help) against the board and prints the reply, as a chat bot would send it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			board, err := a.openBoard(cmd.Context())
			if err != nil {
				return err
			}
			h := &bot.Handler{Board: board, BoardURL: a.cfg.BoardURL, Clock: a.clock, Logger: a.logger}
			command, rest := "status", []string(nil)
			if len(args) > 0 {
				command, rest = bot.ParseCommand(strings.Join(args, " "))
			}
			fmt.Fprintln(cmd.OutOrStdout(), h.Handle(cmd.Context(), command, rest))
			return nil
		},
	}
}
