package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/harrisonrobin/kanban/pkg/bot"
	"github.com/harrisonrobin/kanban/pkg/export"
	"github.com/harrisonrobin/kanban/pkg/mcpserver"
	"github.com/harrisonrobin/kanban/pkg/server"
	"github.com/harrisonrobin/kanban/pkg/ui"
	"github.com/spf13/cobra"
)

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API and the live board page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			board, err := a.openBoard(ctx)
			if err != nil {
				return err
			}
			renderer, err := export.New(a.cfg.Resolve(a.cfg.Export.Template))
			if err != nil {
				return err
			}
			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			s := server.New(server.Options{
				Board:          board,
				Renderer:       renderer,
				Logger:         a.logger,
				AllowedOrigins: a.cfg.Server.AllowedOrigins,
				Clock:          a.clock,
			})
			return s.ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default server.addr)")
	return cmd
}

func newMCPCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve board tools to agents over MCP stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			board, err := a.openBoard(ctx)
			if err != nil {
				return err
			}
			tools := &mcpserver.Tools{
				Board:  board,
				Bot:    &bot.Handler{Board: board, BoardURL: a.cfg.BoardURL, Clock: a.clock, Logger: a.logger},
				Logger: a.logger,
			}
			return mcpserver.Run(ctx, a.version, tools)
		},
	}
}

func newBoardCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "board",
		Short: "Open the interactive terminal board",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Log lines would draw over the alternate screen.
			a.logger.SetLevel(log.ErrorLevel)
			board, err := a.openBoard(cmd.Context())
			if err != nil {
				return err
			}
			return ui.Run(cmd.Context(), board)
		},
	}
}
