package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/harrisonrobin/kanban/pkg/auth"
	"github.com/harrisonrobin/kanban/pkg/config"
	"github.com/spf13/cobra"
)

func newCalendarCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Manage the Google Calendar mirror",
	}
	cmd.AddCommand(newCalendarAuthCmd(a), newCalendarSetCmd(a), newCalendarSweepCmd(a))
	return cmd
}

func newCalendarAuthCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authorize calendar access in the browser",
		Long: `Starts the OAuth desktop flow using credentials.json from the config
directory and caches the resulting token next to it. Any existing token is
replaced.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tokenFile := filepath.Join(a.cfg.Dir, auth.TokenFile)
			if _, err := os.Stat(tokenFile); err == nil {
				a.logger.Info("removing existing token", "path", tokenFile)
				if err := os.Remove(tokenFile); err != nil {
					return fmt.Errorf("could not delete token file %s, please delete it manually: %w", tokenFile, err)
				}
			}

			flow := &auth.Flow{Dir: a.cfg.Dir, Logger: a.logger, Interactive: true}
			if err := flow.Authorize(cmd.Context(), auth.Scopes); err != nil {
				return fmt.Errorf("authentication failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ Authentication successful, token saved to %s\n", tokenFile)
			return nil
		},
	}
}

func newCalendarSetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set <calendar-name>",
		Short: "Choose the calendar tasks are mirrored to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Reload so command-line overrides are not written back.
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			cfg.Calendar = args[0]
			if err := config.Save(cfg); err != nil {
				return fmt.Errorf("error saving config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Default calendar set to: %s\n", args[0])
			return nil
		},
	}
}

func newCalendarSweepCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Mark calendar events of newly overdue tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.calendarMirror(cmd.Context())
			if err != nil {
				return err
			}
			n, err := m.Sweep(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "Marked %d overdue events\n", n)
			return err
		},
	}
}
