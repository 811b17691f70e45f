// Package cli wires the board, mirrors and front-ends into the kanban command.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harrisonrobin/kanban/pkg/auth"
	"github.com/harrisonrobin/kanban/pkg/config"
	"github.com/harrisonrobin/kanban/pkg/google"
	"github.com/harrisonrobin/kanban/pkg/index"
	"github.com/harrisonrobin/kanban/pkg/kanban"
	"github.com/harrisonrobin/kanban/pkg/logging"
	"github.com/harrisonrobin/kanban/pkg/mirror"
	"github.com/harrisonrobin/kanban/pkg/overdue"
	"github.com/harrisonrobin/kanban/pkg/store"
	"github.com/harrisonrobin/kanban/pkg/supermemory"
	"github.com/spf13/cobra"
)

// app carries what every command needs once flags are parsed.
type app struct {
	version    string
	configPath string
	tasksFile  string
	logLevel   string

	cfg    *config.Config
	logger *log.Logger
	clock  func() time.Time
	stderr io.Writer
}

func (a *app) now() time.Time {
	if a.clock != nil {
		return a.clock()
	}
	return time.Now()
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.tasksFile != "" {
		cfg.TasksFile = a.tasksFile
	}
	level := cfg.Log.Level
	if a.logLevel != "" {
		level = a.logLevel
	}
	a.cfg = cfg
	a.logger = logging.New(a.stderr, logging.Options{Level: level, Format: cfg.Log.Format})
	return nil
}

// memoryClient returns nil, nil when the memory store is disabled.
func (a *app) memoryClient(ctx context.Context) (*supermemory.Client, error) {
	sm := a.cfg.Supermemory
	if !sm.Enabled {
		return nil, nil
	}
	return supermemory.NewClient(ctx, sm.APIKey, supermemory.WithBaseURL(sm.BaseURL), supermemory.WithSpace(sm.Space))
}

// calendarMirror connects to the configured calendar without prompting.
func (a *app) calendarMirror(ctx context.Context) (*google.Mirror, error) {
	if a.cfg.Calendar == "" {
		return nil, fmt.Errorf("no calendar configured, run `kanban calendar set <name>`")
	}
	idx, err := index.New(a.cfg.Resolve(index.FileName))
	if err != nil {
		return nil, err
	}
	table, err := overdue.New(a.cfg.Resolve(overdue.FileName))
	if err != nil {
		return nil, err
	}
	flow := &auth.Flow{Dir: a.cfg.Dir, Logger: a.logger}
	client, err := google.NewClient(ctx, flow, a.cfg.Calendar, idx, a.logger)
	if err != nil {
		return nil, err
	}
	return &google.Mirror{Client: client, Overdue: table, Clock: a.clock, Logger: a.logger}, nil
}

// notifiers collects every mirror that is configured and reachable. A mirror
// that cannot be set up is logged and left out.
func (a *app) notifiers(ctx context.Context) mirror.Fanout {
	var out mirror.Fanout
	client, err := a.memoryClient(ctx)
	switch {
	case errors.Is(err, supermemory.ErrMissingAPIKey):
		a.logger.Debug("memory store disabled, no API key")
	case err != nil:
		a.logger.Warn("memory store disabled", "err", err)
	case client != nil:
		out = append(out, &mirror.Memory{Client: client, Project: a.cfg.ProjectLabel, Clock: a.clock})
	}
	if a.cfg.Calendar != "" {
		m, err := a.calendarMirror(ctx)
		if err != nil {
			a.logger.Warn("calendar mirror disabled", "err", err)
		} else {
			out = append(out, m)
		}
	}
	return out
}

func (a *app) openBoard(ctx context.Context) (*kanban.Board, error) {
	return a.boardWith(a.notifiers(ctx))
}

func (a *app) boardWith(n mirror.Fanout) (*kanban.Board, error) {
	opts := kanban.Options{
		Store:  store.New(a.cfg.TasksFile),
		Clock:  a.clock,
		Logger: a.logger,
	}
	if len(n) > 0 {
		opts.Notifier = n
	}
	return kanban.Open(opts)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "kanban",
		Short: "Kanban board with time tracking and mirrored search",
		Long: `kanban keeps a four-column task board in a JSON file, tracks time spent
in progress, and mirrors every change to a semantic memory store and,
optionally, a Google Calendar.`,
		Version:           a.version,
		PersistentPreRunE: a.setup,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default ~/.config/kanban/config.json)")
	root.PersistentFlags().StringVar(&a.tasksFile, "file", "", "task file (overrides tasks_file)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error")

	root.AddCommand(
		newStatusCmd(a),
		newAddCmd(a),
		newMoveCmd(a),
		newUpdateCmd(a),
		newDeleteCmd(a),
		newListCmd(a),
		newGenerateCmd(a),
		newMigrateCmd(a),
		newRecallCmd(a),
		newTelegramCmd(a),
		newServeCmd(a),
		newMCPCmd(a),
		newBoardCmd(a),
		newImportCmd(a),
		newCalendarCmd(a),
	)
	return root
}

// Execute runs the root command.
func Execute(version string) error {
	a := &app{version: version, stderr: os.Stderr}
	if err := newRootCmd(a).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}
