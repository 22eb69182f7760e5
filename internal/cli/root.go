// Package cli implements boardctl, a terminal client for the task board.
package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"task-board-sync/internal/boardsync"
	"task-board-sync/internal/config"
	"task-board-sync/internal/logging"
	"task-board-sync/internal/models"
	"task-board-sync/internal/mutation"
	"task-board-sync/internal/remote"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var errNotLoggedIn = errors.New("not logged in: run `boardctl login` or set BOARD_TOKEN")

type App struct {
	ConfigPath string
	ProjectID  string

	cfg    config.Config
	logger *log.Logger
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "boardctl",
		Short:        "Move, assign and watch tasks on a project board",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  boardctl login --username alice --password secret
  boardctl --project P1 board
  boardctl --project P1 move T42 done
  boardctl --project P1 watch
`),
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(app.ConfigPath)
		if err != nil {
			return err
		}
		app.cfg = cfg
		app.logger = logging.New(cfg.LogLevel)
		app.logger.SetOutput(cmd.ErrOrStderr())
		return nil
	}

	cmd.PersistentFlags().StringVar(&app.ConfigPath, "config", envOr("BOARD_CONFIG", ""), "Path to the YAML config file")
	cmd.PersistentFlags().StringVar(&app.ProjectID, "project", envOr("BOARD_PROJECT", ""), "Project id")

	cmd.AddCommand(newLoginCmd(app))
	cmd.AddCommand(newBoardCmd(app))
	cmd.AddCommand(newMoveCmd(app))
	cmd.AddCommand(newAssignCmd(app))
	cmd.AddCommand(newDeleteCmd(app))
	cmd.AddCommand(newOverdueCmd(app))
	cmd.AddCommand(newWatchCmd(app))
	cmd.AddCommand(newInboxCmd(app))

	return cmd
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// token prefers the configured token over the one saved by login.
func (a *App) token() (string, error) {
	if tok := strings.TrimSpace(a.cfg.Client.Token); tok != "" {
		return tok, nil
	}
	b, err := os.ReadFile(a.cfg.Client.TokenFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", errNotLoggedIn
		}
		return "", err
	}
	tok := strings.TrimSpace(string(b))
	if tok == "" {
		return "", errNotLoggedIn
	}
	return tok, nil
}

func (a *App) client() (*remote.Client, error) {
	tok, err := a.token()
	if err != nil {
		return nil, err
	}
	return remote.New(a.cfg.Client.BaseURL, func() string { return tok }, a.cfg.Client.HTTPTimeout, a.logger), nil
}

// engine opens a session and loads the selected project's board.
func (a *App) engine(cmd *cobra.Command) (*boardsync.Engine, error) {
	if a.ProjectID == "" {
		return nil, boardsync.ErrNoProject
	}
	tok, err := a.token()
	if err != nil {
		return nil, err
	}
	e, err := boardsync.New(boardsync.Options{
		BaseURL:           a.cfg.Client.BaseURL,
		ProjectID:         a.ProjectID,
		Token:             tok,
		NotifyConcurrency: a.cfg.Client.NotifyConcurrency,
		CacheSize:         a.cfg.Client.CacheSize,
		HTTPTimeout:       a.cfg.Client.HTTPTimeout,
		Feedback:          mutation.NewWriterFeedback(cmd.OutOrStdout()),
		Logger:            a.logger,
	})
	if err != nil {
		return nil, err
	}
	if err := e.Load(cmd.Context()); err != nil {
		return nil, err
	}
	return e, nil
}

// parseStatus accepts column names in any case with '-', '_' or ' ' separators.
func parseStatus(s string) (models.TaskStatus, error) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	st := models.TaskStatus(norm)
	if !st.Valid() {
		return "", fmt.Errorf("unknown status %q (want todo, in-progress, review or done)", s)
	}
	return st, nil
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}
