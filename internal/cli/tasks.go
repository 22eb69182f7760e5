package cli

import (
	"fmt"
	"io"
	"strings"

	"task-board-sync/internal/boardsync"
	"task-board-sync/internal/drag"
	"task-board-sync/internal/models"
	"task-board-sync/internal/notify"

	"github.com/spf13/cobra"
)

func newBoardCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "board",
		Short: "Show the project board",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := app.engine(cmd)
			if err != nil {
				return writeErr(cmd, err)
			}
			printBoard(cmd.OutOrStdout(), e)
			return nil
		},
	}
}

func printBoard(w io.Writer, e *boardsync.Engine) {
	for _, status := range models.Statuses {
		col := e.Board().Column(status)
		fmt.Fprintf(w, "%s (%d)\n", status.DisplayName(), len(col))
		for _, t := range col {
			line := fmt.Sprintf("  %s  %s", t.ID, t.Title)
			if t.AssigneeName != "" {
				line += "  @" + t.AssigneeName
			}
			if n := len(e.Board().Subtasks(t.ID)); n > 0 {
				line += fmt.Sprintf("  [%d subtasks]", n)
			}
			fmt.Fprintln(w, line)
		}
	}
}

func newMoveCmd(app *App) *cobra.Command {
	var before string
	cmd := &cobra.Command{
		Use:   "move <task-id> <status>",
		Short: "Move a task to another column",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := parseStatus(args[1])
			if err != nil {
				return writeErr(cmd, err)
			}
			e, err := app.engine(cmd)
			if err != nil {
				return writeErr(cmd, err)
			}

			var commitErr error
			e.Controller().OnCommitted = func(_ string, err error) { commitErr = err }
			out, err := e.Move(cmd.Context(), args[0], status, before)
			if err != nil {
				return writeErr(cmd, err)
			}
			e.Wait()
			if out == drag.NoOp {
				fmt.Fprintln(cmd.OutOrStdout(), "• Task already there")
				return nil
			}
			return commitErr
		},
	}
	cmd.Flags().StringVar(&before, "before", "", "Place the task before this task id")
	return cmd
}

func newAssignCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "assign <task-id> <user-id|->",
		Short: "Assign a task; '-' unassigns it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			assignee := strings.TrimSpace(args[1])
			if assignee == "-" {
				assignee = ""
			}
			e, err := app.engine(cmd)
			if err != nil {
				return writeErr(cmd, err)
			}
			_, err = e.Assign(cmd.Context(), args[0], assignee)
			e.Wait()
			return err
		},
	}
}

func newDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <task-id>",
		Short: "Delete a task and its subtasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := app.engine(cmd)
			if err != nil {
				return writeErr(cmd, err)
			}
			err = e.Delete(cmd.Context(), args[0])
			e.Wait()
			return err
		},
	}
}

func newOverdueCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "overdue",
		Short: "Notify everyone involved in the project's overdue tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := app.engine(cmd)
			if err != nil {
				return writeErr(cmd, err)
			}
			settled, err := e.CheckOverdue(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			var sent, dup, failed int
			for _, s := range settled {
				switch {
				case s.Status == notify.Rejected:
					failed++
				case s.Duplicate:
					dup++
				default:
					sent++
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Overdue notices: %d sent, %d already sent, %d failed\n", sent, dup, failed)
			return nil
		},
	}
}
