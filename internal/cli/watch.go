package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"task-board-sync/internal/models"

	"github.com/spf13/cobra"
)

func newWatchCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow live changes to the board and your notifications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := app.engine(cmd)
			if err != nil {
				return writeErr(cmd, err)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			printBoard(out, e)
			fmt.Fprintln(out, "• Watching, Ctrl-C to stop")
			err = e.Subscribe(ctx, func(n models.Notification) {
				fmt.Fprintf(out, "🔔 %s: %s\n", n.Title, n.Message)
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}
}

func newInboxCmd(app *App) *cobra.Command {
	var unread bool
	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "List your notifications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.client()
			if err != nil {
				return writeErr(cmd, err)
			}
			list, err := c.Inbox(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "• No notifications")
				return nil
			}
			for _, n := range list {
				if unread && n.IsRead {
					continue
				}
				fmt.Fprintf(out, "%s  %-22s %s\n", n.CreatedAt.Local().Format("2006-01-02 15:04"), n.Type, n.Message)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&unread, "unread", false, "Only unread notifications")
	return cmd
}
