package cli

import (
	"fmt"
	"os"

	"task-board-sync/internal/remote"
	"task-board-sync/internal/session"

	"github.com/spf13/cobra"
)

func newLoginCmd(app *App) *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and save the bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := remote.New(app.cfg.Client.BaseURL, nil, app.cfg.Client.HTTPTimeout, app.logger)
			tok, err := c.Login(cmd.Context(), username, password)
			if err != nil {
				return writeErr(cmd, err)
			}
			sess, err := session.FromToken(tok, 1)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := os.WriteFile(app.cfg.Client.TokenFile, []byte(tok+"\n"), 0o600); err != nil {
				return writeErr(cmd, fmt.Errorf("save token: %w", err))
			}
			actor := sess.Actor()
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Logged in as %s (%s)\n", actor.Name, actor.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "User name")
	cmd.Flags().StringVar(&password, "password", "", "Password")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
