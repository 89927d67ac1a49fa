package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/frostsig/frostrelay/relayclient"
)

func newSessionsCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List the sessions this installation is a member of on a relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			kp, err := keyPairFromConfig(cfg)
			if err != nil {
				return err
			}
			if g.serverURL == "" {
				return fmt.Errorf("frost-client: --server is required")
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			client := relayclient.New(g.serverURL)
			if err := client.LoginWithKeyPair(ctx, kp); err != nil {
				return fmt.Errorf("frost-client: login: %w", err)
			}
			defer client.Logout(ctx)

			out, err := client.ListSessions(ctx)
			if err != nil {
				return fmt.Errorf("frost-client: list sessions: %w", err)
			}
			if len(out.SessionIDs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "(no active sessions)")
				return nil
			}
			for _, id := range out.SessionIDs {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
}
