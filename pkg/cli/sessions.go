package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"
)

func sessionsCommand() *cli.Command {
	var opts options

	flags := globalFlags(&opts)
	flags = append(flags, embeddingFlags(&opts)...)

	return &cli.Command{
		Name:  "sessions",
		Usage: "List sessions, most recently active first",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, cfg, err := opts.setup(ctx, c)
			if err != nil {
				return err
			}

			store, err := openStore(ctx, cfg, nil)
			if err != nil {
				return err
			}

			sessions := store.ListSessions(ctx)
			if len(sessions) == 0 {
				fmt.Fprintf(c.Root().Writer, "No sessions found\n")
				return nil
			}

			for _, s := range sessions {
				fmt.Fprintf(c.Root().Writer, "%s\t%d\t%s\n",
					s.SessionID,
					s.Count,
					s.LatestTimestamp.Format(time.RFC3339),
				)
			}
			return nil
		},
	}
}

func historyCommand() *cli.Command {
	var (
		opts      options
		sessionID string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "session",
			Aliases:     []string{"s"},
			Usage:       "Session ID to show",
			Sources:     cli.EnvVars("QUERYMEM_SESSION_ID"),
			Destination: &sessionID,
			Required:    true,
		},
	}
	flags = append(flags, globalFlags(&opts)...)
	flags = append(flags, embeddingFlags(&opts)...)

	return &cli.Command{
		Name:  "history",
		Usage: "Show the interactions of a session in chronological order",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, cfg, err := opts.setup(ctx, c)
			if err != nil {
				return err
			}

			store, err := openStore(ctx, cfg, nil)
			if err != nil {
				return err
			}

			history := store.SessionHistory(ctx, sessionID)
			if len(history) == 0 {
				fmt.Fprintf(c.Root().Writer, "No interactions found for session %s\n", sessionID)
				return nil
			}

			for _, e := range history {
				fmt.Fprintf(c.Root().Writer, "%s\t%s\t%s\t%s\n",
					e.Timestamp.Format(time.RFC3339),
					e.ID,
					e.UserQuery,
					e.GeneratedQuery,
				)
			}
			return nil
		},
	}
}
