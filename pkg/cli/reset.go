package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func resetCommand() *cli.Command {
	var (
		opts      options
		sessionID string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "session",
			Aliases:     []string{"s"},
			Usage:       "Session ID to forget",
			Sources:     cli.EnvVars("QUERYMEM_SESSION_ID"),
			Destination: &sessionID,
			Required:    true,
		},
	}
	flags = append(flags, globalFlags(&opts)...)
	flags = append(flags, embeddingFlags(&opts)...)

	return &cli.Command{
		Name:  "reset",
		Usage: "Remove every entry of a session",
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

			removed, err := store.ResetSession(ctx, sessionID)
			if err != nil {
				return goerr.Wrap(err, "failed to reset session", goerr.V("session_id", sessionID))
			}

			fmt.Fprintf(c.Root().Writer, "Removed %d entries from session %s\n", removed, sessionID)
			return nil
		},
	}
}
