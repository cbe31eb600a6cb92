package cli

import (
	"context"
	"io"
	"os"

	"github.com/m-mizutani/querymem/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

type Error struct {
	Code    int
	Message string
}

func Run(ctx context.Context, argv []string) *Error {
	cmd := newApp(os.Stdout, os.Stderr)

	if err := cmd.Run(ctx, argv); err != nil {
		logging.Default().Error("command failed", "error", err)
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}

func newApp(w, errW io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "querymem",
		Usage:     "Conversational memory for natural language query pipelines",
		Writer:    w,
		ErrWriter: errW,
		Commands: []*cli.Command{
			addCommand(),
			searchCommand(),
			resetCommand(),
			sessionsCommand(),
			historyCommand(),
			statsCommand(),
			backupCommand(),
			restoreCommand(),
			backupsCommand(),
		},
	}
}
