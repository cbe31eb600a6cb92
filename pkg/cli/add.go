package cli

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/querymem/pkg/memory"
	"github.com/urfave/cli/v3"
)

func addCommand() *cli.Command {
	var (
		opts  options
		input memory.AddEntryInput
		extra []string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "session",
			Aliases:     []string{"s"},
			Usage:       "Session ID the interaction belongs to",
			Sources:     cli.EnvVars("QUERYMEM_SESSION_ID"),
			Destination: &input.SessionID,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "user-query",
			Aliases:     []string{"q"},
			Usage:       "Natural language question of the user",
			Destination: &input.UserQuery,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "generated-query",
			Aliases:     []string{"g"},
			Usage:       "Query generated for the question",
			Destination: &input.GeneratedQuery,
		},
		&cli.StringFlag{
			Name:        "analysis",
			Aliases:     []string{"a"},
			Usage:       "Analysis of the query result",
			Destination: &input.AnalysisText,
		},
		&cli.StringFlag{
			Name:        "preview",
			Usage:       "Preview of the query result",
			Destination: &input.ResultPreview,
		},
		&cli.StringSliceFlag{
			Name:        "extra",
			Aliases:     []string{"e"},
			Usage:       "Extra metadata as key=value, repeatable",
			Destination: &extra,
		},
	}
	flags = append(flags, globalFlags(&opts)...)
	flags = append(flags, embeddingFlags(&opts)...)

	return &cli.Command{
		Name:  "add",
		Usage: "Remember a completed interaction",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, cfg, err := opts.setup(ctx, c)
			if err != nil {
				return err
			}

			input.Extra, err = parseExtra(extra)
			if err != nil {
				return err
			}

			store, err := openStore(ctx, cfg, nil)
			if err != nil {
				return err
			}

			entry, err := store.AddEntry(ctx, input)
			if err != nil {
				return goerr.Wrap(err, "failed to add entry")
			}

			fmt.Fprintf(c.Root().Writer, "Entry added: %s\n", entry.ID)
			return nil
		},
	}
}

// parseExtra converts key=value pairs to metadata. Values that read as an
// integer, float or bool keep that type; anything else is a string.
func parseExtra(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	extra := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, goerr.New("extra metadata must be key=value", goerr.V("value", pair))
		}

		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			extra[key] = i
		} else if f, err := strconv.ParseFloat(value, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			extra[key] = f
		} else if b, err := strconv.ParseBool(value); err == nil {
			extra[key] = b
		} else {
			extra[key] = value
		}
	}
	return extra, nil
}
