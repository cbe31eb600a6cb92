package cli

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/querymem/pkg/memory"
	"github.com/urfave/cli/v3"
)

func searchCommand() *cli.Command {
	var (
		opts        options
		input       memory.SearchInput
		topKSession int64
		topKGlobal  int64
		output      string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "query",
			Aliases:     []string{"q"},
			Usage:       "Natural language query to find related interactions",
			Destination: &input.Query,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "session",
			Aliases:     []string{"s"},
			Usage:       "Current session ID; its entries fill the session quota",
			Sources:     cli.EnvVars("QUERYMEM_SESSION_ID"),
			Destination: &input.SessionID,
		},
		&cli.IntFlag{
			Name:        "top-k-session",
			Usage:       "Maximum number of results from the current session",
			Destination: &topKSession,
		},
		&cli.IntFlag{
			Name:        "top-k-global",
			Usage:       "Maximum number of results from other sessions",
			Destination: &topKGlobal,
		},
		&cli.FloatFlag{
			Name:        "threshold",
			Aliases:     []string{"t"},
			Usage:       "Minimum cosine similarity",
			Destination: &input.SimilarityThreshold,
		},
		&cli.StringFlag{
			Name:        "output",
			Aliases:     []string{"o"},
			Usage:       "Output format (text, context, json)",
			Value:       "text",
			Destination: &output,
		},
	}
	flags = append(flags, globalFlags(&opts)...)
	flags = append(flags, embeddingFlags(&opts)...)

	return &cli.Command{
		Name:  "search",
		Usage: "Search past interactions similar to a query",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, cfg, err := opts.setup(ctx, c)
			if err != nil {
				return err
			}

			input.TopKSession = cfg.Search.TopKSession
			if c.IsSet("top-k-session") {
				input.TopKSession = int(topKSession)
			}
			input.TopKGlobal = cfg.Search.TopKGlobal
			if c.IsSet("top-k-global") {
				input.TopKGlobal = int(topKGlobal)
			}
			if !c.IsSet("threshold") {
				input.SimilarityThreshold = cfg.Search.SimilarityThreshold
			}

			store, err := openStore(ctx, cfg, nil)
			if err != nil {
				return err
			}

			resp, err := store.Search(ctx, input)
			if err != nil {
				return goerr.Wrap(err, "failed to search memory")
			}

			w := c.Root().Writer
			switch output {
			case "json":
				data, err := json.MarshalIndent(resp, "", "  ")
				if err != nil {
					return goerr.Wrap(err, "failed to marshal search response")
				}
				fmt.Fprintln(w, string(data))

			case "context":
				fmt.Fprint(w, memory.RenderContext(resp.Results))

			case "text":
				if resp.Warning != "" {
					fmt.Fprintf(w, "Warning: %s\n", resp.Warning)
				}
				if len(resp.Results) == 0 {
					fmt.Fprintf(w, "No related interactions found\n")
					return nil
				}
				for _, r := range resp.Results {
					fmt.Fprintf(w, "%s\t%.4f\t%s\t%s\t%s\n",
						r.Scope, r.Similarity, r.Entry.ID, r.Entry.SessionID, r.Entry.UserQuery)
				}

			default:
				return goerr.New("unknown output format", goerr.V("output", output))
			}

			return nil
		},
	}
}
