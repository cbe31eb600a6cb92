package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"
)

func statsCommand() *cli.Command {
	var opts options

	flags := globalFlags(&opts)
	flags = append(flags, embeddingFlags(&opts)...)

	return &cli.Command{
		Name:  "stats",
		Usage: "Show store size and the metrics collected while opening it",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, cfg, err := opts.setup(ctx, c)
			if err != nil {
				return err
			}

			reg := prometheus.NewRegistry()
			store, err := openStore(ctx, cfg, reg)
			if err != nil {
				return err
			}

			w := c.Root().Writer
			stats := store.Stats(ctx)
			fmt.Fprintf(w, "entries\t%d\n", stats.Entries)
			fmt.Fprintf(w, "sessions\t%d\n", stats.Sessions)
			fmt.Fprintf(w, "dimension\t%d\n", stats.Dimension)
			fmt.Fprintf(w, "dir\t%s\n", cfg.Store.Dir)

			families, err := reg.Gather()
			if err != nil {
				return goerr.Wrap(err, "failed to gather metrics")
			}
			for _, f := range families {
				for _, m := range f.GetMetric() {
					var value float64
					switch {
					case m.GetCounter() != nil:
						value = m.GetCounter().GetValue()
					case m.GetGauge() != nil:
						value = m.GetGauge().GetValue()
					default:
						continue
					}

					var labels []string
					for _, l := range m.GetLabel() {
						labels = append(labels, l.GetName()+"="+l.GetValue())
					}
					name := f.GetName()
					if len(labels) > 0 {
						name += "{" + strings.Join(labels, ",") + "}"
					}
					fmt.Fprintf(w, "%s\t%g\n", name, value)
				}
			}
			return nil
		},
	}
}
