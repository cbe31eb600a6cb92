package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/querymem/pkg/usecase/backup"
	"github.com/urfave/cli/v3"
)

func backupCommand() *cli.Command {
	var opts options

	flags := globalFlags(&opts)
	flags = append(flags, embeddingFlags(&opts)...)
	flags = append(flags, backupFlags(&opts)...)

	return &cli.Command{
		Name:  "backup",
		Usage: "Upload a snapshot of the store to Cloud Storage",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, cfg, err := opts.setup(ctx, c)
			if err != nil {
				return err
			}

			uc, err := newBackup(ctx, cfg)
			if err != nil {
				return err
			}

			store, err := openStore(ctx, cfg, nil)
			if err != nil {
				return err
			}

			manifest, err := uc.Backup(ctx, store)
			if err != nil {
				return goerr.Wrap(err, "failed to back up store")
			}

			fmt.Fprintf(c.Root().Writer, "Backup created: %s\n", manifest.ID)
			return nil
		},
	}
}

func backupsCommand() *cli.Command {
	var opts options

	flags := globalFlags(&opts)
	flags = append(flags, backupFlags(&opts)...)

	return &cli.Command{
		Name:  "backups",
		Usage: "List backups, newest first",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, cfg, err := opts.setup(ctx, c)
			if err != nil {
				return err
			}

			uc, err := newBackup(ctx, cfg)
			if err != nil {
				return err
			}

			manifests, err := uc.List(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to list backups")
			}

			if len(manifests) == 0 {
				fmt.Fprintf(c.Root().Writer, "No backups found\n")
				return nil
			}

			for _, m := range manifests {
				fmt.Fprintf(c.Root().Writer, "%s\t%s\t%d\t%d\n",
					m.ID,
					m.CreatedAt.Format(time.RFC3339),
					m.Files[m.IndexFile],
					m.Files[m.MetadataFile],
				)
			}
			return nil
		},
	}
}

func restoreCommand() *cli.Command {
	var (
		opts     options
		backupID string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "id",
			Usage:       "Backup ID to restore",
			Destination: &backupID,
			Required:    true,
		},
	}
	flags = append(flags, globalFlags(&opts)...)
	flags = append(flags, backupFlags(&opts)...)

	return &cli.Command{
		Name:  "restore",
		Usage: "Replace the store files with a backup",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, cfg, err := opts.setup(ctx, c)
			if err != nil {
				return err
			}

			uc, err := newBackup(ctx, cfg)
			if err != nil {
				return err
			}

			manifest, err := uc.Restore(ctx, backupID, backup.Target{
				Dir:          cfg.Store.Dir,
				IndexFile:    cfg.Store.IndexFile,
				MetadataFile: cfg.Store.MetadataFile,
			})
			if err != nil {
				return goerr.Wrap(err, "failed to restore backup", goerr.V("id", backupID))
			}

			fmt.Fprintf(c.Root().Writer, "Backup restored: %s\n", manifest.ID)
			return nil
		},
	}
}
