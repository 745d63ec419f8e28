package main

import (
	"context"
	"fmt"

	"github.com/strahe/pgreplay-sentinel/capture"
	"github.com/urfave/cli/v3"
	"github.com/yugabyte/pgx/v5/pgconn"
)

// publicationCmd exposes CREATE/DROP PUBLICATION as setup tooling: the
// session itself never auto-creates a publication, since a missing one
// signals an operator error worth surfacing rather than papering over.
var publicationCmd = &cli.Command{
	Name:  "publication",
	Usage: "Manage the FOR ALL TABLES publication this session reads from",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "config", Usage: "path to an optional TOML config file"},
	},
	Commands: []*cli.Command{
		{
			Name:  "create",
			Usage: "Create the publication named by PUB_NAME if it does not already exist",
			Action: func(ctx context.Context, c *cli.Command) error {
				return withPlainConn(ctx, c, func(ctx context.Context, conn *pgconn.PgConn, name string) error {
					return capture.CreatePublication(ctx, conn, name)
				})
			},
		},
		{
			Name:  "drop",
			Usage: "Drop the publication named by PUB_NAME, if present",
			Action: func(ctx context.Context, c *cli.Command) error {
				return withPlainConn(ctx, c, func(ctx context.Context, conn *pgconn.PgConn, name string) error {
					return capture.DropPublication(ctx, conn, name)
				})
			},
		},
	},
}

func withPlainConn(ctx context.Context, c *cli.Command, fn func(context.Context, *pgconn.PgConn, string) error) error {
	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return err
	}
	conn, err := pgconn.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(ctx)
	return fn(ctx, conn, cfg.PubName)
}
