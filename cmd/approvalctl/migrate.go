package main

import (
	"context"
	"fmt"

	cli "github.com/urfave/cli/v3"

	"doc-approval-engine/internal/storage"
)

func newMigrateCommand() *cli.Command {
	dsnFlag := &cli.StringFlag{
		Name:     "dsn",
		Usage:    "Postgres connection string",
		Required: true,
		Sources:  cli.EnvVars("POSTGRES_DSN"),
	}
	withMigrator := func(fn func(*storage.Migrator, *cli.Command) error) cli.ActionFunc {
		return func(ctx context.Context, command *cli.Command) error {
			m, err := storage.NewMigrator(command.String("dsn"))
			if err != nil {
				return err
			}
			defer m.Close()
			return fn(m, command)
		}
	}

	return &cli.Command{
		Name:  "migrate",
		Usage: "Manage the database schema",
		Flags: []cli.Flag{dsnFlag},
		Commands: []*cli.Command{
			{
				Name:  "up",
				Usage: "Apply all pending migrations",
				Action: withMigrator(func(m *storage.Migrator, command *cli.Command) error {
					if err := m.Up(); err != nil {
						return err
					}
					fmt.Fprintln(command.Root().Writer, "migrations applied")
					return nil
				}),
			},
			{
				Name:  "down",
				Usage: "Revert all migrations",
				Action: withMigrator(func(m *storage.Migrator, command *cli.Command) error {
					if err := m.Down(); err != nil {
						return err
					}
					fmt.Fprintln(command.Root().Writer, "migrations reverted")
					return nil
				}),
			},
			{
				Name:  "version",
				Usage: "Print the applied migration version",
				Action: withMigrator(func(m *storage.Migrator, command *cli.Command) error {
					v, dirty, err := m.Version()
					if err != nil {
						return err
					}
					fmt.Fprintf(command.Root().Writer, "version: %d, dirty: %v\n", v, dirty)
					return nil
				}),
			},
		},
	}
}
