package main

import (
	"context"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"

	"doc-approval-engine/internal/logging"
)

func newApp() *cli.Command {
	return &cli.Command{
		Name:                  "approvalctl",
		Usage:                 "Operate the document approval engine",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "warn",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Before: func(ctx context.Context, command *cli.Command) (context.Context, error) {
			logging.Setup(command.String("log-level"))
			return ctx, nil
		},
		Commands: []*cli.Command{
			newSynthesizeCommand(),
			newTemplatesCommand(),
			newMigrateCommand(),
		},
	}
}

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "approvalctl:", err)
		os.Exit(1)
	}
}
