package main

import (
	"context"
	"errors"
	"fmt"

	cli "github.com/urfave/cli/v3"

	"doc-approval-engine/internal/templates"
)

var errInvalidTemplates = errors.New("invalid templates found")

func newTemplatesCommand() *cli.Command {
	return &cli.Command{
		Name:  "templates",
		Usage: "Work with workflow template definitions",
		Commands: []*cli.Command{
			{
				Name:      "validate",
				Aliases:   []string{"v"},
				Usage:     "Validate YAML template files",
				ArgsUsage: "<file.yaml>...",
				Action: func(ctx context.Context, command *cli.Command) error {
					files := command.Args().Slice()
					if len(files) == 0 {
						return errors.New("at least one template file is required")
					}
					out := command.Root().Writer
					failed := 0
					for _, path := range files {
						t, err := templates.LoadTemplateFile(path)
						if err != nil {
							failed++
							fmt.Fprintf(out, "FAIL %s\n", err)
							continue
						}
						fmt.Fprintf(out, "ok   %s (%s, %d stages)\n", path, t.Name, len(t.Stages))
					}
					if failed > 0 {
						return fmt.Errorf("%w: %d of %d", errInvalidTemplates, failed, len(files))
					}
					return nil
				},
			},
		},
	}
}
