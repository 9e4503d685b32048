package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"

	"doc-approval-engine/internal/domain"
	"doc-approval-engine/internal/logging"
	"doc-approval-engine/internal/synthesis"
)

func newSynthesizeCommand() *cli.Command {
	return &cli.Command{
		Name:  "synthesize",
		Usage: "Print the approval workflow synthesized from a section manifest",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "Path to a sections.json manifest",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "name",
				Usage: "Override the document file name",
			},
			&cli.StringFlag{
				Name:  "kind",
				Usage: "Override the document kind (pdf, xlsx, docx)",
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			raw, err := os.ReadFile(command.String("file"))
			if err != nil {
				return err
			}
			manifest, err := domain.ValidateSectionsJSON(raw)
			if err != nil {
				return err
			}
			if name := command.String("name"); name != "" {
				manifest.FileName = name
			}
			if kind := command.String("kind"); kind != "" {
				manifest.FileKind = kind
			}
			if manifest.FileName == "" {
				return errors.New("file name is required")
			}

			synth := synthesis.NewSynthesizer(logging.WithModule("synthesis"), nil)
			wf := synth.Synthesize(manifest.FileName, manifest.Sections, manifest.FileKind)

			enc := json.NewEncoder(command.Root().Writer)
			enc.SetIndent("", "  ")
			if err := enc.Encode(wf); err != nil {
				return fmt.Errorf("encode workflow: %w", err)
			}
			return nil
		},
	}
}
