package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/noah-isme/bioattend-api/internal/biometric"
)

func newTemplateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "template <file>",
		Short: "Print the template derived from an image file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read image: %w", err)
			}

			info, err := biometric.NewIntake(cfg.Upload.MaxFileSizeBytes).Inspect(data)
			if err != nil {
				return err
			}
			template, err := biometric.DeriveTemplate(data)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Format:   %s (%dx%d, %d bytes)\n", info.Format, info.Width, info.Height, info.SizeBytes)
			fmt.Fprintf(out, "Template: %s\n", template)
			return nil
		},
	}
}
