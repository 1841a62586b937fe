package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/noah-isme/bioattend-api/internal/service"
)

func newEnrollCommand(ctx *commandContext) *cobra.Command {
	var name, externalID, imagePath string

	cmd := &cobra.Command{
		Use:   "enroll",
		Short: "Enroll a subject from an image file",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(imagePath)
			if err != nil {
				return fmt.Errorf("read image: %w", err)
			}
			return ctx.withRuntime(cmd.Context(), func(rt *runtime) error {
				subject, err := rt.app.Subjects.Enroll(cmd.Context(), service.EnrollSubjectRequest{DisplayName: name, ExternalID: externalID}, data)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Enrolled %s (%s)\n", subject.DisplayName, subject.ExternalID)
				fmt.Fprintf(out, "ID:       %s\n", subject.ID)
				fmt.Fprintf(out, "Template: %s\n", subject.Template)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&externalID, "external-id", "", "External ID (roll number)")
	cmd.Flags().StringVar(&imagePath, "image", "", "Path to the iris image")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("external-id")
	_ = cmd.MarkFlagRequired("image")
	return cmd
}

func newVerifyCommand(ctx *commandContext) *cobra.Command {
	var imagePath string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify an image and mark today's attendance",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(imagePath)
			if err != nil {
				return fmt.Errorf("read image: %w", err)
			}
			return ctx.withRuntime(cmd.Context(), func(rt *runtime) error {
				result, err := rt.app.Verification.Verify(cmd.Context(), data)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if !result.Recognized {
					fmt.Fprintln(out, "Not recognized")
					fmt.Fprintf(out, "Template: %s\n", result.Template)
					return nil
				}
				fmt.Fprintf(out, "Recognized %s (%s)\n", result.Subject.DisplayName, result.Subject.ExternalID)
				fmt.Fprintf(out, "Outcome:  %s for %s\n", result.Outcome, result.Mark.Day)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&imagePath, "image", "", "Path to the iris image")
	_ = cmd.MarkFlagRequired("image")
	return cmd
}
