package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func newReportCommand(ctx *commandContext) *cobra.Command {
	var day, output string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show attendance for a day",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd.Context(), func(rt *runtime) error {
				if output != "" {
					format := strings.TrimPrefix(strings.ToLower(filepath.Ext(output)), ".")
					file, err := rt.app.Export.DayReport(cmd.Context(), day, format)
					if err != nil {
						return err
					}
					if err := os.WriteFile(output, file.Data, 0o644); err != nil {
						return fmt.Errorf("write report: %w", err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", output)
					return nil
				}

				report, err := rt.app.Attendance.ForDay(cmd.Context(), day)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Attendance for %s: %d present, %d absent, %d enrolled\n", report.Day, report.Present, report.Absent, report.TotalSubjects)
				if len(report.Records) == 0 {
					fmt.Fprintln(out, "No attendance recorded")
					return nil
				}
				rows := make([][]string, 0, len(report.Records))
				for i, rec := range report.Records {
					rows = append(rows, []string{
						strconv.Itoa(i + 1),
						rec.ExternalID,
						rec.DisplayName,
						string(rec.Status),
						rec.RecordedAt.UTC().Format("15:04:05"),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"#", "External ID", "Name", "Status", "Recorded (UTC)"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&day, "date", "", "Day (YYYY-MM-DD), defaults to today")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the report to a .csv or .pdf file instead")
	return cmd
}
