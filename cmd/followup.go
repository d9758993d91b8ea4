package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"cranesection/internal/bootstrap"
	domain "cranesection/internal/domain/followup"
	"cranesection/internal/errs"
	"cranesection/internal/usecase/followup"
)

var followupCmd = &cobra.Command{
	Use:   "followup",
	Short: "Add, list and export equipment follow-ups",
}

var followupAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Record one follow-up",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		if err := requireServiceAccess(app); err != nil {
			return err
		}
		flags := cmd.Flags()
		input := followup.SubmitInput{}
		input.Followup.Section, _ = flags.GetString("section")
		input.Followup.Equipment, _ = flags.GetString("equipment")
		input.Followup.Problem, _ = flags.GetString("problem")
		input.Followup.Note, _ = flags.GetString("note")
		input.Followup.ItemCodes, _ = flags.GetString("item-codes")
		input.Followup.ReportedBy, _ = flags.GetString("reported-by")
		input.Followup.ResolvedBy, _ = flags.GetString("resolved-by")
		status, _ := flags.GetString("status")
		input.Followup.Status = domain.Status(status)

		var err error
		imagePath, _ := flags.GetString("image")
		if input.Image, err = readFile(imagePath); err != nil {
			return err
		}
		audioPath, _ := flags.GetString("audio")
		if input.Audio, err = readFile(audioPath); err != nil {
			return err
		}

		result, err := app.Followups.Submit(cmd.Context(), input)
		if err != nil {
			return errs.Wrap(err, "submit follow-up")
		}
		out := cmd.OutOrStdout()
		for _, warning := range result.Warnings {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", warning)
		}
		if _, err := fmt.Fprintf(out, "follow-up added: %s %s #%s (%s)\n",
			result.Followup.Timestamp, result.Followup.Section, result.Followup.Equipment, result.Followup.Status); err != nil {
			return errs.Wrap(err, "write output")
		}
		return nil
	}),
}

func readFile(path string) (*followup.File, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrapf(err, "read %s", path)
	}
	return &followup.File{Data: data, Filename: filepath.Base(path)}, nil
}

var followupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored follow-ups",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		if err := requireServiceAccess(app); err != nil {
			return err
		}
		section, _ := cmd.Flags().GetString("section")
		status, _ := cmd.Flags().GetString("status")
		asJSON, _ := cmd.Flags().GetBool("json")

		items, err := app.Followups.List(cmd.Context(), domain.Filter{Section: section, Status: domain.Status(status)})
		if err != nil {
			return errs.Wrap(err, "list follow-ups")
		}

		header := app.Followups.Header()
		out := cmd.OutOrStdout()
		if asJSON {
			rows := make([]map[string]string, 0, len(items))
			for _, item := range items {
				rows = append(rows, item.ToRecord(header))
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(rows)
		}

		if len(items) == 0 {
			_, err := fmt.Fprintln(out, "no follow-ups recorded yet")
			return err
		}
		t := table.New().
			Border(lipgloss.NormalBorder()).
			Headers(header...)
		for _, item := range items {
			row := make([]string, 0, len(header))
			for _, field := range header {
				row = append(row, item.Field(field))
			}
			t.Row(row...)
		}
		_, err = fmt.Fprintln(out, t.Render())
		return err
	}),
}

var followupExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write follow-ups and report metrics to an Excel workbook",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		if err := requireServiceAccess(app); err != nil {
			return err
		}
		path, _ := cmd.Flags().GetString("output")
		f, err := os.Create(path)
		if err != nil {
			return errs.Wrapf(err, "create %s", path)
		}
		if err := app.Followups.Export(cmd.Context(), f); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return errs.Wrapf(err, "close %s", path)
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "exported follow-ups to %s\n", path)
		return err
	}),
}

var followupReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print follow-up counts",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		if err := requireServiceAccess(app); err != nil {
			return err
		}
		metrics, err := app.Followups.Report(cmd.Context())
		if err != nil {
			return errs.Wrap(err, "build report")
		}
		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "total: %d  sections: %d  reporters: %d\n", metrics.Total, metrics.UniqueSections, metrics.UniqueReporters)
		for _, c := range metrics.ByStatus {
			_, _ = fmt.Fprintf(out, "status %-8s %d\n", c.Key, c.Count)
		}
		for _, c := range metrics.BySection {
			_, _ = fmt.Fprintf(out, "section %-8s %d\n", c.Key, c.Count)
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(followupCmd)
	followupCmd.AddCommand(followupAddCmd, followupListCmd, followupExportCmd, followupReportCmd)

	add := followupAddCmd.Flags()
	add.String("section", "", "Section (RTG|ARTG|STS|Spreader by default)")
	add.String("equipment", "", "Equipment number")
	add.String("problem", "", "Problem description")
	add.String("note", "", "Optional note")
	add.String("item-codes", "", "Optional spare part item codes")
	add.String("reported-by", "", "Reporter name")
	add.String("resolved-by", "", "Optional resolver name")
	add.String("status", "Open", "Status (Open|Pending|Closed)")
	add.String("image", "", "Optional picture to attach")
	add.String("audio", "", "Optional voice note to attach")

	followupListCmd.Flags().String("section", "", "Only this section")
	followupListCmd.Flags().String("status", "", "Only this status")
	followupListCmd.Flags().Bool("json", false, "Print JSON instead of a table")

	followupExportCmd.Flags().StringP("output", "o", "followups.xlsx", "Workbook path")
}
