package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"cranesection/internal/bootstrap"
	domain "cranesection/internal/domain/roster"
	"cranesection/internal/errs"
)

var rosterCmd = &cobra.Command{
	Use:   "roster",
	Short: "Show or import the weekly roster",
}

var rosterShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the weekly roster",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		if err := requireServiceAccess(app); err != nil {
			return err
		}
		view, err := app.Roster.Load(cmd.Context())
		if err != nil {
			return errs.Wrap(err, "load roster")
		}
		t := table.New().
			Border(lipgloss.NormalBorder()).
			Headers(domain.Header()...)
		for _, row := range view.Grid.Rows {
			cells := []string{row.Role}
			for _, day := range domain.Days {
				cells = append(cells, row.Day(day))
			}
			t.Row(cells...)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), t.Render())
		return err
	}),
}

var rosterImportCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Replace the roster with a TOML file",
	Long: `Replace the roster with a TOML file holding one table per role:

  ["Shift Supervisor"]
  Monday = "Ali"
  Tuesday = "Sara"`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		if err := requireServiceAccess(app); err != nil {
			return err
		}
		path := cmd.Flags().Arg(0)
		f, err := os.Open(path)
		if err != nil {
			return errs.Wrapf(err, "open %s", path)
		}
		defer func() { _ = f.Close() }()

		version, err := app.Roster.Import(cmd.Context(), f)
		if err != nil {
			return errs.Wrap(err, "import roster")
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "roster imported from %s (version %s)\n", path, version)
		return err
	}),
}

func init() {
	rootCmd.AddCommand(rosterCmd)
	rosterCmd.AddCommand(rosterShowCmd, rosterImportCmd)
}
