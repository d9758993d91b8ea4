package cmd

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"cranesection/internal/bootstrap"
	"cranesection/internal/errs"
	"cranesection/internal/usecase/followupconsole"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Terminal console commands",
}

var consoleFollowupsCmd = &cobra.Command{
	Use:   "followups",
	Short: "Browse follow-ups in the terminal",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		if err := requireServiceAccess(app); err != nil {
			return err
		}
		section, _ := cmd.Flags().GetString("section")
		status, _ := cmd.Flags().GetString("status")
		refreshInterval, _ := cmd.Flags().GetDuration("refresh-interval")

		model := followupconsole.NewModel(cmd.Context(), app.Followups, followupconsole.Options{
			Sections:        app.Followups.Sections(),
			Section:         section,
			Status:          status,
			RefreshInterval: refreshInterval,
		})

		program := tea.NewProgram(model, tea.WithAltScreen())
		if _, err := program.Run(); err != nil {
			return errs.Wrap(err, "run follow-up console")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(consoleCmd)
	consoleCmd.AddCommand(consoleFollowupsCmd)
	consoleFollowupsCmd.Flags().String("section", "", "Initial section filter")
	consoleFollowupsCmd.Flags().String("status", "", "Initial status filter (Open|Pending|Closed)")
	consoleFollowupsCmd.Flags().Duration("refresh-interval", 10*time.Second, "Auto refresh interval")
}
