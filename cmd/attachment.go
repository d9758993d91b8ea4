package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"cranesection/internal/bootstrap"
	"cranesection/internal/errs"
)

var attachmentCmd = &cobra.Command{
	Use:   "attachment",
	Short: "Attachment store commands",
}

var attachmentPutCmd = &cobra.Command{
	Use:   "put FILE",
	Short: "Upload a file to the configured attachment backend and print its link",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		if app.Config.Attachments.Backend == "drive" {
			if err := requireServiceAccess(app); err != nil {
				return err
			}
		}
		path := cmd.Flags().Arg(0)
		data, err := os.ReadFile(path)
		if err != nil {
			return errs.Wrapf(err, "read %s", path)
		}
		mimeType, _ := cmd.Flags().GetString("mime")

		stored, err := app.Attachments.Store(cmd.Context(), data, filepath.Base(path), mimeType)
		if err != nil {
			return errs.Wrap(err, "store attachment")
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", stored.Backend, stored.ID, stored.URL)
		return err
	}),
}

func init() {
	rootCmd.AddCommand(attachmentCmd)
	attachmentCmd.AddCommand(attachmentPutCmd)
	attachmentPutCmd.Flags().String("mime", "", "MIME type (detected when empty)")
}
