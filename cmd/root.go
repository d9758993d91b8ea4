package cmd

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"cranesection/internal/bootstrap/logging"
	"cranesection/internal/errs"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:          "cranesection",
	Short:        "Crane section follow-up sheet and weekly roster",
	Long:         "Dashboard and CLI for equipment follow-ups, reports and the weekly roster, stored in SQLite/Postgres or Google Sheets.",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		logger := logging.New(cmd.ErrOrStderr(), logFormat, logLevel)
		ctx := logging.WithLogger(cmd.Context(), logger)
		cmd.SetContext(ctx)
	},
}

// Execute runs the root command. Called once by main.main().
func Execute(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	ctx = logging.WithAttrs(ctx, slog.String("app", "cranesection"))
	rootCmd.SetContext(ctx)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logging.Error(ctx, "command execution failed", slog.Any("err", errs.Loggable(err)))
		return errs.Wrap(err, "execute root command")
	}

	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "configs/config.yaml", "Config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text|json)")
}
