package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"cranesection/internal/bootstrap"
	"cranesection/internal/bootstrap/logging"
	"cranesection/internal/errs"
	"cranesection/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web dashboard",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = app.Config.HTTP.Addr
		}

		if !app.UsesSessionAuth() {
			if err := app.Followups.EnsureSchema(ctx); err != nil {
				logging.Warn(ctx, "follow-up worksheet not ready", slog.Any("err", errs.Loggable(err)))
			}
		}

		handler, err := web.NewRouter(ctx, web.Deps{
			Followups:        app.Followups,
			Roster:           app.Roster,
			Auth:             app.Auth,
			LocalAttachments: app.LocalAttachments,
			EquipmentMax:     app.Config.Followups.EquipmentMax,
			MaxUploadBytes:   app.Config.Attachments.MaxBytes,
			CookieSecure:     app.Config.HTTP.CookieSecure,
			SessionTTL:       app.Config.HTTP.SessionTTL,
		})
		if err != nil {
			return errs.Wrap(err, "build router")
		}

		srv := &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logging.Info(ctx, "http server listening", slog.String("addr", addr))
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return errs.Wrap(err, "listen")
		case <-ctx.Done():
		}

		logging.Info(ctx, "shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errs.Wrap(err, "shutdown http server")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (defaults to http.addr)")
}
