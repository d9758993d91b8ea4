package bootstrap

import (
	"context"
	"errors"
	"log/slog"

	"gorm.io/gorm"

	"cranesection/internal/bootstrap/config"
	"cranesection/internal/bootstrap/logging"
	"cranesection/internal/errs"
	attachmentinfra "cranesection/internal/infrastructure/attachment"
	"cranesection/internal/infrastructure/persistence/sqlite/model"
	"cranesection/internal/usecase/attachment"
	"cranesection/internal/usecase/auth"
	"cranesection/internal/usecase/followup"
	"cranesection/internal/usecase/roster"
)

type App struct {
	Config      config.Config
	DB          *gorm.DB
	Followups   *followup.Service
	Roster      *roster.Service
	Attachments *attachment.Store
	// Auth is nil unless Google access runs on signed-in users' tokens.
	Auth *auth.Service
	// LocalAttachments is set when uploads are kept on disk.
	LocalAttachments *attachmentinfra.LocalBackend
}

// UsesSessionAuth reports whether the record store can only be reached with a
// signed-in user's token.
func (a *App) UsesSessionAuth() bool {
	return a.Config.Google.Auth == "oauth" && a.Config.Store.Backend == "sheets"
}

// InitSchema migrates the database tables and makes sure both worksheets carry
// their header.
func (a *App) InitSchema(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.app"))
	logging.Info(logCtx, "start schema migration")

	if err := a.DB.WithContext(ctx).AutoMigrate(model.All()...); err != nil {
		return errs.Wrap(err, "auto migrate schema")
	}
	logging.Info(logCtx, "database migration completed")

	if a.UsesSessionAuth() {
		logging.Warn(logCtx, "worksheets are prepared on first sign-in when google.auth is oauth")
		return nil
	}
	if err := a.Followups.EnsureSchema(ctx); err != nil {
		return errs.Wrap(err, "ensure follow-up worksheet")
	}
	if _, err := a.Roster.Load(ctx); err != nil {
		return errs.Wrap(err, "ensure roster worksheet")
	}

	logging.Info(logCtx, "schema migration completed", slog.String("store_backend", a.Config.Store.Backend))
	return nil
}
