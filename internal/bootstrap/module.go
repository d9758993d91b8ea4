package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"go.uber.org/fx"
	"golang.org/x/oauth2"
	"gorm.io/gorm"

	"cranesection/internal/bootstrap/config"
	"cranesection/internal/bootstrap/database"
	"cranesection/internal/bootstrap/logging"
	"cranesection/internal/errs"
	attachmentinfra "cranesection/internal/infrastructure/attachment"
	cacheinfra "cranesection/internal/infrastructure/cache"
	"cranesection/internal/infrastructure/googleapi"
	"cranesection/internal/infrastructure/persistence/sqlite/model"
	sqliterepo "cranesection/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "cranesection/internal/infrastructure/persistence/sqlite/uow"
	"cranesection/internal/ports"
	"cranesection/internal/usecase/attachment"
	"cranesection/internal/usecase/auth"
	"cranesection/internal/usecase/followup"
	"cranesection/internal/usecase/recordstore"
	"cranesection/internal/usecase/roster"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(
		fx.Annotate(
			sqliteuow.NewUnitOfWork,
			fx.As(new(ports.UnitOfWork)),
		),
	),
	fx.Provide(provideCache),
	fx.Provide(provideGoogle),
	fx.Provide(provideSpreadsheetOpener),
	fx.Provide(provideAttachmentBackend),
	fx.Provide(provideAttachmentStore),
	fx.Provide(provideFollowups),
	fx.Provide(provideRoster),
	fx.Provide(provideAuth),
	fx.Provide(provideApp),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	return config.Load(ctx, p.ConfigFile)
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			if !cfg.Database.AutoMigrate {
				return nil
			}
			if err := db.WithContext(startCtx).AutoMigrate(model.All()...); err != nil {
				return errs.Wrap(err, "auto migrate schema")
			}
			logging.Debug(logCtx, "database tables migrated")
			return nil
		},
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

func provideCache(lc fx.Lifecycle, cfg config.Config, db *gorm.DB) (ports.Cache, error) {
	switch cfg.Cache.Driver {
	case "", "sqlite":
		return cacheinfra.NewSQLiteCache(db), nil
	case "badger":
		c, err := cacheinfra.OpenBadgerCache(cfg.Cache.Path)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{
			OnStop: func(_ context.Context) error { return c.Close() },
		})
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported cache driver %q", cfg.Cache.Driver)
	}
}

// googleAccess holds the Google client source. Both fields stay nil when neither
// store nor attachments use Google.
type googleAccess struct {
	Clients googleapi.ClientProvider
	OAuth   *oauth2.Config
}

func provideGoogle(ctx context.Context, cfg config.Config) (googleAccess, error) {
	if cfg.Store.Backend != "sheets" && cfg.Attachments.Backend != "drive" {
		return googleAccess{}, nil
	}
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	switch cfg.Google.Auth {
	case "oauth":
		oauthCfg := googleapi.NewOAuthConfig(cfg.Google.OAuth.ClientID, cfg.Google.OAuth.ClientSecret, cfg.Google.OAuth.RedirectURL)
		logging.Info(logCtx, "google access uses signed-in user tokens")
		return googleAccess{Clients: googleapi.SessionClient{Config: oauthCfg}, OAuth: oauthCfg}, nil
	default:
		client, err := googleapi.NewServiceAccountClient(ctx, cfg.Google.CredentialsFile)
		if err != nil {
			return googleAccess{}, err
		}
		logging.Info(logCtx, "google access uses service account", slog.String("credentials_file", cfg.Google.CredentialsFile))
		return googleAccess{Clients: client}, nil
	}
}

func provideSpreadsheetOpener(cfg config.Config, db *gorm.DB, uow ports.UnitOfWork, g googleAccess) (ports.SpreadsheetOpener, error) {
	switch cfg.Store.Backend {
	case "", "sqlite":
		return sqliterepo.NewSpreadsheetRepository(db, uow), nil
	case "sheets":
		return googleapi.NewSheetsBackend(g.Clients), nil
	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.Store.Backend)
	}
}

func provideAttachmentBackend(cfg config.Config, g googleAccess) (ports.AttachmentBackend, error) {
	switch cfg.Attachments.Backend {
	case "", "local":
		return attachmentinfra.NewLocalBackend(cfg.Attachments.Local.Dir, cfg.Attachments.Local.BaseURL)
	case "drive":
		return googleapi.NewDriveBackend(g.Clients, cfg.Attachments.Drive.FolderID), nil
	case "cloudinary":
		cld := cfg.Attachments.Cloudinary
		return attachmentinfra.NewCloudinaryBackend(cld.CloudName, cld.APIKey, cld.APISecret, cld.Folder)
	default:
		return nil, fmt.Errorf("unsupported attachments backend %q", cfg.Attachments.Backend)
	}
}

func provideAttachmentStore(cfg config.Config, backend ports.AttachmentBackend) (*attachment.Store, error) {
	return attachment.New(backend, attachment.Options{
		Timeout:  cfg.Attachments.Timeout,
		MaxBytes: cfg.Attachments.MaxBytes,
	})
}

func recordStore(cfg config.Config, opener ports.SpreadsheetOpener, worksheet string) (*recordstore.Store, error) {
	return recordstore.New(opener, recordstore.Options{
		Spreadsheet:  cfg.Store.Spreadsheet,
		Worksheet:    worksheet,
		SchemaPolicy: recordstore.SchemaPolicy(cfg.Store.SchemaPolicy),
		Timeout:      cfg.Store.Timeout,
	})
}

func provideFollowups(cfg config.Config, opener ports.SpreadsheetOpener, attachments *attachment.Store) (*followup.Service, error) {
	records, err := recordStore(cfg, opener, cfg.Followups.Worksheet)
	if err != nil {
		return nil, err
	}
	return followup.NewService(records, attachments, followup.Options{
		Header:   cfg.Followups.Header,
		Sections: cfg.Followups.Sections,
	})
}

func provideRoster(cfg config.Config, opener ports.SpreadsheetOpener) (*roster.Service, error) {
	records, err := recordStore(cfg, opener, cfg.Roster.Worksheet)
	if err != nil {
		return nil, err
	}
	return roster.NewService(records, cfg.Roster.Roles)
}

// provideAuth returns a nil service unless sign-in is configured.
func provideAuth(cfg config.Config, cache ports.Cache, g googleAccess) (*auth.Service, error) {
	if g.OAuth == nil {
		return nil, nil
	}
	return auth.NewService(cache, g.OAuth, cfg.HTTP.SessionTTL)
}

type appParams struct {
	fx.In

	Config      config.Config
	DB          *gorm.DB
	Followups   *followup.Service
	Roster      *roster.Service
	Attachments *attachment.Store
	Backend     ports.AttachmentBackend
	Auth        *auth.Service
}

func provideApp(p appParams) *App {
	local, _ := p.Backend.(*attachmentinfra.LocalBackend)
	return &App{
		Config:           p.Config,
		DB:               p.DB,
		Followups:        p.Followups,
		Roster:           p.Roster,
		Attachments:      p.Attachments,
		Auth:             p.Auth,
		LocalAttachments: local,
	}
}
