package config

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"cranesection/internal/bootstrap/logging"
	"cranesection/internal/errs"
)

type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Log         LogConfig         `mapstructure:"log"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Store       StoreConfig       `mapstructure:"store"`
	Followups   FollowupsConfig   `mapstructure:"followups"`
	Roster      RosterConfig      `mapstructure:"roster"`
	Attachments AttachmentsConfig `mapstructure:"attachments"`
	Google      GoogleConfig      `mapstructure:"google"`
	HTTP        HTTPConfig        `mapstructure:"http"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type LogConfig struct {
	Format string `mapstructure:"format"`
	Level  string `mapstructure:"level"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`

	// AutoMigrate creates the tables on startup so init-db is optional.
	AutoMigrate bool `mapstructure:"auto_migrate"`
}

type CacheConfig struct {
	// Driver is "sqlite" (shares the gorm database) or "badger".
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

type StoreConfig struct {
	// Backend is "sqlite" (relational table through gorm) or "sheets".
	Backend      string        `mapstructure:"backend"`
	Spreadsheet  string        `mapstructure:"spreadsheet"`
	SchemaPolicy string        `mapstructure:"schema_policy"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type FollowupsConfig struct {
	Worksheet    string   `mapstructure:"worksheet"`
	Header       []string `mapstructure:"header"`
	Sections     []string `mapstructure:"sections"`
	EquipmentMax int      `mapstructure:"equipment_max"`
}

type RosterConfig struct {
	Worksheet string   `mapstructure:"worksheet"`
	Roles     []string `mapstructure:"roles"`
}

type AttachmentsConfig struct {
	// Backend is "local", "drive" or "cloudinary".
	Backend    string                `mapstructure:"backend"`
	Timeout    time.Duration         `mapstructure:"timeout"`
	MaxBytes   int64                 `mapstructure:"max_bytes"`
	Local      LocalAttachmentConfig `mapstructure:"local"`
	Drive      DriveConfig           `mapstructure:"drive"`
	Cloudinary CloudinaryConfig      `mapstructure:"cloudinary"`
}

type LocalAttachmentConfig struct {
	Dir     string `mapstructure:"dir"`
	BaseURL string `mapstructure:"base_url"`
}

type DriveConfig struct {
	FolderID string `mapstructure:"folder_id"`
}

type CloudinaryConfig struct {
	CloudName string `mapstructure:"cloud_name"`
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
	Folder    string `mapstructure:"folder"`
}

type GoogleConfig struct {
	// Auth is "service_account" or "oauth".
	Auth            string            `mapstructure:"auth"`
	CredentialsFile string            `mapstructure:"credentials_file"`
	OAuth           GoogleOAuthConfig `mapstructure:"oauth"`
}

type GoogleOAuthConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURL  string `mapstructure:"redirect_url"`
}

type HTTPConfig struct {
	Addr         string        `mapstructure:"addr"`
	SessionTTL   time.Duration `mapstructure:"session_ttl"`
	CookieSecure bool          `mapstructure:"cookie_secure"`
}

func Load(ctx context.Context, configFile string) (Config, error) {
	if ctx == nil {
		return Config{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Config{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithComponent(ctx, "bootstrap.config")

	if err := godotenv.Load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return Config{}, errs.Wrap(err, "load .env")
		}
	} else {
		logging.Info(logCtx, "loaded .env file")
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CRANE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			logging.Warn(logCtx, "config file not found, fallback to defaults and env", slog.String("config_file", configFile))
		} else {
			return Config{}, errs.Wrap(err, "read config")
		}
	} else {
		logging.Info(logCtx, "using config file", slog.String("path", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "unmarshal config")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	logging.Info(
		logCtx,
		"config loaded",
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
		slog.String("store_backend", cfg.Store.Backend),
		slog.String("attachments_backend", cfg.Attachments.Backend),
	)

	return cfg, nil
}

// Validate checks the settings that every command depends on.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("database.dsn is required")
	}
	if strings.TrimSpace(c.Store.Spreadsheet) == "" {
		return errors.New("store.spreadsheet is required")
	}
	switch c.Store.SchemaPolicy {
	case "strict", "reset":
	default:
		return errs.Wrapf(errors.New("must be strict or reset"), "store.schema_policy %q", c.Store.SchemaPolicy)
	}

	usesGoogle := c.Store.Backend == "sheets" || c.Attachments.Backend == "drive"
	if usesGoogle {
		switch c.Google.Auth {
		case "service_account":
			if strings.TrimSpace(c.Google.CredentialsFile) == "" {
				return errors.New("google.credentials_file is required for service_account auth")
			}
		case "oauth":
			if c.Google.OAuth.ClientID == "" || c.Google.OAuth.ClientSecret == "" {
				return errors.New("google.oauth.client_id and client_secret are required for oauth auth")
			}
		default:
			return errs.Wrapf(errors.New("must be service_account or oauth"), "google.auth %q", c.Google.Auth)
		}
	}

	if c.Attachments.Backend == "cloudinary" {
		cld := c.Attachments.Cloudinary
		if cld.CloudName == "" || cld.APIKey == "" || cld.APISecret == "" {
			return errors.New("attachments.cloudinary cloud_name, api_key and api_secret are required")
		}
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "cranesection")
	v.SetDefault("app.env", "local")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.level", "info")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "data/cranesection.sqlite")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("cache.driver", "sqlite")
	v.SetDefault("cache.path", "data/cache")

	v.SetDefault("store.backend", "sqlite")
	v.SetDefault("store.spreadsheet", "Crane Section")
	v.SetDefault("store.schema_policy", "strict")
	v.SetDefault("store.timeout", 30*time.Second)

	v.SetDefault("followups.worksheet", "Followups")
	v.SetDefault("followups.header", []string{})
	v.SetDefault("followups.sections", []string{"RTG", "ARTG", "STS", "Spreader"})
	v.SetDefault("followups.equipment_max", 53)

	v.SetDefault("roster.worksheet", "Roster")
	v.SetDefault("roster.roles", []string{})

	v.SetDefault("attachments.backend", "local")
	v.SetDefault("attachments.timeout", 60*time.Second)
	v.SetDefault("attachments.max_bytes", 25<<20)
	v.SetDefault("attachments.local.dir", "data/uploads")
	v.SetDefault("attachments.local.base_url", "/attachments")
	v.SetDefault("attachments.cloudinary.folder", "followups")

	v.SetDefault("google.auth", "service_account")
	v.SetDefault("google.credentials_file", "credentials.json")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.session_ttl", 12*time.Hour)
	v.SetDefault("http.cookie_secure", false)
}
