package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadUsesDefaultsWhenFileMissing(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load(context.Background(), "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Store.Backend != "sqlite" || cfg.Store.SchemaPolicy != "strict" {
		t.Fatalf("store defaults = %+v", cfg.Store)
	}
	if cfg.Store.Timeout != 30*time.Second {
		t.Fatalf("store.timeout = %s", cfg.Store.Timeout)
	}
	if len(cfg.Followups.Sections) != 4 || cfg.Followups.Sections[0] != "RTG" {
		t.Fatalf("followups.sections = %v", cfg.Followups.Sections)
	}
	if cfg.Attachments.Backend != "local" || cfg.Attachments.Local.BaseURL != "/attachments" {
		t.Fatalf("attachments defaults = %+v", cfg.Attachments)
	}
}

func TestLoadReadsYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
store:
  backend: sqlite
  spreadsheet: Yard Ops
  timeout: 5s
followups:
  worksheet: Faults
roster:
  roles: [Supervisor, Electrician]
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CRANE_STORE_SCHEMA_POLICY", "reset")

	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Store.Spreadsheet != "Yard Ops" || cfg.Store.Timeout != 5*time.Second {
		t.Fatalf("store = %+v", cfg.Store)
	}
	if cfg.Store.SchemaPolicy != "reset" {
		t.Fatalf("schema_policy = %q, want env override reset", cfg.Store.SchemaPolicy)
	}
	if cfg.Followups.Worksheet != "Faults" {
		t.Fatalf("followups.worksheet = %q", cfg.Followups.Worksheet)
	}
	if len(cfg.Roster.Roles) != 2 {
		t.Fatalf("roster.roles = %v", cfg.Roster.Roles)
	}
}

func TestValidateRejectsMissingGoogleCredentials(t *testing.T) {
	cfg := Config{
		Database:    DatabaseConfig{DSN: "x.sqlite"},
		Store:       StoreConfig{Backend: "sheets", Spreadsheet: "id", SchemaPolicy: "strict"},
		Attachments: AttachmentsConfig{Backend: "local"},
		Google:      GoogleConfig{Auth: "service_account"},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("Validate() expected error without credentials file")
	}

	cfg.Google.CredentialsFile = "credentials.json"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestValidateRejectsUnknownSchemaPolicy(t *testing.T) {
	cfg := Config{
		Database: DatabaseConfig{DSN: "x.sqlite"},
		Store:    StoreConfig{Backend: "sqlite", Spreadsheet: "s", SchemaPolicy: "merge"},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("Validate() expected error for schema policy merge")
	}
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd() error = %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir(%q) error = %v", dir, err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("Chdir(%q) error = %v", prev, err)
		}
	})
}
