package googleapi

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/oauth2"

	"cranesection/internal/domain/session"
)

func TestSessionClientRequiresSession(t *testing.T) {
	c := SessionClient{Config: NewOAuthConfig("id", "secret", "http://localhost/auth/callback")}

	if _, err := c.HTTPClient(context.Background()); !errors.Is(err, session.ErrNoSession) {
		t.Fatalf("HTTPClient() error = %v, want ErrNoSession", err)
	}

	ctx := session.WithSession(context.Background(), session.Session{Token: &oauth2.Token{AccessToken: "a"}})
	client, err := c.HTTPClient(ctx)
	if err != nil || client == nil {
		t.Fatalf("HTTPClient() = %v, %v", client, err)
	}
}

func TestServiceAccountClientErrors(t *testing.T) {
	if _, err := NewServiceAccountClient(context.Background(), filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("NewServiceAccountClient(missing) expected error")
	}

	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := NewServiceAccountClient(context.Background(), path); err == nil {
		t.Fatalf("NewServiceAccountClient(bad json) expected error")
	}
}

func TestDirectLink(t *testing.T) {
	if got := DirectLink("abc123"); got != "https://drive.google.com/uc?export=view&id=abc123" {
		t.Fatalf("DirectLink() = %q", got)
	}
}
