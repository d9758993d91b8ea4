// Package googleapi adapts Google Sheets and Drive to the record store and attachment
// ports. HTTP clients come from a ClientProvider so the same backends serve a
// service account and signed-in users.
package googleapi

import (
	"context"
	"errors"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/sheets/v4"

	"cranesection/internal/domain/session"
	"cranesection/internal/errs"
)

// Scopes are requested for both auth modes.
var Scopes = []string{sheets.SpreadsheetsScope, drive.DriveFileScope}

type ClientProvider interface {
	HTTPClient(ctx context.Context) (*http.Client, error)
}

// StaticClient always returns the same client.
type StaticClient struct {
	Client *http.Client
}

func (c StaticClient) HTTPClient(context.Context) (*http.Client, error) {
	if c.Client == nil {
		return nil, errors.New("http client is not configured")
	}
	return c.Client, nil
}

// NewServiceAccountClient reads a service account key file and returns a client
// authorized for Scopes.
func NewServiceAccountClient(ctx context.Context, credentialsFile string) (StaticClient, error) {
	if ctx == nil {
		return StaticClient{}, errors.New("context is required")
	}
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return StaticClient{}, errs.Wrapf(err, "read credentials %s", credentialsFile)
	}
	creds, err := google.CredentialsFromJSON(ctx, data, Scopes...)
	if err != nil {
		return StaticClient{}, errs.Wrap(err, "parse service account credentials")
	}
	return StaticClient{Client: oauth2.NewClient(ctx, creds.TokenSource)}, nil
}

// SessionClient authorizes each call with the OAuth token of the session carried by
// the request context.
type SessionClient struct {
	Config *oauth2.Config
}

func (c SessionClient) HTTPClient(ctx context.Context) (*http.Client, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	s, ok := session.FromContext(ctx)
	if !ok || s.Token == nil {
		return nil, session.ErrNoSession
	}
	return c.Config.Client(ctx, s.Token), nil
}

// NewOAuthConfig builds the web flow configuration for Scopes.
func NewOAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       Scopes,
		Endpoint:     google.Endpoint,
	}
}
