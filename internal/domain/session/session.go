// Package session models a signed-in Google user explicitly: the OAuth token, when it
// stops being usable, and how it travels through a request.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// RefreshSkew treats a token as expired slightly early so a request never starts
// with a token that dies mid-flight.
const RefreshSkew = time.Minute

var (
	ErrNoSession      = errors.New("no session")
	ErrSessionExpired = errors.New("session expired")
)

type Session struct {
	ID        string        `json:"id"`
	Token     *oauth2.Token `json:"token"`
	CreatedAt time.Time     `json:"created_at"`
	// Expiry ends the session itself, independent of the token lifetime.
	Expiry time.Time `json:"expiry"`
}

func New(token *oauth2.Token, now time.Time, ttl time.Duration) Session {
	s := Session{
		ID:        uuid.NewString(),
		Token:     token,
		CreatedAt: now.UTC(),
	}
	if ttl > 0 {
		s.Expiry = s.CreatedAt.Add(ttl)
	}
	return s
}

// Expired reports whether the session lifetime is over.
func (s Session) Expired(now time.Time) bool {
	return !s.Expiry.IsZero() && !now.Before(s.Expiry)
}

// NeedsRefresh reports whether the access token is missing or within RefreshSkew of
// its expiry. A token without expiry never needs a refresh.
func (s Session) NeedsRefresh(now time.Time) bool {
	if s.Token == nil || s.Token.AccessToken == "" {
		return true
	}
	if s.Token.Expiry.IsZero() {
		return false
	}
	return !now.Add(RefreshSkew).Before(s.Token.Expiry)
}

// CanRefresh reports whether a refresh token is available.
func (s Session) CanRefresh() bool {
	return s.Token != nil && s.Token.RefreshToken != ""
}

type ctxKey struct{}

func WithSession(ctx context.Context, s Session) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKey{}, s)
}

func FromContext(ctx context.Context) (Session, bool) {
	if ctx == nil {
		return Session{}, false
	}
	s, ok := ctx.Value(ctxKey{}).(Session)
	return s, ok
}
