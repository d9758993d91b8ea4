package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"cranesection/internal/bootstrap/logging"
	"cranesection/internal/domain/session"
	"cranesection/internal/errs"
	"cranesection/internal/ports"
)

const (
	sessionKeyPrefix = "session:"
	stateKeyPrefix   = "oauth_state:"
	stateTTL         = 10 * time.Minute
)

var ErrInvalidState = errors.New("oauth state is unknown or expired")

// OAuthConfig is the part of *oauth2.Config the web flow uses.
type OAuthConfig interface {
	AuthCodeURL(state string, opts ...oauth2.AuthCodeOption) string
	Exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error)
	TokenSource(ctx context.Context, t *oauth2.Token) oauth2.TokenSource
}

// Service runs the OAuth web flow and keeps sessions in a cache.
type Service struct {
	cache ports.Cache
	oauth OAuthConfig
	ttl   time.Duration
	now   func() time.Time
}

func NewService(cache ports.Cache, oauth OAuthConfig, ttl time.Duration) (*Service, error) {
	if cache == nil {
		return nil, errors.New("cache is required")
	}
	if oauth == nil {
		return nil, errors.New("oauth config is required")
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Service{cache: cache, oauth: oauth, ttl: ttl, now: time.Now}, nil
}

// Begin returns the consent URL and remembers the state it carries.
func (s *Service) Begin(ctx context.Context) (string, error) {
	if ctx == nil {
		return "", errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return "", errs.Wrap(err, "check context")
	}

	state := uuid.NewString()
	if err := s.cache.Set(ctx, stateKeyPrefix+state, "1", stateTTL); err != nil {
		return "", errs.Wrap(err, "save oauth state")
	}
	return s.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce), nil
}

// Complete exchanges the authorization code and starts a session. Each state is
// accepted once.
func (s *Service) Complete(ctx context.Context, state string, code string) (session.Session, error) {
	if ctx == nil {
		return session.Session{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return session.Session{}, errs.Wrap(err, "check context")
	}
	ctx = logging.WithAttrs(ctx, slog.String("component", "usecase.auth"))

	state = strings.TrimSpace(state)
	if state == "" {
		return session.Session{}, errs.E(errs.KindValidation, "complete login", ErrInvalidState)
	}
	_, found, err := s.cache.Get(ctx, stateKeyPrefix+state)
	if err != nil {
		return session.Session{}, errs.Wrap(err, "load oauth state")
	}
	if !found {
		return session.Session{}, errs.E(errs.KindValidation, "complete login", ErrInvalidState)
	}
	if err := s.cache.Delete(ctx, stateKeyPrefix+state); err != nil {
		return session.Session{}, errs.Wrap(err, "delete oauth state")
	}

	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return session.Session{}, errs.E(errs.KindConnection, "exchange code", err)
	}

	sess := session.New(token, s.now(), s.ttl)
	if err := s.save(ctx, sess); err != nil {
		return session.Session{}, err
	}
	logging.Info(ctx, "session started", slog.String("session_id", sess.ID))
	return sess, nil
}

// Load returns a usable session. An access token close to expiry is refreshed and
// the refreshed token is stored.
func (s *Service) Load(ctx context.Context, id string) (session.Session, error) {
	if ctx == nil {
		return session.Session{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return session.Session{}, errs.Wrap(err, "check context")
	}
	ctx = logging.WithAttrs(ctx, slog.String("component", "usecase.auth"), slog.String("session_id", id))

	if strings.TrimSpace(id) == "" {
		return session.Session{}, session.ErrNoSession
	}
	raw, found, err := s.cache.Get(ctx, sessionKeyPrefix+id)
	if err != nil {
		return session.Session{}, errs.Wrap(err, "load session")
	}
	if !found {
		return session.Session{}, session.ErrNoSession
	}

	var sess session.Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return session.Session{}, errs.Wrap(err, "decode session")
	}

	now := s.now()
	if sess.Expired(now) {
		_ = s.cache.Delete(ctx, sessionKeyPrefix+id)
		return session.Session{}, session.ErrSessionExpired
	}
	if !sess.NeedsRefresh(now) {
		return sess, nil
	}
	if !sess.CanRefresh() {
		_ = s.cache.Delete(ctx, sessionKeyPrefix+id)
		return session.Session{}, session.ErrSessionExpired
	}

	// The token source only refreshes a token it sees as expired.
	stale := *sess.Token
	stale.Expiry = now.Add(-time.Second)
	token, err := s.oauth.TokenSource(ctx, &stale).Token()
	if err != nil {
		logging.Warn(ctx, "token refresh failed", slog.Any("err", errs.Loggable(err)))
		return session.Session{}, errs.E(errs.KindConnection, "refresh token", err)
	}
	if token.RefreshToken == "" {
		token.RefreshToken = sess.Token.RefreshToken
	}
	sess.Token = token
	if err := s.save(ctx, sess); err != nil {
		return session.Session{}, err
	}

	logging.Debug(ctx, "token refreshed", slog.Time("expiry", token.Expiry))
	return sess, nil
}

func (s *Service) Logout(ctx context.Context, id string) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if strings.TrimSpace(id) == "" {
		return nil
	}
	if err := s.cache.Delete(ctx, sessionKeyPrefix+id); err != nil {
		return errs.Wrap(err, "delete session")
	}
	return nil
}

func (s *Service) save(ctx context.Context, sess session.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return errs.Wrap(err, "encode session")
	}
	ttl := s.ttl
	if !sess.Expiry.IsZero() {
		ttl = sess.Expiry.Sub(s.now())
		if ttl <= 0 {
			return session.ErrSessionExpired
		}
	}
	if err := s.cache.Set(ctx, sessionKeyPrefix+sess.ID, string(data), ttl); err != nil {
		return errs.Wrap(err, "save session")
	}
	return nil
}
