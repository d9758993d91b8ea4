// Package web serves the dashboard: follow-up form and list, reports, roster grid
// and the Google sign-in flow.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"cranesection/internal/bootstrap/logging"
	"cranesection/internal/domain/session"
	"cranesection/internal/errs"
	attachmentinfra "cranesection/internal/infrastructure/attachment"
	"cranesection/internal/usecase/auth"
	"cranesection/internal/usecase/followup"
	"cranesection/internal/usecase/roster"
)

const sessionCookie = "crane_session"

type Deps struct {
	Followups *followup.Service
	Roster    *roster.Service
	// Auth is nil unless Google access runs on the signed-in user's token.
	Auth *auth.Service
	// LocalAttachments is set when uploads are stored on disk and served here.
	LocalAttachments *attachmentinfra.LocalBackend
	EquipmentMax     int
	MaxUploadBytes   int64
	CookieSecure     bool
	SessionTTL       time.Duration
}

type server struct {
	deps Deps
}

// NewRouter builds the dashboard handler. ctx carries the base logger for requests.
func NewRouter(ctx context.Context, deps Deps) (http.Handler, error) {
	if deps.Followups == nil {
		return nil, errors.New("followup service is required")
	}
	if deps.Roster == nil {
		return nil, errors.New("roster service is required")
	}
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = 32 << 20
	}
	s := &server{deps: deps}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(withBaseContext(ctx))
	r.Use(requestLogger)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/attachments/{name}", s.serveAttachment)

	r.Route("/auth", func(r chi.Router) {
		r.Get("/login", s.login)
		r.Get("/callback", s.callback)
		r.Post("/logout", s.logout)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.requireSession)
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/followups", http.StatusSeeOther)
		})
		r.Get("/followups", s.listFollowups)
		r.Post("/followups", s.submitFollowup)
		r.Get("/followups/export.xlsx", s.exportFollowups)
		r.Get("/reports", s.reports)
		r.Get("/roster", s.showRoster)
		r.Post("/roster", s.saveRoster)
	})

	return r, nil
}

// withBaseContext moves the logger and attributes of ctx onto every request context.
func withBaseContext(base context.Context) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := logging.WithLogger(r.Context(), logging.Logger(base))
			ctx = logging.WithAttrs(ctx, logging.Attrs(base)...)
			ctx = logging.WithAttrs(ctx,
				slog.String("component", "web"),
				slog.String("request_id", chimw.GetReqID(r.Context())),
			)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		attrs := []slog.Attr{
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			slog.Int("bytes", ww.BytesWritten()),
			slog.Duration("duration", time.Since(start)),
		}
		if status >= http.StatusInternalServerError {
			logging.Warn(r.Context(), "http request", attrs...)
			return
		}
		logging.Info(r.Context(), "http request", attrs...)
	})
}

// requireSession loads the signed-in session when Google access uses OAuth and sends
// anonymous visitors to the login page.
func (s *server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.deps.Auth == nil {
			next.ServeHTTP(w, r)
			return
		}
		cookie, err := r.Cookie(sessionCookie)
		if err != nil {
			http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
			return
		}
		sess, err := s.deps.Auth.Load(r.Context(), cookie.Value)
		if err != nil {
			if !errors.Is(err, session.ErrNoSession) && !errors.Is(err, session.ErrSessionExpired) {
				logging.Warn(r.Context(), "session load failed", slog.Any("err", errs.Loggable(err)))
			}
			s.clearCookie(w)
			http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r.WithContext(session.WithSession(r.Context(), sess)))
	})
}

func (s *server) base(r *http.Request, title string, active string) pageData {
	_, signedIn := session.FromContext(r.Context())
	return pageData{
		Title:       title,
		Active:      active,
		AuthEnabled: s.deps.Auth != nil,
		SignedIn:    signedIn,
	}
}

func render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	templ.Handler(c, templ.WithStatus(status)).ServeHTTP(w, r)
}

// fail renders err for the user with a status matching its kind.
func (s *server) fail(w http.ResponseWriter, r *http.Request, data pageData, err error) {
	status := statusFor(err)
	data.Error = err.Error()
	if status >= http.StatusInternalServerError {
		logging.Error(r.Context(), "request failed", slog.Int("status", status), slog.Any("err", errs.Loggable(err)))
	}
	if data.Title == "" {
		data.Title = http.StatusText(status)
	}
	if data.Back == "" {
		data.Back = r.URL.Path
	}
	render(w, r, status, page("error", data))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrNoSession), errors.Is(err, session.ErrSessionExpired):
		return http.StatusUnauthorized
	}
	switch errs.KindOf(err) {
	case errs.KindValidation:
		return http.StatusUnprocessableEntity
	case errs.KindConflict:
		return http.StatusConflict
	case errs.KindConnection:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
