package web

import (
	"log/slog"
	"net/http"

	"cranesection/internal/bootstrap/logging"
	"cranesection/internal/errs"
)

func (s *server) login(w http.ResponseWriter, r *http.Request) {
	if s.deps.Auth == nil {
		http.NotFound(w, r)
		return
	}
	url, err := s.deps.Auth.Begin(r.Context())
	if err != nil {
		s.fail(w, r, s.base(r, "Sign in", ""), err)
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

func (s *server) callback(w http.ResponseWriter, r *http.Request) {
	if s.deps.Auth == nil {
		http.NotFound(w, r)
		return
	}
	query := r.URL.Query()
	if reason := query.Get("error"); reason != "" {
		data := s.base(r, "Sign in", "")
		data.Error = "Google sign-in was cancelled: " + reason
		data.Back = "/auth/login"
		render(w, r, http.StatusUnauthorized, page("error", data))
		return
	}

	sess, err := s.deps.Auth.Complete(r.Context(), query.Get("state"), query.Get("code"))
	if err != nil {
		data := s.base(r, "Sign in", "")
		data.Back = "/auth/login"
		s.fail(w, r, data, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.ID,
		Path:     "/",
		MaxAge:   int(s.deps.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.deps.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	logging.Info(r.Context(), "user signed in", slog.String("session_id", sess.ID))
	http.Redirect(w, r, "/followups", http.StatusSeeOther)
}

func (s *server) logout(w http.ResponseWriter, r *http.Request) {
	if s.deps.Auth == nil {
		http.NotFound(w, r)
		return
	}
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		if err := s.deps.Auth.Logout(r.Context(), cookie.Value); err != nil {
			logging.Warn(r.Context(), "logout failed", slog.Any("err", errs.Loggable(err)))
		}
	}
	s.clearCookie(w)
	http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
}

func (s *server) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.deps.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
