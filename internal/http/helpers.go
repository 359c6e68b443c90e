package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"prekbill/internal/session"
)

// render executes the named template, treating a template failure as fatal
// for the request.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		slog.ErrorContext(r.Context(), "Template execution failed", "template", name, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

// serverError logs an unexpected store failure and answers 500. Expected
// conditions never reach here; they flash and redirect instead.
func (s *Server) serverError(w http.ResponseWriter, r *http.Request, op string, err error) {
	slog.ErrorContext(r.Context(), "Request failed", "op", op, "path", r.URL.Path, "error", err)
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

// flashAndRedirect queues a flash on the session and redirects.
func (s *Server) flashAndRedirect(w http.ResponseWriter, r *http.Request, sess *session.Session, kind session.FlashKind, message, target string) {
	sess.AddFlash(kind, message)
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// studentNotFound is the soft-fail path for unresolved student ids.
func (s *Server) studentNotFound(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	s.flashAndRedirect(w, r, sess, session.FlashError, "Student not found.", "/")
}

// pathID parses a numeric path parameter; false means it did not parse.
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.cfg.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// clientIP extracts the caller address, honoring proxy headers when set.
func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}
