package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"prekbill/internal/auth"
)

type loginPage struct {
	Error string
}

// handleLogin serves the login form and processes credential submissions.
// A failed login re-renders the form with an error; it never redirects away.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.render(w, r, "login.html", loginPage{})
		return
	}

	if !s.loginLimiter.allow(clientIP(r)) {
		slog.WarnContext(r.Context(), "Login rate limit exceeded", "client_ip", clientIP(r))
		w.Header().Set("Retry-After", "60")
		http.Error(w, "Too many login attempts. Please try again later.", http.StatusTooManyRequests)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	username := strings.TrimSpace(r.Form.Get("username"))
	password := r.Form.Get("password")

	user, err := auth.Authenticate(r.Context(), s.store, username, password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		slog.WarnContext(r.Context(), "Login failed", "username", username, "client_ip", clientIP(r))
		w.WriteHeader(http.StatusUnauthorized)
		s.render(w, r, "login.html", loginPage{Error: "Invalid username or password"})
		return
	}
	if err != nil {
		s.serverError(w, r, "authenticate", err)
		return
	}

	sess := s.sessions.Create(user)
	s.setSessionCookie(w, sess.Token)
	slog.InfoContext(r.Context(), "Login succeeded", "username", user.Username, "user_id", user.ID)
	s.flashAndRedirect(w, r, sess, "success", "Logged in successfully!", "/")
}

// handleLogout tears down the session. Logging out without one is fine.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(s.cfg.SessionCookie); err == nil {
		s.sessions.Destroy(cookie.Value)
	}
	s.clearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
