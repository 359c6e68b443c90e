// Package http wires the billing office routes: a stdlib mux, a session
// gate in front of every protected handler, and html/template rendering.
package http

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"prekbill/internal/config"
	applog "prekbill/internal/log"
	"prekbill/internal/session"
	"prekbill/internal/storage"
	appweb "prekbill/web"
)

type Server struct {
	http.Server
	templates *template.Template
	store     *storage.Store
	sessions  *session.Manager
	cfg       *config.Config

	loginLimiter *rateLimiter
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(cfg *config.Config, store *storage.Store, sessions *session.Manager) (*Server, error) {
	mux := http.NewServeMux()

	s := &Server{
		store:        store,
		sessions:     sessions,
		cfg:          cfg,
		loginLimiter: newRateLimiter(10, time.Minute),
	}
	s.Server = http.Server{
		Addr:    ":" + cfg.Port,
		Handler: s.withRequestLogging(mux),
	}

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	s.templates = t

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600")
			static.ServeHTTP(w, r)
		}))
	}

	mux.HandleFunc("/login", s.handleLogin)
	mux.HandleFunc("GET /logout", s.handleLogout)

	mux.HandleFunc("GET /{$}", s.requireSession(s.handleIndex))
	mux.HandleFunc("GET /register", s.requireSession(s.handleRegisterForm))
	mux.HandleFunc("POST /process_registration", s.requireSession(s.handleProcessRegistration))
	mux.HandleFunc("GET /manage/{studentID}", s.requireSession(s.handleManage))
	mux.HandleFunc("GET /edit_student/{studentID}", s.requireSession(s.handleEditStudent))
	mux.HandleFunc("POST /update_student/{studentID}", s.requireSession(s.handleUpdateStudent))

	mux.HandleFunc("GET /enter_payment/{studentID}", s.requireSession(s.handleEnterPayment))
	mux.HandleFunc("POST /process_payment/{studentID}", s.requireSession(s.handleProcessPayment))
	mux.HandleFunc("POST /delete_payment/{studentID}/{paymentID}", s.requireSession(s.handleDeletePayment))
	mux.HandleFunc("/edit_payment/{studentID}/{paymentID}", s.requireSession(s.handleEditPayment))
	mux.HandleFunc("POST /update_payment/{studentID}/{paymentID}", s.requireSession(s.handleUpdatePayment))

	mux.HandleFunc("GET /bill_student/{studentID}", s.requireSession(s.handleBillStudent))
	mux.HandleFunc("POST /generate_invoice/{studentID}", s.requireSession(s.handleGenerateInvoice))
	mux.HandleFunc("GET /show_invoice", s.requireSession(s.handleShowInvoice))
	mux.HandleFunc("/generate_statement/{studentID}", s.requireSession(s.handleGenerateStatement))
	mux.HandleFunc("GET /show_statement", s.requireSession(s.handleShowStatement))

	return s, nil
}

// sessionHandler receives the validated session alongside the request.
type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *session.Session)

// requireSession resolves the session cookie and short-circuits to the login
// page when no live session exists. Protected handlers never run without an
// authenticated session.
func (s *Server) requireSession(next sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(s.cfg.SessionCookie)
		if err != nil {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		sess, ok := s.sessions.Get(cookie.Value)
		if !ok {
			s.clearSessionCookie(w)
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next(w, r, sess)
	}
}

// withRequestLogging adds security headers and logs every request with a
// request id, status, and duration.
func (s *Server) withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := newRequestID()

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		level := slog.LevelInfo
		if rw.statusCode >= 500 {
			level = slog.LevelError
		} else if rw.statusCode >= 400 {
			level = slog.LevelWarn
		}
		applog.FromContext(r.Context()).Log(r.Context(), level, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds())
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func newRequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(b)
}
