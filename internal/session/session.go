// Package session holds per-login state: the authenticated user, transient
// flash messages, and the most recently staged invoice or statement
// snapshot. A session is created at login, destroyed at logout, and
// otherwise expires by TTL.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"prekbill/internal/cache"
	"prekbill/internal/core"
)

// FlashKind distinguishes success from error banners.
type FlashKind string

const (
	FlashSuccess FlashKind = "success"
	FlashError   FlashKind = "error"
)

// Flash is a one-shot status message consumed on the next render.
type Flash struct {
	Kind    FlashKind
	Message string
}

// Session is the per-login context object passed into every protected
// handler. Staged snapshots survive reads and are only replaced by the
// next generation or dropped with the session.
type Session struct {
	Token    string
	UserID   int64
	Username string

	mu        sync.Mutex
	flashes   []Flash
	invoice   *core.InvoiceSnapshot
	statement *core.StatementSnapshot
}

// AddFlash queues a status message for the next rendered page.
func (s *Session) AddFlash(kind FlashKind, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flashes = append(s.flashes, Flash{Kind: kind, Message: message})
}

// PopFlashes returns and clears all queued flash messages.
func (s *Session) PopFlashes() []Flash {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.flashes
	s.flashes = nil
	return f
}

// StageInvoice replaces the staged invoice snapshot.
func (s *Session) StageInvoice(snap core.InvoiceSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invoice = &snap
}

// StagedInvoice returns the staged invoice snapshot without clearing it.
func (s *Session) StagedInvoice() (core.InvoiceSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.invoice == nil {
		return core.InvoiceSnapshot{}, false
	}
	return *s.invoice, true
}

// StageStatement replaces the staged statement snapshot.
func (s *Session) StageStatement(snap core.StatementSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statement = &snap
}

// StagedStatement returns the staged statement snapshot without clearing it.
func (s *Session) StagedStatement() (core.StatementSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.statement == nil {
		return core.StatementSnapshot{}, false
	}
	return *s.statement, true
}

// Manager issues and resolves sessions keyed by an opaque random token.
type Manager struct {
	sessions *cache.LRUCache[*Session]
}

// NewManager creates a manager keeping at most maxSessions live logins,
// each expiring ttl after creation.
func NewManager(maxSessions int, ttl time.Duration) *Manager {
	return &Manager{
		sessions: cache.NewLRUCache[*Session](maxSessions, ttl),
	}
}

// Create establishes a session for the given user and returns it.
func (m *Manager) Create(user core.User) *Session {
	s := &Session{
		Token:    newToken(),
		UserID:   user.ID,
		Username: user.Username,
	}
	m.sessions.Set(s.Token, s)
	return s
}

// Get resolves a token to a live session.
func (m *Manager) Get(token string) (*Session, bool) {
	if token == "" {
		return nil, false
	}
	return m.sessions.Get(token)
}

// Destroy removes the session; destroying an absent token is not an error.
func (m *Manager) Destroy(token string) {
	m.sessions.Delete(token)
}

// CleanExpired sweeps expired sessions and reports how many were removed.
func (m *Manager) CleanExpired() int {
	return m.sessions.CleanExpired()
}

func newToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing means the process is in serious trouble.
		panic(err)
	}
	return hex.EncodeToString(b)
}
