package server

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/teemow/drivedesk/internal/auth"
	"github.com/teemow/drivedesk/internal/filemanager"
	"github.com/teemow/drivedesk/internal/instrumentation"
	"github.com/teemow/drivedesk/internal/logging"
)

const (
	// SessionCookieName is the cookie that carries the session ID.
	SessionCookieName = "drivedesk_session"

	// DefaultSessionTimeout is the idle time after which a session is discarded.
	DefaultSessionTimeout = 24 * time.Hour

	// DefaultCleanupInterval is how often expired sessions are swept.
	DefaultCleanupInterval = 10 * time.Minute

	sessionIDBytes = 32
)

// sessionInfo tracks a session and its metadata for cleanup
type sessionInfo struct {
	session    *auth.Session
	flash      *filemanager.Notice
	lastAccess time.Time
}

// SessionManagerConfig configures a SessionManager.
type SessionManagerConfig struct {
	Timeout         time.Duration
	CleanupInterval time.Duration

	// Secure marks the cookie Secure; set when the base URL is https
	Secure bool

	Logger  logging.Logger
	Metrics *instrumentation.Metrics
}

// SessionManager maps browser cookies to sign-in sessions. Each browser gets
// its own auth.Session, so several users can share one server.
type SessionManager struct {
	sessions       map[string]*sessionInfo
	mu             sync.Mutex
	cleanupTicker  *time.Ticker
	cleanupDone    chan struct{}
	stopOnce       sync.Once
	sessionTimeout time.Duration
	secure         bool
	logger         logging.Logger
	metrics        *instrumentation.Metrics
	now            func() time.Time
}

// NewSessionManager creates a SessionManager and starts its cleanup loop.
// Call Stop to end it.
func NewSessionManager(cfg SessionManagerConfig) *SessionManager {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultSessionTimeout
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultCleanupInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewSlogAdapter(nil)
	}

	m := &SessionManager{
		sessions:       make(map[string]*sessionInfo),
		cleanupTicker:  time.NewTicker(cfg.CleanupInterval),
		cleanupDone:    make(chan struct{}),
		sessionTimeout: cfg.Timeout,
		secure:         cfg.Secure,
		logger:         cfg.Logger,
		metrics:        cfg.Metrics,
		now:            time.Now,
	}

	go m.cleanupExpiredSessions()

	return m
}

// Resolve returns the session named by the request cookie. A missing, unknown
// or expired cookie gets a fresh session and a new cookie.
func (m *SessionManager) Resolve(w http.ResponseWriter, r *http.Request) (*auth.Session, error) {
	if s, ok := m.Lookup(r); ok {
		return s, nil
	}

	id, err := generateSessionID()
	if err != nil {
		return nil, err
	}

	s := auth.NewSession(id)
	m.mu.Lock()
	m.sessions[id] = &sessionInfo{session: s, lastAccess: m.now()}
	m.mu.Unlock()
	m.metrics.IncrementActiveSessions(r.Context())

	http.SetCookie(w, m.cookie(id, int(m.sessionTimeout.Seconds())))
	m.logger.Debug("Created session", logging.KeySession, logging.HashSessionID(id))

	return s, nil
}

// Lookup returns the live session named by the request cookie and refreshes
// its last access time.
func (m *SessionManager) Lookup(r *http.Request) (*auth.Session, bool) {
	c, err := r.Cookie(SessionCookieName)
	if err != nil || c.Value == "" {
		return nil, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	info, ok := m.sessions[c.Value]
	if !ok {
		return nil, false
	}
	now := m.now()
	if now.Sub(info.lastAccess) > m.sessionTimeout {
		return nil, false
	}
	info.lastAccess = now
	return info.session, true
}

// SetFlash stores a notice to show on the session's next page view.
func (m *SessionManager) SetFlash(sessionID string, n *filemanager.Notice) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if info, ok := m.sessions[sessionID]; ok {
		info.flash = n
	}
}

// TakeFlash returns and clears the session's pending notice.
func (m *SessionManager) TakeFlash(sessionID string) *filemanager.Notice {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.sessions[sessionID]
	if !ok {
		return nil
	}
	n := info.flash
	info.flash = nil
	return n
}

// Remove discards a session and expires its cookie.
func (m *SessionManager) Remove(ctx context.Context, w http.ResponseWriter, sessionID string) {
	m.mu.Lock()
	_, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	if ok {
		m.metrics.DecrementActiveSessions(ctx)
	}
	http.SetCookie(w, m.cookie("", -1))
}

// Count returns the number of tracked sessions.
func (m *SessionManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *SessionManager) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// removeExpired deletes sessions idle for longer than the timeout.
func (m *SessionManager) removeExpired() int {
	m.mu.Lock()
	now := m.now()
	expiredCount := 0
	for sessionID, info := range m.sessions {
		if now.Sub(info.lastAccess) > m.sessionTimeout {
			delete(m.sessions, sessionID)
			expiredCount++
		}
	}
	m.mu.Unlock()

	for i := 0; i < expiredCount; i++ {
		m.metrics.DecrementActiveSessions(context.Background())
	}
	return expiredCount
}

// cleanupExpiredSessions periodically removes expired sessions
func (m *SessionManager) cleanupExpiredSessions() {
	for {
		select {
		case <-m.cleanupTicker.C:
			if n := m.removeExpired(); n > 0 {
				m.logger.Info("Cleaned up expired sessions", "count", n)
			}
		case <-m.cleanupDone:
			return
		}
	}
}

// Stop stops the session cleanup goroutine
func (m *SessionManager) Stop() {
	m.stopOnce.Do(func() {
		m.cleanupTicker.Stop()
		close(m.cleanupDone)
	})
}

func generateSessionID() (string, error) {
	b := make([]byte, sessionIDBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session ID: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
