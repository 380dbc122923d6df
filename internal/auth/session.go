package auth

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/oauth2"
)

// RefreshWindow is how long before expiry a token is refreshed.
const RefreshWindow = 5 * time.Minute

// DefaultTokenLifetime is assumed when the provider does not report expires_in.
const DefaultTokenLifetime = 3600 * time.Second

// Session is the in-memory sign-in state of one browser: the OAuth token, its
// expiry, and whether the user is authenticated. It is created on first visit
// and discarded on sign-out.
type Session struct {
	id string

	mu            sync.RWMutex
	token         *oauth2.Token
	expiry        time.Time
	authenticated bool
	email         string

	// pending sign-in, set by BeginSignIn and consumed by CompleteSignIn
	pendingState    string
	pendingVerifier string

	// refreshing guards against concurrent refreshes of this session's token
	refreshing atomic.Bool
}

// NewSession creates an unauthenticated session with the given ID.
func NewSession(id string) *Session {
	return &Session{id: id}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// AccessToken returns the current access token, or "" when signed out.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == nil {
		return ""
	}
	return s.token.AccessToken
}

// Token returns a copy of the current token, or nil when signed out.
func (s *Session) Token() *oauth2.Token {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == nil {
		return nil
	}
	tok := *s.token
	return &tok
}

// Expiry returns the local expiry timestamp; zero when unknown.
func (s *Session) Expiry() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiry
}

// IsAuthenticated reports whether sign-in completed and sign-out has not happened.
func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

// Email returns the account email learned from the last token validation.
func (s *Session) Email() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.email
}

// NeedsRefresh reports whether the token expiry is unknown or falls within
// RefreshWindow of now.
func (s *Session) NeedsRefresh(now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiry.IsZero() || now.Add(RefreshWindow).After(s.expiry)
}

// TokenSource returns an oauth2.TokenSource that always yields the session's
// current token, so clients built on it see refreshes immediately.
func (s *Session) TokenSource() oauth2.TokenSource {
	return sessionTokenSource{s: s}
}

type sessionTokenSource struct {
	s *Session
}

func (ts sessionTokenSource) Token() (*oauth2.Token, error) {
	tok := ts.s.Token()
	if tok == nil || tok.AccessToken == "" {
		return nil, ErrNoToken
	}
	return tok, nil
}

func (s *Session) applyGrant(g *Grant) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok := *g.Token
	if tok.RefreshToken == "" && s.token != nil {
		tok.RefreshToken = s.token.RefreshToken
	}
	s.token = &tok
	s.expiry = g.Expiry
	s.authenticated = true
}

func (s *Session) setEmail(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.email = email
}

func (s *Session) setPending(state, verifier string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingState = state
	s.pendingVerifier = verifier
}

// takePending returns and clears the pending sign-in so a callback can be used once.
func (s *Session) takePending() (state, verifier string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, verifier = s.pendingState, s.pendingVerifier
	s.pendingState, s.pendingVerifier = "", ""
	return state, verifier
}

// expire drops the token and the signed-in flag, keeping any pending sign-in.
func (s *Session) expire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = nil
	s.expiry = time.Time{}
	s.authenticated = false
	s.email = ""
}

func (s *Session) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = nil
	s.expiry = time.Time{}
	s.authenticated = false
	s.email = ""
	s.pendingState = ""
	s.pendingVerifier = ""
}
