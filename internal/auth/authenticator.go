package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"

	"github.com/teemow/drivedesk/internal/instrumentation"
	"github.com/teemow/drivedesk/internal/logging"
)

// IdentityProvider is the OAuth 2.0 authorization server the user signs in with.
type IdentityProvider interface {
	// AuthCodeURL returns the consent page URL for the given state and PKCE verifier.
	AuthCodeURL(state, verifier string) string

	// Exchange trades an authorization code for a token.
	Exchange(ctx context.Context, code, verifier string) (*Grant, error)

	// Refresh obtains a new access token using the token's refresh token.
	Refresh(ctx context.Context, token *oauth2.Token) (*Grant, error)

	// Revoke invalidates an access token.
	Revoke(ctx context.Context, accessToken string) error
}

// TokenValidator checks that a session's access token is accepted by the
// resource server and returns the account email it belongs to.
type TokenValidator interface {
	ValidateToken(ctx context.Context, s *Session) (string, error)
}

// TokenValidatorFunc adapts a function to TokenValidator.
type TokenValidatorFunc func(ctx context.Context, s *Session) (string, error)

// ValidateToken calls f.
func (f TokenValidatorFunc) ValidateToken(ctx context.Context, s *Session) (string, error) {
	return f(ctx, s)
}

// CallbackParams are the query parameters of the OAuth redirect.
type CallbackParams struct {
	State string
	Code  string
	Error string
}

// Authenticator drives sign-in, token refresh and sign-out for sessions.
// It holds no per-user state; everything lives on the Session.
type Authenticator struct {
	provider  IdentityProvider
	validator TokenValidator
	logger    *slog.Logger
	metrics   *instrumentation.Metrics
	now       func() time.Time
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Authenticator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(a *Authenticator) {
		a.metrics = m
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) {
		a.now = now
	}
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(provider IdentityProvider, validator TokenValidator, opts ...Option) *Authenticator {
	a := &Authenticator{
		provider:  provider,
		validator: validator,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// EnsureAuthenticated reports whether the session holds a usable token,
// refreshing it first when it is close to expiry.
func (a *Authenticator) EnsureAuthenticated(ctx context.Context, s *Session) bool {
	return a.Check(ctx, s) == nil
}

// Check is EnsureAuthenticated with the failure reason.
//
// Without a token it returns ErrNoToken and makes no remote call. A token
// within RefreshWindow of expiry is refreshed once; concurrent callers on the
// same session skip the refresh and validate the current token instead.
func (a *Authenticator) Check(ctx context.Context, s *Session) error {
	if s == nil || s.AccessToken() == "" {
		a.logger.DebugContext(ctx, "no token on session", logging.Operation("auth.check"))
		return ErrNoToken
	}

	logger := logging.WithSession(a.logger, s.ID())

	if s.NeedsRefresh(a.now()) {
		if s.refreshing.CompareAndSwap(false, true) {
			defer s.refreshing.Store(false)
			return a.refresh(ctx, s, logger)
		}
		a.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultSkipped)
		logger.DebugContext(ctx, "token refresh already in flight, validating current token")
	}

	email, err := a.validator.ValidateToken(ctx, s)
	if err != nil {
		logger.WarnContext(ctx, "token validation failed", logging.Operation("auth.validate"), logging.Err(err))
		if isUnauthorized(err) {
			// The token was revoked or expired elsewhere; the user must sign in again.
			s.expire()
		}
		return &Error{Op: "validate", Reason: "token rejected", Err: err}
	}
	s.setEmail(email)

	return nil
}

func (a *Authenticator) refresh(ctx context.Context, s *Session, logger *slog.Logger) error {
	ctx, span := instrumentation.StartAuthSpan(ctx, "refresh")
	defer span.End()

	tok := s.Token()
	if tok == nil {
		return ErrNoToken
	}
	if tok.RefreshToken == "" {
		a.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultFailure)
		instrumentation.SetSpanError(span, ErrNoRefreshToken)
		logger.WarnContext(ctx, "token needs refresh but session has no refresh token", logging.Operation("auth.refresh"))
		return &Error{Op: "refresh", Reason: "cannot refresh token", Err: ErrNoRefreshToken}
	}

	grant, err := a.provider.Refresh(ctx, tok)
	if err != nil {
		a.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultFailure)
		instrumentation.SetSpanError(span, err)
		logger.WarnContext(ctx, "token refresh failed", logging.Operation("auth.refresh"), logging.Err(err))
		return &Error{Op: "refresh", Reason: "provider rejected refresh", Err: err}
	}

	s.applyGrant(grant)
	a.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultSuccess)
	instrumentation.SetSpanSuccess(span)
	logger.InfoContext(ctx, "token refreshed",
		logging.Operation("auth.refresh"),
		slog.Time("expiry", grant.Expiry),
		slog.String("token", logging.SanitizeToken(grant.Token.AccessToken)))

	return nil
}

// BeginSignIn starts the consent flow and returns the URL to redirect the browser to.
func (a *Authenticator) BeginSignIn(s *Session) (string, error) {
	state, err := GenerateState()
	if err != nil {
		return "", &Error{Op: "sign_in", Reason: "cannot generate state", Err: err}
	}
	verifier := oauth2.GenerateVerifier()

	s.setPending(state, verifier)
	return a.provider.AuthCodeURL(state, verifier), nil
}

// CompleteSignIn handles the OAuth redirect: it checks the state, exchanges
// the code and marks the session authenticated.
func (a *Authenticator) CompleteSignIn(ctx context.Context, s *Session, params CallbackParams) (*Grant, error) {
	ctx, span := instrumentation.StartAuthSpan(ctx, "sign_in")
	defer span.End()

	grant, err := a.completeSignIn(ctx, s, params)
	logger := logging.WithSession(a.logger, s.ID())
	if err != nil {
		a.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
		instrumentation.SetSpanError(span, err)
		logger.WarnContext(ctx, "sign-in failed", logging.Operation("auth.sign_in"), logging.Err(err))
		return nil, err
	}

	a.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultSuccess)
	instrumentation.SetSpanSuccess(span)
	logger.InfoContext(ctx, "signed in", logging.Operation("auth.sign_in"), slog.Time("expiry", grant.Expiry))
	return grant, nil
}

func (a *Authenticator) completeSignIn(ctx context.Context, s *Session, params CallbackParams) (*Grant, error) {
	state, verifier := s.takePending()

	if params.Error != "" {
		return nil, &Error{Op: "sign_in", Reason: "provider returned " + params.Error}
	}
	if state == "" || subtle.ConstantTimeCompare([]byte(state), []byte(params.State)) != 1 {
		return nil, &Error{Op: "sign_in", Reason: "invalid callback", Err: ErrStateMismatch}
	}
	if params.Code == "" {
		return nil, &Error{Op: "sign_in", Reason: "missing authorization code"}
	}

	grant, err := a.provider.Exchange(ctx, params.Code, verifier)
	if err != nil {
		return nil, &Error{Op: "sign_in", Reason: "code exchange failed", Err: err}
	}

	s.applyGrant(grant)
	return grant, nil
}

// SignOut revokes the session's token and clears it. When revocation fails
// the session is left signed in and the error is returned.
func (a *Authenticator) SignOut(ctx context.Context, s *Session) error {
	if s == nil {
		return nil
	}

	ctx, span := instrumentation.StartAuthSpan(ctx, "sign_out")
	defer span.End()

	logger := logging.WithSession(a.logger, s.ID())

	if token := s.AccessToken(); token != "" {
		if err := a.provider.Revoke(ctx, token); err != nil {
			instrumentation.SetSpanError(span, err)
			logger.WarnContext(ctx, "token revocation failed", logging.Operation("auth.sign_out"), logging.Err(err))
			return &Error{Op: "sign_out", Reason: "revoke failed", Err: err}
		}
	}

	s.clear()
	instrumentation.SetSpanSuccess(span)
	logger.InfoContext(ctx, "signed out", logging.Operation("auth.sign_out"))
	return nil
}

// IsAuthError reports whether err came from the authenticator.
func IsAuthError(err error) bool {
	var authErr *Error
	return errors.As(err, &authErr)
}

// isUnauthorized reports whether err is an HTTP 401 from a Google API.
func isUnauthorized(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusUnauthorized
}
