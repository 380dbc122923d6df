package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

type fakeProvider struct {
	mu sync.Mutex

	exchangeCode     string
	exchangeVerifier string
	exchangeGrant    *Grant
	exchangeErr      error

	refreshCalls atomic.Int32
	refreshGrant *Grant
	refreshErr   error
	refreshGate  chan struct{}
	refreshEnter chan struct{}

	revoked   []string
	revokeErr error
}

func (p *fakeProvider) AuthCodeURL(state, verifier string) string {
	v := url.Values{}
	v.Set("state", state)
	v.Set("code_challenge", oauth2.S256ChallengeFromVerifier(verifier))
	return "https://accounts.example.com/auth?" + v.Encode()
}

func (p *fakeProvider) Exchange(_ context.Context, code, verifier string) (*Grant, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exchangeCode = code
	p.exchangeVerifier = verifier
	return p.exchangeGrant, p.exchangeErr
}

func (p *fakeProvider) Refresh(_ context.Context, _ *oauth2.Token) (*Grant, error) {
	p.refreshCalls.Add(1)
	if p.refreshEnter != nil {
		close(p.refreshEnter)
	}
	if p.refreshGate != nil {
		<-p.refreshGate
	}
	return p.refreshGrant, p.refreshErr
}

func (p *fakeProvider) Revoke(_ context.Context, accessToken string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.revokeErr != nil {
		return p.revokeErr
	}
	p.revoked = append(p.revoked, accessToken)
	return nil
}

type fakeValidator struct {
	calls atomic.Int32
	email string
	err   error
}

func (v *fakeValidator) ValidateToken(_ context.Context, _ *Session) (string, error) {
	v.calls.Add(1)
	return v.email, v.err
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestAuthenticator(p *fakeProvider, v *fakeValidator) *Authenticator {
	return NewAuthenticator(p, v, WithClock(func() time.Time { return testNow }))
}

func signedInSession(accessToken, refreshToken string, expiry time.Time) *Session {
	s := NewSession("session-1")
	s.applyGrant(&Grant{
		Token:  &oauth2.Token{AccessToken: accessToken, RefreshToken: refreshToken, Expiry: expiry},
		Expiry: expiry,
	})
	return s
}

func TestAuthenticator_CheckWithoutToken(t *testing.T) {
	p := &fakeProvider{}
	v := &fakeValidator{}
	a := newTestAuthenticator(p, v)

	err := a.Check(context.Background(), NewSession("s"))
	assert.ErrorIs(t, err, ErrNoToken)
	assert.False(t, a.EnsureAuthenticated(context.Background(), nil))

	assert.Zero(t, p.refreshCalls.Load())
	assert.Zero(t, v.calls.Load())
}

func TestAuthenticator_CheckValidToken(t *testing.T) {
	p := &fakeProvider{}
	v := &fakeValidator{email: "user@example.com"}
	a := newTestAuthenticator(p, v)
	s := signedInSession("a1", "r1", testNow.Add(time.Hour))

	assert.True(t, a.EnsureAuthenticated(context.Background(), s))
	assert.Equal(t, int32(1), v.calls.Load())
	assert.Zero(t, p.refreshCalls.Load())
	assert.Equal(t, "user@example.com", s.Email())
}

func TestAuthenticator_CheckRejectedToken(t *testing.T) {
	v := &fakeValidator{err: errors.New("401 invalid credentials")}
	a := newTestAuthenticator(&fakeProvider{}, v)
	s := signedInSession("a1", "r1", testNow.Add(time.Hour))

	err := a.Check(context.Background(), s)
	require.Error(t, err)

	var authErr *Error
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "validate", authErr.Op)
}

func TestAuthenticator_CheckUnauthorizedSignsOut(t *testing.T) {
	v := &fakeValidator{err: fmt.Errorf("failed to validate token: %w", &googleapi.Error{Code: http.StatusUnauthorized})}
	a := newTestAuthenticator(&fakeProvider{}, v)
	s := signedInSession("a1", "r1", testNow.Add(time.Hour))

	assert.False(t, a.EnsureAuthenticated(context.Background(), s))
	assert.False(t, s.IsAuthenticated())
	assert.Empty(t, s.AccessToken())

	assert.ErrorIs(t, a.Check(context.Background(), s), ErrNoToken)
	assert.Equal(t, int32(1), v.calls.Load(), "a signed-out session makes no further call")
}

func TestAuthenticator_CheckTransientFailureKeepsSession(t *testing.T) {
	v := &fakeValidator{err: &googleapi.Error{Code: http.StatusServiceUnavailable}}
	a := newTestAuthenticator(&fakeProvider{}, v)
	s := signedInSession("a1", "r1", testNow.Add(time.Hour))

	assert.False(t, a.EnsureAuthenticated(context.Background(), s))
	assert.True(t, s.IsAuthenticated())
	assert.Equal(t, "a1", s.AccessToken())
}

func TestAuthenticator_RefreshesNearExpiry(t *testing.T) {
	newExpiry := testNow.Add(time.Hour)
	p := &fakeProvider{
		refreshGrant: &Grant{Token: &oauth2.Token{AccessToken: "a2", Expiry: newExpiry}, Expiry: newExpiry},
	}
	v := &fakeValidator{}
	a := newTestAuthenticator(p, v)
	s := signedInSession("a1", "r1", testNow.Add(2*time.Minute))

	assert.True(t, a.EnsureAuthenticated(context.Background(), s))

	assert.Equal(t, int32(1), p.refreshCalls.Load())
	assert.Zero(t, v.calls.Load(), "a successful refresh is not re-validated")
	assert.Equal(t, "a2", s.AccessToken())
	assert.Equal(t, "r1", s.Token().RefreshToken)
	assert.Equal(t, newExpiry, s.Expiry())
	assert.False(t, s.refreshing.Load())
}

func TestAuthenticator_RefreshWithoutRefreshToken(t *testing.T) {
	p := &fakeProvider{}
	a := newTestAuthenticator(p, &fakeValidator{})
	s := signedInSession("a1", "", testNow.Add(time.Minute))

	err := a.Check(context.Background(), s)
	assert.ErrorIs(t, err, ErrNoRefreshToken)
	assert.Zero(t, p.refreshCalls.Load())
	assert.Equal(t, "a1", s.AccessToken())
}

func TestAuthenticator_RefreshFailure(t *testing.T) {
	p := &fakeProvider{refreshErr: errors.New("invalid_grant")}
	a := newTestAuthenticator(p, &fakeValidator{})
	s := signedInSession("a1", "r1", testNow.Add(time.Minute))

	assert.False(t, a.EnsureAuthenticated(context.Background(), s))
	assert.Equal(t, "a1", s.AccessToken())
	assert.False(t, s.refreshing.Load())
}

func TestAuthenticator_ConcurrentRefreshIsSingleFlight(t *testing.T) {
	newExpiry := testNow.Add(time.Hour)
	p := &fakeProvider{
		refreshGrant: &Grant{Token: &oauth2.Token{AccessToken: "a2", Expiry: newExpiry}, Expiry: newExpiry},
		refreshGate:  make(chan struct{}),
		refreshEnter: make(chan struct{}),
	}
	v := &fakeValidator{email: "user@example.com"}
	a := newTestAuthenticator(p, v)
	s := signedInSession("a1", "r1", testNow.Add(time.Minute))

	var wg sync.WaitGroup
	wg.Add(1)
	var first bool
	go func() {
		defer wg.Done()
		first = a.EnsureAuthenticated(context.Background(), s)
	}()

	<-p.refreshEnter

	// The second caller finds the refresh in flight and validates instead.
	second := a.EnsureAuthenticated(context.Background(), s)

	close(p.refreshGate)
	wg.Wait()

	assert.True(t, first)
	assert.True(t, second)
	assert.Equal(t, int32(1), p.refreshCalls.Load())
	assert.Equal(t, int32(1), v.calls.Load())
	assert.Equal(t, "a2", s.AccessToken())
}

func TestAuthenticator_SignInFlow(t *testing.T) {
	expiry := testNow.Add(time.Hour)
	p := &fakeProvider{
		exchangeGrant: &Grant{Token: &oauth2.Token{AccessToken: "a1", RefreshToken: "r1", Expiry: expiry}, Expiry: expiry},
	}
	a := newTestAuthenticator(p, &fakeValidator{})
	s := NewSession("s")

	authURL, err := a.BeginSignIn(s)
	require.NoError(t, err)

	u, err := url.Parse(authURL)
	require.NoError(t, err)
	state := u.Query().Get("state")
	require.NotEmpty(t, state)

	grant, err := a.CompleteSignIn(context.Background(), s, CallbackParams{State: state, Code: "code-1"})
	require.NoError(t, err)

	assert.Equal(t, "a1", grant.Token.AccessToken)
	assert.True(t, s.IsAuthenticated())
	assert.Equal(t, expiry, s.Expiry())
	assert.Equal(t, "code-1", p.exchangeCode)
	assert.Equal(t, u.Query().Get("code_challenge"), oauth2.S256ChallengeFromVerifier(p.exchangeVerifier))
}

func TestAuthenticator_CompleteSignInFailures(t *testing.T) {
	tests := []struct {
		name    string
		params  func(state string) CallbackParams
		exchErr error
		wantErr error
	}{
		{
			name:    "state mismatch",
			params:  func(string) CallbackParams { return CallbackParams{State: "forged", Code: "c"} },
			wantErr: ErrStateMismatch,
		},
		{
			name:   "provider error",
			params: func(state string) CallbackParams { return CallbackParams{State: state, Error: "access_denied"} },
		},
		{
			name:   "missing code",
			params: func(state string) CallbackParams { return CallbackParams{State: state} },
		},
		{
			name:    "exchange failure",
			params:  func(state string) CallbackParams { return CallbackParams{State: state, Code: "c"} },
			exchErr: errors.New("invalid_grant"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakeProvider{exchangeErr: tt.exchErr}
			a := newTestAuthenticator(p, &fakeValidator{})
			s := NewSession("s")

			authURL, err := a.BeginSignIn(s)
			require.NoError(t, err)
			u, err := url.Parse(authURL)
			require.NoError(t, err)

			grant, err := a.CompleteSignIn(context.Background(), s, tt.params(u.Query().Get("state")))
			require.Error(t, err)
			assert.Nil(t, grant)
			assert.True(t, IsAuthError(err))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.False(t, s.IsAuthenticated())
		})
	}
}

func TestAuthenticator_CallbackCannotBeReplayed(t *testing.T) {
	expiry := testNow.Add(time.Hour)
	p := &fakeProvider{
		exchangeGrant: &Grant{Token: &oauth2.Token{AccessToken: "a1"}, Expiry: expiry},
	}
	a := newTestAuthenticator(p, &fakeValidator{})
	s := NewSession("s")

	authURL, err := a.BeginSignIn(s)
	require.NoError(t, err)
	u, _ := url.Parse(authURL)
	params := CallbackParams{State: u.Query().Get("state"), Code: "c"}

	_, err = a.CompleteSignIn(context.Background(), s, params)
	require.NoError(t, err)

	_, err = a.CompleteSignIn(context.Background(), s, params)
	assert.ErrorIs(t, err, ErrStateMismatch)
}

func TestAuthenticator_SignOut(t *testing.T) {
	p := &fakeProvider{}
	a := newTestAuthenticator(p, &fakeValidator{})
	s := signedInSession("a1", "r1", testNow.Add(time.Hour))

	require.NoError(t, a.SignOut(context.Background(), s))

	assert.Equal(t, []string{"a1"}, p.revoked)
	assert.False(t, s.IsAuthenticated())
	assert.Empty(t, s.AccessToken())
}

func TestAuthenticator_SignOutRevokeFailureKeepsSession(t *testing.T) {
	p := &fakeProvider{revokeErr: errors.New("revocation endpoint unavailable")}
	a := newTestAuthenticator(p, &fakeValidator{})
	s := signedInSession("a1", "r1", testNow.Add(time.Hour))

	err := a.SignOut(context.Background(), s)
	require.Error(t, err)

	var authErr *Error
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "sign_out", authErr.Op)
	assert.True(t, s.IsAuthenticated())
	assert.Equal(t, "a1", s.AccessToken())
}

func TestAuthenticator_SignOutWithoutToken(t *testing.T) {
	p := &fakeProvider{}
	a := newTestAuthenticator(p, &fakeValidator{})

	require.NoError(t, a.SignOut(context.Background(), NewSession("s")))
	require.NoError(t, a.SignOut(context.Background(), nil))
	assert.Empty(t, p.revoked)
}

func TestTokenValidatorFunc(t *testing.T) {
	var called bool
	f := TokenValidatorFunc(func(context.Context, *Session) (string, error) {
		called = true
		return "x@example.com", nil
	})

	email, err := f.ValidateToken(context.Background(), NewSession("s"))
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, "x@example.com", email)
}
