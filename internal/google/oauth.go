package google

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/teemow/drivedesk/internal/auth"
)

// DefaultRevokeURL is Google's token revocation endpoint.
const DefaultRevokeURL = "https://oauth2.googleapis.com/revoke"

// ErrNotConfigured is returned when the provider has no client ID.
var ErrNotConfigured = errors.New("google OAuth client is not configured")

// Config holds the OAuth client registration.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// Scopes defaults to DefaultOAuthScopes
	Scopes []string

	// Endpoint defaults to google.Endpoint
	Endpoint oauth2.Endpoint

	// RevokeURL defaults to DefaultRevokeURL
	RevokeURL string

	// HTTPClient is used for token and revoke requests; defaults to http.DefaultClient
	HTTPClient *http.Client
}

// Provider talks to Google's authorization server.
type Provider struct {
	oauth      *oauth2.Config
	revokeURL  string
	httpClient *http.Client
	now        func() time.Time
}

// NewOAuthConfig returns the OAuth2 configuration for the Google endpoint.
func NewOAuthConfig(clientID, clientSecret, redirectURL string, scopes []string) *oauth2.Config {
	if len(scopes) == 0 {
		scopes = DefaultOAuthScopes
	}
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  redirectURL,
		Scopes:       scopes,
	}
}

// NewProvider creates a Provider. A config without a client ID yields a
// provider that is not Ready.
func NewProvider(cfg Config) *Provider {
	conf := NewOAuthConfig(cfg.ClientID, cfg.ClientSecret, cfg.RedirectURL, cfg.Scopes)
	if cfg.Endpoint.TokenURL != "" {
		conf.Endpoint = cfg.Endpoint
	}

	revokeURL := cfg.RevokeURL
	if revokeURL == "" {
		revokeURL = DefaultRevokeURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Provider{
		oauth:      conf,
		revokeURL:  revokeURL,
		httpClient: httpClient,
		now:        time.Now,
	}
}

// Ready reports whether the provider can start a sign-in.
func (p *Provider) Ready() bool {
	return p != nil && p.oauth.ClientID != ""
}

// Scopes returns the scopes requested at sign-in.
func (p *Provider) Scopes() []string {
	return p.oauth.Scopes
}

// AuthCodeURL returns the consent page URL. It asks for offline access so a
// refresh token is issued, and carries a PKCE S256 challenge.
func (p *Provider) AuthCodeURL(state, verifier string) string {
	return p.oauth.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.S256ChallengeOption(verifier),
	)
}

// Exchange trades an authorization code for a token.
func (p *Provider) Exchange(ctx context.Context, code, verifier string) (*auth.Grant, error) {
	if !p.Ready() {
		return nil, ErrNotConfigured
	}

	tok, err := p.oauth.Exchange(p.clientContext(ctx), code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("failed to exchange auth code: %w", err)
	}

	return auth.NewGrant(tok, p.now()), nil
}

// Refresh runs the refresh-token grant for token.
func (p *Provider) Refresh(ctx context.Context, token *oauth2.Token) (*auth.Grant, error) {
	if !p.Ready() {
		return nil, ErrNotConfigured
	}
	if token == nil || token.RefreshToken == "" {
		return nil, auth.ErrNoRefreshToken
	}

	// A token with only a refresh token is always treated as expired, so the
	// source goes straight to the token endpoint.
	ts := p.oauth.TokenSource(p.clientContext(ctx), &oauth2.Token{RefreshToken: token.RefreshToken})
	newToken, err := ts.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}

	return auth.NewGrant(newToken, p.now()), nil
}

// Revoke invalidates accessToken. A 400 response means the token is already
// invalid, which is treated as success.
func (p *Provider) Revoke(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}

	form := url.Values{"token": {accessToken}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create revoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK, resp.StatusCode == http.StatusBadRequest:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("revoke failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
}

func (p *Provider) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}
