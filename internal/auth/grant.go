package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

// Grant is the success half of a sign-in or refresh result: the issued token
// and its expiry.
type Grant struct {
	Token  *oauth2.Token
	Expiry time.Time
}

// NewGrant wraps a token issued at now. A token without an expiry is assumed
// to live for DefaultTokenLifetime.
func NewGrant(tok *oauth2.Token, now time.Time) *Grant {
	t := *tok
	if t.Expiry.IsZero() {
		t.Expiry = now.Add(DefaultTokenLifetime)
	}
	return &Grant{Token: &t, Expiry: t.Expiry}
}

// GenerateState returns a random CSRF state value for the authorization request.
func GenerateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
