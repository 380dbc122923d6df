package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrNoToken is returned when an operation needs a token and the session has none.
	ErrNoToken = errors.New("no access token")

	// ErrStateMismatch is returned when the OAuth callback state does not match the session.
	ErrStateMismatch = errors.New("oauth state mismatch")

	// ErrNoRefreshToken is returned when a refresh is needed but the provider issued no refresh token.
	ErrNoRefreshToken = errors.New("no refresh token available")
)

// Error is the failure half of a sign-in, refresh or sign-out result.
type Error struct {
	// Op is the step that failed: sign_in, refresh, validate or sign_out
	Op string

	// Reason is a short description suitable for logs
	Reason string

	// Err is the underlying cause, if any
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Reason, e.Err)
	}
	return e.Op + ": " + e.Reason
}

func (e *Error) Unwrap() error {
	return e.Err
}
