// Package auth owns the sign-in state of a browser session.
//
// A Session holds the OAuth token, its expiry and the authenticated flag. The
// Authenticator moves a session through its lifecycle:
//
//	BeginSignIn      -> consent URL (state + PKCE verifier stored on the session)
//	CompleteSignIn   -> code exchanged, session authenticated
//	EnsureAuthenticated before every Drive operation
//	SignOut          -> token revoked, session cleared
//
// Identity calls return (*Grant, error): a Grant carries the token and its
// expiry, an *Error carries the failed step and its reason.
//
// EnsureAuthenticated never contacts a remote service when the session has no
// token. A token within five minutes of expiry is refreshed; the per-session
// refreshing flag makes that refresh single-flight.
package auth
