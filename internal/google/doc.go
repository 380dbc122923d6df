// Package google is the Google identity client: it builds the OAuth2
// configuration and performs the authorization-code exchange, the
// refresh-token grant and token revocation.
//
// Provider implements auth.IdentityProvider. Every call returns either an
// *auth.Grant or an error; the caller decides what to show the user.
package google
