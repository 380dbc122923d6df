// Package server provides the browser-facing HTTP server of the Drive file
// manager: the server context, the cookie session store, the routes and
// their handlers, health checks, and the Prometheus metrics listener.
//
// # Key Components
//
// ServerContext initializes the Google identity client and the Drive client
// factory and tracks a ready flag for each. Sign-in is offered only when both
// are ready, and /readyz reports the same.
//
// SessionManager maps a random cookie ID to one auth.Session per browser,
// carries one-shot banner messages across redirects, and sweeps idle
// sessions periodically.
//
// Server registers the routes on a Go 1.22 ServeMux:
//
//	GET  /                      page, lists files when signed in
//	GET  /search?q=             search by name
//	GET  /auth/signin           redirect to the Google consent page
//	GET  /auth/callback         complete sign-in
//	POST /auth/signout          revoke the token and end the session
//	POST /files/upload          multipart field "fileInput"
//	GET  /files/{id}/download   stream the file as an attachment
//	GET  /files/{id}/view       redirect to the Drive viewer
//	GET  /files/{id}/delete     confirmation page
//	POST /files/{id}/delete     confirm=yes|no
//	GET  /healthz, /readyz, /healthz/detailed
//
// # Security Features
//
//   - HTTPS required for a non-loopback base URL (see config.Validate)
//   - PKCE and a constant-time state check on the OAuth callback
//   - Session cookies are HttpOnly and SameSite=Lax, Secure on HTTPS
//   - Rate limiting per client IP
//   - Security headers, including a same-origin Content-Security-Policy
package server
