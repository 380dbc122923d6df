package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"

	"github.com/teemow/drivedesk/internal/auth"
	"github.com/teemow/drivedesk/internal/drive"
	"github.com/teemow/drivedesk/internal/filemanager"
	"github.com/teemow/drivedesk/internal/google"
	"github.com/teemow/drivedesk/internal/instrumentation"
)

// ContextConfig configures a ServerContext.
type ContextConfig struct {
	OAuth google.Config
	Drive drive.Options

	// HTTPClient carries every outbound call to Google. Defaults to a client
	// with an otelhttp transport.
	HTTPClient *http.Client

	Logger      *slog.Logger
	Metrics     *instrumentation.Metrics
	AuditLogger *instrumentation.AuditLogger
}

// ServerContext holds the identity client, the Drive client factory and the
// readiness of each. It is shared by every request.
type ServerContext struct {
	ctx    context.Context
	cancel context.CancelFunc

	provider      *google.Provider
	authenticator *auth.Authenticator
	driveOptions  drive.Options
	httpClient    *http.Client

	identityReady bool
	driveReady    bool

	logger  *slog.Logger
	metrics *instrumentation.Metrics
	audit   *instrumentation.AuditLogger

	mu       sync.RWMutex
	shutdown bool
}

// NewServerContext initializes the identity client and checks the Drive
// client factory. Neither failing is fatal: the server starts with sign-in
// disabled and reports not ready.
//
// The server context keeps ctx's values but not its cancellation. Request
// contexts derive from it, so only Shutdown cancels them, after the HTTP
// server has drained in-flight requests.
func NewServerContext(ctx context.Context, cfg ContextConfig) *ServerContext {
	shutdownCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}

	oauthCfg := cfg.OAuth
	if oauthCfg.HTTPClient == nil {
		oauthCfg.HTTPClient = httpClient
	}
	provider := google.NewProvider(oauthCfg)

	sc := &ServerContext{
		ctx:           shutdownCtx,
		cancel:        cancel,
		provider:      provider,
		driveOptions:  cfg.Drive,
		httpClient:    httpClient,
		identityReady: provider.Ready(),
		logger:        logger,
		metrics:       cfg.Metrics,
		audit:         cfg.AuditLogger,
	}

	if _, err := drive.NewClientWithHTTPClient(shutdownCtx, httpClient, cfg.Drive); err != nil {
		logger.Error("Drive client unavailable", "error", err)
	} else {
		sc.driveReady = true
	}
	if !sc.identityReady {
		logger.Warn("Google OAuth client is not configured, sign-in is disabled")
	}

	sc.authenticator = auth.NewAuthenticator(provider, sc,
		auth.WithLogger(logger),
		auth.WithMetrics(cfg.Metrics),
	)

	return sc
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Authenticator returns the session authenticator.
func (sc *ServerContext) Authenticator() *auth.Authenticator {
	return sc.authenticator
}

// IdentityReady reports whether the OAuth client was initialized.
func (sc *ServerContext) IdentityReady() bool {
	return sc.identityReady
}

// DriveReady reports whether Drive clients can be built.
func (sc *ServerContext) DriveReady() bool {
	return sc.driveReady
}

// Ready reports whether sign-in can be offered: both clients are ready.
func (sc *ServerContext) Ready() bool {
	return sc.identityReady && sc.driveReady
}

// Logger returns the server logger.
func (sc *ServerContext) Logger() *slog.Logger {
	return sc.logger
}

// Metrics returns the metrics recorder; may be nil.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	return sc.metrics
}

// AuditLogger returns the audit logger; may be nil.
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	return sc.audit
}

// ClientFor returns a Drive client that authorizes with the session's current
// token. Refreshes applied to the session are picked up on the next request.
func (sc *ServerContext) ClientFor(ctx context.Context, s *auth.Session) (filemanager.Drive, error) {
	client, err := sc.driveClient(ctx, s)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// ValidateToken checks the session's token against Drive and returns the
// account email.
func (sc *ServerContext) ValidateToken(ctx context.Context, s *auth.Session) (string, error) {
	client, err := sc.driveClient(ctx, s)
	if err != nil {
		return "", err
	}
	return client.ValidateToken(ctx)
}

func (sc *ServerContext) driveClient(ctx context.Context, s *auth.Session) (*drive.Client, error) {
	if !sc.driveReady {
		return nil, errors.New("drive client is not ready")
	}
	if s == nil {
		return nil, auth.ErrNoToken
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, sc.httpClient)
	return drive.NewClient(ctx, s.TokenSource(), sc.driveOptions)
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown shuts down the server context
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}
