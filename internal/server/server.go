package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/teemow/drivedesk/internal/filemanager"
	"github.com/teemow/drivedesk/internal/logging"
	"github.com/teemow/drivedesk/internal/ui"
)

// HTTP server timeouts. The write timeout covers streaming a download.
const (
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultWriteTimeout      = 5 * time.Minute
	DefaultIdleTimeout       = 120 * time.Second

	// DefaultMaxUploadSize bounds the multipart form of an upload.
	DefaultMaxUploadSize = 32 << 20
)

// Options configures a Server.
type Options struct {
	// MaxUploadSize is the largest accepted upload request body in bytes
	MaxUploadSize int64

	// RateLimit is requests per second per client IP; 0 disables it
	RateLimit float64
	RateBurst int

	SessionTimeout time.Duration

	// SecureCookies marks cookies Secure and enables HSTS
	SecureCookies bool

	Title string
}

// Server is the browser-facing HTTP server.
type Server struct {
	sc       *ServerContext
	sessions *SessionManager
	manager  *filemanager.Manager
	renderer *ui.Renderer
	health   *HealthChecker
	limiter  *ipRateLimiter
	logger   *slog.Logger

	maxUploadSize int64
	title         string

	handler http.Handler
	done    chan struct{}

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
	closed     bool
}

// NewServer wires the session store, the file manager and the renderer onto
// one handler.
func NewServer(sc *ServerContext, opts Options) (*Server, error) {
	if sc == nil {
		return nil, errors.New("server context is required")
	}

	renderer, err := ui.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}

	if opts.MaxUploadSize <= 0 {
		opts.MaxUploadSize = DefaultMaxUploadSize
	}
	if opts.Title == "" {
		opts.Title = ui.DefaultTitle
	}

	logger := sc.Logger()
	adapter := logging.NewSlogAdapter(logger)

	sessions := NewSessionManager(SessionManagerConfig{
		Timeout: opts.SessionTimeout,
		Secure:  opts.SecureCookies,
		Logger:  adapter,
		Metrics: sc.Metrics(),
	})

	s := &Server{
		sc:       sc,
		sessions: sessions,
		manager: filemanager.NewManager(sc.Authenticator(), sc,
			filemanager.WithLogger(logger),
			filemanager.WithMetrics(sc.Metrics()),
			filemanager.WithAuditLogger(sc.AuditLogger()),
		),
		renderer:      renderer,
		health:        NewHealthChecker(sc, sessions),
		limiter:       newIPRateLimiter(opts.RateLimit, opts.RateBurst, adapter),
		logger:        logger,
		maxUploadSize: opts.MaxUploadSize,
		title:         opts.Title,
		done:          make(chan struct{}),
	}

	if s.limiter != nil {
		go s.limiter.runCleanup(s.done)
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	var h http.Handler = mux
	h = rateLimitMiddleware(s.limiter, h)
	h = requestIDMiddleware(logger, h)
	h = securityHeadersMiddleware(opts.SecureCookies, h)
	h = instrumentationMiddleware(sc.Metrics(), h)
	s.handler = otelhttp.NewHandler(h, "drivedesk")

	return s, nil
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /search", s.handleSearch)

	mux.HandleFunc("GET /auth/signin", s.handleSignIn)
	mux.HandleFunc("GET /auth/callback", s.handleCallback)
	mux.HandleFunc("POST /auth/signout", s.handleSignOut)

	mux.HandleFunc("POST /files/upload", s.handleUpload)
	mux.HandleFunc("GET /files/{id}/download", s.handleDownload)
	mux.HandleFunc("GET /files/{id}/view", s.handleView)
	mux.HandleFunc("GET /files/{id}/delete", s.handleDeleteConfirm)
	mux.HandleFunc("POST /files/{id}/delete", s.handleDelete)

	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(ui.StaticFS())))

	s.health.RegisterHealthEndpoints(mux)
}

// Handler returns the fully wrapped root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Health returns the health checker.
func (s *Server) Health() *HealthChecker {
	return s.health
}

// Sessions returns the session store.
func (s *Server) Sessions() *SessionManager {
	return s.sessions
}

// Start listens on addr and serves until Shutdown. A clean shutdown returns nil.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ln)
}

// Serve serves on an existing listener until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		WriteTimeout:      DefaultWriteTimeout,
		IdleTimeout:       DefaultIdleTimeout,
		BaseContext:       func(net.Listener) context.Context { return s.sc.Context() },
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = ln.Close()
		return http.ErrServerClosed
	}
	s.httpServer = srv
	s.listener = ln
	s.mu.Unlock()

	s.logger.Info("Serving Drive file manager", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the bound listener address, or "" before Serve.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown marks the server not ready, drains in-flight requests and stops
// the background loops.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	srv := s.httpServer
	s.mu.Unlock()

	s.health.SetReady(false)

	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
	}

	close(s.done)
	s.sessions.Stop()
	_ = s.sc.Shutdown()

	return err
}
