package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/teemow/drivedesk/internal/config"
	"github.com/teemow/drivedesk/internal/drive"
	"github.com/teemow/drivedesk/internal/google"
	"github.com/teemow/drivedesk/internal/instrumentation"
	"github.com/teemow/drivedesk/internal/logging"
	"github.com/teemow/drivedesk/internal/server"
)

// openBrowser is replaced in tests.
var openBrowser = browser.OpenURL

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Drive file manager web server",
		Long: `Start the web server. Open the base URL in a browser and sign in with
Google to manage your Drive files.

Configuration is read from flags, then DRIVEDESK_* environment variables,
then the optional --config YAML file. GOOGLE_CLIENT_ID and
GOOGLE_CLIENT_SECRET are accepted as fallbacks for the client credentials.
Without a client ID the server starts with sign-in disabled.

The OAuth redirect URI to register with Google is <base-url>/auth/callback.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(viper.New(), cmd.Flags())
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return runServe(ctx, cfg, cmd.ErrOrStderr())
		},
	}

	config.RegisterFlags(cmd.Flags())

	return cmd
}

// runServe starts the web server and, when enabled, the metrics server, and
// blocks until ctx is cancelled or a server fails.
func runServe(ctx context.Context, cfg *config.Config, logOut io.Writer) error {
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, logOut)
	if err != nil {
		return err
	}

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Error during instrumentation shutdown", logging.Err(err))
		}
	}()

	ctxCfg := server.ContextConfig{
		OAuth: google.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.RedirectURL(),
			Scopes:       cfg.Scopes,
			RevokeURL:    cfg.RevokeEndpoint,
		},
		Drive: drive.Options{
			Endpoint:  cfg.DriveEndpoint,
			UploadURL: cfg.UploadEndpoint,
		},
		Logger: logger,
	}
	if provider.Enabled() {
		ctxCfg.Metrics = provider.Metrics()
		ctxCfg.AuditLogger = provider.AuditLogger(logger)
	}

	serverContext := server.NewServerContext(ctx, ctxCfg)
	if !serverContext.IdentityReady() {
		logger.Warn("Google client ID not configured, sign-in is disabled",
			"hint", "set --google-client-id or GOOGLE_CLIENT_ID")
	}

	srv, err := server.NewServer(serverContext, server.Options{
		MaxUploadSize:  cfg.MaxUploadSize,
		RateLimit:      cfg.RateLimit,
		RateBurst:      cfg.RateBurst,
		SessionTimeout: cfg.SessionTimeout,
		SecureCookies:  cfg.SecureCookies(),
	})
	if err != nil {
		_ = serverContext.Shutdown()
		return fmt.Errorf("failed to create server: %w", err)
	}

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		shutdownServer(srv, logger)
		return fmt.Errorf("failed to listen on %s: %w", cfg.Addr, err)
	}

	var metricsServer *server.MetricsServer
	if cfg.MetricsEnabled && provider.Enabled() {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    cfg.MetricsAddr,
			InstrumentationProvider: provider,
			Logger:                  logger,
		})
		if err != nil {
			_ = ln.Close()
			shutdownServer(srv, logger)
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server stopped with error: %w", err)
		}
		return nil
	})

	if metricsServer != nil {
		g.Go(func() error {
			if err := metricsServer.Start(); err != nil {
				return fmt.Errorf("metrics server failed: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received, stopping servers")

		if metricsServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Error during metrics server shutdown", logging.Err(err))
			}
		}
		shutdownServer(srv, logger)
		return nil
	})

	logger.Info("drivedesk started",
		"version", version,
		"url", cfg.BaseURL,
		"addr", ln.Addr().String(),
		"redirect_uri", cfg.RedirectURL(),
	)
	if metricsServer != nil {
		logger.Info("Metrics endpoint enabled", "addr", cfg.MetricsAddr, "path", "/metrics")
	}
	if cfg.OpenBrowser {
		if err := openBrowser(cfg.BaseURL); err != nil {
			logger.Warn("Failed to open browser", "url", cfg.BaseURL, logging.Err(err))
		}
	}

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("drivedesk gracefully stopped")
	return nil
}

func shutdownServer(srv *server.Server, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("Error during HTTP server shutdown", logging.Err(err))
	}
}
