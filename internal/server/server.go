// ABOUTME: Server orchestrator wiring the store, ingest pipeline, and notifier
// ABOUTME: Manages the HTTP listener (TCP or tsnet) and graceful shutdown

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/lanternlink/lantern/internal/config"
	"github.com/lanternlink/lantern/internal/ingest"
	"github.com/lanternlink/lantern/internal/media"
	"github.com/lanternlink/lantern/internal/notify"
	"github.com/lanternlink/lantern/internal/pages"
	"github.com/lanternlink/lantern/internal/session"
	"tailscale.com/tsnet"
)

// Server owns the HTTP surface and the components behind it.
type Server struct {
	config      *config.Config
	store       *session.Store
	media       *media.Store
	ingestor    *ingest.Ingestor
	dispatcher  *notify.Dispatcher
	httpServer  *http.Server
	tsnetServer *tsnet.Server
	logger      *slog.Logger

	// baseURL is the externally reachable URL used in session links.
	baseURL string
}

// New wires up a server from configuration: opens the session store from its
// last snapshot, prepares the upload directory, and selects the notification
// backend (or disables notifications when none is configured).
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	store, err := session.Open(cfg.Storage.SnapshotPath, logger)
	if err != nil {
		return nil, fmt.Errorf("opening session store: %w", err)
	}

	blobs, err := media.NewStore(cfg.Storage.UploadDir, logger)
	if err != nil {
		return nil, fmt.Errorf("opening media store: %w", err)
	}

	sender, err := newSender(cfg, logger)
	if err != nil {
		return nil, err
	}

	baseURL := cfg.ResolveBaseURL()
	dispatcher := notify.New(sender, baseURL, logger)
	ingestor := ingest.New(store, blobs, dispatcher, logger)

	s := &Server{
		config:     cfg,
		store:      store,
		media:      blobs,
		ingestor:   ingestor,
		dispatcher: dispatcher,
		logger:     logger.With("component", "server"),
		baseURL:    baseURL,
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	s.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           s.requestLogger(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// newSender instantiates the configured messaging backend. nil means
// notifications are disabled.
func newSender(cfg *config.Config, logger *slog.Logger) (notify.Sender, error) {
	switch cfg.Notify.Backend {
	case "", "none":
		logger.Info("notifications disabled - no backend configured")
		return nil, nil
	case "telegram":
		sender, err := notify.NewTelegram(cfg.Notify.Telegram.BotToken, logger)
		if err != nil {
			return nil, fmt.Errorf("configuring telegram backend: %w", err)
		}
		logger.Info("notifications enabled", "backend", "telegram")
		return sender, nil
	case "matrix":
		sender, err := notify.NewMatrix(cfg.Notify.Matrix.Homeserver, cfg.Notify.Matrix.UserID, cfg.Notify.Matrix.AccessToken, logger)
		if err != nil {
			return nil, fmt.Errorf("configuring matrix backend: %w", err)
		}
		logger.Info("notifications enabled", "backend", "matrix")
		return sender, nil
	default:
		// Config validation rejects unknown backends before this point.
		return nil, fmt.Errorf("unknown notify backend %q", cfg.Notify.Backend)
	}
}

// registerRoutes mounts all HTTP routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/store", s.handleStoreHealth)

	mux.HandleFunc("POST /create", s.handleCreate)
	mux.HandleFunc("POST /wrap_create", s.handleWrapCreate)

	mux.HandleFunc("GET /s/{token}", s.handleSessionPage)
	mux.HandleFunc("GET /w/{token}", s.handleWrapperPage)

	mux.HandleFunc("POST /upload_info/{token}", s.handleUploadInfo)
	mux.HandleFunc("POST /upload_image/{token}", s.handleUploadImage)

	mux.HandleFunc("GET /session_data/{token}", s.handleSessionData)
	mux.HandleFunc("GET /uploads/{filename}", s.handleServeUpload)

	mux.Handle("GET /static/", pages.StaticHandler())
}

// Handler returns the server's HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run starts the server and blocks until the context is canceled.
// Returns nil on graceful shutdown, or an error if the listener fails.
func (s *Server) Run(ctx context.Context) error {
	ln, err := s.setupListener(ctx)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String(), "base_url", s.baseURL)
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		s.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := s.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// setupListener creates the listener based on configuration.
func (s *Server) setupListener(ctx context.Context) (net.Listener, error) {
	if s.config.Tailscale.Enabled {
		if s.config.Server.HTTPAddr != "" {
			s.logger.Warn("server.http_addr is ignored when tailscale is enabled",
				"http_addr", s.config.Server.HTTPAddr)
		}
		return s.setupTailscaleListener(ctx)
	}

	ln, err := net.Listen("tcp", s.config.Server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on HTTP address: %w", err)
	}
	return ln, nil
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the run context is already
// canceled.
func (s *Server) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}

// Shutdown stops the HTTP server and flushes a final store snapshot.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	var errs []error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
	}
	if s.tsnetServer != nil {
		if err := s.tsnetServer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("tailscale shutdown: %w", err))
		}
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store close: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}
