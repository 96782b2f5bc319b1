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

	"github.com/jackzampolin/memoir/internal/api"
	"github.com/jackzampolin/memoir/internal/config"
	"github.com/jackzampolin/memoir/internal/content"
	"github.com/jackzampolin/memoir/internal/dispatch"
	"github.com/jackzampolin/memoir/internal/docstore"
	"github.com/jackzampolin/memoir/internal/history"
	"github.com/jackzampolin/memoir/internal/home"
	"github.com/jackzampolin/memoir/internal/server/endpoints"
	"github.com/jackzampolin/memoir/internal/store"
	"github.com/jackzampolin/memoir/internal/svcctx"
	"github.com/jackzampolin/memoir/internal/workspace"
)

// Server is the memoir HTTP server. It owns the pipeline services and, when
// the document store is managed, the DefraDB container lifecycle.
type Server struct {
	httpServer    *http.Server
	home          *home.Dir
	appConfig     *config.Config
	dispatcher    *dispatch.Dispatcher
	ledger        *history.Ledger
	content       *content.Service
	dockerManager *docstore.DockerManager // nil unless docstore.managed
	docClient     *docstore.Client
	docstoreURL   string
	store         *store.Store
	workspace     *workspace.Workspace
	logger        *slog.Logger

	// services holds all core services for context enrichment
	services *svcctx.Services

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 8080)
	Port string
	// Home is the memoir home directory (default: ~/.memoir)
	Home *home.Dir
	// ConfigManager provides configuration with hot-reload support.
	// Defaults are used when nil.
	ConfigManager *config.Manager
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Home == nil {
		h, err := home.New("")
		if err != nil {
			return nil, err
		}
		cfg.Home = h
	}

	appCfg := config.DefaultConfig()
	if cfg.ConfigManager != nil {
		appCfg = cfg.ConfigManager.Get()
	}

	dispatchCfg := appCfg.DispatchConfig()
	dispatchCfg.Logger = cfg.Logger
	contentCfg := appCfg.ContentServiceConfig()
	contentCfg.Logger = cfg.Logger

	s := &Server{
		home:       cfg.Home,
		appConfig:  appCfg,
		dispatcher: dispatch.New(dispatchCfg),
		ledger:     history.New(history.Config{Limit: appCfg.History.Limit, Logger: cfg.Logger}),
		content:    content.New(contentCfg),
		logger:     cfg.Logger,
	}

	s.docstoreURL = appCfg.Docstore.URL
	if appCfg.Docstore.Managed {
		dockerCfg := appCfg.DockerConfig(cfg.Home.DocstorePath())
		dockerCfg.Logger = cfg.Logger
		dm, err := docstore.NewDockerManager(dockerCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create docstore manager: %w", err)
		}
		s.dockerManager = dm
		s.docstoreURL = dm.URL()
	}

	if cfg.ConfigManager != nil {
		cfg.ConfigManager.OnChange(func(c *config.Config) {
			dc := c.DispatchConfig()
			s.dispatcher.Reload(dc)
			s.ledger.SetLimit(c.History.Limit)
			cfg.Logger.Info("dispatcher reloaded from config",
				"webhook_configured", dc.Endpoint != "",
				"history_limit", c.History.Limit)
		})
	}

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All(endpoints.Config{
		DockerManager: s.dockerManager,
		DocstoreURL:   s.docstoreURL,
	}) {
		s.endpointRegistry.Register(ep)
	}

	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:        net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:     s.withServices(mux),
		ReadTimeout: 30 * time.Second,
		// Retry blocks for up to a dispatch deadline, which a reload can
		// raise but never past the cap.
		WriteTimeout: dispatch.MaxTimeout + time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Start brings up the document store (if any), restores state, and serves
// HTTP. It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	if err := s.startDocstore(ctx); err != nil {
		_ = s.shutdown()
		return err
	}

	storePath := s.appConfig.Storage.Path
	if storePath == "" {
		if err := s.home.EnsureExists(); err != nil {
			_ = s.shutdown()
			return err
		}
		storePath = s.home.StatePath()
	}
	st, err := store.Open(store.Config{Path: storePath, Logger: s.logger})
	if err != nil {
		_ = s.shutdown()
		return err
	}
	s.store = st

	wsCfg := workspace.Config{
		Dispatcher: s.dispatcher,
		Ledger:     s.ledger,
		Store:      st,
		Content:    s.content,
		Logger:     s.logger,
	}
	if s.docClient != nil {
		wsCfg.Documents = s.docClient
	}
	ws := workspace.New(wsCfg)
	if err := ws.Load(ctx); err != nil {
		_ = s.shutdown()
		return fmt.Errorf("failed to restore state: %w", err)
	}
	s.workspace = ws

	s.services = &svcctx.Services{
		Workspace:  ws,
		Dispatcher: s.dispatcher,
		Store:      st,
		Content:    s.content,
		Docstore:   s.docClient,
		Logger:     s.logger,
		Home:       s.home,
	}

	if !s.dispatcher.Configured() {
		s.logger.Warn("no webhook URL configured; generate requests will fail until webhook.url is set")
	}

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			_ = s.shutdown()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// startDocstore starts the managed container or connects to an external
// DefraDB. Only the managed case is fatal; an unreachable external store
// leaves the server up with /ready reporting degraded.
func (s *Server) startDocstore(ctx context.Context) error {
	url := s.docstoreURL
	if s.dockerManager != nil {
		s.logger.Info("starting DefraDB")
		if err := s.dockerManager.Start(ctx); err != nil {
			return fmt.Errorf("failed to start DefraDB: %w", err)
		}
	}
	if url == "" {
		s.logger.Info("no document store configured")
		return nil
	}

	s.docClient = docstore.NewClient(url)
	if err := s.docClient.HealthCheck(ctx); err != nil {
		if s.dockerManager != nil {
			return fmt.Errorf("DefraDB health check failed: %w", err)
		}
		s.logger.Warn("document store unreachable", "url", url, "error", err)
		return nil
	}

	s.logger.Info("initializing schemas", "url", url)
	if err := docstore.Initialize(ctx, s.docClient, s.logger); err != nil {
		if s.dockerManager != nil {
			return fmt.Errorf("schema initialization failed: %w", err)
		}
		s.logger.Warn("schema initialization failed", "error", err)
	}
	return nil
}

// shutdown stops the HTTP server, waits for background jobs, closes the
// store, and stops a managed DefraDB.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	if s.workspace != nil {
		if err := s.workspace.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("job shutdown error", "error", err)
		}
	}

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error("store close error", "error", err)
		}
	}

	if s.dockerManager != nil {
		s.logger.Info("stopping DefraDB")
		if err := s.dockerManager.Stop(shutdownCtx); err != nil {
			s.logger.Error("DefraDB stop error", "error", err)
		}
		if err := s.dockerManager.Close(); err != nil {
			s.logger.Error("DefraDB manager close error", "error", err)
		}
	}

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Workspace returns the workspace.
// Returns nil if the server hasn't started yet.
func (s *Server) Workspace() *workspace.Workspace {
	return s.workspace
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Registry returns the endpoint registry.
func (s *Server) Registry() *api.Registry {
	return s.endpointRegistry
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if s.services != nil {
			ctx = svcctx.WithServices(ctx, s.services)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that ensures the server is fully initialized.
// Returns 503 Service Unavailable until state has been restored.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.workspace == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}
