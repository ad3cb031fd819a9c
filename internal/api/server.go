package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-compat/internal/catalogdb"
	"github.com/nerrad567/gray-logic-compat/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-compat/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-compat/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-compat/internal/worker"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Catalog  config.CatalogConfig
	Logger   *logging.Logger
	Worker   *worker.Worker

	// Optional. Load history is served only when History is set.
	History *catalogdb.Store
	DB      *sql.DB
	MQTT    *mqtt.Client

	Version string
}

// Server is the HTTP API server for the catalogue service.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	secCfg    config.SecurityConfig
	catCfg    config.CatalogConfig
	logger    *logging.Logger
	worker    *worker.Worker
	catalog   *worker.Client
	history   *catalogdb.Store
	db        *sql.DB
	mqtt      *mqtt.Client
	version   string
	startTime time.Time

	server *http.Server
	hub    *Hub

	// baseCtx parents WebSocket requests, which outlive their upgrade request.
	baseCtx context.Context
	cancel  context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server subscribes to the worker's load events so that WebSocket
// clients see every reload, whichever transport triggered it.
//
// Parameters:
//   - deps: Required dependencies (logger, worker) plus optional stores
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Worker == nil {
		return nil, fmt.Errorf("catalogue worker is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		secCfg:    deps.Security,
		catCfg:    deps.Catalog,
		logger:    deps.Logger,
		worker:    deps.Worker,
		catalog:   deps.Worker.Client(),
		history:   deps.History,
		db:        deps.DB,
		mqtt:      deps.MQTT,
		version:   deps.Version,
		startTime: time.Now(),
		hub:       NewHub(deps.WS, deps.Logger),
		baseCtx:   ctx,
		cancel:    cancel,
	}

	deps.Worker.OnLoad(s.broadcastLoad)

	return s, nil
}

// Hub returns the server's WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the HTTP handler with all routes and middleware.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections in a background goroutine.
// The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	go s.hub.Run(s.baseCtx)
	go func() {
		select {
		case <-ctx.Done():
			s.cancel()
		case <-s.baseCtx.Done():
		}
	}()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.GetReadTimeout(),
		ReadHeaderTimeout: s.cfg.GetReadTimeout(),
		WriteTimeout:      s.cfg.GetWriteTimeout(),
		IdleTimeout:       s.cfg.GetIdleTimeout(),
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	s.cancel()

	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}

// broadcastLoad relays worker load events to WebSocket subscribers.
func (s *Server) broadcastLoad(ev worker.LoadEvent) {
	payload := LoadedPayload{
		RequestID:  ev.RequestID,
		Source:     ev.Source,
		OK:         ev.Err == nil,
		Count:      ev.Result.Count,
		Devices:    ev.Result.Devices,
		UpdateTime: ev.Result.UpdateTime,
		DurationMS: ev.Duration.Milliseconds(),
	}
	if ev.Err != nil {
		payload.Error = ev.Err.Error()
	}
	s.hub.Broadcast(ChannelCatalogLoaded, payload)
}
