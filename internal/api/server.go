package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-heating/internal/heartbeat"
	"github.com/nerrad567/gray-logic-heating/internal/history"
	"github.com/nerrad567/gray-logic-heating/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-heating/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-heating/internal/metrics"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// HealthEvaluator produces the current health document.
// *heartbeat.Reporter implements it.
type HealthEvaluator interface {
	Evaluate(ctx context.Context) heartbeat.Health
}

// EventFirer delivers a host event to the controller. *entity.Store
// implements it; listeners run on the dispatch loop.
type EventFirer interface {
	FireEvent(name string, data map[string]any)
}

// ConnectionChecker reports broker connectivity.
type ConnectionChecker interface {
	IsConnected() bool
}

// DBStatser exposes connection pool statistics.
type DBStatser interface {
	Stats() sql.DBStats
}

// BridgeStatser exposes host bridge traffic counters.
type BridgeStatser interface {
	Stats() (states, events, commands uint64)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	WS      config.WebSocketConfig
	Logger  *logging.Logger
	Board   *Board
	Version string

	// Optional.
	Health  HealthEvaluator
	History history.Repository
	Events  EventFirer
	Metrics *metrics.Collector
	MQTT    ConnectionChecker
	DB      DBStatser
	Bridge  BridgeStatser

	// ExternalHub is used instead of a server-owned hub. The Board
	// broadcasts through it, so main creates it up front.
	ExternalHub *Hub
}

// Server is the HTTP API server.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	logger    *logging.Logger
	board     *Board
	health    HealthEvaluator
	history   history.Repository
	events    EventFirer
	metrics   *metrics.Collector
	mqtt      ConnectionChecker
	db        DBStatser
	bridge    BridgeStatser
	version   string
	startTime time.Time
	server    *http.Server
	hub       *Hub
	cancel    context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Board == nil {
		return nil, fmt.Errorf("board is required")
	}

	return &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		logger:    deps.Logger,
		board:     deps.Board,
		health:    deps.Health,
		history:   deps.History,
		events:    deps.Events,
		metrics:   deps.Metrics,
		mqtt:      deps.MQTT,
		db:        deps.DB,
		bridge:    deps.Bridge,
		version:   deps.Version,
		startTime: time.Now(),
		hub:       deps.ExternalHub,
	}, nil
}

// Handler returns the routed handler without starting a listener.
func (s *Server) Handler() http.Handler {
	s.ensureHub(context.Background())
	return s.buildRouter()
}

func (s *Server) ensureHub(ctx context.Context) {
	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
		go s.hub.Run(ctx)
	}
}

// Start begins listening for HTTP connections in a background goroutine.
// The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	s.ensureHub(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
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
