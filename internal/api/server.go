package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/airguard-core/internal/device"
	"github.com/nerrad567/airguard-core/internal/infrastructure/config"
	"github.com/nerrad567/airguard-core/internal/infrastructure/logging"
	"github.com/nerrad567/airguard-core/internal/ingest"
)

// Server timeouts. The ops endpoint only serves small JSON documents.
const (
	gracefulShutdownTimeout = 10 * time.Second
	readTimeout             = 5 * time.Second
	writeTimeout            = 10 * time.Second
	idleTimeout             = 60 * time.Second
	healthCheckTimeout      = 2 * time.Second
)

// Database is the store surface the ops endpoint reports on.
// Implemented by *database.DB.
type Database interface {
	HealthCheck(ctx context.Context) error
	Stats() sql.DBStats
}

// Broker is the broker connection surface. Implemented by *mqtt.Client.
type Broker interface {
	HealthCheck(ctx context.Context) error
	SubscriptionCount() int
}

// Pipeline reports the ingestion subscriber's state.
// Implemented by *ingest.Subscriber.
type Pipeline interface {
	State() ingest.State
	QueueDepth() int
}

// Deps holds the dependencies required by the ops server.
type Deps struct {
	Config   config.OpsConfig
	Logger   *logging.Logger
	Database Database
	Devices  device.Repository

	// Optional. Health reports them as "unavailable" when nil.
	Broker   Broker
	Pipeline Pipeline

	// Gatherer backs /metrics. Defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer

	Version string
}

// Server is the ops HTTP server.
type Server struct {
	cfg       config.OpsConfig
	logger    *logging.Logger
	db        Database
	devices   device.Repository
	broker    Broker
	pipeline  Pipeline
	gatherer  prometheus.Gatherer
	version   string
	startTime time.Time

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// New creates an ops server. It is not listening until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Database == nil {
		return nil, fmt.Errorf("database is required")
	}
	if deps.Devices == nil {
		return nil, fmt.Errorf("device repository is required")
	}

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	return &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		db:        deps.Database,
		devices:   deps.Devices,
		broker:    deps.Broker,
		pipeline:  deps.Pipeline,
		gatherer:  gatherer,
		version:   deps.Version,
		startTime: time.Now(),
	}, nil
}

// Start binds the listener and serves in a background goroutine. Binding
// errors (port in use) are returned here rather than logged later.
func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return fmt.Errorf("ops server already started")
	}

	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	s.listener = ln
	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	srv := s.server
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("ops server error", "error", err)
		}
	}()

	s.logger.Info("ops server listening", "address", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the server, waiting up to 10 seconds for
// in-flight requests.
func (s *Server) Close() error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("ops server shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down ops server: %w", err)
	}
	return nil
}

// HealthCheck verifies the server has been started.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("ops health check: %w", ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return fmt.Errorf("ops server not started")
	}
	return nil
}
