// Package http serves predictions from a loaded model artifact.
package http

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"userpredict/ml"
	"userpredict/monitoring"
)

// Server is the prediction HTTP server.
type Server struct {
	server  *http.Server
	config  ServerConfig
	logger  *zap.Logger
	handler http.Handler
}

// ServerConfig configures NewServer.
type ServerConfig struct {
	Port         int
	Timeout      time.Duration
	MaxBodyBytes int64
	// APIKey is the shared secret for POST /predict. Empty disables the check.
	APIKey string
	// CacheSize bounds the prediction cache; zero disables it.
	CacheSize int
}

// DefaultServerConfig returns the settings used when config leaves them unset.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:         5000,
		Timeout:      30 * time.Second,
		MaxBodyBytes: 1 << 20,
		CacheSize:    1024,
	}
}

// NewServer wires the routes around artifact. The artifact must already be
// loaded; the server never starts without a model.
func NewServer(config ServerConfig, artifact *ml.ModelArtifact, logger *zap.Logger, metrics *monitoring.Metrics) (*Server, error) {
	if artifact == nil {
		return nil, errors.New("server requires a loaded model artifact")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = monitoring.NewMetrics()
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultServerConfig().Timeout
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = DefaultServerConfig().MaxBodyBytes
	}

	predict, err := NewPredictHandler(artifact, config.CacheSize, logger, metrics)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("POST /predict", Chain(
		instrumentMiddleware(metrics),
		APIKeyMiddleware(config.APIKey, logger),
		RequestSizeMiddleware(config.MaxBodyBytes),
	)(predict))
	mux.Handle("GET /api/health", healthHandler(artifact))
	mux.Handle("GET /metrics", metrics.Handler())

	chain := Chain(
		RecoveryMiddleware(logger),
		LoggerMiddleware(logger),
		SecurityHeadersMiddleware,
	)
	handler := chain(mux)

	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", config.Port),
			Handler:      handler,
			ReadTimeout:  config.Timeout,
			WriteTimeout: config.Timeout,
			IdleTimeout:  120 * time.Second,
		},
		config:  config,
		logger:  logger,
		handler: handler,
	}, nil
}

// Handler returns the full middleware-wrapped router.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start blocks serving requests until Stop is called.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "server failed")
	}
	return nil
}

// Serve is Start on an existing listener.
func (s *Server) Serve(listener net.Listener) error {
	s.logger.Info("starting HTTP server", zap.String("addr", listener.Addr().String()))
	if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "server failed")
	}
	return nil
}

// Stop drains in-flight requests until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	if err := s.server.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "server forced to shutdown")
	}
	return nil
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.server.Addr
}
