// File: internal/mcp/server.go
package mcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/exam-autofill/internal/config"
	"github.com/xkilldash9x/exam-autofill/internal/metrics"
)

// Server exposes the action registry over HTTP for the driving agent.
type Server struct {
	cfg        config.ServerConfig
	metricsCfg config.MetricsConfig
	logger     *zap.Logger
	handlers   *Handlers
	metrics    *metrics.Metrics
	httpServer *http.Server
}

// NewServer builds the server. m may be nil, in which case no metrics are
// collected or served.
func NewServer(logger *zap.Logger, cfg *config.Config, runner ActionRunner, m *metrics.Metrics) *Server {
	s := &Server{
		cfg:        cfg.Server,
		metricsCfg: cfg.Metrics,
		logger:     logger.Named("mcp_server"),
		handlers:   NewHandlers(logger, runner),
		metrics:    m,
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router assembles the middleware chain and routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
	}

	if s.metrics != nil && s.metricsCfg.Enabled {
		r.Method(http.MethodGet, s.metricsCfg.Path, s.metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		// Page scripts can be slow; the timeout only covers API calls.
		r.Use(middleware.Timeout(s.cfg.RequestTimeout))
		s.handlers.RegisterRoutes(r)
	})
	return r
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.ListenAddr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then shuts down
// gracefully within the configured shutdown timeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("Action server starting", zap.String("address", ln.Addr().String()))
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server stopped: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("Shutting down action server gracefully...")

		timeout := s.cfg.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		return nil
	})

	err := g.Wait()
	s.logger.Info("Action server stopped.")
	return err
}

// requestLogger logs one line per request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
