package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/harun/ikigai/internal/observability"
	"github.com/harun/ikigai/internal/tracing"
)

// Config holds HTTP server settings
type Config struct {
	Host           string
	Port           int
	AllowedOrigins []string
	// ConnLimits builds the limiter for each chat WebSocket connection.
	ConnLimits func() *ConnLimiter
}

// Server is the HTTP server
type Server struct {
	cfg    Config
	router chi.Router
	socket *ChatSocket
	logger zerolog.Logger
}

// NewServer builds the router for handler
func NewServer(cfg Config, handler *Handler, logger zerolog.Logger) (*Server, error) {
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if handler == nil {
		return nil, fmt.Errorf("handler is required")
	}

	s := &Server{
		cfg:    cfg,
		socket: NewChatSocket(handler, cfg.AllowedOrigins, cfg.ConnLimits),
		logger: logger.With().Str("component", "http").Logger(),
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))

	handler.RegisterRoutes(r)
	r.Get("/ws/chat", s.socket.ServeHTTP)
	r.Handle("/metrics", observability.MetricsHandler())

	s.router = r
	return s, nil
}

// Handler returns the root http.Handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:        net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port)),
		Handler:     s.router,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", srv.Addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.socket.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn().Err(err).Msg("Chat turns still running at shutdown")
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	s.logger.Info().Msg("Server stopped")
	return nil
}

// requestContext carries the chi request id into the tracing context
func requestContext(r *http.Request) context.Context {
	return tracing.WithRequestID(r.Context(), chiMiddleware.GetReqID(r.Context()))
}

func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Debug().
				Str("request_id", chiMiddleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("HTTP request")
		})
	}
}
