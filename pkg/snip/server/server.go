// Package server assembles the HTTP surface from the services and runs it.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/snipdev/snip/pkg/snip/apperr"
	"github.com/snipdev/snip/pkg/snip/auth"
	"github.com/snipdev/snip/pkg/snip/config"
	"github.com/snipdev/snip/pkg/snip/links"
	"github.com/snipdev/snip/pkg/snip/metrics"
	"github.com/snipdev/snip/pkg/snip/redirect"
)

// Deps are the services the router dispatches to
type Deps struct {
	Auth    *auth.Service
	Links   *links.Service
	Logger  *slog.Logger
	BaseURL string
}

// NewRouter builds the gin engine. The redirect route is registered last so
// every named route wins over the short code wildcard.
func NewRouter(deps Deps) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics.Init()

	r := gin.New()
	r.Use(RequestID(), Logger(logger), Recovery(logger), metrics.Middleware())

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "alive")
	})
	r.GET("/metrics", metrics.Handler())

	auth.NewHandler(deps.Auth).RegisterRoutes(r.Group("/auth"))
	links.NewHandler(deps.Links, deps.Auth, deps.BaseURL).RegisterRoutes(r)
	redirect.NewHandler(deps.Links).RegisterRoutes(r)

	r.NoRoute(func(c *gin.Context) {
		apperr.AbortWithStatus(c, http.StatusNotFound, "Not found")
	})

	return r
}

// Server runs the HTTP listener
type Server struct {
	logger          *slog.Logger
	http            *http.Server
	shutdownTimeout time.Duration
}

// New creates a server listening on cfg.Port
func New(cfg config.ServerConfig, logger *slog.Logger, handler http.Handler) *Server {
	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Server{
		logger: logger,
		http: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		shutdownTimeout: timeout,
	}
}

// Run serves until ctx is cancelled, then drains in-flight requests
func (s *Server) Run(ctx context.Context) error {
	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("starting http server", "addr", s.http.Addr)
		serverErrors <- s.http.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		s.logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		if err := s.http.Shutdown(shutdownCtx); err != nil {
			if closeErr := s.http.Close(); closeErr != nil {
				return fmt.Errorf("failed to close server: %w", closeErr)
			}
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}

		s.logger.Info("server stopped gracefully")
		return nil
	}
}
