// Package httpserve exposes the registry over HTTP: the publish endpoint
// driving the ingestion flow, the release lookup endpoint, and the
// liveness and metrics probes.
package httpserve

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/bnema/parcel/internal/config"
	"github.com/bnema/parcel/internal/ingest"
)

// Server is the HTTP surface of the registry.
type Server struct {
	cfg     *config.Config
	echo    *echo.Echo
	svc     *ingest.Service
	limiter *rate.Limiter
	logger  *log.Logger
}

// New wires routes and middleware around the ingestion service.
func New(cfg *config.Config, svc *ingest.Service, registry *prometheus.Registry, logger *log.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		cfg:     cfg,
		echo:    e,
		svc:     svc,
		limiter: rate.NewLimiter(rate.Limit(cfg.Ingest.PublishRate), cfg.Ingest.PublishBurst),
		logger:  logger,
	}

	e.Use(echomw.Recover())
	e.Use(s.requestLogger)
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "parcel",
		Subsystem:  "http",
		Registerer: registry,
	}))

	e.GET("/healthz", s.handleHealthz)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	e.PUT("/:scope/:name/:version", s.handlePublish, s.publishRateLimit)
	e.GET("/:scope/:name/:version", s.handleGetRelease)

	return s
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.Server.Port)

	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	s.logger.Info("registry server listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("registry server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.echo.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
