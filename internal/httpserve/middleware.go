package httpserve

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// requestLogger logs one line per request with the outcome.
func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		s.logger.Info("request",
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
			"status", c.Response().Status,
			"bytes", c.Response().Size,
			"duration", time.Since(start))
		return err
	}
}

// publishRateLimit applies the shared token bucket to publish requests so
// a single client cannot saturate archive analysis.
func (s *Server) publishRateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !s.limiter.Allow() {
			return sendErrorStatus(c, http.StatusTooManyRequests, "publish rate limit exceeded")
		}
		return next(c)
	}
}
