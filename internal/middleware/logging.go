package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/suteetoe/vendor-service/pkg/logger"
	"github.com/suteetoe/vendor-service/prometheus"
)

// RequestLogger logs each request and records the service HTTP metrics
func RequestLogger(m *prometheus.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				// Let echo write the error response so the status below is final
				c.Error(err)
			}

			duration := time.Since(start)
			status := c.Response().Status

			logger.FromContext(c).Info("HTTP Request",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.Int("status", status),
				zap.Float64("duration_s", duration.Seconds()),
				zap.String("ip", c.RealIP()),
			)

			m.ObserveHTTPRequest(c.Request().Method, c.Path(), status, duration)

			return nil
		}
	}
}
