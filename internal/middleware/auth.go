package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/suteetoe/vendor-service/pkg/jwtutil"
	"github.com/suteetoe/vendor-service/pkg/logger"
	"github.com/suteetoe/vendor-service/prometheus"
)

// AuthMiddleware verifies the bearer JWT and stores the caller on the context
func AuthMiddleware(m *prometheus.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromContext(c)

			tokenString := c.Request().Header.Get("Authorization")
			if tokenString == "" {
				log.Warn("Missing authorization token")
				m.RecordAuthAttempt(false)
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
			}

			// Remove "Bearer " prefix if present
			if len(tokenString) > 7 && strings.ToUpper(tokenString[0:7]) == "BEARER " {
				tokenString = tokenString[7:]
			}

			claims, err := jwtutil.ValidateToken(tokenString)
			if err != nil {
				log.Warn("Invalid token", zap.Error(err))
				m.RecordAuthAttempt(false)
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			m.RecordAuthAttempt(true)

			c.Set("user_id", claims.UserID)
			c.Set("email", claims.Email)
			c.Set("role", claims.Role)

			logger.Bind(c, log.With(
				zap.Uint("user_id", claims.UserID),
				zap.String("email", claims.Email),
			))

			return next(c)
		}
	}
}
