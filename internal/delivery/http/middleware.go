package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/FilipeAphrody/sentinel-accounts/internal/domain"
	"github.com/FilipeAphrody/sentinel-accounts/internal/logging"
)

// Context keys set by JWTMiddleware.
const (
	ctxUserID = "user_id"
	ctxRole   = "role"
)

// Authenticator resolves a bearer token to the session it belongs to.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.SessionInfo, error)
}

// JWTMiddleware intercepts the request to validate the JWT token in the
// Authorization header. The token must also still be the tracked session of
// its user, so logged-out tokens are refused before they expire.
func JWTMiddleware(auth Authenticator, log logging.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing authorization header"})
			}

			// Expected format: "Bearer <token>"
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid authorization format"})
			}

			session, err := auth.Authenticate(c.Request().Context(), parts[1])
			if err != nil {
				// A session store outage must not read as "logged out".
				if errors.Is(err, domain.ErrStoreUnavailable) {
					return writeError(c, log, err)
				}
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
			}

			// Inject extracted user information into Echo context.
			c.Set(ctxUserID, session.UserID)
			c.Set(ctxRole, string(session.Role))

			return next(c)
		}
	}
}

// RoleMiddleware ensures only users with specific roles (or admins) can access the route.
func RoleMiddleware(requiredRole domain.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get(ctxRole).(string)

			// Authorization logic: Admins have full access, others need the specific role.
			if !ok || (role != string(requiredRole) && role != string(domain.RoleAdmin)) {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "access denied: insufficient permissions"})
			}

			return next(c)
		}
	}
}

// ClientIPMiddleware stores the caller address in the request context so the
// activity trail and the logs can attach it.
func ClientIPMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			c.SetRequest(req.WithContext(logging.WithClientIP(req.Context(), c.RealIP())))
			return next(c)
		}
	}
}

// RequestLogger writes one structured line per request.
func RequestLogger(log logging.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			args := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency}
			if v.Error != nil {
				log.Warn(c.Request().Context(), "request", append(args, "error", v.Error)...)
				return nil
			}
			log.Info(c.Request().Context(), "request", args...)
			return nil
		},
	})
}

func currentUserID(c echo.Context) string {
	id, _ := c.Get(ctxUserID).(string)
	return id
}
