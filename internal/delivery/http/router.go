package http

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/FilipeAphrody/sentinel-accounts/internal/domain"
	"github.com/FilipeAphrody/sentinel-accounts/internal/logging"
	"github.com/FilipeAphrody/sentinel-accounts/internal/usecase"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// Request bodies larger than this are rejected before binding. It leaves
// headroom over the photo limit for multipart framing.
const bodyLimit = "6M"

// RouterDeps carries everything NewRouter wires into the HTTP surface.
type RouterDeps struct {
	Auth     *usecase.AuthUsecase
	Profiles *usecase.ProfileUsecase
	Logger   logging.Logger
	// Checks are run by /health; any failure reports the service as degraded.
	Checks map[string]func(context.Context) error
}

// NewRouter builds the echo instance with global middleware and all routes.
func NewRouter(d RouterDeps) *echo.Echo {
	log := d.Logger
	if log == nil {
		log = logging.Discard()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.Secure())
	e.Use(middleware.BodyLimit(bodyLimit))
	e.Use(ClientIPMiddleware())
	e.Use(RequestLogger(log))

	requireAuth := JWTMiddleware(d.Auth, log)

	v1 := e.Group("/v1")
	NewAuthHandler(v1.Group("/auth"), d.Auth, log, requireAuth)
	NewMFAHandler(v1.Group("/mfa", requireAuth), d.Auth, log)
	NewAdminHandler(v1.Group("/admin", requireAuth, RoleMiddleware(domain.RoleAdmin)), d.Auth, d.Profiles, log)
	NewUserHandler(v1, d.Auth, d.Profiles, log, requireAuth)

	e.GET("/health", healthHandler(d.Checks))

	return e
}

func healthHandler(checks map[string]func(context.Context) error) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()

		status, code := "healthy", http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				results[name] = err.Error()
				status, code = "degraded", http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}

		return c.JSON(code, echo.Map{
			"status":  status,
			"version": Version,
			"time":    time.Now().UTC().Format(time.RFC3339),
			"checks":  results,
		})
	}
}
