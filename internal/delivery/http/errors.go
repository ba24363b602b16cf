package http

import (
	"errors"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/labstack/echo/v4"

	"github.com/FilipeAphrody/sentinel-accounts/internal/domain"
	"github.com/FilipeAphrody/sentinel-accounts/internal/logging"
)

// statusFor maps usecase error kinds to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidToken):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as a JSON error body. Server-side failures are
// logged and replaced by a generic message.
func writeError(c echo.Context, log logging.Logger, err error) error {
	var fields validation.Errors
	if errors.As(err, &fields) {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{
			"error":  "validation failed",
			"fields": fields,
		})
	}

	status := statusFor(err)
	switch status {
	case http.StatusInternalServerError:
		log.Error(c.Request().Context(), "request failed", "path", c.Path(), "error", err)
		return c.JSON(status, echo.Map{"error": "internal server error"})
	case http.StatusServiceUnavailable:
		log.Error(c.Request().Context(), "backing store unavailable", "path", c.Path(), "error", err)
		return c.JSON(status, echo.Map{"error": "service temporarily unavailable"})
	}

	return c.JSON(status, echo.Map{"error": err.Error()})
}

// bind decodes the request and runs its field checks.
func bind[T interface{ Validate() error }](c echo.Context, req *T) error {
	if err := c.Bind(req); err != nil {
		return err
	}
	return (*req).Validate()
}

// respondBindError separates undecodable bodies from field validation failures.
func respondBindError(c echo.Context, log logging.Logger, err error) error {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return badRequest(c)
	}
	return writeError(c, log, err)
}

func badRequest(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
}
