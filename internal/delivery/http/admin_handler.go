package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/FilipeAphrody/sentinel-accounts/internal/domain"
	"github.com/FilipeAphrody/sentinel-accounts/internal/logging"
	"github.com/FilipeAphrody/sentinel-accounts/internal/usecase"
)

// AdminHandler exposes account management to administrators.
type AdminHandler struct {
	auth     *usecase.AuthUsecase
	profiles *usecase.ProfileUsecase
	log      logging.Logger
}

// NewAdminHandler registers the admin routes. The group must already require
// authentication and the admin role.
func NewAdminHandler(g *echo.Group, auth *usecase.AuthUsecase, profiles *usecase.ProfileUsecase, log logging.Logger) {
	handler := &AdminHandler{auth: auth, profiles: profiles, log: log}

	g.GET("/users/:userId", handler.GetUser)
	g.GET("/users/:userId/activity", handler.Activity)
	g.PATCH("/users/:userId/role", handler.UpdateRole)
}

func (h *AdminHandler) GetUser(c echo.Context) error {
	var req userIDRequest
	if err := bind(c, &req); err != nil {
		return respondBindError(c, h.log, err)
	}

	user, err := h.auth.GetUser(c.Request().Context(), req.UserID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, user)
}

func (h *AdminHandler) Activity(c echo.Context) error {
	var req activityRequest
	if err := bind(c, &req); err != nil {
		return respondBindError(c, h.log, err)
	}

	entries, err := h.profiles.ListActivity(c.Request().Context(), req.UserID, req.Limit)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"activity": entries})
}

func (h *AdminHandler) UpdateRole(c echo.Context) error {
	var req updateRoleRequest
	if err := bind(c, &req); err != nil {
		return respondBindError(c, h.log, err)
	}

	user, err := h.auth.UpdateUserRole(c.Request().Context(), currentUserID(c), req.UserID, domain.Role(req.Role))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, user)
}
