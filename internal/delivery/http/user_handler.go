package http

import (
	"bytes"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/FilipeAphrody/sentinel-accounts/internal/logging"
	"github.com/FilipeAphrody/sentinel-accounts/internal/usecase"
)

const maxPhotoBytes = 5 << 20

// UserHandler serves the authenticated user's own account: profile, photo,
// password and sessions.
type UserHandler struct {
	auth     *usecase.AuthUsecase
	profiles *usecase.ProfileUsecase
	log      logging.Logger
}

// NewUserHandler registers the /users/me and /sessions routes, each wrapped
// in requireAuth.
func NewUserHandler(g *echo.Group, auth *usecase.AuthUsecase, profiles *usecase.ProfileUsecase, log logging.Logger, requireAuth echo.MiddlewareFunc) {
	handler := &UserHandler{auth: auth, profiles: profiles, log: log}

	g.GET("/users/me", handler.GetProfile, requireAuth)
	g.PATCH("/users/me", handler.UpdateProfile, requireAuth)
	g.POST("/users/me/photo", handler.UploadPhoto, requireAuth)
	g.DELETE("/users/me/photo", handler.DeletePhoto, requireAuth)
	g.GET("/users/me/activity", handler.Activity, requireAuth)
	g.PUT("/users/me/password", handler.ChangePassword, requireAuth)
	g.GET("/sessions/current", handler.CurrentSession, requireAuth)
	g.DELETE("/sessions", handler.RevokeSessions, requireAuth)
}

func (h *UserHandler) GetProfile(c echo.Context) error {
	profile, err := h.profiles.GetProfile(c.Request().Context(), currentUserID(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, profile)
}

func (h *UserHandler) UpdateProfile(c echo.Context) error {
	var req updateProfileRequest
	if err := bind(c, &req); err != nil {
		return respondBindError(c, h.log, err)
	}

	profile, err := h.profiles.UpdateProfile(c.Request().Context(), currentUserID(c), req.toUpdate())
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, profile)
}

// UploadPhoto expects a multipart form with the image in the "photo" field.
// The content type is sniffed from the bytes, not taken from the client.
func (h *UserHandler) UploadPhoto(c echo.Context) error {
	file, err := c.FormFile("photo")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "no file uploaded"})
	}
	if file.Size > maxPhotoBytes {
		return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": "photo exceeds 5MB"})
	}

	src, err := file.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable upload"})
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, maxPhotoBytes+1))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable upload"})
	}
	if len(data) > maxPhotoBytes {
		return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": "photo exceeds 5MB"})
	}

	url, err := h.profiles.UploadPhoto(c.Request().Context(), currentUserID(c), http.DetectContentType(data), bytes.NewReader(data))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"photo_url": url})
}

func (h *UserHandler) DeletePhoto(c echo.Context) error {
	if err := h.profiles.DeletePhoto(c.Request().Context(), currentUserID(c)); err != nil {
		return writeError(c, h.log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Activity lists the caller's own activity trail, newest first.
func (h *UserHandler) Activity(c echo.Context) error {
	var req activityRequest
	if err := bind(c, &req); err != nil {
		return respondBindError(c, h.log, err)
	}

	entries, err := h.profiles.ListActivity(c.Request().Context(), currentUserID(c), req.Limit)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"activity": entries})
}

func (h *UserHandler) ChangePassword(c echo.Context) error {
	var req changePasswordRequest
	if err := bind(c, &req); err != nil {
		return respondBindError(c, h.log, err)
	}

	if err := h.auth.ChangePassword(c.Request().Context(), currentUserID(c), req.CurrentPassword, req.NewPassword); err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "password changed, please log in again"})
}

func (h *UserHandler) CurrentSession(c echo.Context) error {
	info, err := h.auth.CurrentSession(c.Request().Context(), currentUserID(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, info)
}

func (h *UserHandler) RevokeSessions(c echo.Context) error {
	if err := h.auth.RevokeAllSessions(c.Request().Context(), currentUserID(c)); err != nil {
		return writeError(c, h.log, err)
	}
	return c.NoContent(http.StatusNoContent)
}
