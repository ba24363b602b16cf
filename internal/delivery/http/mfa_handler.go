package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/FilipeAphrody/sentinel-accounts/internal/logging"
	"github.com/FilipeAphrody/sentinel-accounts/internal/usecase"
)

// MFAHandler handles MFA enrollment and management.
type MFAHandler struct {
	usecase *usecase.AuthUsecase
	log     logging.Logger
}

// NewMFAHandler registers the MFA management routes. All of them act on the
// authenticated user.
func NewMFAHandler(g *echo.Group, u *usecase.AuthUsecase, log logging.Logger) {
	handler := &MFAHandler{usecase: u, log: log}

	g.POST("/setup", handler.Setup)
	g.POST("/enable", handler.Enable)
	g.POST("/disable", handler.Disable)
}

// Setup generates a new TOTP secret for the user and returns the QR code URI.
// MFA is not active until Enable succeeds.
func (h *MFAHandler) Setup(c echo.Context) error {
	setup, err := h.usecase.SetupMFA(c.Request().Context(), currentUserID(c))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, setup)
}

// Enable verifies the provided code and officially turns on MFA for the user account.
func (h *MFAHandler) Enable(c echo.Context) error {
	var req mfaCodeRequest
	if err := bind(c, &req); err != nil {
		return respondBindError(c, h.log, err)
	}

	if err := h.usecase.EnableMFA(c.Request().Context(), currentUserID(c), req.Code); err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "mfa enabled"})
}

// Disable turns MFA off after re-checking the password.
func (h *MFAHandler) Disable(c echo.Context) error {
	var req passwordRequest
	if err := bind(c, &req); err != nil {
		return respondBindError(c, h.log, err)
	}

	if err := h.usecase.DisableMFA(c.Request().Context(), currentUserID(c), req.Password); err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "mfa disabled"})
}
