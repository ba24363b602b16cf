package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/FilipeAphrody/sentinel-accounts/internal/logging"
	"github.com/FilipeAphrody/sentinel-accounts/internal/usecase"
)

// AuthHandler represents the HTTP delivery layer for authentication.
type AuthHandler struct {
	usecase *usecase.AuthUsecase
	log     logging.Logger
}

// NewAuthHandler registers the authentication routes to the provided echo group.
func NewAuthHandler(g *echo.Group, u *usecase.AuthUsecase, log logging.Logger, requireAuth echo.MiddlewareFunc) {
	handler := &AuthHandler{usecase: u, log: log}

	g.POST("/register", handler.Register)
	g.POST("/verify-email", handler.VerifyEmail)
	g.GET("/verify-email", handler.VerifyEmail)
	g.POST("/resend-verification", handler.ResendVerification)
	g.POST("/login", handler.Login)
	g.POST("/mfa/verify", handler.VerifyMFA)
	g.POST("/logout", handler.Logout, requireAuth)
	g.POST("/forgot-password", handler.ForgotPassword)
	g.POST("/reset-password", handler.ResetPassword)
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := bind(c, &req); err != nil {
		return respondBindError(c, h.log, err)
	}

	res, err := h.usecase.Register(c.Request().Context(), usecase.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(http.StatusCreated, res)
}

// VerifyEmail accepts the token in the JSON body or, for links opened from
// the email, in the query string.
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	req := tokenRequest{Token: c.QueryParam("token")}
	if c.Request().Method == http.MethodPost {
		if err := c.Bind(&req); err != nil {
			return badRequest(c)
		}
	}
	if err := req.Validate(); err != nil {
		return writeError(c, h.log, err)
	}

	user, err := h.usecase.VerifyEmail(c.Request().Context(), req.Token)
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "email verified", "user": user})
}

func (h *AuthHandler) ResendVerification(c echo.Context) error {
	var req emailRequest
	if err := bind(c, &req); err != nil {
		return respondBindError(c, h.log, err)
	}

	if err := h.usecase.ResendVerification(c.Request().Context(), req.Email); err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(http.StatusAccepted, echo.Map{"message": "if the account exists and is unverified, a new verification email has been sent"})
}

// Login handles the initial authentication request.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := bind(c, &req); err != nil {
		return respondBindError(c, h.log, err)
	}

	resp, err := h.usecase.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return writeError(c, h.log, err)
	}

	// Handle the MFA required case
	if resp.MFARequired {
		return c.JSON(http.StatusAccepted, resp)
	}

	return c.JSON(http.StatusOK, resp)
}

// VerifyMFA handles the second step of authentication for users with MFA enabled.
func (h *AuthHandler) VerifyMFA(c echo.Context) error {
	var req mfaRequest
	if err := bind(c, &req); err != nil {
		return respondBindError(c, h.log, err)
	}

	resp, err := h.usecase.VerifyMFA(c.Request().Context(), req.ChallengeToken, req.Code)
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) Logout(c echo.Context) error {
	if err := h.usecase.Logout(c.Request().Context(), currentUserID(c)); err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out successfully"})
}

// ForgotPassword always answers the same way so it cannot be used to look
// up registered emails.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req emailRequest
	if err := bind(c, &req); err != nil {
		return respondBindError(c, h.log, err)
	}

	if err := h.usecase.RequestPasswordReset(c.Request().Context(), req.Email); err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(http.StatusAccepted, echo.Map{"message": "if the account exists, a password reset email has been sent"})
}

func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordRequest
	if err := bind(c, &req); err != nil {
		return respondBindError(c, h.log, err)
	}

	if err := h.usecase.ResetPassword(c.Request().Context(), req.Token, req.Password); err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "password reset successful"})
}
