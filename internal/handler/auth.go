package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/learning-api/internal/middleware"
	"github.com/iliyamo/learning-api/internal/service"
)

// AuthCore is the credential lifecycle the auth endpoints expose.
type AuthCore interface {
	Register(ctx context.Context, in service.RegisterInput) (service.AuthResult, error)
	Login(ctx context.Context, email, password string) (service.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (service.RefreshResult, error)
	Logout(ctx context.Context, userID, refreshToken string) error
	ForgotPassword(ctx context.Context, email string) (service.ForgotResult, error)
	ResetPassword(ctx context.Context, rawToken, newPassword string) error
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error
}

type AuthHandler struct {
	Auth    AuthCore
	Timeout time.Duration
}

func NewAuthHandler(auth AuthCore, timeout time.Duration) *AuthHandler {
	return &AuthHandler{Auth: auth, Timeout: timeout}
}

type registerReq struct {
	Name     string `json:"name" validate:"required,min=2"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type loginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshReq struct {
	RefreshToken string `json:"refreshToken"`
}

type forgotReq struct {
	Email string `json:"email" validate:"required,email"`
}

type resetReq struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8"`
}

type changePasswordReq struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8"`
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	res, err := h.Auth.Register(ctx, service.RegisterInput{Name: req.Name, Email: req.Email, Password: req.Password})
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "User registered successfully", res)
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	res, err := h.Auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Login successful", res)
}

var errRefreshRequired = validationMessage("Refresh token required")

func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if req.RefreshToken == "" {
		return errRefreshRequired
	}
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	res, err := h.Auth.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "", res)
}

// Logout always answers 200 for a valid caller; a missing or foreign
// refresh token is not an error.
func (h *AuthHandler) Logout(c echo.Context) error {
	userID, _, _ := middleware.CurrentUser(c)
	var req refreshReq
	if err := c.Bind(&req); err != nil {
		req.RefreshToken = ""
	}
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	if err := h.Auth.Logout(ctx, userID, req.RefreshToken); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Logout successful", nil)
}

func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req forgotReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	res, err := h.Auth.ForgotPassword(ctx, req.Email)
	if err != nil {
		return err
	}
	var data any
	if res.ResetToken != "" {
		data = echo.Map{"resetToken": res.ResetToken}
	}
	return respond(c, http.StatusOK, res.Message, data)
}

func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	if err := h.Auth.ResetPassword(ctx, req.Token, req.NewPassword); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Password reset successfully", nil)
}

func (h *AuthHandler) ChangePassword(c echo.Context) error {
	userID, _, _ := middleware.CurrentUser(c)
	var req changePasswordReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestContext(c, h.Timeout)
	defer cancel()

	if err := h.Auth.ChangePassword(ctx, userID, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Password changed successfully", nil)
}
