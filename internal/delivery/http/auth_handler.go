package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/FilipeAphrody/sentinel-identity/internal/domain"
	"github.com/FilipeAphrody/sentinel-identity/internal/usecase"
	"github.com/FilipeAphrody/sentinel-identity/pkg/security"
)

// AuthHandler represents the HTTP delivery layer for the session lifecycle.
type AuthHandler struct {
	usecase     *usecase.SessionUsecase
	revocations domain.RevocationStore
}

// NewAuthHandler registers the lifecycle routes on the provided echo group.
// Routes that operate on an established session sit behind the access guard;
// token refresh sits behind the refresh guard.
func NewAuthHandler(g *echo.Group, u *usecase.SessionUsecase, revocations domain.RevocationStore, accessGuard, refreshGuard echo.MiddlewareFunc) {
	handler := &AuthHandler{usecase: u, revocations: revocations}

	g.POST("/register", handler.Register)
	g.POST("/login", handler.Login)
	g.POST("/verify-token", handler.VerifyToken)
	g.POST("/check-email", handler.CheckEmail)

	g.POST("/refresh", handler.Refresh, refreshGuard)
	g.POST("/logout", handler.Logout, accessGuard)
	g.POST("/change-password", handler.ChangePassword, accessGuard)
	g.DELETE("/account", handler.DeleteAccount, accessGuard)
	g.GET("/profile", handler.Profile, accessGuard)
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

// errorResponse maps the usecase error taxonomy onto HTTP statuses. Every
// Unauthorized sub-cause shares one body so responses leak nothing about
// which part of a credential was wrong.
func errorResponse(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	case errors.Is(err, domain.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "user already exists"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
}

// Register creates a new account and hands back the first token pair.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	ctx := c.Request().Context()
	resp, err := h.usecase.Register(ctx, req.Email, req.Password)
	if err != nil {
		return errorResponse(c, err)
	}

	if err := h.revocations.SetRefreshValid(ctx, resp.UserID, resp.RefreshToken); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}

	return c.JSON(http.StatusCreated, resp)
}

// Login authenticates by credentials and hands back a fresh token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	ctx := c.Request().Context()
	resp, err := h.usecase.Login(ctx, req.Email, req.Password)
	if err != nil {
		return errorResponse(c, err)
	}

	if err := h.revocations.SetRefreshValid(ctx, resp.UserID, resp.RefreshToken); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}

	return c.JSON(http.StatusOK, resp)
}

// Refresh rotates the token pair for the subject resolved by the refresh
// guard. The new refresh token replaces the stored marker, invalidating the
// one just presented.
func (h *AuthHandler) Refresh(c echo.Context) error {
	userID := c.Get(ctxUserID).(string)

	ctx := c.Request().Context()
	pair, err := h.usecase.RefreshTokens(ctx, userID)
	if err != nil {
		return errorResponse(c, err)
	}

	if err := h.revocations.SetRefreshValid(ctx, userID, pair.RefreshToken); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}

	return c.JSON(http.StatusOK, pair)
}

// Logout revokes the session the request was authenticated with. The access
// token's expiry is read without signature verification; the guard already
// established trust and the value only bounds the blacklist TTL.
func (h *AuthHandler) Logout(c echo.Context) error {
	userID := c.Get(ctxUserID).(string)
	accessToken, _ := c.Get(ctxAccessToken).(string)

	var tokenExpiry time.Time
	if accessToken != "" {
		if exp, err := security.ExtractExpiryUnverified(accessToken); err == nil {
			tokenExpiry = exp
		}
	}

	if err := h.usecase.Logout(c.Request().Context(), userID, accessToken, tokenExpiry); err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "logged out successfully"})
}

// ChangePassword swaps the credential's password after verifying the old one.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	var req changePasswordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	userID := c.Get(ctxUserID).(string)
	if err := h.usecase.ChangePassword(c.Request().Context(), userID, req.OldPassword, req.NewPassword); err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "password changed successfully"})
}

// DeleteAccount removes the credential after a password confirmation.
func (h *AuthHandler) DeleteAccount(c echo.Context) error {
	var req struct {
		Password string `json:"password" validate:"required"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	userID := c.Get(ctxUserID).(string)
	if err := h.usecase.DeleteAccount(c.Request().Context(), userID, req.Password); err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "account deleted successfully"})
}

// VerifyToken reports whether an access token is valid, with its claims when
// it is. Failures are uniform; the endpoint never says why a token failed.
func (h *AuthHandler) VerifyToken(c echo.Context) error {
	var req struct {
		Token string `json:"token" validate:"required"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	result := h.usecase.VerifyToken(req.Token)
	if !result.Valid {
		return c.JSON(http.StatusOK, echo.Map{"valid": false})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"valid": true,
		"payload": echo.Map{
			"sub": result.Claims.Subject,
			"iat": result.Claims.IssuedAt.Unix(),
			"exp": result.Claims.ExpiresAt.Unix(),
		},
	})
}

// CheckEmail reports whether an email is still free to register.
func (h *AuthHandler) CheckEmail(c echo.Context) error {
	var req struct {
		Email string `json:"email" validate:"required,email"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	available, err := h.usecase.CheckEmailAvailability(c.Request().Context(), req.Email)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"available": available})
}

// Profile returns the authenticated user's credential minus the hash.
func (h *AuthHandler) Profile(c echo.Context) error {
	userID := c.Get(ctxUserID).(string)

	profile, err := h.usecase.GetProfile(c.Request().Context(), userID)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, profile)
}
