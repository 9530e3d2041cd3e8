package http

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/FilipeAphrody/sentinel-identity/internal/domain"
	"github.com/FilipeAphrody/sentinel-identity/pkg/security"
)

// Context keys populated by the guards for downstream handlers.
const (
	ctxUserID       = "user_id"
	ctxAccessToken  = "access_token"
	ctxRefreshToken = "refresh_token"
)

func bearerToken(c echo.Context) (string, bool) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	// Expected format: "Bearer <token>"
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	return parts[1], true
}

// AccessGuard authenticates a request with an access token: signature and
// expiry first, then the revocation blacklist. On success the resolved
// subject and the raw token are injected into the request context.
func AccessGuard(tokens *security.TokenManager, revocations domain.RevocationStore) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := bearerToken(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing or malformed authorization header"})
			}

			result := tokens.Verify(token, security.AccessToken)
			if !result.Valid {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
			}

			blacklisted, err := revocations.IsBlacklisted(c.Request().Context(), token)
			if err != nil {
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
			}
			if blacklisted {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
			}

			c.Set(ctxUserID, result.Claims.Subject)
			c.Set(ctxAccessToken, token)

			return next(c)
		}
	}
}

// RefreshGuard authenticates a request with a refresh token: signature and
// expiry against the refresh secret, then an exact match against the user's
// stored refresh marker. Tokens superseded by a newer issuance or removed by
// logout fail the marker check even though their signature is still good.
func RefreshGuard(tokens *security.TokenManager, revocations domain.RevocationStore) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := bearerToken(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing or malformed authorization header"})
			}

			result := tokens.Verify(token, security.RefreshToken)
			if !result.Valid {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
			}

			valid, err := revocations.IsRefreshValid(c.Request().Context(), result.Claims.Subject, token)
			if err != nil {
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
			}
			if !valid {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
			}

			c.Set(ctxUserID, result.Claims.Subject)
			c.Set(ctxRefreshToken, token)

			return next(c)
		}
	}
}
